package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/codehost_agent/internal/cdpcontrol"
	"github.com/dgnsrekt/codehost_agent/internal/controller"
	"github.com/dgnsrekt/codehost_agent/internal/render"
)

var (
	resolveURL  string
	resolveHTML string
)

func init() {
	resolveCmd.Flags().StringVar(&resolveURL, "url", "", "URL the page was saved from")
	resolveCmd.Flags().StringVar(&resolveHTML, "html", "", "saved HTML file, or - for stdin")
	_ = resolveCmd.MarkFlagRequired("url")
	_ = resolveCmd.MarkFlagRequired("html")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve --url URL --html FILE",
	Short: "Resolve file info from a saved page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := controller.ParseMode(globalMode)
		if err != nil {
			return err
		}
		_, opts, err := loadConfig()
		if err != nil {
			return err
		}
		body, err := readHTML(resolveHTML)
		if err != nil {
			return err
		}
		svc := controller.NewService(nil, opts...)
		result, err := svc.ResolveDocument(cmd.Context(), resolveURL, body, mode)
		if err != nil {
			return err
		}
		return writePageResult(cmd.OutOrStdout(), globalFormat, result)
	},
}

func readHTML(path string) (string, error) {
	if path == "-" {
		data, err := readAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return string(data), nil
}

// connect builds a service backed by the configured browser.
func connect(cmd *cobra.Command) (*controller.Service, func(), error) {
	cfg, opts, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client := cdpcontrol.NewClient(cfg.ControllerCDPURL(), cfg.TabURLFilter, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := client.Connect(cmd.Context()); err != nil {
		return nil, nil, err
	}
	return controller.NewService(client, opts...), func() { _ = client.Close() }, nil
}

var tabCmd = &cobra.Command{
	Use:   "tab TAB_ID",
	Short: "Resolve file info from an open browser tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := controller.ParseMode(globalMode)
		if err != nil {
			return err
		}
		svc, closeFn, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		result, err := svc.ResolveTab(cmd.Context(), args[0], mode)
		if err != nil {
			return err
		}
		return writePageResult(cmd.OutOrStdout(), globalFormat, result)
	},
}

var tabsAll bool

func init() {
	tabsCmd.Flags().BoolVar(&tabsAll, "resolve", false, "resolve every listed tab")
}

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List open code-host tabs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := connect(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if tabsAll {
			mode, err := controller.ParseMode(globalMode)
			if err != nil {
				return err
			}
			outcomes, err := svc.ResolveAllTabs(cmd.Context(), mode)
			if err != nil {
				return err
			}
			return writeOutcomes(cmd.OutOrStdout(), globalFormat, outcomes)
		}

		tabs, err := svc.ListTabs(cmd.Context())
		if err != nil {
			return err
		}
		return writeTabs(cmd.OutOrStdout(), globalFormat, tabs)
	},
}

var renderInBrowser bool

func init() {
	renderCmd.Flags().BoolVar(&renderInBrowser, "in-browser", false, "render through the configured browser instead of a private headless one")
}

var renderCmd = &cobra.Command{
	Use:   "render URL",
	Short: "Load a URL headlessly and resolve file info from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := controller.ParseMode(globalMode)
		if err != nil {
			return err
		}
		cfg, opts, err := loadConfig()
		if err != nil {
			return err
		}
		rc := render.Config{Timeout: time.Duration(cfg.RenderTimeoutMS) * time.Millisecond}
		if renderInBrowser || cfg.RenderInBrowser {
			rc.RemoteURL = cfg.ControllerCDPURL()
		}
		svc := controller.NewService(nil, append(opts, controller.WithRenderer(render.NewRenderer(rc)))...)
		result, err := svc.RenderAndResolve(cmd.Context(), args[0], mode)
		if err != nil {
			return err
		}
		return writePageResult(cmd.OutOrStdout(), globalFormat, result)
	},
}
