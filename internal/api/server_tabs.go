package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/codehost_agent/internal/controller"
)

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func registerTabHandlers(api huma.API, svc Service) {
	type listTabsOutput struct {
		Body struct {
			Tabs []controller.TabSummary `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List open code-host tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = tabs
			return out, nil
		})

	type tabFileInfoInput struct {
		TabID string `path:"tab_id"`
		Mode  string `query:"mode" default:"auto" enum:"auto,file,diff,snippet" doc:"Resolver to run. auto picks one from the page type."`
	}
	huma.Register(api, huma.Operation{OperationID: "get-tab-fileinfo", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/fileinfo", Summary: "Resolve file info from a live tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabFileInfoInput) (*pageResultOutput, error) {
			mode, err := parseMode(input.Mode)
			if err != nil {
				return nil, err
			}
			result, err := svc.ResolveTab(ctx, input.TabID, mode)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pageResultOutput{Body: result}, nil
		})

	type resolveAllOutput struct {
		Body struct {
			Tabs []controller.TabOutcome `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "resolve-all-tabs", Method: http.MethodPost, Path: "/api/v1/tabs/resolve-all", Summary: "Resolve file info from every code-host tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *modeInput) (*resolveAllOutput, error) {
			mode, err := parseMode(input.Mode)
			if err != nil {
				return nil, err
			}
			outcomes, err := svc.ResolveAllTabs(ctx, mode)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &resolveAllOutput{}
			out.Body.Tabs = outcomes
			return out, nil
		})
}
