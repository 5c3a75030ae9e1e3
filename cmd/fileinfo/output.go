package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dgnsrekt/codehost_agent/internal/controller"
	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
)

var (
	labelColor = color.New(color.FgCyan)
	repoColor  = color.New(color.FgYellow, color.Bold)
	pathColor  = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePageResult(w io.Writer, format string, r controller.PageResult) error {
	if strings.EqualFold(format, "json") {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "%s %s %s\n", dimColor.Sprint(r.PageType), r.URL, dimColor.Sprintf("(%s)", r.Mode))
	if len(r.Results) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("  no code views found"))
	}
	for _, res := range r.Results {
		writeResolution(w, r.Mode, res)
	}
	return nil
}

func writeResolution(w io.Writer, mode controller.Mode, res controller.Resolution) {
	prefix := "  "
	if mode != controller.ModeFile {
		prefix = fmt.Sprintf("  [%d] ", res.CodeView)
	}
	if res.FileInfo == nil {
		fmt.Fprintf(w, "%s%s %s\n", prefix, errColor.Sprint(res.ErrorKind), res.Error)
		return
	}
	writeFileInfo(w, prefix, res.FileInfo)
}

func writeFileInfo(w io.Writer, prefix string, fi *fileinfo.FileInfo) {
	fmt.Fprintf(w, "%s%s %s\n", prefix, repoColor.Sprint(fi.RawRepoName), pathColor.Sprint(fi.FilePath))
	indent := strings.Repeat(" ", len(prefix)+2)
	fmt.Fprintf(w, "%s%s %s\n", indent, labelColor.Sprint("revision:"), fi.Revision)
	fmt.Fprintf(w, "%s%s %s\n", indent, labelColor.Sprint("commit:"), fi.CommitID)
	if fi.BaseCommitID != "" {
		base := fi.BaseFilePath
		if base != fi.FilePath {
			base += " (renamed)"
		}
		fmt.Fprintf(w, "%s%s %s @ %s\n", indent, labelColor.Sprint("base:"), base, fi.BaseCommitID)
	}
}

func writeTabs(w io.Writer, format string, tabs []controller.TabSummary) error {
	if strings.EqualFold(format, "json") {
		return writeJSON(w, tabs)
	}
	if len(tabs) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("no code-host tabs open"))
		return nil
	}
	for _, t := range tabs {
		pt := t.PageType
		if pt == "" {
			pt = fileinfo.PageOther
		}
		fmt.Fprintf(w, "%s  %-7s %s\n", labelColor.Sprint(t.TabID), pt, t.URL)
	}
	return nil
}

func writeOutcomes(w io.Writer, format string, outcomes []controller.TabOutcome) error {
	if strings.EqualFold(format, "json") {
		return writeJSON(w, outcomes)
	}
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\n", labelColor.Sprint(o.Tab.TabID))
		if o.Result == nil {
			fmt.Fprintf(w, "  %s %s\n", errColor.Sprint(o.ErrorCode), o.Error)
			continue
		}
		if err := writePageResult(w, format, *o.Result); err != nil {
			return err
		}
	}
	return nil
}
