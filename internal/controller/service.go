package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/codehost_agent/internal/cdpcontrol"
	"github.com/dgnsrekt/codehost_agent/internal/dom"
	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
	"github.com/dgnsrekt/codehost_agent/internal/journal"
)

// Mode selects which resolver runs over a captured page.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeFile    Mode = "file"
	ModeDiff    Mode = "diff"
	ModeSnippet Mode = "snippet"
)

// TabSource lists and captures live browser tabs.
type TabSource interface {
	ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error)
	CapturePage(ctx context.Context, tabID string) (cdpcontrol.PageCapture, error)
}

// PageRenderer loads a URL that is not open in any tab.
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) (cdpcontrol.PageCapture, error)
}

// Recorder receives every resolution outcome.
type Recorder interface {
	Record(e journal.Entry) error
}

// TabSummary is a tab with its parsed page type.
type TabSummary struct {
	cdpcontrol.TabInfo
	PageType    fileinfo.PageType `json:"page_type,omitempty"`
	RawRepoName string            `json:"raw_repo_name,omitempty"`
}

// Resolution is the outcome for one code view, or for the page in file mode.
type Resolution struct {
	CodeView  int                `json:"code_view"`
	FileInfo  *fileinfo.FileInfo `json:"file_info,omitempty"`
	ErrorKind fileinfo.Kind      `json:"error_kind,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// PageResult is everything resolved from one page capture.
type PageResult struct {
	TabID    string            `json:"tab_id,omitempty"`
	URL      string            `json:"url"`
	Title    string            `json:"title,omitempty"`
	PageType fileinfo.PageType `json:"page_type"`
	Mode     Mode              `json:"mode"`
	Results  []Resolution      `json:"results"`
}

// TabOutcome is one entry of ResolveAllTabs.
type TabOutcome struct {
	Tab       cdpcontrol.TabInfo `json:"tab"`
	Result    *PageResult        `json:"result,omitempty"`
	ErrorCode string             `json:"error_code,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Service captures pages and resolves FileInfo from them. It never caches
// a resolution: every call reads a fresh capture.
type Service struct {
	tabs        TabSource
	renderer    PageRenderer
	recorder    Recorder
	profiles    fileinfo.Profiles
	parallelism int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithRenderer(r PageRenderer) Option      { return func(s *Service) { s.renderer = r } }
func WithRecorder(r Recorder) Option          { return func(s *Service) { s.recorder = r } }
func WithProfiles(p fileinfo.Profiles) Option { return func(s *Service) { s.profiles = p } }
func WithParallelism(n int) Option            { return func(s *Service) { s.parallelism = n } }

func NewService(tabs TabSource, opts ...Option) *Service {
	s := &Service{tabs: tabs, parallelism: 4, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.profiles == nil {
		s.profiles = fileinfo.Profiles{}
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	return s
}

func validation(msg string) error {
	return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: msg}
}

// ParseMode accepts "", auto, file, diff and snippet.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFile, ModeDiff, ModeSnippet:
		return m, nil
	}
	return "", validation("unknown mode: " + raw)
}

func (s *Service) requireTabs() error {
	if s.tabs == nil {
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeCDPUnavailable, Message: "no browser connection configured"}
	}
	return nil
}

func (s *Service) ListTabs(ctx context.Context) ([]TabSummary, error) {
	if err := s.requireTabs(); err != nil {
		return nil, err
	}
	tabs, err := s.tabs.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TabSummary, 0, len(tabs))
	for _, t := range tabs {
		summary := TabSummary{TabInfo: t}
		if parsed, _, err := fileinfo.ParseRawURL(t.URL, nil); err == nil {
			summary.PageType = parsed.PageType
			summary.RawRepoName = parsed.RawRepoName
		}
		out = append(out, summary)
	}
	return out, nil
}

// ResolveTab captures a tab and resolves it.
func (s *Service) ResolveTab(ctx context.Context, tabID string, mode Mode) (PageResult, error) {
	if err := s.requireTabs(); err != nil {
		return PageResult{}, err
	}
	if strings.TrimSpace(tabID) == "" {
		return PageResult{}, validation("tab_id is required")
	}
	capture, err := s.tabs.CapturePage(ctx, strings.TrimSpace(tabID))
	if err != nil {
		return PageResult{}, err
	}
	return s.resolveCapture("tab", capture, mode)
}

// ResolveDocument resolves a caller-supplied page snapshot.
func (s *Service) ResolveDocument(ctx context.Context, pageURL, html string, mode Mode) (PageResult, error) {
	_ = ctx
	if strings.TrimSpace(pageURL) == "" {
		return PageResult{}, validation("url is required")
	}
	if strings.TrimSpace(html) == "" {
		return PageResult{}, validation("html is required")
	}
	return s.resolveCapture("document", cdpcontrol.PageCapture{URL: pageURL, HTML: html}, mode)
}

// RenderAndResolve loads pageURL headlessly, then resolves it.
func (s *Service) RenderAndResolve(ctx context.Context, pageURL string, mode Mode) (PageResult, error) {
	if s.renderer == nil {
		return PageResult{}, &cdpcontrol.CodedError{Code: cdpcontrol.CodeRenderFailure, Message: "rendering is not configured"}
	}
	if strings.TrimSpace(pageURL) == "" {
		return PageResult{}, validation("url is required")
	}
	capture, err := s.renderer.Render(ctx, pageURL)
	if err != nil {
		return PageResult{}, err
	}
	return s.resolveCapture("render", capture, mode)
}

// ResolveAllTabs resolves every code-host tab concurrently. A failing tab
// is reported in its outcome and does not stop the others.
func (s *Service) ResolveAllTabs(ctx context.Context, mode Mode) ([]TabOutcome, error) {
	if err := s.requireTabs(); err != nil {
		return nil, err
	}
	tabs, err := s.tabs.ListTabs(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]TabOutcome, len(tabs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, tab := range tabs {
		g.Go(func() error {
			outcomes[i].Tab = tab
			result, err := s.ResolveTab(gctx, tab.TabID, mode)
			if err != nil {
				outcomes[i].ErrorCode = errorCode(err)
				outcomes[i].Error = err.Error()
				return nil
			}
			outcomes[i].Result = &result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func errorCode(err error) string {
	if kind := fileinfo.KindOf(err); kind != "" {
		return string(kind)
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return cdpcontrol.CodeEvalFailure
}

func (s *Service) resolveCapture(source string, capture cdpcontrol.PageCapture, mode Mode) (PageResult, error) {
	doc, err := dom.ParseString(capture.URL, capture.HTML)
	if err != nil {
		return PageResult{}, validation(err.Error())
	}
	parsed, err := fileinfo.ParseURL(doc.URL())
	if err != nil {
		s.record(source, capture, mode, 0, nil, err)
		return PageResult{}, err
	}
	if mode == "" || mode == ModeAuto {
		mode = modeForPage(parsed.PageType)
	}

	result := PageResult{
		TabID:    capture.TabID,
		URL:      capture.URL,
		Title:    capture.Title,
		PageType: parsed.PageType,
		Mode:     mode,
		Results:  []Resolution{},
	}
	if result.Title == "" {
		result.Title = doc.Title()
	}

	r := fileinfo.NewResolver(s.profiles.ForHost(doc.URL().Host))
	switch mode {
	case ModeFile:
		info, err := r.ResolveFileInfo(doc)
		s.record(source, capture, mode, 0, &info, err)
		if err != nil {
			return PageResult{}, err
		}
		result.Results = append(result.Results, Resolution{FileInfo: &info})
	case ModeDiff, ModeSnippet:
		kind := fileinfo.CodeViewDiff
		resolve := r.ResolveDiffFileInfo
		if mode == ModeSnippet {
			kind = fileinfo.CodeViewSnippet
			resolve = r.ResolveSnippetFileInfo
		}
		for i, view := range r.CodeViews(doc, kind) {
			info, err := resolve(doc, view)
			s.record(source, capture, mode, i, &info, err)
			res := Resolution{CodeView: i}
			if err != nil {
				res.ErrorKind = fileinfo.KindOf(err)
				res.Error = err.Error()
			} else {
				res.FileInfo = &info
			}
			result.Results = append(result.Results, res)
		}
	default:
		return PageResult{}, validation("unknown mode: " + string(mode))
	}

	slog.Debug("page resolved", "source", source, "url", capture.URL, "mode", mode, "results", len(result.Results))
	return result, nil
}

func modeForPage(pt fileinfo.PageType) Mode {
	switch pt {
	case fileinfo.PageBlob, fileinfo.PageTree:
		return ModeFile
	case fileinfo.PagePull, fileinfo.PageCommit, fileinfo.PageCompare:
		return ModeDiff
	}
	return ModeSnippet
}

func (s *Service) record(source string, capture cdpcontrol.PageCapture, mode Mode, view int, info *fileinfo.FileInfo, err error) {
	if s.recorder == nil {
		return
	}
	e := journal.Entry{
		Time:     s.now().UTC(),
		Source:   source,
		TabID:    capture.TabID,
		URL:      capture.URL,
		Mode:     string(mode),
		CodeView: view,
	}
	if err != nil {
		e.ErrorKind = string(fileinfo.KindOf(err))
		e.Error = err.Error()
	} else if info != nil {
		copied := *info
		e.FileInfo = &copied
	}
	if recErr := s.recorder.Record(e); recErr != nil {
		slog.Debug("journal record failed", "url", capture.URL, "error", recErr)
	}
}
