package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgnsrekt/codehost_agent/internal/cdpcontrol"
	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
	"github.com/dgnsrekt/codehost_agent/internal/journal"
)

const (
	commit = "0123456789abcdef0123456789abcdef01234567"

	blobURL  = "https://github.com/org/repo/blob/main/src/index.ts"
	blobHTML = `<html><head><title>index.ts</title></head><body>
<div id="blob-path">src/index.ts</div>
<a class="js-permalink-shortcut" href="/org/repo/blob/` + commit + `/src/index.ts">Permalink</a>
</body></html>`

	pullURL  = "https://github.com/org/repo/pull/9/files"
	pullHTML = `<html><body>
<div class="file js-details-container">
  <div class="file-header" data-path="lib/a.go"><div class="file-info"><a title="lib/a.go">lib/a.go</a></div></div>
  <input type="hidden" name="comparison_start_oid" value="b1">
  <input type="hidden" name="comparison_end_oid" value="h1">
</div>
<div class="file js-details-container">
  <div class="file-header"><div class="file-info"></div></div>
</div>
</body></html>`
)

type fakeTabs struct {
	tabs     []cdpcontrol.TabInfo
	pages    map[string]cdpcontrol.PageCapture
	listErr  error
	mu       sync.Mutex
	captures int
}

func (f *fakeTabs) ListTabs(context.Context) ([]cdpcontrol.TabInfo, error) {
	return f.tabs, f.listErr
}

func (f *fakeTabs) CapturePage(_ context.Context, tabID string) (cdpcontrol.PageCapture, error) {
	f.mu.Lock()
	f.captures++
	f.mu.Unlock()
	p, ok := f.pages[tabID]
	if !ok {
		return cdpcontrol.PageCapture{}, cdpcontrol.NewError(cdpcontrol.CodeTabNotFound, "tab not found: "+tabID, nil)
	}
	p.TabID = tabID
	return p, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

type fakeRenderer struct {
	page cdpcontrol.PageCapture
	err  error
}

func (r fakeRenderer) Render(context.Context, string) (cdpcontrol.PageCapture, error) {
	return r.page, r.err
}

func newFakeTabs() *fakeTabs {
	return &fakeTabs{
		tabs: []cdpcontrol.TabInfo{
			{TabID: "blob", URL: blobURL},
			{TabID: "pull", URL: pullURL},
			{TabID: "gone", URL: "https://github.com/org/repo/issues/1"},
		},
		pages: map[string]cdpcontrol.PageCapture{
			"blob": {URL: blobURL, HTML: blobHTML},
			"pull": {URL: pullURL, HTML: pullHTML},
		},
	}
}

func TestResolveTabFileMode(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(newFakeTabs(), WithRecorder(rec))

	got, err := svc.ResolveTab(context.Background(), " blob ", ModeAuto)
	if err != nil {
		t.Fatalf("ResolveTab() = %v", err)
	}
	if got.Mode != ModeFile || got.PageType != fileinfo.PageBlob {
		t.Fatalf("mode/page type = %s/%s; want file/blob", got.Mode, got.PageType)
	}
	if got.Title != "index.ts" {
		t.Fatalf("Title = %q; want title from document", got.Title)
	}
	if len(got.Results) != 1 || got.Results[0].FileInfo == nil {
		t.Fatalf("Results = %+v", got.Results)
	}
	info := got.Results[0].FileInfo
	if info.Revision != "main" || info.CommitID != commit || info.FilePath != "src/index.ts" {
		t.Fatalf("FileInfo = %+v", info)
	}
	if len(rec.entries) != 1 || rec.entries[0].FileInfo == nil || rec.entries[0].Source != "tab" {
		t.Fatalf("journal entries = %+v", rec.entries)
	}
}

func TestResolveTabDiffModeReportsEachCodeView(t *testing.T) {
	svc := NewService(newFakeTabs())

	got, err := svc.ResolveTab(context.Background(), "pull", ModeAuto)
	if err != nil {
		t.Fatalf("ResolveTab() = %v", err)
	}
	if got.Mode != ModeDiff {
		t.Fatalf("Mode = %s; want diff", got.Mode)
	}
	if len(got.Results) != 2 {
		t.Fatalf("got %d results; want 2", len(got.Results))
	}
	first := got.Results[0].FileInfo
	if first == nil || first.CommitID != "h1" || first.BaseCommitID != "b1" || first.BaseRawRepoName != first.RawRepoName {
		t.Fatalf("first result = %+v", got.Results[0])
	}
	if got.Results[1].ErrorKind != fileinfo.KindMissingPath || got.Results[1].CodeView != 1 {
		t.Fatalf("second result = %+v; want MISSING_PATH for code view 1", got.Results[1])
	}
}

func TestResolveTabFileModeErrorIsReturned(t *testing.T) {
	svc := NewService(newFakeTabs())
	_, err := svc.ResolveTab(context.Background(), "pull", ModeFile)
	if !fileinfo.IsKind(err, fileinfo.KindUnsupportedPage) {
		t.Fatalf("ResolveTab() error = %v; want UNSUPPORTED_PAGE", err)
	}
}

func TestResolveTabValidation(t *testing.T) {
	svc := NewService(newFakeTabs())
	_, err := svc.ResolveTab(context.Background(), "  ", ModeAuto)
	var coded *cdpcontrol.CodedError
	if !errors.As(err, &coded) || coded.Code != cdpcontrol.CodeValidation {
		t.Fatalf("ResolveTab() error = %v; want VALIDATION", err)
	}

	_, err = NewService(nil).ResolveTab(context.Background(), "blob", ModeAuto)
	if !errors.As(err, &coded) || coded.Code != cdpcontrol.CodeCDPUnavailable {
		t.Fatalf("ResolveTab() without tabs error = %v; want CDP_UNAVAILABLE", err)
	}
}

func TestResolveTabReadsFreshEachCall(t *testing.T) {
	tabs := newFakeTabs()
	svc := NewService(tabs)
	for i := 0; i < 3; i++ {
		if _, err := svc.ResolveTab(context.Background(), "blob", ModeFile); err != nil {
			t.Fatalf("ResolveTab() = %v", err)
		}
	}
	if tabs.captures != 3 {
		t.Fatalf("captures = %d; want 3", tabs.captures)
	}
}

func TestResolveAllTabs(t *testing.T) {
	svc := NewService(newFakeTabs(), WithParallelism(2))

	got, err := svc.ResolveAllTabs(context.Background(), ModeAuto)
	if err != nil {
		t.Fatalf("ResolveAllTabs() = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d outcomes; want 3", len(got))
	}
	if got[0].Tab.TabID != "blob" || got[0].Result == nil {
		t.Fatalf("blob outcome = %+v", got[0])
	}
	if got[1].Tab.TabID != "pull" || got[1].Result == nil || got[1].Result.Mode != ModeDiff {
		t.Fatalf("pull outcome = %+v", got[1])
	}
	if got[2].ErrorCode != cdpcontrol.CodeTabNotFound {
		t.Fatalf("gone outcome = %+v; want TAB_NOT_FOUND", got[2])
	}
}

func TestResolveAllTabsListError(t *testing.T) {
	tabs := newFakeTabs()
	tabs.listErr = cdpcontrol.NewError(cdpcontrol.CodeCDPUnavailable, "down", nil)
	if _, err := NewService(tabs).ResolveAllTabs(context.Background(), ModeAuto); err == nil {
		t.Fatal("ResolveAllTabs() succeeded with a failing tab list")
	}
}

func TestListTabsAddsPageType(t *testing.T) {
	got, err := NewService(newFakeTabs()).ListTabs(context.Background())
	if err != nil {
		t.Fatalf("ListTabs() = %v", err)
	}
	if got[0].PageType != fileinfo.PageBlob || got[0].RawRepoName != "github.com/org/repo" {
		t.Fatalf("ListTabs()[0] = %+v", got[0])
	}
	if got[2].PageType != fileinfo.PageOther {
		t.Fatalf("ListTabs()[2] = %+v", got[2])
	}
}

func TestResolveDocument(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(nil, WithRecorder(rec))

	got, err := svc.ResolveDocument(context.Background(), blobURL, blobHTML, ModeFile)
	if err != nil {
		t.Fatalf("ResolveDocument() = %v", err)
	}
	if got.Results[0].FileInfo.FilePath != "src/index.ts" {
		t.Fatalf("ResolveDocument() = %+v", got)
	}
	if rec.entries[0].Source != "document" {
		t.Fatalf("journal source = %q; want document", rec.entries[0].Source)
	}

	tests := []struct {
		name string
		url  string
		html string
	}{
		{"no url", "", blobHTML},
		{"no html", blobURL, " "},
		{"relative url", "/org/repo/blob/main/a.go", blobHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ResolveDocument(context.Background(), tt.url, tt.html, ModeAuto)
			var coded *cdpcontrol.CodedError
			if !errors.As(err, &coded) || coded.Code != cdpcontrol.CodeValidation {
				t.Fatalf("ResolveDocument() error = %v; want VALIDATION", err)
			}
		})
	}
}

func TestRenderAndResolve(t *testing.T) {
	svc := NewService(nil, WithRenderer(fakeRenderer{page: cdpcontrol.PageCapture{URL: blobURL, HTML: blobHTML}}))
	got, err := svc.RenderAndResolve(context.Background(), blobURL, ModeAuto)
	if err != nil {
		t.Fatalf("RenderAndResolve() = %v", err)
	}
	if got.Results[0].FileInfo.CommitID != commit {
		t.Fatalf("RenderAndResolve() = %+v", got)
	}

	_, err = NewService(nil).RenderAndResolve(context.Background(), blobURL, ModeAuto)
	var coded *cdpcontrol.CodedError
	if !errors.As(err, &coded) || coded.Code != cdpcontrol.CodeRenderFailure {
		t.Fatalf("RenderAndResolve() without renderer = %v; want RENDER_FAILURE", err)
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, " diff ": ModeDiff, "snippet": ModeSnippet, "file": ModeFile} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %s, %v; want %s", raw, got, err, want)
		}
	}
	if _, err := ParseMode("blob"); err == nil {
		t.Fatal("ParseMode(blob) succeeded; want error")
	}
}
