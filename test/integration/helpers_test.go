//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

var env *Env

// Env holds shared state for all integration tests.
type Env struct {
	BaseURL   string
	Client    *http.Client
	TabID     string // first tab from /api/v1/tabs, empty when none is open
	TabPage   string // page type of TabID
	RenderURL string // page for /api/v1/render, empty skips render tests
}

type tabSummary struct {
	TabID    string `json:"tab_id"`
	URL      string `json:"url"`
	PageType string `json:"page_type"`
}

// discoverTab fetches /api/v1/tabs and remembers the first tab, preferring
// a blob page.
func (e *Env) discoverTab() error {
	resp, err := e.Client.Get(e.BaseURL + "/api/v1/tabs")
	if err != nil {
		return fmt.Errorf("server not reachable at %s: %w", e.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("list tabs: status %d: %s", resp.StatusCode, body)
	}

	var listing struct {
		Tabs []tabSummary `json:"tabs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("decode tabs: %w", err)
	}
	for _, tab := range listing.Tabs {
		if e.TabID == "" || (tab.PageType == "blob" && e.TabPage != "blob") {
			e.TabID, e.TabPage = tab.TabID, tab.PageType
		}
	}
	return nil
}

func (e *Env) requireTab(t *testing.T) {
	t.Helper()
	if e.TabID == "" {
		t.Skip("no code-host tab open in the browser")
	}
}

func TestMain(m *testing.M) {
	baseURL := os.Getenv("CODEHOST_CONTROLLER_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8189"
	}

	env = &Env{
		BaseURL:   baseURL,
		Client:    &http.Client{Timeout: 60 * time.Second},
		RenderURL: os.Getenv("CODEHOST_RENDER_URL"),
	}

	if err := env.discoverTab(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "integration: using tab %q (%s) at %s\n", env.TabID, env.TabPage, env.BaseURL)

	os.Exit(m.Run())
}

// --- HTTP helpers ---

func (e *Env) GET(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.Client.Get(e.BaseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *Env) POST(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("POST %s: marshal body: %v", path, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, e.BaseURL+path, r)
	if err != nil {
		t.Fatalf("POST %s: new request: %v", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// --- Assertion helpers ---

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func requireField[T comparable](t *testing.T, got, want T, name string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

// --- Response shapes ---

type fileInfo struct {
	RawRepoName  string `json:"raw_repo_name"`
	FilePath     string `json:"file_path"`
	CommitID     string `json:"commit_id"`
	Revision     string `json:"revision"`
	BaseCommitID string `json:"base_commit_id"`
}

type pageResult struct {
	TabID    string `json:"tab_id"`
	URL      string `json:"url"`
	PageType string `json:"page_type"`
	Mode     string `json:"mode"`
	Results  []struct {
		CodeView  int       `json:"code_view"`
		FileInfo  *fileInfo `json:"file_info"`
		ErrorKind string    `json:"error_kind"`
	} `json:"results"`
}
