package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open() = %v", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("json.Unmarshal(%q) = %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func TestWriterFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 16, 1)

	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	info := fileinfo.FileInfo{RawRepoName: "github.com/o/r", FilePath: "a.go", CommitID: "c", Revision: "main"}
	if err := w.Record(Entry{Time: day, Source: "tab", URL: "https://github.com/o/r/blob/main/a.go", Mode: "file", FileInfo: &info}); err != nil {
		t.Fatalf("Record() = %v", err)
	}
	if err := w.Record(Entry{Time: day.Add(time.Minute), Source: "tab", Mode: "file", ErrorKind: "MISSING_PATH", Error: "x"}); err != nil {
		t.Fatalf("Record() = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	entries := readEntries(t, filepath.Join(dir, "2026-03-04", "resolutions.jsonl"))
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	if entries[0].FileInfo == nil || entries[0].FileInfo.FilePath != "a.go" {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].ErrorKind != "MISSING_PATH" {
		t.Fatalf("second entry = %+v", entries[1])
	}
}

func TestWriterSplitsByDay(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 16, 1)
	d1 := time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)
	_ = w.Record(Entry{Time: d1, Mode: "file"})
	_ = w.Record(Entry{Time: d1.Add(2 * time.Minute), Mode: "file"})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	for _, day := range []string{"2026-03-04", "2026-03-05"} {
		if got := readEntries(t, filepath.Join(dir, day, "resolutions.jsonl")); len(got) != 1 {
			t.Fatalf("%s: got %d entries; want 1", day, len(got))
		}
	}
}

func TestRecordAfterClose(t *testing.T) {
	w := NewWriter(t.TempDir(), 1, 1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := w.Record(Entry{Mode: "file"}); err != ErrClosed {
		t.Fatalf("Record() after Close = %v; want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
}

func TestWriterKeepsFirstCodeView(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 4, 1)
	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	if err := w.Record(Entry{Time: day, Mode: "diff", CodeView: 0}); err != nil {
		t.Fatalf("Record() = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2026-03-04", "resolutions.jsonl"))
	if err != nil {
		t.Fatalf("os.ReadFile() = %v", err)
	}
	if !strings.Contains(string(data), `"code_view":0`) {
		t.Fatalf("line %s does not carry code_view 0", data)
	}
}

func TestRecordRacingCloseIsNotLost(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 4096, 10)
	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	var accepted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				switch err := w.Record(Entry{Time: day, Mode: "file"}); err {
				case nil:
					accepted.Add(1)
				case ErrClosed:
					return
				default:
					t.Errorf("Record() = %v", err)
					return
				}
			}
		}()
	}
	close(start)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	wg.Wait()

	var got int
	path := filepath.Join(dir, "2026-03-04", "resolutions.jsonl")
	if _, err := os.Stat(path); err == nil {
		got = len(readEntries(t, path))
	}
	if int64(got) != accepted.Load() {
		t.Fatalf("wrote %d entries; Record accepted %d", got, accepted.Load())
	}
}
