// Package journal records resolution outcomes as JSON lines, one file per
// UTC day, rotated by size.
package journal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
)

var (
	ErrClosed     = errors.New("journal is closed")
	ErrBufferFull = errors.New("journal buffer full")
)

// Entry is one resolution outcome.
type Entry struct {
	Time      time.Time          `json:"time"`
	Source    string             `json:"source"`
	TabID     string             `json:"tab_id,omitempty"`
	URL       string             `json:"url"`
	Mode      string             `json:"mode"`
	CodeView  int                `json:"code_view"`
	FileInfo  *fileinfo.FileInfo `json:"file_info,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Writer appends entries asynchronously. Record never blocks the caller.
type Writer struct {
	baseDir   string
	maxSizeMB int

	writeCh chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	sendMu sync.Mutex
	closed bool

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	now         func() time.Time
}

func NewWriter(baseDir string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Entry, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Record queues e. A full buffer drops the entry.
func (w *Writer) Record(e Entry) error {
	if e.Time.IsZero() {
		e.Time = w.now().UTC()
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.writeCh <- e:
		return nil
	default:
		slog.Warn("journal buffer full, dropping entry", "url", e.URL, "mode", e.Mode)
		return ErrBufferFull
	}
}

// Close flushes queued entries and closes the current file.
func (w *Writer) Close() error {
	w.once.Do(func() {
		w.sendMu.Lock()
		w.closed = true
		close(w.done)
		w.sendMu.Unlock()
	})
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		err := w.logger.Close()
		w.logger = nil
		return err
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.writeCh:
			w.write(e)
		case <-w.done:
			for {
				select {
				case e := <-w.writeCh:
					w.write(e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := e.Time.UTC().Format("2006-01-02")
	if w.logger == nil || date != w.currentDate {
		if err := w.openForDate(date); err != nil {
			slog.Error("journal open failed", "date", date, "error", err)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (w *Writer) openForDate(date string) error {
	if w.logger != nil {
		_ = w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, "resolutions.jsonl")
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("journal file opened", "file", filename)
	return nil
}
