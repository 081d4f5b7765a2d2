package tailer

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"shieldline/internal/logger"
)

const esc = '\x1b'

// Batch is the set of lines one poll found.
type Batch struct {
	Lines []string
	At    time.Time
}

// Tailer follows one log file. It is owned by a single goroutine.
type Tailer struct {
	path    string
	offset  int64
	pending string
}

func New(path string) *Tailer {
	return &Tailer{path: path}
}

// Poll reads everything appended since the previous call and returns the
// complete, non-empty lines with escape sequences removed. A missing file
// is treated as nothing new; a file shorter than the offset is read again
// from the start. A trailing partial line is held back for one poll and
// returned on its own if nothing follows it.
func (t *Tailer) Poll() []string {
	f, err := os.Open(t.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil
	}
	if info.Size() < t.offset {
		logger.Log.Debugf("Log %s was truncated, reading from start", t.path)
		t.offset = 0
		t.pending = ""
	}
	if info.Size() == t.offset {
		return t.Flush()
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil
	}
	data, err := io.ReadAll(f)
	t.offset += int64(len(data))
	if err != nil && len(data) == 0 {
		return nil
	}

	text := t.pending + strings.ReplaceAll(string(data), "\r", "")
	end := strings.LastIndexByte(text, '\n')
	if end < 0 {
		t.pending = text
		return nil
	}
	t.pending = text[end+1:]

	var lines []string
	for _, line := range strings.Split(text[:end], "\n") {
		line = strings.TrimSpace(StripANSI(line))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Flush returns the held-back partial line, if any.
func (t *Tailer) Flush() []string {
	line := strings.TrimSpace(StripANSI(t.pending))
	t.pending = ""
	if line == "" {
		return nil
	}
	return []string{line}
}

// Run polls path every interval and hands each non-empty batch to emit. It
// returns when ctx is cancelled.
func Run(ctx context.Context, path string, interval time.Duration, emit func(Batch)) {
	t := New(path)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if lines := t.Flush(); len(lines) > 0 {
				emit(Batch{Lines: lines, At: time.Now()})
			}
			return
		case now := <-ticker.C:
			if lines := t.Poll(); len(lines) > 0 {
				emit(Batch{Lines: lines, At: now})
			}
		}
	}
}

// StripANSI removes terminal escape sequences: an ESC and every rune up to
// and including the next 'm'.
func StripANSI(s string) string {
	if strings.IndexRune(s, esc) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == esc:
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
