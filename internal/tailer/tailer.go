// Package tailer implements a polling reader over a growing NDJSON file,
// tolerant of truncation, replacement, and partial lines.
package tailer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// PollInterval is the fixed wall-clock interval between polls of a growing
// log file. A configuration constant, not computed.
const PollInterval = 50 * time.Millisecond

// MaxIncompleteLineBytes bounds the buffered, not-yet-terminated line. Past
// this cap a best-effort prefix is flushed as a line so a single runaway
// write can't grow memory without bound.
const MaxIncompleteLineBytes = 2 * 1024 * 1024

const fingerprintLen = 64

// Tailer is a resumable line reader over a file that may grow, truncate, or
// be replaced out from under it. Not safe for concurrent use.
type Tailer struct {
	path        string
	file        *os.File
	reader      *bufio.Reader
	pos         int64
	buffer      strings.Builder
	fingerprint []byte
}

// NewFromStart opens path and positions the tailer at the beginning, so the
// first Poll replays the entire file.
func NewFromStart(path string) (*Tailer, error) {
	t := &Tailer{path: path}
	if err := t.reopenFromStart(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewAtEnd opens path and positions the tailer at the current end of file,
// ignoring existing content; only data written after this call is surfaced.
func NewAtEnd(path string) (*Tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tailer: open %s: %w", path, err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("tailer: seek end %s: %w", path, err)
	}
	t := &Tailer{
		path:        path,
		file:        f,
		reader:      bufio.NewReader(f),
		pos:         end,
		fingerprint: readFingerprint(path),
	}
	return t, nil
}

func (t *Tailer) reopenFromStart() error {
	if t.file != nil {
		t.file.Close()
	}
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("tailer: open %s: %w", t.path, err)
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.pos = 0
	t.buffer.Reset()
	t.fingerprint = readFingerprint(t.path)
	return nil
}

func readFingerprint(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, fingerprintLen)
	n, _ := io.ReadFull(f, buf)
	return buf[:n]
}

// Poll returns zero or more complete lines (no trailing newline, CR
// stripped) produced since the previous call. Incomplete trailing data is
// retained across calls.
func (t *Tailer) Poll() ([]string, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		return nil, fmt.Errorf("tailer: stat %s: %w", t.path, err)
	}

	if info.Size() < t.pos {
		if err := t.reopenFromStart(); err != nil {
			return nil, err
		}
	}

	var lines []string
	for {
		chunk, err := t.reader.ReadString('\n')
		t.pos += int64(len(chunk))
		t.buffer.WriteString(chunk)

		if t.buffer.Len() > MaxIncompleteLineBytes {
			flushed := flushOversizePrefix(&t.buffer, MaxIncompleteLineBytes)
			lines = append(lines, flushed)
		} else if strings.HasSuffix(t.buffer.String(), "\n") {
			line := strings.TrimSuffix(t.buffer.String(), "\n")
			line = strings.TrimSuffix(line, "\r")
			t.buffer.Reset()
			lines = append(lines, line)
		}

		if err != nil {
			if err == io.EOF {
				break
			}
			return lines, fmt.Errorf("tailer: read %s: %w", t.path, err)
		}
	}

	if len(lines) == 0 && t.buffer.Len() == 0 && len(t.fingerprint) > 0 {
		info, statErr := os.Stat(t.path)
		if statErr == nil && info.Size() > 0 && t.pos == info.Size() {
			current := readFingerprint(t.path)
			if !fingerprintEqual(current, t.fingerprint) {
				if err := t.reopenFromStart(); err != nil {
					return nil, err
				}
				return t.Poll()
			}
		}
	}

	if len(lines) > 0 {
		t.fingerprint = readFingerprint(t.path)
	}

	return lines, nil
}

// FlushBuffer returns any buffered trailing data (with newline/CR trimmed)
// as a final line, or false if nothing is buffered. Used once the writer
// has exited without a terminal newline.
func (t *Tailer) FlushBuffer() (string, bool) {
	s := t.buffer.String()
	s = strings.TrimRight(s, "\r\n")
	t.buffer.Reset()
	if s == "" {
		return "", false
	}
	return s, true
}

// HasIncompleteData reports whether a partial line is currently buffered.
func (t *Tailer) HasIncompleteData() bool {
	return t.buffer.Len() > 0
}

// Close releases the underlying file handle.
func (t *Tailer) Close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}

func fingerprintEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flushOversizePrefix cuts buf at a valid UTF-8 boundary no later than cap,
// returns that prefix as a line, and leaves the remainder in buf.
func flushOversizePrefix(buf *strings.Builder, cap int) string {
	s := buf.String()
	cut := cap
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	prefix := s[:cut]
	rest := s[cut:]
	buf.Reset()
	buf.WriteString(rest)
	return strings.TrimSuffix(strings.TrimSuffix(prefix, "\n"), "\r")
}
