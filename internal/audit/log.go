package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LogWriteError reports a failed append. The in-memory pipeline keeps going.
type LogWriteError struct {
	Path string
	Err  error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("append %s: %v", e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }

// FileName derives a stage log name from the task's base file name.
func FileName(prefix, base string) string {
	return prefix + base
}

// Log appends to files under one directory. Appends are serialized so
// concurrent stages never interleave inside a file.
type Log struct {
	dir string
	mu  sync.Mutex
}

func NewLog(dir string) *Log {
	if dir == "" {
		dir = "."
	}
	return &Log{dir: dir}
}

// Path returns where name is written.
func (l *Log) Path(name string) string {
	return filepath.Join(l.dir, name)
}

// Append opens name for appending, writes text and closes it again.
func (l *Log) Append(name, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &LogWriteError{Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &LogWriteError{Path: path, Err: err}
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return &LogWriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &LogWriteError{Path: path, Err: err}
	}
	return nil
}
