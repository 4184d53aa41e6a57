// Package logger points the process logger at stdout and a log file.
package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// File is an append-only io.Writer that opens its file on first write.
type File struct {
	Path string
	file *os.File
	mu   sync.Mutex
}

// Setup sends the standard logger to stdout and path. An empty path, or
// a file that cannot be opened, leaves stdout only.
func Setup(path string) io.Closer {
	return Attach(log.Default(), path, os.Stdout)
}

// Attach points l at w and a log file at path and returns the file so
// the caller can close it on exit.
func Attach(l *log.Logger, path string, w io.Writer) io.Closer {
	l.SetFlags(log.LstdFlags | log.Lshortfile)
	if path == "" {
		l.SetOutput(w)
		return nopCloser{}
	}

	f := &File{Path: path}
	if err := f.open(); err != nil {
		l.SetOutput(w)
		l.Printf("Failed to open log file, using stdout only: %v", err)
		return nopCloser{}
	}

	// MultiWriter writes to both the terminal and the file
	l.SetOutput(io.MultiWriter(w, f))
	return f
}

func (f *File) open() error {
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	f.file = file
	return nil
}

func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		if err := f.open(); err != nil {
			return 0, err
		}
	}
	return f.file.Write(p)
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
