package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBufferSize is the write buffer in front of output files.
const DefaultBufferSize = 1 << 20

// File is a buffered output file. Records flushed by the serializer land in
// the buffer; Close drains it and closes the file.
type File struct {
	*bufio.Writer
	f    *os.File
	path string
}

// Create creates (or truncates) path, making parent directories as needed,
// and hints the kernel that it will be written sequentially. size <= 0 uses
// DefaultBufferSize.
func Create(path string, size int) (*File, error) {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	adviseSequential(f)
	return &File{Writer: bufio.NewWriterSize(f, size), f: f, path: path}, nil
}

// Path returns the file name passed to Create.
func (f *File) Path() string { return f.path }

// Close flushes buffered data and closes the file. The file is closed even
// when the flush fails.
func (f *File) Close() error {
	ferr := f.Flush()
	cerr := f.f.Close()
	return errors.Join(ferr, cerr)
}
