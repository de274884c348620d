// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides access to memory-mapped register windows.
package mmap // import "github.com/go-lpc/silena/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a window of memory, accessed with io.ReaderAt and io.WriterAt.
type Handle struct {
	data   []byte
	mapped bool // whether data must be unmapped on close
}

// Open maps size bytes of the device file fname, starting at offset, in
// shared read-write mode.
func Open(fname string, offset int64, size int) (*Handle, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	// the mapping outlives the file descriptor.
	defer f.Close()

	data, err := unix.Mmap(
		int(f.Fd()), offset, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not mmap %q: %w", fname, err)
	}
	if len(data) != size {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("mmap: invalid mmap'd data: got=%d, want=%d", len(data), size)
	}

	h := &Handle{data: data, mapped: true}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// HandleFrom creates a handle over a plain memory buffer.
func HandleFrom(data []byte) *Handle {
	return &Handle{data: data}
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	if !h.mapped {
		return nil
	}
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(data)
}

// Len returns the length of the underlying memory window.
func (h *Handle) Len() int {
	return len(h.data)
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	win, err := h.window("read", off)
	if err != nil {
		return 0, err
	}
	n := copy(p, win)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	win, err := h.window("write", off)
	if err != nil {
		return 0, err
	}
	n := copy(win, p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// window returns the memory from off to the end of the handle.
func (h *Handle) window(op string, off int64) ([]byte, error) {
	switch {
	case h == nil:
		return nil, os.ErrInvalid
	case h.data == nil:
		return nil, errClosed
	case off < 0 || off > int64(len(h.data)):
		return nil, fmt.Errorf("mmap: %s offset %d out of [0, %d]", op, off, len(h.data))
	}
	return h.data[off:], nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
