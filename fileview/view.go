// SPDX-License-Identifier: EPL-2.0

// Package fileview gives block-oriented random access to an audio file.
//
// A View caches the most recently read block so demuxers and the seek table
// scanner can inspect headers without issuing a read per field. Every read is
// a cancellation point: the context is checked before touching the
// underlying reader.
package fileview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrOutOfRange = errors.New("fileview: offset out of range")
)

// View reads blocks from an io.ReaderAt of known size.
type View struct {
	r    io.ReaderAt
	size int64

	buf   []byte
	start int64
	end   int64
}

// New returns a View over r, which holds size bytes.
func New(r io.ReaderAt, size int64) *View {
	return &View{r: r, size: size}
}

// Open opens the file at path. The returned closer releases the file.
func Open(path string) (*View, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("fileview: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("fileview: %w", err)
	}
	return New(f, st.Size()), f, nil
}

// Size returns the total number of bytes.
func (v *View) Size() int64 { return v.size }

// Block returns up to size bytes starting at offset. Fewer bytes are
// returned only at the end of the file. The slice is owned by the View and
// stays valid until the next call to Block.
func (v *View) Block(ctx context.Context, offset int64, size int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 || offset > v.size {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, offset)
	}

	want := min(int64(size), v.size-offset)
	if offset >= v.start && offset+want <= v.end {
		return v.buf[offset-v.start : offset-v.start+want], nil
	}

	if cap(v.buf) < size {
		v.buf = make([]byte, size)
	}
	v.buf = v.buf[:want]
	n, err := v.r.ReadAt(v.buf, offset)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == want) {
		v.start, v.end = 0, 0
		return nil, fmt.Errorf("fileview: read %d@%d: %w", want, offset, err)
	}
	v.start, v.end = offset, offset+int64(n)
	return v.buf[:n], nil
}

// ReadAt copies len(p) bytes at offset into p, bypassing the block cache.
func (v *View) ReadAt(ctx context.Context, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := v.r.ReadAt(p, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("fileview: %w", err)
	}
	return n, nil
}

// Section returns a ReadSeeker over the whole file for libraries that parse
// headers from a stream.
func (v *View) Section() *io.SectionReader {
	return io.NewSectionReader(v.r, 0, v.size)
}
