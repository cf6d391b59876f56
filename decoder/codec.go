// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
	"github.com/ik5/audplay/seek"
)

// Codec turns encoded bytes into interleaved float32 samples.
//
// Decode consumes a prefix of src and appends decoded samples to dst. A call
// that consumes nothing and produces nothing means the codec needs more
// input than src holds. The returned slice may be a grown dst and is only
// read by the caller until the next call.
type Codec interface {
	Name() metadata.CodecName
	Start(meta *metadata.TrackMetadata) error
	Decode(src []byte, dst []float32) (consumed int, out []float32, err error)
	// Flush emits whatever the codec still holds at end of data.
	Flush(dst []float32) ([]float32, error)
	// Seek drops codec state so decoding can restart at res.Offset.
	Seek(res seek.Result) error
	Close() error
}

// Format demuxes a container and builds codecs for it.
type Format interface {
	Name() metadata.CodecName
	Demux(ctx context.Context, view *fileview.View) (*metadata.TrackMetadata, error)
	NewCodec() Codec
}

// Registry of formats keyed by file extension (e.g. "mp3", "wav").
type Registry struct {
	formats map[string]Format

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]Format),
		mtx:     &sync.Mutex{},
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func (r *Registry) Register(ext string, f Format) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.formats[normalizeExt(ext)] = f
}

func (r *Registry) Get(ext string) (Format, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	f, ok := r.formats[normalizeExt(ext)]
	return f, ok
}

// ForPath looks up the format by the extension of path.
func (r *Registry) ForPath(path string) (Format, error) {
	f, ok := r.Get(filepath.Ext(path))
	if !ok {
		return nil, &UnknownFormatError{Ext: filepath.Ext(path)}
	}
	return f, nil
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// UnknownFormatError is returned by ForPath. It unwraps to ErrUnknownFormat.
type UnknownFormatError struct {
	Ext string
}

func (e *UnknownFormatError) Error() string {
	if e.Ext == "" {
		return "decoder: file has no extension"
	}
	return "decoder: no format registered for " + e.Ext
}

func (e *UnknownFormatError) Unwrap() error { return ErrUnknownFormat }
