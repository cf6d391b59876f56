// SPDX-License-Identifier: EPL-2.0

package audplay

import (
	"github.com/ik5/audplay/decoder"
	"github.com/ik5/audplay/formats/aiff"
	"github.com/ik5/audplay/formats/flac"
	"github.com/ik5/audplay/formats/mp3"
	"github.com/ik5/audplay/formats/vorbis"
	"github.com/ik5/audplay/formats/wav"
)

// DefaultRegistry returns a registry holding every bundled format under
// its usual file extensions.
func DefaultRegistry() *decoder.Registry {
	reg := decoder.NewRegistry()
	reg.Register("mp3", mp3.Format{})
	reg.Register("wav", wav.Format{})
	reg.Register("wave", wav.Format{})
	reg.Register("aiff", aiff.Format{})
	reg.Register("aif", aiff.Format{})
	reg.Register("ogg", vorbis.Format{})
	reg.Register("oga", vorbis.Format{})
	reg.Register("flac", flac.Format{})
	return reg
}
