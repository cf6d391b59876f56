// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"encoding/binary"
)

const (
	pageHeaderSize = 27
	maxPageSize    = pageHeaderSize + 255 + 255*255
)

var capturePattern = []byte("OggS")

// page is one Ogg page found in a byte slice.
type page struct {
	granule int64 // -1 when no packet ends on the page
	size    int
	lacing  []byte
	body    []byte
}

// packetsEnded counts the packets that finish on the page.
func (p page) packetsEnded() int {
	n := 0
	for _, l := range p.lacing {
		if l < 255 {
			n++
		}
	}
	return n
}

// parsePage parses the page at the start of b. ok is false when b does not
// start with a page or holds only part of one.
func parsePage(b []byte) (p page, ok bool) {
	if len(b) < pageHeaderSize || !bytes.HasPrefix(b, capturePattern) || b[4] != 0 {
		return page{}, false
	}
	segments := int(b[26])
	if len(b) < pageHeaderSize+segments {
		return page{}, false
	}
	lacing := b[pageHeaderSize : pageHeaderSize+segments]
	bodySize := 0
	for _, l := range lacing {
		bodySize += int(l)
	}
	size := pageHeaderSize + segments + bodySize
	if len(b) < size {
		return page{}, false
	}
	return page{
		granule: int64(binary.LittleEndian.Uint64(b[6:14])),
		size:    size,
		lacing:  lacing,
		body:    b[pageHeaderSize+segments : size],
	}, true
}

// nextPage returns the index of the next capture pattern in b, or -1.
func nextPage(b []byte) int {
	return bytes.Index(b, capturePattern)
}
