// SPDX-License-Identifier: EPL-2.0

// Package metadata holds the demuxed description of a track and the MP3 seek
// table that is built lazily from it.
//
// A TrackMetadata value is produced by a format's demuxer and consumed by the
// decoder context, the pipeline and the seeker. For MP3 streams without a
// Xing table of contents the SeekTable is filled on demand by scanning frame
// headers from DataStart; a table decoded from a VBRI header is marked
// FromMetadata and trusted as is.
package metadata
