// SPDX-License-Identifier: EPL-2.0

package seek

// Result is a resolved seek: where to resume reading, and how many decoded
// frames to discard before output lines up with Time.
type Result struct {
	Time          float64 // seconds
	Offset        int64   // byte offset into the file
	SamplesToSkip int     // frames per channel
	Frame         int     // codec frame decoding restarts at
}
