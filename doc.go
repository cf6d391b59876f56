// SPDX-License-Identifier: EPL-2.0

// Package audplay plays audio files: it decodes, resamples, mixes and
// normalizes a track into a ring buffer that an audio callback drains.
//
// # Supported Formats
//
// DefaultRegistry maps file extensions to the bundled formats:
//   - MP3 via formats/mp3 (CBR, Xing/Info and VBRI seeking)
//   - WAV and AIFF integer or float PCM via formats/wav and formats/aiff
//   - Ogg Vorbis via formats/vorbis
//   - FLAC via formats/flac
//
// # Playing
//
// A Player with a realtime driver plays on the default device:
//
//	p, err := audplay.New(audplay.WithOto(50*time.Millisecond),
//	    audplay.OnEnded(func() { close(done) }))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	if err := p.Load(ctx, "song.mp3"); err != nil {
//	    return err
//	}
//	_ = p.Seek(ctx, 90)
//	_ = p.Play()
//
// Load prepares a paused session; Play fades in and Pause fades out. Seek
// replaces the session, which is one ring buffer, one decoder context and
// one pipeline, and keeps playing if the player was playing.
//
// # Rendering
//
// Without a driver the same chain renders to a WAV file as fast as it
// decodes:
//
//	p, _ := audplay.New(audplay.WithSampleRate(44100))
//	_ = p.Load(ctx, "song.flac")
//	f, _ := os.Create("out.wav")
//	frames, err := p.Render(ctx, f, 10*time.Second)
//
// # Packages
//
// The lower layers can be used directly: decoder runs codecs in blocks,
// pipeline drives decode, resample, mix and loudness into a ringbuffer,
// seek resolves times to byte offsets, and sink holds the consumer side
// with its fades and output drivers.
package audplay
