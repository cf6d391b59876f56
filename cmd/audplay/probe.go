// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ik5/audplay"
	"github.com/ik5/audplay/fileview"
	"github.com/ik5/audplay/metadata"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Print the stream information of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format, err := audplay.DefaultRegistry().ForPath(path)
		if err != nil {
			return err
		}
		view, closer, err := fileview.Open(path)
		if err != nil {
			return err
		}
		defer closer.Close()

		meta, err := format.Demux(cmd.Context(), view)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		describe(cmd.OutOrStdout(), filepath.Base(path), view.Size(), meta)
		return nil
	},
}

func describe(w io.Writer, name string, size int64, meta *metadata.TrackMetadata) {
	fmt.Fprintf(w, "file:        %s (%s)\n", name, humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "codec:       %s\n", meta.Codec)
	fmt.Fprintf(w, "duration:    %s\n", meta.Length().Round(time.Millisecond))
	fmt.Fprintf(w, "sample rate: %s\n", humanize.SIWithDigits(float64(meta.SampleRate), 2, "Hz"))
	fmt.Fprintf(w, "channels:    %d\n", meta.Channels)
	if meta.BitDepth > 0 {
		fmt.Fprintf(w, "bit depth:   %d\n", meta.BitDepth)
	}
	if meta.BitRate > 0 {
		mode := "CBR"
		if meta.VBR {
			mode = "VBR"
		}
		fmt.Fprintf(w, "bitrate:     %s (%s)\n", humanize.SI(float64(meta.BitRate), "bps"), mode)
	}
	fmt.Fprintf(w, "data:        %s to %s (%s)\n",
		humanize.Comma(meta.DataStart), humanize.Comma(meta.DataEnd), humanize.Bytes(uint64(meta.DataSize())))
	if meta.Codec == metadata.CodecMP3 {
		fmt.Fprintf(w, "frames:      %s\n", humanize.Comma(int64(meta.Frames)))
		fmt.Fprintf(w, "delay:       %d samples, padding %d\n", meta.EncoderDelay, meta.EncoderPadding)
	}
}
