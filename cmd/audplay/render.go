// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ik5/audplay"
)

var (
	renderOutput   string
	renderStart    time.Duration
	renderDuration time.Duration

	renderCmd = &cobra.Command{
		Use:   "render <file>",
		Short: "Render a file through the player into a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
)

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output WAV file")
	renderCmd.Flags().DurationVar(&renderStart, "start", 0, "start position, e.g. 90s")
	renderCmd.Flags().DurationVar(&renderDuration, "duration", 0, "render this much audio (0 renders to the end)")
	_ = renderCmd.MarkFlagRequired("output")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := audplay.New(playerOptions()...)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Load(ctx, args[0]); err != nil {
		return err
	}
	if renderStart > 0 {
		if err := p.Seek(ctx, renderStart.Seconds()); err != nil {
			return err
		}
	}

	f, err := os.Create(renderOutput)
	if err != nil {
		return fmt.Errorf("unable to create output: %w", err)
	}
	started := time.Now()
	frames, err := p.Render(ctx, f, renderDuration)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("unable to close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	var size uint64
	if st, err := os.Stat(renderOutput); err == nil {
		size = uint64(st.Size())
	}
	rendered := time.Duration(float64(frames) / float64(cfg.SampleRate) * float64(time.Second))
	logger.Info("rendered", "file", filepath.Base(args[0]), "output", renderOutput,
		"frames", humanize.Comma(int64(frames)), "length", rendered.Round(time.Millisecond),
		"size", humanize.Bytes(size), "took", time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s frames, %s\n", renderOutput, humanize.Comma(int64(frames)), humanize.Bytes(size))
	return nil
}
