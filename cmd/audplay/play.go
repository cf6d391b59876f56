// SPDX-License-Identifier: EPL-2.0

package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ik5/audplay"
	"github.com/ik5/audplay/internal/config"
)

var (
	playStart    time.Duration
	playDuration time.Duration
	playVolume   float64

	playCmd = &cobra.Command{
		Use:   "play <file>",
		Short: "Play a file on the default audio device",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlay,
	}
)

func init() {
	playCmd.Flags().DurationVar(&playStart, "start", 0, "start position, e.g. 90s")
	playCmd.Flags().DurationVar(&playDuration, "duration", 0, "stop after this long (0 plays to the end)")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1, "output volume from 0 to 1")
	playCmd.Flags().Duration("device-buffer", config.Default().DeviceBuffer, "audio device latency")
	_ = viper.BindPFlag("output.device_buffer", playCmd.Flags().Lookup("device-buffer"))
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ended := make(chan struct{})
	var once sync.Once
	failed := make(chan error, 1)

	opts := append(playerOptions(),
		audplay.WithOto(cfg.DeviceBuffer),
		audplay.OnEnded(func() { once.Do(func() { close(ended) }) }),
		audplay.OnError(func(err error) {
			select {
			case failed <- err:
			default:
			}
		}),
		audplay.OnTimeUpdate(func(t float64) {
			logger.Debug("position", "time", time.Duration(t*float64(time.Second)).Round(time.Millisecond))
		}),
	)
	p, err := audplay.New(opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	path := args[0]
	if err := p.Load(ctx, path); err != nil {
		return err
	}
	if playStart > 0 {
		if err := p.Seek(ctx, playStart.Seconds()); err != nil {
			return err
		}
	}
	p.SetVolume(playVolume)
	if err := p.Play(); err != nil {
		return err
	}

	meta, _ := p.Metadata()
	logger.Info("playing", "file", filepath.Base(path), "codec", meta.Codec,
		"length", meta.Length().Round(time.Millisecond), "start", playStart)

	var limit <-chan time.Time
	if playDuration > 0 {
		t := time.NewTimer(playDuration)
		defer t.Stop()
		limit = t.C
	}

	select {
	case <-ended:
		logger.Info("finished", "file", filepath.Base(path))
		return nil
	case err := <-failed:
		return err
	case <-limit:
	case <-ctx.Done():
	}

	// Let the fade out finish before the device closes.
	if err := p.Pause(); err != nil && !errors.Is(err, audplay.ErrNoTrack) {
		return err
	}
	time.Sleep(cfg.Fade + cfg.DeviceBuffer)
	logger.Info("stopped", "file", filepath.Base(path), "position", p.CurrentTime())
	return nil
}
