// SPDX-License-Identifier: EPL-2.0

// Command audplay plays, renders and inspects audio files.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ik5/audplay"
	"github.com/ik5/audplay/internal/config"
)

var (
	configFile string

	cfg    = config.Default()
	logger = log.Default()

	rootCmd = &cobra.Command{
		Use:           "audplay",
		Short:         "Play, render and inspect audio files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setup()
		},
	}
)

// setup reads the config file, flags and environment into cfg and builds
// the logger.
func setup() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config: %w", err)
		}
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "audplay",
		Level:           cfg.Level(),
	})
	log.SetDefault(logger)
	logger.Debug("configuration loaded", "file", viper.ConfigFileUsed(),
		"sample_rate", cfg.SampleRate, "channels", cfg.Channels, "buffer", cfg.SustainedBuffer)
	return nil
}

func playerOptions() []audplay.Option {
	return []audplay.Option{
		audplay.WithSampleRate(cfg.SampleRate),
		audplay.WithChannels(cfg.Channels),
		audplay.WithQuantum(cfg.Quantum),
		audplay.WithBufferDuration(cfg.BufferDuration),
		audplay.WithSustainedBuffer(cfg.SustainedBuffer),
		audplay.WithFade(cfg.Fade),
		audplay.WithNormalization(cfg.Normalize),
		audplay.WithLoudnessHistory(cfg.LoudnessHistory),
		audplay.WithSilenceTrimming(cfg.TrimSilence),
		audplay.WithLogger(logger),
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (YAML)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Int("sample-rate", 48000, "output sample rate in Hz")
	flags.Int("channels", 2, "output channel count")
	flags.Duration("fade", config.Default().Fade, "pause and resume fade length")
	flags.Bool("normalize", true, "normalize loudness")
	flags.Bool("trim-silence", false, "skip silent passages")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("output.sample_rate", flags.Lookup("sample-rate"))
	_ = viper.BindPFlag("output.channels", flags.Lookup("channels"))
	_ = viper.BindPFlag("fade.duration", flags.Lookup("fade"))
	_ = viper.BindPFlag("loudness.normalize", flags.Lookup("normalize"))
	_ = viper.BindPFlag("loudness.trim_silence", flags.Lookup("trim-silence"))

	rootCmd.AddCommand(playCmd, renderCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
