package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ryan258/insight-capsule/internal/capture"
	"github.com/ryan258/insight-capsule/internal/config"
	"github.com/ryan258/insight-capsule/internal/embedding"
	"github.com/ryan258/insight-capsule/internal/generation"
	"github.com/ryan258/insight-capsule/internal/pipeline"
	"github.com/ryan258/insight-capsule/internal/search"
	"github.com/ryan258/insight-capsule/internal/store"
	"github.com/ryan258/insight-capsule/internal/transcription"
	"github.com/ryan258/insight-capsule/internal/vectorindex"
)

// app wires the engine's components together from configuration.
type app struct {
	cfg      *config.AppConfig
	store    *store.Store
	index    *vectorindex.Index
	gateway  *generation.Gateway
	embedder *embedding.Client
	orch     *pipeline.Orchestrator
	synth    *search.Synthesizer
	logger   *log.Logger
}

func newApp(cfgPath string) (*app, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	index, err := vectorindex.Open(filepath.Join(cfg.DataDir, "vectors.json"))
	if err != nil {
		return nil, err
	}

	var local, remote generation.Backend
	if cfg.Generation.Local.Enabled {
		local = generation.NewOllamaBackend(
			cfg.Generation.Local.BaseURL,
			cfg.Generation.Local.Model,
			time.Duration(cfg.Generation.Local.TimeoutSecs)*time.Second,
		)
	}
	if cfg.Generation.Remote.Enabled {
		remote = generation.NewOpenAIBackend(
			cfg.Generation.Remote.BaseURL,
			os.Getenv(cfg.Generation.Remote.APIKeyEnv),
			cfg.Generation.Remote.Model,
			time.Duration(cfg.Generation.Remote.TimeoutSecs)*time.Second,
		)
	}
	gateway := generation.NewGateway(local, remote, generation.Config{
		LocalAttempts: cfg.Generation.LocalAttempts,
		BackoffBase:   time.Duration(cfg.Generation.BackoffBaseMS) * time.Millisecond,
		BackoffMax:    time.Duration(cfg.Generation.BackoffMaxMS) * time.Millisecond,
		Temperature:   cfg.Generation.Temperature,
	}, logger)

	embedder := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Embedder.BaseURL,
		APIKey:  os.Getenv(cfg.Embedder.APIKeyEnv),
		Model:   cfg.Embedder.Model,
		Timeout: time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})

	transcriber := transcription.NewClient(transcription.Config{
		BaseURL: cfg.Transcription.BaseURL,
		APIKey:  os.Getenv(cfg.Transcription.APIKeyEnv),
		Model:   cfg.Transcription.Model,
		Timeout: time.Duration(cfg.Transcription.TimeoutSecs) * time.Second,
	})

	captureOpts := capture.Options{
		Dir:              filepath.Join(cfg.DataDir, "audio"),
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		SilenceEnabled:   cfg.Audio.Silence.Enabled,
		SilenceThreshold: cfg.Audio.Silence.Threshold,
		SilenceWindow:    secs(cfg.Audio.Silence.DurationSecs),
		MinRecord:        secs(cfg.Audio.Silence.MinRecordSecs),
		MaxRecord:        secs(cfg.Audio.MaxRecordSecs),
	}
	command := cfg.Audio.CaptureCommand
	if len(command) == 0 {
		command = defaultCaptureCommand(cfg.Audio)
	}
	sourceFactory := func() capture.Source {
		return capture.NewCommandSource(command, 1024)
	}

	orch := pipeline.New(pipeline.Config{
		Capture:           captureOpts,
		PreferLocal:       cfg.Generation.PreferLocal,
		AutoStopOnSilence: cfg.Audio.Silence.Enabled,
	}, transcriber, gateway, embedder, st, index, sourceFactory, logger)

	synth := search.New(embedder, index, gateway, st, search.Options{
		TopK:         cfg.Search.TopK,
		ContextRunes: cfg.Search.ContextRunes,
		PreferLocal:  cfg.Generation.PreferLocal,
	}, logger)

	return &app{
		cfg:      cfg,
		store:    st,
		index:    index,
		gateway:  gateway,
		embedder: embedder,
		orch:     orch,
		synth:    synth,
		logger:   logger,
	}, nil
}

func defaultCaptureCommand(audio config.AudioConfig) []string {
	return []string{
		"arecord", "-q",
		"-f", "S16_LE",
		"-r", fmt.Sprintf("%d", audio.SampleRate),
		"-c", fmt.Sprintf("%d", audio.Channels),
		"-t", "raw",
	}
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
