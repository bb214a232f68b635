package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/capture"
	"github.com/obiente/translate/livesub/internal/config"
	"github.com/obiente/translate/livesub/internal/event"
	serverhttp "github.com/obiente/translate/livesub/internal/http"
	"github.com/obiente/translate/livesub/internal/mqtt"
	"github.com/obiente/translate/livesub/internal/pipeline"
	"github.com/obiente/translate/livesub/internal/recognize"
	"github.com/obiente/translate/livesub/internal/segment"
	"github.com/obiente/translate/livesub/internal/translation"
	"github.com/obiente/translate/livesub/internal/whisper"
	"github.com/obiente/translate/livesub/internal/ws"
)

func main() {
	listDevices := flag.Bool("list-devices", false, "print input devices and exit")
	flag.Parse()

	cfg := config.Load()
	setupLogging()

	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("audio backend unavailable")
	}
	defer backend.Close()

	if *listDevices {
		if err := printDevices(backend); err != nil {
			log.Fatal().Err(err).Msg("list devices failed")
		}
		return
	}

	if err := run(cfg, backend); err != nil {
		log.Fatal().Err(err).Msg("livesub failed")
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if config.Verbose() {
		lvl = zerolog.DebugLevel
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			lvl = l
		}
	}
	if !config.JSONLogs() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	log.Logger = log.Level(lvl)
}

func openBackend(cfg config.Config) (capture.Backend, error) {
	switch cfg.AudioBackend {
	case "file":
		if cfg.AudioFile == "" {
			return nil, errors.New("LIVESUB_AUDIO_FILE is required with the file backend")
		}
		return capture.NewFileBackend(cfg.AudioFile)
	case "system", "":
		return capture.NewSystemBackend()
	}
	return nil, fmt.Errorf("unknown audio backend %q", cfg.AudioBackend)
}

func printDevices(b capture.Backend) error {
	devs, err := b.Devices()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tCHANNELS\tRATE")
	for _, d := range devs {
		if !d.CanCapture() {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.0f\n", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return tw.Flush()
}

func newCapability(cfg config.Config) (translation.Capability, error) {
	switch cfg.TranslationBackend {
	case "none", "off", "":
		return nil, nil
	case "libretranslate":
		return translation.New(cfg.TranslationBaseURL, cfg.TranslationTimeoutSec), nil
	case "openai":
		pairs, err := translation.ParsePairs(cfg.OpenAIPairs)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			pairs = [][2]string{{cfg.SourceLang, cfg.TargetLang}}
		}
		return translation.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, pairs)
	}
	return nil, fmt.Errorf("unknown translation backend %q", cfg.TranslationBackend)
}

// decoderFactory loads the whisper model for cfg's source language. Locale
// variants ("zh-cn", "ja-jp") are reduced to the base code whisper knows.
func decoderFactory(cfg config.Config, newEngine func(string, uint) (whisper.Engine, error)) pipeline.DecoderFactory {
	decCfg := whisper.DecoderConfig{
		WorkWindowSamples: cfg.WorkWindowSamples,
		Silence:           cfg.Silence,
		MaxUtterance:      cfg.MaxUtterance,
		SilenceRMS:        cfg.SilenceRMS,
	}
	return func() (recognize.Decoder, error) {
		eng, err := newEngine(cfg.ModelPath, uint(max(cfg.WhisperThreads, 0)))
		if err != nil {
			return nil, err
		}
		if err := eng.SetLanguage(translation.NormalizeLang(cfg.SourceLang)); err != nil {
			_ = eng.Close()
			return nil, err
		}
		return whisper.NewStreamDecoder(eng, decCfg), nil
	}
}

func run(cfg config.Config, backend capture.Backend) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := capture.ParseSelector(cfg.Device)
	if err != nil {
		return err
	}
	route, err := translation.ParseRoute(cfg.Route)
	if err != nil {
		return err
	}
	capability, err := newCapability(cfg)
	if err != nil {
		return fmt.Errorf("translation: %w", err)
	}
	var tr pipeline.Translator
	if capability != nil {
		router := translation.NewRouter(capability, cfg.PivotLang)
		tr = router.Bind(cfg.SourceLang, cfg.TargetLang, route, time.Duration(cfg.TranslationTimeoutSec)*time.Second)
	}

	sinks := event.Multi{event.LogSink{}}
	hub := ws.NewHub()
	defer hub.Close()
	sinks = append(sinks, hub)

	if cfg.MQTTBroker != "" {
		client, err := mqtt.Connect(mqtt.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub := mqtt.NewPublisher(client, cfg.MQTTTopic, 0)
		pubCtx, pubCancel := context.WithCancel(context.Background())
		pubDone := make(chan struct{})
		go func() {
			pub.Start(pubCtx)
			close(pubDone)
		}()
		defer func() {
			pubCancel()
			<-pubDone
		}()
		sinks = append(sinks, pub)
	}

	seg := segment.Config{
		IdleTimeout:  cfg.IdleTimeout,
		MinChars:     cfg.MinChars,
		SourceMax:    cfg.SourceMax,
		TargetMax:    cfg.TargetMax,
		PollInterval: cfg.PollInterval,
		SourceLang:   cfg.SourceLang,
		TargetLang:   cfg.TargetLang,
	}
	newDecoder := decoderFactory(cfg, whisper.NewEngine)

	p := pipeline.New(pipeline.Config{
		Backend:     backend,
		Device:      device,
		Capture:     capture.WorkerConfig{FramesPerRead: cfg.FramesPerRead, TargetRate: cfg.SampleRate},
		QueueSize:   cfg.QueueSize,
		Segment:     seg,
		StopTimeout: cfg.StopTimeout,
	}, func() (bool, string) { return whisper.CheckModel(cfg.ModelPath) }, newDecoder, tr, sinks)

	var srv *http.Server
	if cfg.Addr != "" {
		srv = &http.Server{
			Addr:        cfg.Addr,
			Handler:     serverhttp.NewRouter(hub.Handle, func() any { return p.Snapshot() }),
			ReadTimeout: 30 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Addr).Msg("livesub: http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("livesub: http server failed")
			}
		}()
	}

	if err := p.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		log.Info().Msg("livesub: shutting down")
	case <-p.Done():
	}
	p.Stop()

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	return p.Err()
}
