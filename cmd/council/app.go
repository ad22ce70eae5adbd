package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vango-go/vai-council/pkg/config"
	"github.com/vango-go/vai-council/pkg/core/council"
	"github.com/vango-go/vai-council/pkg/core/credentials"
	"github.com/vango-go/vai-council/pkg/core/dialogue"
	"github.com/vango-go/vai-council/pkg/core/history"
	"github.com/vango-go/vai-council/pkg/core/kv"
	"github.com/vango-go/vai-council/pkg/core/providers/cerebras"
	"github.com/vango-go/vai-council/pkg/core/voice/stt"
	"github.com/vango-go/vai-council/pkg/core/voice/tts"
	"github.com/vango-go/vai-council/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// cli carries the flags every command shares.
type cli struct {
	deps   cliDeps
	stderr io.Writer

	configPath  string
	metricsAddr string
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("council "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVar(&c.configPath, "config", "", "path to config file (default ./council.yaml)")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return fs
}

func (c *cli) stdout() io.Writer {
	if c.deps.stdout == nil {
		return io.Discard
	}
	return c.deps.stdout
}

// open loads configuration and wires the application.
func (c *cli) open() (*app, error) {
	cfg, err := c.deps.loadConfig(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Addr = c.metricsAddr
	}
	return newApp(cfg, config.NewLogger(c.stderr, cfg.Logging))
}

// app holds the wired collaborators of one CLI run.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	keys        *credentials.Store
	history     *history.Store
	metrics     *metrics.Metrics
	council     *council.Orchestrator
	transcriber stt.Provider

	metricsSrv *http.Server
	metricsErr chan error
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := kv.Open(cfg.StorePath(), kv.WithQuota(cfg.StorageQuotaBytes))
	if err != nil {
		return nil, err
	}
	keys := credentials.NewStore(store)
	if err := keys.Seed(cfg.Credentials()); err != nil {
		return nil, fmt.Errorf("seed credentials: %w", err)
	}

	m := metrics.New("council")
	hist := history.New(store, history.WithLogger(logger), history.WithMetrics(m))

	murf := tts.NewMurf(keys,
		tts.WithURL(cfg.Murf.URL),
		tts.WithSampleRate(cfg.Murf.SampleRate),
		tts.WithStyle(cfg.Murf.Style),
		tts.WithLogger(logger),
	)
	synth := tts.NewRetrier(murf,
		tts.WithMaxAttempts(cfg.Murf.MaxAttempts),
		tts.WithAttemptTimeout(cfg.Murf.AttemptTimeout),
		tts.WithRetryLogger(logger),
		tts.WithMetrics(m),
	)

	chat := cerebras.New(keys, cerebras.WithBaseURL(cfg.Cerebras.BaseURL))
	gen := dialogue.New(chat,
		dialogue.WithModel(cfg.Cerebras.Model),
		dialogue.WithLogger(logger),
		dialogue.WithMetrics(m),
	)

	orch := council.New(council.Deps{
		Credentials: keys,
		Synthesizer: synth,
		Dialogue:    gen,
		History:     hist,
		Logger:      logger,
		Metrics:     m,
	},
		council.WithMessagePacing(cfg.Pacing.Message),
		council.WithRoundPacing(cfg.Pacing.Round),
	)

	transcriber := stt.NewAssemblyAI(keys,
		stt.WithBaseURL(cfg.AssemblyAI.BaseURL),
		stt.WithPolling(cfg.AssemblyAI.PollInterval, cfg.AssemblyAI.MaxPolls),
		stt.WithLogger(logger),
		stt.WithMetrics(m),
	)

	a := &app{
		cfg:         cfg,
		logger:      logger,
		keys:        keys,
		history:     hist,
		metrics:     m,
		council:     orch,
		transcriber: transcriber,
	}
	if err := a.serveMetrics(); err != nil {
		return nil, err
	}
	return a, nil
}

func buildMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *app) serveMetrics() error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	a.metricsSrv = buildMetricsServer(a.cfg.Metrics.Addr, a.metrics)
	a.metricsErr = make(chan error, 1)
	go func() {
		err := a.metricsSrv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.metricsErr <- err
			return
		}
		a.metricsErr <- nil
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// close stops background synthesis and the metrics server.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.council.Exit(ctx)
	if a.metricsSrv != nil {
		if serr := a.metricsSrv.Shutdown(ctx); serr != nil && err == nil {
			err = fmt.Errorf("shutdown metrics server: %w", serr)
		}
		if serr := <-a.metricsErr; serr != nil && err == nil {
			err = fmt.Errorf("serve metrics: %w", serr)
		}
	}
	return err
}
