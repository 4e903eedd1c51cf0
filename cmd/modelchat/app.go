package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"modelchat/internal/backend"
	"modelchat/internal/config"
	"modelchat/internal/fanout"
	"modelchat/internal/generation"
	"modelchat/internal/httpapi"
	"modelchat/internal/metrics"
	"modelchat/internal/observability"
	"modelchat/internal/prompt"
	"modelchat/internal/session"
	"modelchat/internal/speech"
	"modelchat/internal/tokstream"
)

// app is the wired chat host.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	mgr     *session.Manager
	display *display
}

// newApp wires observers and the session manager around model and opens the
// configured persona. The manager takes ownership of model.
func newApp(cfg config.Config, model tokstream.Model, out io.Writer, log zerolog.Logger) (*app, error) {
	m := metrics.New()
	fo := fanout.New(log, m)
	d := newDisplay(out)
	fo.Register("display", d)
	if cfg.Speech.Enabled {
		mode, err := speech.ParseMode(cfg.Speech.Mode)
		if err != nil {
			return nil, err
		}
		sp, err := speech.NewESpeak(cfg.Speech.Binary, cfg.Speech.Voice)
		if err != nil {
			log.Warn().Err(err).Msg("speech disabled")
		} else {
			fo.Register("speech", fanout.Queued("speech", speech.NewObserver(sp, mode), cfg.Speech.QueueSize, log, m))
		}
	}

	personas, err := prompt.NewCatalog(cfg.Personas...)
	if err != nil {
		return nil, err
	}
	injection, err := prompt.ParseInjection(cfg.Injection)
	if err != nil {
		return nil, err
	}
	policy, err := session.ParsePolicy(cfg.SubmitPolicy)
	if err != nil {
		return nil, err
	}
	mgr, err := session.NewManager(session.Config{
		Model:     model,
		Personas:  personas,
		Injection: injection,
		Budget:    cfg.TokenBudget,
		Policy:    policy,
		FanOut:    fo,
		Yielder:   generation.YieldFunc(func(context.Context) { d.Flush() }),
		Events:    generation.NewLogPublisher(log),
		Metrics:   m,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	if _, err := mgr.Open(cfg.Persona); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, metrics: m, mgr: mgr, display: d}, nil
}

// run loads the model, then serves the terminal conversation and, when
// configured, the operator endpoint until the user quits.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	log := newLogger(stderr, cfg.LogLevel)

	shutdownTrace, err := observability.Init(observability.Config{Exporter: cfg.Trace, Writer: stderr})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTrace(context.Background()); err != nil {
			log.Warn().Err(err).Msg("trace shutdown")
		}
	}()

	kind, err := backend.ParseKind(cfg.Backend)
	if err != nil {
		return err
	}
	log.Info().Str("backend", string(kind)).Str("model", cfg.ModelPath).Msg("loading model")
	model, err := backend.Open(ctx, backend.Options{
		Kind:      kind,
		ModelPath: cfg.ModelPath,
		ServerURL: cfg.ServerURL,
		Sampling:  cfg.Sampling,
		MaxTokens: cfg.TokenBudget + 1,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	a, err := newApp(cfg, model, stdout, log)
	if err != nil {
		_ = model.Close()
		return err
	}
	defer func() {
		if err := a.mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("close session manager")
		}
	}()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return a.chat(gctx, line)
	})
	g.Go(func() error {
		a.cancelOnInterrupt(gctx)
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return httpapi.Serve(gctx, cfg.MetricsAddr, httpapi.NewMux(a.mgr, a.metrics.Registry, log), log)
		})
	}
	return g.Wait()
}

// cancelOnInterrupt turns SIGINT into cancellation of the running
// generation. At the prompt the line editor consumes Ctrl-C itself.
func (a *app) cancelOnInterrupt(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if s := a.mgr.Active(); s != nil && s.Cancel() {
				a.log.Debug().Msg("generation cancelled by interrupt")
			}
		}
	}
}
