package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stefbowerman/undftd-cli/internal/config"
	"github.com/stefbowerman/undftd-cli/internal/db"
	"github.com/stefbowerman/undftd-cli/internal/metrics"
	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/pipeline"
	"github.com/stefbowerman/undftd-cli/internal/ratelimit"
	"github.com/stefbowerman/undftd-cli/internal/shopify"
	"github.com/stefbowerman/undftd-cli/internal/sink"
)

// session is one command invocation: its settings, terminal and run id.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
	command string
	source  string
	runID   string
	tag     string

	// interactive enables the progress UI and y/N prompts.
	interactive bool
	yes         bool
	dryRun      bool

	// endpoint overrides the Shopify GraphQL URL.
	endpoint string
	// gate overrides the gate picked from the terminal and flags.
	gate pipeline.Gate
}

func newSession(cmd *cobra.Command, command, source string) *session {
	return &session{
		cfg:         cfg,
		logger:      logger,
		in:          os.Stdin,
		out:         cmd.OutOrStdout(),
		command:     command,
		source:      source,
		runID:       uuid.NewString(),
		tag:         runTag,
		interactive: stdinIsTerminal() && stdoutIsTerminal(),
		yes:         assumeYes,
		dryRun:      dryRun,
	}
}

func (s *session) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// deps are the collaborators a pipeline body runs with.
type deps struct {
	shop    *shopify.Client
	limiter *ratelimit.TokenBucket
	gate    pipeline.Gate
	metrics *metrics.Metrics
	opts    []pipeline.RunnerOption
}

func (s *session) newReport() *sink.Report {
	return sink.NewReport(s.runID, s.command, s.tag, s.source, time.Now().UTC())
}

// execute confirms the target, runs body against Shopify and persists the
// report. total is the number of records body will process.
func (s *session) execute(ctx context.Context, report *sink.Report, total int, body func(context.Context, *deps) error) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	gate := s.gate
	if gate == nil {
		gate = newGate(s.in, s.out, s.yes, s.interactive)
	}
	domain := shopify.ShopDomain(s.cfg.Shop)
	if ok, err := gate.Confirm(ctx, fmt.Sprintf("Run %s against %s?", s.command, domain)); err != nil || !ok {
		return s.cancelled(err)
	}
	if ok, err := gate.Confirm(ctx, fmt.Sprintf("Process %d records?", total)); err != nil || !ok {
		return s.cancelled(err)
	}

	m := metrics.New("")
	limiter, err := ratelimit.New(ratelimit.Config{
		Rate:     s.cfg.RateLimit,
		Capacity: s.cfg.RateBurst,
		OnWait:   m.RecordWait,
	})
	if err != nil {
		return err
	}
	shop, err := shopify.New(shopify.Config{
		Shop:        s.cfg.Shop,
		AccessToken: s.cfg.AccessToken,
		APIVersion:  s.cfg.APIVersion,
		Endpoint:    s.endpoint,
		Timeout:     s.cfg.CallTimeout,
		Logger:      s.log(),
		OnCall:      m.RecordCall,
	})
	if err != nil {
		return err
	}

	sinks, closeSinks, err := s.openSinks(ctx, report, total)
	if err != nil {
		return err
	}
	defer closeSinks()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var progress pipeline.Observer = pipeline.LogObserver{Logger: s.log()}
	if s.interactive {
		progress = newProgressUI(s.in, s.out, cancel, s.log())
	}

	d := &deps{
		shop:    shop,
		limiter: limiter,
		gate:    gate,
		metrics: m,
		opts: []pipeline.RunnerOption{
			pipeline.WithCallTimeout(s.cfg.CallTimeout),
			pipeline.WithObserver(pipeline.MultiObserver{progress, m}),
			pipeline.WithLogger(s.log()),
		},
	}

	s.log().Info("run started", "run_id", s.runID, "command", s.command, "records", total, "shop", domain)
	runErr := body(runCtx, d)
	report.Finish(runErr)

	// Results are persisted even when the run was cancelled.
	written, sinkErr := sinks.Write(context.WithoutCancel(ctx), report)
	renderSummary(s.out, report, written, m.Collector().Snapshot(), defaultTheme)

	if s.cfg.MetricsFile != "" {
		if err := m.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.log().Warn("metrics not written", "file", s.cfg.MetricsFile, "error", err)
		}
	}

	switch {
	case errors.Is(runErr, pipeline.ErrDeclined):
		s.log().Info("run declined at the gate", "run_id", s.runID)
	case runErr != nil:
		return fmt.Errorf("run %s: %w", models.ShortRunID(s.runID), runErr)
	}
	if sinkErr != nil {
		return fmt.Errorf("persist results: %w", sinkErr)
	}
	return nil
}

func (s *session) cancelled(err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Cancelled.")
	return nil
}

// openSinks opens the output bucket and, when configured, the run ledger.
func (s *session) openSinks(ctx context.Context, report *sink.Report, total int) (sink.Multi, func(), error) {
	blob, err := sink.OpenBlobSink(ctx, s.cfg.Output, sink.BlobOptions{
		Prefix: s.cfg.OutputPrefix,
		Gzip:   s.cfg.OutputGzip,
		Logger: s.log(),
	})
	if err != nil {
		return nil, nil, err
	}
	sinks := sink.Multi{blob}
	closers := []func(){func() { _ = blob.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if !s.cfg.LedgerEnabled() {
		return sinks, closeAll, nil
	}

	ledger, err := openLedger(ctx, s.cfg, s.log())
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = ledger.Close(context.WithoutCancel(ctx)) })

	if _, err := ledger.CreateRun(ctx, s.runID, s.command, s.tag, s.source, total+report.Total); err != nil {
		closeAll()
		return nil, nil, err
	}
	return append(sinks, sink.NewLedgerSink(ledger)), closeAll, nil
}

func openLedger(ctx context.Context, c config.Config, log *slog.Logger) (*db.Client, error) {
	client, err := db.Open(ctx, db.Config{
		URL:       c.Ledger.URL,
		Namespace: c.Ledger.Namespace,
		Database:  c.Ledger.Database,
		Username:  c.Ledger.User,
		Password:  c.Ledger.Pass,
		AuthLevel: c.Ledger.AuthLevel,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	return client, nil
}
