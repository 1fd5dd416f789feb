package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RowanDark/internpool/canon"
	"github.com/RowanDark/internpool/config"
	"github.com/RowanDark/internpool/internal/corpus"
	"github.com/RowanDark/internpool/literal"
	"github.com/RowanDark/internpool/logging"
	"github.com/RowanDark/internpool/metrics"
	"github.com/RowanDark/internpool/notifier/webhook"
	"github.com/RowanDark/internpool/pool"
	"github.com/RowanDark/internpool/ratelimit"
	"github.com/RowanDark/internpool/report"
	"github.com/RowanDark/internpool/stats"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Intern a corpus from many goroutines and verify canonical identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, cleanup, err := prepare(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		writer, err := report.Open(cfg)
		if err != nil {
			return err
		}
		defer writer.Close()

		if !cfg.LiveOutput() {
			logger.Infof("Report will be written to %s", cfg.OutputPath)
		}

		mismatches, err := runStress(ctx, cfg, logger, cmd.InOrStdin(), writer)
		if err != nil {
			return err
		}
		if mismatches > 0 {
			return fmt.Errorf("%d identity mismatches observed", mismatches)
		}
		return nil
	},
}

// loadCorpus picks the wordlist file, then piped stdin, then a generated corpus.
func loadCorpus(cfg *config.Config, in io.Reader, logger *logging.Logger) ([]string, error) {
	if cfg.WordlistPath != "" {
		words, err := corpus.Load(cfg.WordlistPath)
		if err != nil {
			return nil, fmt.Errorf("loading wordlist: %w", err)
		}
		logger.Infof("Loaded %d words from %s", len(words), cfg.WordlistPath)
		return words, nil
	}

	words, err := corpus.FromStdin(in)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(words) > 0 {
		logger.Infof("Read %d words from stdin", len(words))
		return words, nil
	}

	words = corpus.Generate(cfg.Words, cfg.Seed)
	logger.Infof("Generated %d words (seed %d)", len(words), cfg.Seed)
	return words, nil
}

func runStress(ctx context.Context, cfg *config.Config, logger *logging.Logger, in io.Reader, writer *report.Writer) (int, error) {
	words, err := loadCorpus(cfg, in, logger)
	if err != nil {
		return 0, err
	}
	if len(words) == 0 {
		return 0, errors.New("corpus is empty")
	}
	distinct := corpus.Distinct(words)

	p, err := pool.New(cfg.PoolOptions(logger))
	if err != nil {
		return 0, err
	}
	defer p.Close()
	if err := p.Start(ctx); err != nil {
		return 0, err
	}

	literals := literal.New(p, cfg.Preload)
	if err := literals.ResolveAll(); err != nil {
		return 0, err
	}

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.MetricsAddr, p, logger)
		if err != nil {
			return 0, err
		}
		defer shutdown()
	}

	notifier, err := webhook.New(webhook.Options{
		Endpoint: cfg.WebhookURL,
		Secret:   cfg.WebhookSecret,
		Logger:   logger.Writer(logging.LevelInfo),
		Limiter:  ratelimit.New(cfg.WebhookRate),
	})
	if err != nil {
		return 0, err
	}

	reporter := stats.NewReporter(stats.Options{Source: p, Logger: logger, Interval: cfg.StatsInterval})
	reporter.Start(ctx.Done())
	defer reporter.Stop()

	logger.Infof("Interning %d words (%d distinct) with %d workers over %d rounds", len(words), distinct, cfg.Workers, cfg.Rounds)

	total := 0
	for round := 1; round <= cfg.Rounds; round++ {
		start := time.Now()
		results, err := internRound(ctx, p, words, cfg.Workers)
		if err != nil {
			return total, err
		}
		elapsed := time.Since(start)

		mismatches := countMismatches(words, results) + checkLiterals(p, literals)
		total += mismatches

		run := report.Run{
			Label:      fmt.Sprintf("round-%d", round),
			Workers:    cfg.Workers,
			Words:      len(words),
			Distinct:   distinct,
			Mismatches: mismatches,
			Stats:      p.Stats(),
		}
		run.SetDuration(elapsed)
		if err := writer.WriteRun(run); err != nil {
			return total, err
		}
		logger.Debugf("Round %d finished in %s: %s", round, elapsed, run.Stats.Render())
		if mismatches > 0 {
			logger.Errorf("Round %d observed %d identity mismatches", round, mismatches)
			notify(ctx, notifier, webhook.EventRoundMismatch, run, logger)
		}

		// this round's instances are unreachable now; collect them so the
		// next round has to reinstall
		runtime.GC()

		if ctx.Err() != nil {
			break
		}
	}

	summary := report.Run{
		Label:      "summary",
		Workers:    cfg.Workers,
		Words:      len(words),
		Distinct:   distinct,
		Mismatches: total,
		Stats:      p.Stats(),
	}
	notify(ctx, notifier, webhook.EventCompleted, summary, logger)

	return total, nil
}

// notify delivers a webhook event. Delivery failures are logged, never fatal.
func notify(ctx context.Context, n *webhook.Notifier, event string, run report.Run, logger *logging.Logger) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event, run); err != nil {
		logger.Warnf("Webhook delivery failed: %v", err)
	}
}

// internRound has every worker intern every word, each starting at a different
// offset, and returns the instances each worker received indexed by word.
func internRound(ctx context.Context, p *pool.Pool, words []string, workers int) ([][]*canon.String, error) {
	results := make([][]*canon.String, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			got := make([]*canon.String, len(words))
			offset := (w * len(words)) / workers
			for i := range words {
				if i%256 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				idx := (offset + i) % len(words)
				v, err := p.Intern(words[idx])
				if err != nil {
					return fmt.Errorf("intern %q: %w", words[idx], err)
				}
				got[idx] = v
			}
			results[w] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// countMismatches counts words whose instance differs from the one the first
// worker received for the same content.
func countMismatches(words []string, results [][]*canon.String) int {
	if len(results) == 0 {
		return 0
	}
	canonical := make(map[string]*canon.String, len(words))
	mismatches := 0
	for i, word := range words {
		want, ok := canonical[word]
		if !ok {
			want = results[0][i]
			canonical[word] = want
		}
		for w := range results {
			got := results[w][i]
			if got != want || got.String() != word {
				mismatches++
			}
		}
	}
	return mismatches
}

// checkLiterals verifies that every resolved literal is still the pool's
// canonical instance for its content.
func checkLiterals(p *pool.Pool, literals *literal.Table) int {
	mismatches := 0
	for _, root := range literals.Roots() {
		v, err := p.Intern(root.String())
		if err != nil || v != root {
			mismatches++
		}
	}
	return mismatches
}

func serveMetrics(addr string, p *pool.Pool, logger *logging.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if _, err := metrics.Register(reg, p, ""); err != nil {
		return nil, err
	}
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	logger.Infof("Serving metrics on %s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
