package main

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/firmographics-cli/internal/config"
	"github.com/sells-group/firmographics-cli/internal/enrich"
	"github.com/sells-group/firmographics-cli/internal/export"
	"github.com/sells-group/firmographics-cli/internal/input"
	"github.com/sells-group/firmographics-cli/internal/model"
	"github.com/sells-group/firmographics-cli/internal/ratelimit"
	"github.com/sells-group/firmographics-cli/internal/reconcile"
	"github.com/sells-group/firmographics-cli/internal/resilience"
	"github.com/sells-group/firmographics-cli/internal/snapshot"
	"github.com/sells-group/firmographics-cli/internal/store"
	anthropicpkg "github.com/sells-group/firmographics-cli/pkg/anthropic"
	"github.com/sells-group/firmographics-cli/pkg/diffbot"
	"github.com/sells-group/firmographics-cli/pkg/linkedin"
	"github.com/sells-group/firmographics-cli/pkg/perplexity"
)

var (
	runInput        string
	runOutput       string
	runSkipLinkedIn bool
	runSkipDiffbot  bool
	runInteractive  bool
	runResume       bool
	runLimit        int
	runExport       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect, reconcile, enrich",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		if !cmd.Flags().Changed("input") {
			runInput = cfg.Paths.Input
		}
		if !cmd.Flags().Changed("output") {
			runOutput = cfg.Paths.Snapshot
		}

		companies, err := input.LoadCompanies(runInput)
		if err != nil {
			return eris.Wrap(err, "load companies")
		}
		if runLimit > 0 && runLimit < len(companies) {
			companies = companies[:runLimit]
		}
		zap.L().Info("loaded company list",
			zap.String("input", runInput), zap.Int("companies", len(companies)))

		cache := initCache(ctx)
		if cache != nil {
			defer cache.Close()
		}

		pplxClient := newPerplexityClient()
		liClient := newLinkedInClient(cache, pplxClient)
		kgClient := newDiffbotClient(cache)

		profiles, kgs := collect(ctx, companies, liClient, kgClient)

		records, err := reconcileAll(ctx, companies, profiles, kgs)
		if err != nil {
			return err
		}
		if err := snapshot.SaveRecords(runOutput, records); err != nil {
			return err
		}
		zap.L().Info("first-pass snapshot written",
			zap.String("path", runOutput), zap.Int("records", len(records)))

		enricher := enrich.New(pplxClient, enrich.Options{
			EmployeeThreshold: cfg.Enrich.EmployeeUpdateThreshold,
			RevenueThreshold:  cfg.Enrich.RevenueUpdateThreshold,
			SnapshotPath:      runOutput,
			LedgerPath:        cfg.Paths.Progress,
			Interactive:       runInteractive,
			Resolver:          consoleResolver(runInteractive),
			Retry:             enrichRetry(),
		})
		if err := enricher.Run(ctx, records, runResume); err != nil {
			return eris.Wrap(err, "enrichment pass")
		}

		if runExport {
			if err := export.WriteXLSX(records, cfg.Paths.Export); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", cfg.Paths.Export))
		}

		zap.L().Info("pipeline complete", zap.Int("companies", len(records)))
		return nil
	},
}

// initCache opens the payload cache. A broken cache degrades to uncached
// fetches rather than failing the run.
func initCache(ctx context.Context) store.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	cache, err := store.NewSQLite(cfg.Cache.Path)
	if err != nil {
		zap.L().Warn("payload cache unavailable, fetching uncached", zap.Error(err))
		return nil
	}
	if err := cache.Migrate(ctx); err != nil {
		zap.L().Warn("payload cache migration failed, fetching uncached", zap.Error(err))
		cache.Close()
		return nil
	}
	if removed, err := cache.Prune(ctx); err == nil && removed > 0 {
		zap.L().Debug("pruned expired cache entries", zap.Int64("removed", removed))
	}
	return cache
}

// enrichRetry is the re-ask budget for unparseable enrichment replies; it
// mirrors the perplexity transport policy.
func enrichRetry() resilience.RetryConfig {
	rc := cfg.Perplexity.Rate
	return resilience.RetryConfig{
		MaxAttempts: rc.MaxRetries,
		BaseDelay:   rc.BaseDelay(),
	}
}

func newPerplexityClient() perplexity.Client {
	rc := cfg.Perplexity.Rate
	return perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
		perplexity.WithHTTPClient(&http.Client{Timeout: rc.Timeout()}),
		perplexity.WithLimiter(ratelimit.New(rc.RequestsPerMinute, rc.Window())),
		perplexity.WithRetry(resilience.RetryConfig{
			MaxAttempts: rc.MaxRetries,
			BaseDelay:   rc.BaseDelay(),
		}),
	)
}

// newLinkedInClient returns nil when the source is disabled or its
// structuring credential is missing; the pipeline then runs graph-only.
func newLinkedInClient(cache store.Cache, pplx perplexity.Client) linkedin.Client {
	if !cfg.Sources.LinkedIn || runSkipLinkedIn {
		return nil
	}
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic.key not set, company-page source disabled for this run")
		return nil
	}

	rc := cfg.LinkedIn.Rate
	opts := []linkedin.Option{
		linkedin.WithBaseURL(cfg.LinkedIn.BaseURL),
		linkedin.WithHTTPClient(&http.Client{Timeout: rc.Timeout()}),
		linkedin.WithPageLimiter(rate.NewLimiter(perMinute(rc.RequestsPerMinute, rc.Window()), 1)),
		linkedin.WithSearchFallback(pplx),
	}
	if cache != nil {
		opts = append(opts, linkedin.WithCache(cache, cfg.Cache.TTLHours))
	}
	return linkedin.NewClient(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, opts...)
}

func newDiffbotClient(cache store.Cache) diffbot.Client {
	if !cfg.Sources.Diffbot || runSkipDiffbot {
		return nil
	}

	rc := cfg.Diffbot.Rate
	opts := []diffbot.Option{
		diffbot.WithBaseURL(cfg.Diffbot.BaseURL),
		diffbot.WithHTTPClient(&http.Client{Timeout: rc.Timeout()}),
		diffbot.WithLimiter(ratelimit.New(rc.RequestsPerMinute, rc.Window())),
		diffbot.WithRetry(resilience.RetryConfig{
			MaxAttempts: rc.MaxRetries,
			BaseDelay:   rc.BaseDelay(),
		}),
	}
	if cache != nil {
		opts = append(opts, diffbot.WithCache(cache, cfg.Cache.TTLHours))
	}
	return diffbot.NewClient(cfg.Diffbot.Token, opts...)
}

func perMinute(requests int, window time.Duration) rate.Limit {
	if requests <= 0 || window <= 0 {
		return rate.Every(time.Minute)
	}
	return rate.Limit(float64(requests) / window.Seconds())
}

// collect fetches both first-pass sources. The two sources run concurrently
// against independent rate limits; within a source, companies are fetched
// sequentially. A per-company fetch failure records the source as absent for
// that company.
func collect(ctx context.Context, companies []input.Company, li linkedin.Client, kg diffbot.Client) (map[string]*linkedin.Profile, map[string]*diffbot.Payload) {
	profiles := make(map[string]*linkedin.Profile, len(companies))
	kgs := make(map[string]*diffbot.Payload, len(companies))
	var profileMu, kgMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	if li != nil {
		g.Go(func() error {
			for _, c := range companies {
				if gctx.Err() != nil {
					return nil
				}
				p, err := li.FetchCompany(gctx, c.Name, c.URL)
				if err != nil {
					zap.L().Warn("no company-page profile",
						zap.String("company", c.Name), zap.Error(err))
					continue
				}
				profileMu.Lock()
				profiles[c.URL] = p
				profileMu.Unlock()
			}
			return nil
		})
	}

	if kg != nil {
		g.Go(func() error {
			for _, c := range companies {
				if gctx.Err() != nil {
					return nil
				}
				payload, err := kg.FetchCompany(gctx, c.URL)
				if err != nil {
					zap.L().Warn("no knowledge-graph data",
						zap.String("company", c.Name), zap.Error(err))
					continue
				}
				kgMu.Lock()
				kgs[c.URL] = payload
				kgMu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return profiles, kgs
}

func reconcileAll(ctx context.Context, companies []input.Company, profiles map[string]*linkedin.Profile, kgs map[string]*diffbot.Payload) ([]model.CompanyRecord, error) {
	engine := reconcile.NewEngine(reconcile.Options{
		Interactive:                runInteractive,
		Resolver:                   consoleResolver(runInteractive),
		TargetCurrency:             cfg.Reconcile.TargetCurrency,
		Rates:                      loadRates(cfg.Reconcile),
		RevenueConflictThreshold:   cfg.Reconcile.RevenueConflictThreshold,
		EmployeeAgreementTolerance: cfg.Reconcile.EmployeeAgreementTolerance,
	})

	records := make([]model.CompanyRecord, 0, len(companies))
	for _, c := range companies {
		rec, err := engine.Reconcile(ctx, c, profiles[c.URL], kgs[c.URL])
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile %s", c.Name)
		}
		records = append(records, *rec)
	}
	return records, nil
}

func consoleResolver(interactive bool) reconcile.ConflictResolver {
	if !interactive {
		return nil
	}
	return &reconcile.ConsoleResolver{In: os.Stdin, Out: os.Stdout}
}

func loadRates(rc config.ReconcileConfig) *reconcile.RateTable {
	if rc.RatesFile == "" {
		return nil
	}
	rates, err := reconcile.LoadRates(rc.RatesFile)
	if err != nil {
		zap.L().Warn("rates file unusable, revenue amounts keep their source currency",
			zap.String("path", rc.RatesFile), zap.Error(err))
		return nil
	}
	return rates
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "companies.csv", "company list CSV")
	runCmd.Flags().StringVar(&runOutput, "output", "firmographics.json", "snapshot output path")
	runCmd.Flags().BoolVar(&runSkipLinkedIn, "skip-linkedin", false, "skip the company-page source")
	runCmd.Flags().BoolVar(&runSkipDiffbot, "skip-diffbot", false, "skip the knowledge-graph source")
	runCmd.Flags().BoolVar(&runInteractive, "interactive", false, "prompt on cross-source conflicts")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "honor the enrichment ledger from an interrupted run")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process at most N companies (0 = all)")
	runCmd.Flags().BoolVar(&runExport, "export", false, "also write the xlsx workbook")
	rootCmd.AddCommand(runCmd)
}
