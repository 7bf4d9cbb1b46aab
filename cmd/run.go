package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/delfi-foods/pricescout/internal/adapter"
	"github.com/delfi-foods/pricescout/internal/engine"
	"github.com/delfi-foods/pricescout/internal/pipeline"
	"github.com/delfi-foods/pricescout/internal/render"
	"github.com/delfi-foods/pricescout/internal/resilience"
	"github.com/delfi-foods/pricescout/internal/sink"
	"github.com/delfi-foods/pricescout/internal/store"
	"github.com/delfi-foods/pricescout/pkg/skroutz"
)

var (
	runCSV       string
	runOutput    string
	runAppendLog string
	runLimit     int
	runDryRun    bool
	runNoBrowser bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile prices for every SKU in the product list",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runCSV != "" {
			cfg.Input.Path = runCSV
		}
		if runOutput != "" {
			cfg.Output.TablePath = runOutput
		}
		if runAppendLog != "" {
			cfg.Output.AppendLogPath = runAppendLog
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		records, err := pipeline.LoadRecords(cfg.Input.Path, cfg.Input.Encoding)
		if err != nil {
			return err
		}
		if runLimit > 0 && runLimit < len(records) {
			records = records[:runLimit]
		}
		zap.L().Info("product list loaded",
			zap.String("path", cfg.Input.Path),
			zap.Int("records", len(records)),
		)

		if runDryRun {
			for _, rec := range records {
				fmt.Fprintf(os.Stdout, "%s\t%d urls\n", rec.SKU, len(rec.URLs))
			}
			return nil
		}

		metrics := adapter.NewMetrics()

		// Session is only paid for when some URL actually needs it.
		var session *render.Session
		var rotator engine.SessionRotator
		needsSession := false
		for _, rec := range records {
			for _, u := range rec.URLs {
				if k, _ := adapter.Resolve(u); k == adapter.KindRendered {
					needsSession = true
				}
			}
		}
		if needsSession && !runNoBrowser {
			session, err = acquireSession(cmd)
			if err != nil {
				return eris.Wrap(err, "acquire browser session")
			}
			defer session.Dispose() //nolint:errcheck
			rotator = session
		}

		ownShopID := 0
		if cfg.Skroutz.OwnShopID != "" {
			ownShopID, err = strconv.Atoi(cfg.Skroutz.OwnShopID)
			if err != nil {
				return eris.Wrapf(err, "parse own shop id %q", cfg.Skroutz.OwnShopID)
			}
		}
		aggClient := skroutz.NewClient(ownShopID,
			skroutz.WithBaseURL(cfg.Skroutz.BaseURL),
			skroutz.WithMaxAttempts(cfg.Skroutz.MaxAttempts),
			skroutz.WithRetryWait(time.Duration(cfg.Skroutz.RetryWaitSecs)*time.Second),
			skroutz.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Skroutz.RatePerSec), 1)),
			skroutz.WithRetryHook(func(_ int, reason string) {
				metrics.IncAggregatorRetry(reason)
			}),
		)

		static := adapter.NewStaticAdapter(adapter.DefaultSiteRules(),
			adapter.WithStaticHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
			}),
		)
		var rendered adapter.Adapter
		if session != nil {
			rendered = adapter.NewRenderedAdapter(session, adapter.DefaultRenderedRules())
		}
		registry := adapter.NewRegistry(static, rendered, adapter.NewAggregatorAdapter(aggClient), metrics)

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		if err := st.BeginRun(ctx, cfg.Input.Path); err != nil {
			return err
		}

		out := sink.Multi{
			sink.NewAppendLog(cfg.Output.AppendLogPath),
			sink.NewCSVTable(cfg.Output.TablePath),
			st,
		}

		eng := engine.New(registry, rotator, out,
			engine.WithRotateEvery(cfg.Session.RotateEveryUses),
			engine.WithMetrics(metrics),
		)

		results, err := eng.Run(ctx, records)
		if err != nil {
			return eris.Wrap(err, "reconciliation run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", st.RunID()),
			zap.Int("skus_in", len(records)),
			zap.Int("skus_resolved", len(results)),
			zap.String("table", cfg.Output.TablePath),
		)
		return nil
	},
}

// acquireSession starts the headless browser, retrying launch failures
// that tend to clear up on their own.
func acquireSession(cmd *cobra.Command) (*render.Session, error) {
	rcfg := render.Config{
		Headless:   cfg.Session.Headless,
		Bin:        cfg.Session.Bin,
		NavTimeout: time.Duration(cfg.Session.NavTimeoutSecs) * time.Second,
	}
	return resilience.DoVal(cmd.Context(), resilience.RetryConfig{
		MaxAttempts: 3,
		ShouldRetry: resilience.IsTransient,
		OnRetry:     resilience.RetryLogger("render", "acquire"),
	}, func(ctx context.Context) (*render.Session, error) {
		return render.Acquire(rcfg)
	})
}

func init() {
	runCmd.Flags().StringVar(&runCSV, "csv", "", "product list CSV path (overrides config)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "final table path (overrides config)")
	runCmd.Flags().StringVar(&runAppendLog, "append-log", "", "append log path (overrides config)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process only the first N records")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "parse the input and print the plan without fetching")
	runCmd.Flags().BoolVar(&runNoBrowser, "no-browser", false, "skip the headless browser; rendered sites degrade to absent quotes")
	rootCmd.AddCommand(runCmd)
}
