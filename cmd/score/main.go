// Command score runs the no-show pipeline offline, from the same
// configuration as the API, and writes the result table as CSV.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"noshow-prediction-api/classifier"
	"noshow-prediction-api/config"
	"noshow-prediction-api/dataset"
	"noshow-prediction-api/logging"
	"noshow-prediction-api/models"
	"noshow-prediction-api/pipeline"
	"noshow-prediction-api/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "score",
		Short:         "Offline no-show scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(clinicsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type runOptions struct {
	start   string
	end     string
	clinics []string
	out     string
	publish bool
}

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score a date window and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			var runs *services.RunFeed
			if opts.publish {
				cache, err := services.NewCacheService(cmd.Context(), cfg.Redis)
				if err != nil {
					return fmt.Errorf("publish requested: %w", err)
				}
				defer cache.Close()
				runs = services.NewRunFeed(cache, cfg.Redis.Channel)
			}

			p, err := newPipeline(cfg, store)
			if err != nil {
				return err
			}

			// The report is rendered in memory and only replaces the target
			// once the run has succeeded.
			var report bytes.Buffer
			res, err := score(cmd.Context(), p, opts, &report)
			if err != nil {
				return err
			}
			if opts.out == "" || opts.out == "-" {
				if _, err := cmd.OutOrStdout().Write(report.Bytes()); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			} else if err := replaceFile(opts.out, report.Bytes()); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			announce(cmd.Context(), res, opts.out, runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.start, "start", "", "window start, YYYY-MM-DD HH:MM:SS (required)")
	cmd.Flags().StringVar(&opts.end, "end", "", "window end, YYYY-MM-DD HH:MM:SS (required)")
	cmd.Flags().StringSliceVar(&opts.clinics, "clinic", nil, "clinic to include, repeatable; all clinics when omitted")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "final_report.csv", "report path, - for stdout")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "publish the run event to Redis")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// score runs one window through p and renders the CSV report to out.
func score(ctx context.Context, p *pipeline.Pipeline, opts runOptions, out io.Writer) (*pipeline.Result, error) {
	res, err := p.Handle(ctx, models.PredictionRequest{
		StartDatetime:  opts.start,
		EndDatetime:    opts.end,
		ClinicSelector: opts.clinics,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pipeline.Kind(err), err)
	}
	if err := pipeline.WriteCSV(out, pipeline.Format(res.Results)); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return res, nil
}

// announce logs a completed run and publishes its event when runs is set.
func announce(ctx context.Context, res *pipeline.Result, out string, runs *services.RunFeed) {
	summary := pipeline.Summarize(res.Results)
	if runs != nil {
		runs.Publish(ctx, models.RunEvent{
			RunID:      res.RunID,
			TS:         time.Now().UTC(),
			Start:      res.Window.Start.Format(pipeline.TimestampLayout),
			End:        res.Window.End.Format(pipeline.TimestampLayout),
			Clinics:    res.Window.Clinics,
			Rows:       summary.Total,
			NoShows:    summary.NoShows,
			Shows:      summary.Shows,
			DurationMS: res.Duration.Milliseconds(),
		})
	}

	log.Info().
		Str("run_id", res.RunID).
		Int("rows", summary.Total).
		Int("no_shows", summary.NoShows).
		Int("shows", summary.Shows).
		Str("out", out).
		Msg("report written")
}

// replaceFile writes data to a temporary file next to path and renames it
// over path, so readers see either the old report or the complete new one.
func replaceFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func clinicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clinics",
		Short: "List clinics and appointment counts in the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printClinics(cmd.OutOrStdout(), store)
		},
	}
}

func printClinics(w io.Writer, store *dataset.Store) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLINIC\tAPPOINTMENTS")
	for _, c := range store.Clinics() {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Appointments)
	}
	return tw.Flush()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})
	return cfg, nil
}

func loadStore(ctx context.Context, cfg *config.Config) (*dataset.Store, error) {
	var db *gorm.DB
	if cfg.Dataset.Source == dataset.SourcePostgres {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
	}
	return dataset.Load(ctx, cfg.Dataset, db)
}

func newPipeline(cfg *config.Config, store *dataset.Store) (*pipeline.Pipeline, error) {
	enc, err := pipeline.NewEncoder(cfg.Model.EncoderOrder, cfg.Model.VocabularyPath)
	if err != nil {
		return nil, err
	}

	return pipeline.New(store, enc, classifier.NewProvider(cfg.Model.Path).Pipeline()), nil
}
