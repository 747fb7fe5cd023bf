package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"post_drafter/internal/api"
	"post_drafter/internal/domain"
	"post_drafter/internal/scheduler"
	"post_drafter/internal/service"
	"post_drafter/internal/source/gtasks"
)

var (
	runCount    int
	runTemplate string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance the outstanding batch job or submit a new one",
	Long: `Load and merge the task list, then either poll the outstanding batch job
(reconciling its results when completed) or, when none exists, submit the
next --count pending tasks rendered with --template.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize", "error", err)
			return err
		}
		defer a.Close()

		pipeline, err := a.pipeline(ctx)
		if err != nil {
			logger.Error("failed to initialize pipeline", "error", err)
			return err
		}

		stats, err := pipeline.Run(ctx, runOptions(cmd))
		if err != nil {
			logger.Error("run failed", "error", err)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s\n", stats.Outcome)
		if stats.JobID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "job:     %s (%s)\n", stats.JobID, stats.JobStatus)
		}
		if stats.Outcome == domain.OutcomeCompleted {
			fmt.Fprintf(cmd.OutOrStdout(), "posts:   %d succeeded, %d failed\n",
				stats.Reconcile.Succeeded, stats.Reconcile.Failed)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run on the configured interval until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize", "error", err)
			return err
		}
		defer a.Close()

		pipeline, err := a.pipeline(ctx)
		if err != nil {
			logger.Error("failed to initialize pipeline", "error", err)
			return err
		}

		sched := scheduler.NewScheduler(pipeline, runOptions(cmd), cfg.Schedule.Interval, cfg.Schedule.RunTimeout, logger)

		logger.Info("starting post drafter",
			"interval", cfg.Schedule.Interval,
			"storage", cfg.Storage.Driver,
			"source", cfg.Source.Kind,
		)

		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
			return err
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Download all Google Tasks lists into the backup file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		source, err := gtasks.NewAPISource(ctx, cfg.Source.CredentialsPath, cfg.Source.TokenPath, logger)
		if err != nil {
			logger.Error("failed to create tasks client", "error", err)
			return err
		}

		backup, err := source.Download(ctx)
		if err != nil {
			logger.Error("failed to download tasks", "error", err)
			return err
		}

		if err := gtasks.WriteBackup(cfg.Source.BackupPath, backup); err != nil {
			logger.Error("failed to write backup", "error", err)
			return err
		}

		total := 0
		for _, c := range backup {
			total += len(c.Tasks)
		}
		logger.Info("downloaded tasks", "lists", len(backup), "tasks", total, "path", cfg.Source.BackupPath)
		fmt.Fprintf(cmd.OutOrStdout(), "saved %d tasks from %d lists to %s\n", total, len(backup), cfg.Source.BackupPath)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve generated drafts over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize", "error", err)
			return err
		}
		defer a.Close()

		handler := api.NewPostHandler(service.NewPostService(a.docs), logger)
		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting http server", "addr", cfg.Server.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
				return err
			}
		case <-ctx.Done():
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown failed", "error", err)
				return err
			}
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outstanding job and task counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize", "error", err)
			return err
		}
		defer a.Close()

		report, err := service.NewStatusReader(a.docs, logger).Status(ctx)
		if err != nil {
			logger.Error("failed to read status", "error", err)
			return err
		}

		out := cmd.OutOrStdout()
		if report.Job == nil {
			fmt.Fprintln(out, "job:       none")
		} else {
			fmt.Fprintf(out, "job:       %s (%s, %d/%d done, %d failed)\n",
				report.Job.ID, report.Job.Status,
				report.Job.RequestCounts.Completed, report.Job.RequestCounts.Total,
				report.Job.RequestCounts.Failed)
		}
		fmt.Fprintf(out, "tasks:     %d\n", report.Tasks)
		fmt.Fprintf(out, "pending:   %d\n", report.Pending)
		fmt.Fprintf(out, "processed: %d\n", report.Processed)
		fmt.Fprintf(out, "posts:     %d\n", report.Posts)
		fmt.Fprintf(out, "archived:  %d jobs\n", report.Archived)
		return nil
	},
}

func runOptions(cmd *cobra.Command) domain.RunOptions {
	opts := domain.RunOptions{Count: cfg.Generation.Count, Template: runTemplate}
	if cmd.Flags().Changed("count") {
		opts.Count = runCount
	}
	return opts
}

func init() {
	for _, c := range []*cobra.Command{runCmd, watchCmd} {
		c.Flags().IntVar(&runCount, "count", 0, "number of pending tasks to submit (default from config)")
		c.Flags().StringVar(&runTemplate, "template", "", "template name (default from config)")
	}

	rootCmd.AddCommand(runCmd, watchCmd, importCmd, serveCmd, statusCmd)
}
