package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"content-calendar/internal/config"
	"content-calendar/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	cfg        config.Config
	configPath string
	redisAddr  string
	badgerPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "calendar",
	Short:         "content-calendar - keyword approval and scheduling for a content pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("redis") {
			cfg.Redis.Addr = redisAddr
		}
		if cmd.Flags().Changed("badger") {
			cfg.Badger.Path = badgerPath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}

		logger, err = logging.New(cfg.Logging.Level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the JSON API (and the queue worker with --with-worker)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withWorker, _ := cmd.Flags().GetBool("with-worker")
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}

		ctx, cancel := signalContext()
		defer cancel()

		app, err := buildApp(ctx, true)
		if err != nil {
			return err
		}
		defer app.Close()

		if withWorker {
			w, err := app.Worker()
			if err != nil {
				return err
			}
			go w.Start(ctx)
		}

		srv := app.Server()
		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down...")
		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stop()
		if err := srv.Stop(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Goodbye!")
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain the generation queue into the article workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		// The worker never touches the report archive.
		app, err := buildApp(ctx, false)
		if err != nil {
			return err
		}
		defer app.Close()

		w, err := app.Worker()
		if err != nil {
			return err
		}
		w.Start(ctx)
		return nil
	},
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults to $"+config.ConfigPathEnv+")")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Address of Redis server")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger", "./badger-data", "Path to BadgerDB report archive")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	serverCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serverCmd.Flags().Bool("with-worker", false, "Also run the queue worker in this process")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(insightsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
