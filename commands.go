package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"permit-engine/internal/config"
	"permit-engine/internal/handler"
	"permit-engine/internal/logger"
	"permit-engine/internal/model"
	"permit-engine/internal/portal"
	"permit-engine/internal/progress"
)

var (
	configPath    string
	circuitPath   string
	documentsPath string
	caseID        string
	vetoed        bool

	rootCmd = &cobra.Command{
		Use:           "permit-engine",
		Short:         "Exam attempt locking and circuit progress engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE:  runServe,
	}

	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Print the progress of one case through a circuit file",
		RunE:  runEvaluate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML configuration file")

	evaluateCmd.Flags().StringVar(&circuitPath, "circuit", "", "circuit definition (YAML)")
	evaluateCmd.Flags().StringVar(&documentsPath, "documents", "", "documents of the case (JSON array)")
	evaluateCmd.Flags().StringVar(&caseID, "case", "", "case identifier")
	evaluateCmd.Flags().BoolVar(&vetoed, "vetoed", false, "mark the case as blocked")
	_ = evaluateCmd.MarkFlagRequired("circuit")
	_ = evaluateCmd.MarkFlagRequired("case")

	rootCmd.AddCommand(serveCmd, evaluateCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	deps := handler.Deps{
		Calculator: progress.NewCalculator(nil),
		Board:      progress.NewBoard(nil),
		Timeout:    cfg.RequestTimeout(),

		PrivilegedToken: cfg.PrivilegedToken,
	}

	if cfg.Portal.BaseURL != "" {
		var cache portal.CircuitCache = portal.NewMemoryCache()
		if cfg.Cache.RedisAddr != "" {
			rc, err := portal.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.TTL(), log)
			if err != nil {
				log.Warn("Redis unavailable, using in-memory circuit cache", "addr", cfg.Cache.RedisAddr, "error", err)
			} else {
				defer rc.Close()
				cache = rc
			}
		}
		client := portal.New(portal.Config{
			BaseURL: cfg.Portal.BaseURL,
			Timeout: cfg.Portal.Timeout(),
		}, log, portal.WithCircuitCache(cache))

		deps.Results = client
		deps.Evaluator = progress.NewEvaluator(client, client, deps.Calculator, progress.Config{
			BatchSize:  cfg.Progress.BatchSize,
			BatchPause: cfg.Progress.BatchPause(),
		}, log)
	} else {
		log.Warn("PORTAL_BASE_URL not set, portal-backed routes are disabled")
	}

	srv := &fasthttp.Server{
		Handler: handler.New(deps, log).Handle,
		Name:    "permit-engine",
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Permit engine starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down")
		return srv.ShutdownWithContext(context.Background())
	}
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	circuit, err := progress.LoadCircuitFile(circuitPath)
	if err != nil {
		return err
	}

	var docs []model.Document
	if documentsPath != "" {
		raw, err := os.ReadFile(documentsPath)
		if err != nil {
			return fmt.Errorf("documents: %w", err)
		}
		if err := json.Unmarshal(raw, &docs); err != nil {
			return fmt.Errorf("documents: %s: %w", documentsPath, err)
		}
	}

	summary := progress.NewCalculator(nil).Calculate(caseID, circuit, docs)
	if vetoed {
		summary = progress.ApplyVeto(summary)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
