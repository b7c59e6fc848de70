// File path: cmd/buildflow/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/crestlinecoaching/buildflow/internal/api"
	"github.com/crestlinecoaching/buildflow/internal/assessment"
	"github.com/crestlinecoaching/buildflow/internal/batch"
	"github.com/crestlinecoaching/buildflow/internal/buildfile"
	"github.com/crestlinecoaching/buildflow/internal/calendar"
	"github.com/crestlinecoaching/buildflow/internal/common"
	"github.com/crestlinecoaching/buildflow/internal/config"
	"github.com/crestlinecoaching/buildflow/internal/googleauth"
	"github.com/crestlinecoaching/buildflow/internal/ledger"
	"github.com/crestlinecoaching/buildflow/internal/notify"
	"github.com/crestlinecoaching/buildflow/internal/phase"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "admin server listen address")
	configPath := flag.String("config", "", "path to a JSON config file (overrides BUILDFLOW_CONFIG_FILE)")
	once := flag.Bool("once", false, "run a single batch and exit")
	authorize := flag.Bool("authorize", false, "print the Google consent URL and exit")
	authCode := flag.String("code", "", "redeem a Google auth code and save the token")
	flag.Parse()

	if err := run(*addr, *configPath, *once, *authorize, *authCode); err != nil {
		fmt.Fprintf(os.Stderr, "buildflow: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, configPath string, once, authorize bool, authCode string) error {
	logger := common.Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-time interactive Google grant, out of band of normal service runs.
	if authorize {
		url, err := googleauth.AuthURL(cfg.GoogleCredentialsPath)
		if err != nil {
			return err
		}
		fmt.Printf("Visit the URL below, grant access, then rerun with -code=<auth code>:\n%s\n", url)
		return nil
	}
	if authCode != "" {
		if err := googleauth.Exchange(ctx, cfg.GoogleCredentialsPath, cfg.GoogleTokenPath, authCode); err != nil {
			return err
		}
		logger.Info("main: google token saved", "path", cfg.GoogleTokenPath)
		return nil
	}

	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	tracker := ledger.NewTracker(store, logger, cfg.DedupDisabled)

	var (
		sources  []calendar.Source
		builds   buildfile.Store
		notifier notify.Notifier = notify.Noop{}
	)
	if cfg.GoogleCredentialsPath != "" {
		httpClient, err := googleauth.Client(ctx, cfg.GoogleCredentialsPath, cfg.GoogleTokenPath)
		if err != nil {
			return fmt.Errorf("google auth: %w", err)
		}
		for _, id := range cfg.CalendarIDs {
			source, err := calendar.NewGoogleSource(ctx, httpClient, id)
			if err != nil {
				return fmt.Errorf("calendar source %s: %w", id, err)
			}
			sources = append(sources, source)
		}
		builds, err = buildfile.NewDriveStore(ctx, httpClient, cfg.RootFolderID, cfg.TemplateFileID)
		if err != nil {
			return fmt.Errorf("drive store: %w", err)
		}
		if cfg.AdminEmail != "" {
			gm, err := notify.NewGmailNotifier(ctx, httpClient, cfg.AdminEmail, cfg.SenderEmail)
			if err != nil {
				return fmt.Errorf("gmail notifier: %w", err)
			}
			notifier = gm
		}
	}
	for _, feed := range cfg.ICSFeeds {
		sources = append(sources, calendar.NewICSSource(feed, nil))
	}
	if len(sources) == 0 {
		return errors.New("no calendar sources configured")
	}
	if builds == nil {
		return errors.New("google credentials are required for the build file store")
	}

	links := assessment.New(cfg.AssessmentBaseURL, cfg.AssessmentAPIKey)
	machine := phase.NewMachine(cfg, builds, links, tracker, logger)
	runner := batch.NewRunner(cfg, sources, machine, tracker, notifier, logger)

	if once {
		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("main: single run complete",
			"processed", summary.Processed, "errored", summary.Errored)
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule, func() {
		if _, err := runner.Run(ctx); err != nil && !errors.Is(err, batch.ErrRunActive) {
			logger.Error("main: scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("bad schedule %q: %w", cfg.Schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("main: scheduler started", "schedule", cfg.Schedule)

	server, err := api.NewServer(cfg, runner, tracker, notifier)
	if err != nil {
		return fmt.Errorf("build admin server: %w", err)
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a triggered run answers with its summary
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("main: admin server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("main: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
