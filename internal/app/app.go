package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"teamdict/features/command"
	"teamdict/features/dataentry"
	"teamdict/features/job"
	"teamdict/features/table"
	"teamdict/internal/config"
	"teamdict/internal/middleware"
	"teamdict/internal/slack"
	"teamdict/internal/worker"
)

// App wires the features together. The HTTP handler is the enqueue side;
// the consumers are handed to main to attach to the queue.
type App struct {
	Handler         http.Handler
	CommandConsumer *worker.CommandConsumer
	UtilityConsumer *worker.UtilityConsumer

	port int
}

func New(cfg *config.Config, db *sql.DB, taskPub command.Producer) *App {
	notifier := slack.NewNotifier(time.Duration(cfg.NotifyTimeoutSecs)*time.Second, cfg.AccessToken)

	// Feature: Table
	tableRepo := table.NewPostgresRepo(db)
	tableService := table.NewService(tableRepo)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo)
	jobHandler := job.NewHandler(jobService)

	// Feature: Command
	commandService := command.NewService(cfg.SigningSecret, taskPub, jobService)
	commandHandler := command.NewHandler(commandService)

	// Feature: Data Entry
	entryRepo := dataentry.NewPostgresRepo(db)
	entryService := dataentry.NewService(entryRepo, commandService, cfg.BaseURL,
		time.Duration(cfg.DataEntryTTLMins)*time.Minute)
	entryHandler := dataentry.NewHandler(entryService)

	router := command.NewRouter(cfg.SigningSecret, notifier, tableService, entryService)
	marks := command.NewPostgresMarkRepo(db)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /slack/lookup", middleware.CorrelationID(http.HandlerFunc(commandHandler.Lookup)))
	mux.Handle("POST /slack/modify", middleware.CorrelationID(http.HandlerFunc(commandHandler.Modify)))
	mux.Handle("POST /slack/response", middleware.CorrelationID(http.HandlerFunc(commandHandler.Response)))
	mux.Handle("GET /slack/lookup", http.HandlerFunc(commandHandler.Redirect))
	mux.Handle("GET /slack/modify", http.HandlerFunc(commandHandler.Redirect))
	mux.Handle("GET /slack/response", http.HandlerFunc(commandHandler.Redirect))

	mux.Handle("GET /data_entry/{ext}", middleware.CorrelationID(http.HandlerFunc(entryHandler.Form)))
	mux.Handle("POST /data_entry/{ext}", middleware.CorrelationID(http.HandlerFunc(entryHandler.Submit)))

	mux.Handle("GET /jobs/{id}", middleware.CorrelationID(http.HandlerFunc(jobHandler.Status)))

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "teamdict: key-value tables for your Slack channels\nserver time: %s\n",
			time.Now().UTC().Format(time.RFC1123))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	return &App{
		Handler:         mux,
		CommandConsumer: worker.NewCommandConsumer(router, marks),
		UtilityConsumer: worker.NewUtilityConsumer(tableService, jobService, notifier),
		port:            cfg.ServerPort,
	}
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
