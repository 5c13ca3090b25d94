package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/reconcile"
	"tasksync/internal/timecube"
	"tasksync/internal/usecase"
)

// HTTPServer returns a configured http.Server that exposes endpoints to trigger syncs.
// Call ListenAndServe on the returned server in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /sync?stage=tasks,today&at=...&timeout=...
	// stage defaults to a full run. at accepts RFC3339 or YYYY-MM-DD and
	// replays the windows of that instant.
	mux.HandleFunc("/sync", a.handleSync)

	srv := &http.Server{Addr: addr, Handler: loggingMiddleware(a.log, mux)}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

// Serve runs the cron schedules and the trigger server on addr until ctx is
// done or the server fails. A server failure is returned after shutdown.
func (a *App) Serve(ctx context.Context, addr string, sched config.Schedule) error {
	c, err := a.Scheduler(ctx, sched)
	if err != nil {
		return err
	}
	c.Start()

	srv := a.HTTPServer(addr)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	var srvErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-errc:
		srvErr = fmt.Errorf("http server: %w", err)
		a.log.Error("http server failed", slog.String("error", err.Error()))
	}

	// Wait for a running job to finish before the connections close.
	<-c.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && srvErr == nil {
		return err
	}
	return srvErr
}

func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	stages, err := parseStages(q.Get("stage"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	var at timecube.Instant
	if v := q.Get("at"); v != "" {
		at, err = timecube.Parse(v, a.uc.TZ)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
			return
		}
	}

	// Optional timeout override: ?timeout=5m
	ctx := r.Context()
	if tStr := q.Get("timeout"); tStr != "" {
		if d, err := time.ParseDuration(tStr); err == nil && d > 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	sum, err := a.RunOnce(ctx, at, stages...)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrBusy) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summaryBody(sum))
}

func parseStages(raw string) ([]usecase.Stage, error) {
	if raw == "" {
		return nil, nil
	}
	var out []usecase.Stage
	for _, s := range strings.Split(raw, ",") {
		st, err := usecase.ParseStage(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func summaryBody(sum *reconcile.RunSummary) map[string]any {
	created, updated, unchanged, failed, deleted := sum.Totals()
	reports := make([]string, 0, len(sum.Reports))
	for _, r := range sum.Reports {
		reports = append(reports, r.String())
	}
	status := "ok"
	if len(sum.Errors) > 0 || failed > 0 {
		status = "partial"
	}
	return map[string]any{
		"status":    status,
		"run":       sum.ID.String(),
		"created":   created,
		"updated":   updated,
		"unchanged": unchanged,
		"failed":    failed,
		"deleted":   deleted,
		"reports":   reports,
		"errors":    sum.Errors,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
