package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"tasksync/internal/reconcile"
)

// Client implements ports.ReportSink by writing run history to MySQL.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

// NewClient opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewClient(ctx context.Context, dsn string, log *slog.Logger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{db: db, log: log}, nil
}

const upsertRun = `
INSERT INTO sync_runs
  (id, started_at, finished_at, created, updated, unchanged, failed, deleted, errors)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  finished_at=VALUES(finished_at),
  created=VALUES(created),
  updated=VALUES(updated),
  unchanged=VALUES(unchanged),
  failed=VALUES(failed),
  deleted=VALUES(deleted),
  errors=VALUES(errors);
`

const upsertAction = `
INSERT INTO sync_actions
  (run_id, stage, seq, title, source_id, target_id, action, fields, error)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  title=VALUES(title),
  source_id=VALUES(source_id),
  target_id=VALUES(target_id),
  action=VALUES(action),
  fields=VALUES(fields),
  error=VALUES(error);
`

// RecordRun stores the run totals and one row per entity outcome. Recording
// the same run twice overwrites it.
func (c *Client) RecordRun(ctx context.Context, run *reconcile.RunSummary) error {
	if run == nil {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	created, updated, unchanged, failed, deleted := run.Totals()
	errsJSON, _ := json.Marshal(run.Errors)
	var finished any
	if !run.Finished.IsZero() {
		finished = run.Finished.UTC()
	}
	if _, err := tx.ExecContext(ctx, upsertRun,
		run.ID.String(),
		run.Started.UTC(),
		finished,
		created,
		updated,
		unchanged,
		failed,
		deleted,
		string(errsJSON),
	); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, upsertAction)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	rows := 0
	for _, rep := range run.Reports {
		for i, o := range rep.Outcomes {
			fieldsJSON, _ := json.Marshal(o.Fields)
			var msg any
			if o.Err != nil {
				msg = o.Err.Error()
			}
			if _, err := stmt.ExecContext(
				ctx,
				run.ID.String(),
				rep.Stage,
				i,
				o.Title,
				o.SourceID,
				o.TargetID,
				string(o.Action),
				string(fieldsJSON),
				msg,
			); err != nil {
				tx.Rollback()
				return err
			}
			rows++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Info("mysql sink recorded run", slog.String("run", run.ID.String()), slog.Int("actions", rows))
	return nil
}

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }
