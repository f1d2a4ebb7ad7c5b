package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"frmon/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS reports (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  text TEXT NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_kind_ts ON reports(kind, ts_ms);
`)
	return err
}

func (r *Repo) SaveReport(ctx context.Context, rep port.Report) error {
	id := rep.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports(id, kind, text, ts_ms) VALUES($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		id, string(rep.Kind), rep.Text, rep.CreatedAt.UnixMilli())
	return err
}

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

var _ port.ReportRepository = (*Repo)(nil)
