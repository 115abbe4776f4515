package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/faceid/internal/results"
	"github.com/andresmejia3/faceid/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection used to export result dumps.
type Store struct {
	conn *pgx.Conn
}

// Run describes one identification run.
type Run struct {
	ID        uuid.UUID
	Gallery   string
	Probe     string
	Threshold float64
	CreatedAt time.Time
	Probes    int // populated by ListRuns
	Faces     int // populated by ListRuns
}

// NewRun stamps a run with a fresh ID.
func NewRun(gallery, probe string, threshold float64) Run {
	return Run{ID: uuid.New(), Gallery: gallery, Probe: probe, Threshold: threshold}
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the export tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS faceid_runs (
			id UUID PRIMARY KEY,
			gallery TEXT NOT NULL,
			probe TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS faceid_results (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES faceid_runs(id) ON DELETE CASCADE,
			probe_name TEXT NOT NULL,
			position INT NOT NULL,
			status TEXT NOT NULL,
			label TEXT,
			confidence DOUBLE PRECISION,
			line TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS faceid_results_run_id_idx ON faceid_results (run_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveRun writes the run and one row per result line in a single transaction.
// A no-faces probe is stored as one "no_faces" row carrying the sentinel line.
func (s *Store) SaveRun(ctx context.Context, run Run, set *results.Set) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO faceid_runs (id, gallery, probe, threshold)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.Gallery, run.Probe, run.Threshold)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, name := range set.Names() {
		outcome, _ := set.Outcome(name)
		if outcome.NoFaces {
			batch.Queue(`
				INSERT INTO faceid_results (run_id, probe_name, position, status, line)
				VALUES ($1, $2, 0, 'no_faces', $3)
			`, run.ID, name, results.NoFacesMessage)
			continue
		}
		for _, r := range outcome.Results {
			var label *string
			var confidence *float64
			if r.Status == types.Identified {
				label, confidence = &r.Label, &r.Confidence
			}
			batch.Queue(`
				INSERT INTO faceid_results (run_id, probe_name, position, status, label, confidence, line)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, run.ID, name, r.Face, r.Status.String(), label, confidence, results.Line(r))
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListRuns returns exported runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT r.id, r.gallery, r.probe, r.threshold, r.created_at,
			COUNT(DISTINCT res.probe_name), COUNT(res.id) FILTER (WHERE res.status <> 'no_faces')
		FROM faceid_runs r
		LEFT JOIN faceid_results res ON res.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Gallery, &r.Probe, &r.Threshold, &r.CreatedAt, &r.Probes, &r.Faces); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunDocument rebuilds the persisted document of a run: probe name to ordered lines.
func (s *Store) RunDocument(ctx context.Context, id uuid.UUID) (map[string][]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT probe_name, line FROM faceid_results WHERE run_id = $1 ORDER BY probe_name, position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := make(map[string][]string)
	for rows.Next() {
		var name, line string
		if err := rows.Scan(&name, &line); err != nil {
			return nil, err
		}
		doc[name] = append(doc[name], line)
	}
	return doc, rows.Err()
}

// Reset drops all application tables to clear the database state.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS faceid_results CASCADE;
		DROP TABLE IF EXISTS faceid_runs CASCADE;
	`)
	return err
}

// RunExporter adapts a Store to the pipeline's exporter hook for one run.
type RunExporter struct {
	Store *Store
	Run   Run
}

func (e RunExporter) Export(ctx context.Context, set *results.Set) error {
	return e.Store.SaveRun(ctx, e.Run, set)
}
