package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/postgres"
)

// DocumentStatus is the outcome of one document in a build.
type DocumentStatus string

const (
	StatusIndexed DocumentStatus = "indexed"
	StatusEmpty   DocumentStatus = "empty"
	StatusFailed  DocumentStatus = "failed"
)

// DocumentReport records what happened to one document.
type DocumentReport struct {
	Name     string         `json:"name"`
	Status   DocumentStatus `json:"status"`
	Pages    int            `json:"pages"`
	Results  int            `json:"results"`
	Reused   int            `json:"reused"`
	Rendered int            `json:"rendered"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Report summarizes a build run.
type Report struct {
	BuildID    string           `json:"build_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Documents  []DocumentReport `json:"documents"`
	Pages      int              `json:"pages"`
	Results    int              `json:"results"`
	Words      int              `json:"words"`
	Written    int              `json:"files_written"`

	mu sync.Mutex
}

func newReport(buildID string, startedAt time.Time) *Report {
	return &Report{BuildID: buildID, StartedAt: startedAt}
}

func (r *Report) add(d DocumentReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Documents = append(r.Documents, d)
}

func (r *Report) addWritten(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written += n
}

// sortDocuments orders documents by name so reports do not depend on worker
// scheduling.
func (r *Report) sortDocuments() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.Documents, func(i, j int) bool { return r.Documents[i].Name < r.Documents[j].Name })
}

// Failed returns the names of the documents that could not be indexed.
func (r *Report) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []string
	for _, d := range r.Documents {
		if d.Status == StatusFailed {
			failed = append(failed, d.Name)
		}
	}
	sort.Strings(failed)
	return failed
}

// Count returns how many documents ended with status.
func (r *Report) Count(status DocumentStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.Documents {
		if d.Status == status {
			n++
		}
	}
	return n
}

// Log writes the summary and every failure to l.
func (r *Report) Log(l *slog.Logger) {
	for _, d := range r.Documents {
		if d.Status == StatusFailed {
			l.Error("document failed", "document", d.Name, "error", d.Error)
		}
	}
	l.Info("build finished",
		"build_id", r.BuildID,
		"indexed", r.Count(StatusIndexed),
		"empty", r.Count(StatusEmpty),
		"failed", r.Count(StatusFailed),
		"pages", r.Pages,
		"results", r.Results,
		"words", r.Words,
		"files_written", r.Written,
		"duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
	)
}

// ReportStore persists build reports.
type ReportStore interface {
	SaveReport(ctx context.Context, r *Report) error
}

// reportSchema creates the tables used by PostgresReportStore.
var reportSchema = []string{
	`CREATE TABLE IF NOT EXISTS build_runs (
	    build_id      TEXT PRIMARY KEY,
	    started_at    TIMESTAMPTZ NOT NULL,
	    finished_at   TIMESTAMPTZ NOT NULL,
	    pages         INTEGER NOT NULL,
	    results       INTEGER NOT NULL,
	    words         INTEGER NOT NULL,
	    files_written INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS build_documents (
	    build_id    TEXT NOT NULL REFERENCES build_runs (build_id) ON DELETE CASCADE,
	    name        TEXT NOT NULL,
	    status      TEXT NOT NULL,
	    pages       INTEGER NOT NULL,
	    results     INTEGER NOT NULL,
	    reused      INTEGER NOT NULL,
	    rendered    INTEGER NOT NULL,
	    error       TEXT,
	    duration_ms BIGINT NOT NULL,
	    PRIMARY KEY (build_id, name)
	)`,
}

// PostgresReportStore keeps one build_runs row per build and one
// build_documents row per document.
type PostgresReportStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresReportStore creates the report tables if needed.
func NewPostgresReportStore(ctx context.Context, db *postgres.Client) (*PostgresReportStore, error) {
	if err := db.Exec(ctx, reportSchema...); err != nil {
		return nil, fmt.Errorf("creating build report schema: %w", err)
	}
	return &PostgresReportStore{
		db:     db,
		logger: slog.Default().With("component", "build-report-store"),
	}, nil
}

// SaveReport writes the run and its documents in one transaction.
func (s *PostgresReportStore) SaveReport(ctx context.Context, r *Report) error {
	r.mu.Lock()
	docs := make([]DocumentReport, len(r.Documents))
	copy(docs, r.Documents)
	r.mu.Unlock()

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO build_runs (build_id, started_at, finished_at, pages, results, words, files_written)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.BuildID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Pages, r.Results, r.Words, r.Written,
		)
		if err != nil {
			return fmt.Errorf("inserting build run: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO build_documents (build_id, name, status, pages, results, reused, rendered, error, duration_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		)
		if err != nil {
			return fmt.Errorf("preparing document insert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			var errText sql.NullString
			if d.Error != "" {
				errText = sql.NullString{String: d.Error, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				r.BuildID, d.Name, string(d.Status), d.Pages, d.Results, d.Reused, d.Rendered, errText, d.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("inserting document %s: %w", d.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("build report saved", "build_id", r.BuildID, "documents", len(docs))
	return nil
}
