package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL result repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const createSearchResultsTable = `
	CREATE TABLE IF NOT EXISTS search_results (
		run_id           UUID PRIMARY KEY,
		success          BOOLEAN NOT NULL,
		direction        TEXT NOT NULL,
		depart_date      DATE NOT NULL,
		return_date      DATE,
		adults           INT NOT NULL,
		children         INT NOT NULL,
		min_seats        INT NOT NULL,
		time_slots       TEXT[] NOT NULL DEFAULT '{}',
		records          JSONB NOT NULL DEFAULT '[]',
		matching_records JSONB NOT NULL DEFAULT '[]',
		warnings         JSONB NOT NULL DEFAULT '[]',
		error_kind       TEXT NOT NULL DEFAULT '',
		error_message    TEXT NOT NULL DEFAULT '',
		searched_at      TIMESTAMPTZ NOT NULL
	)
`

// Init creates the search_results table when it does not exist yet.
func (r *PostgresRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createSearchResultsTable); err != nil {
		return fmt.Errorf("create search_results table: %w", err)
	}
	return nil
}

// Save inserts one search result.
func (r *PostgresRepository) Save(ctx context.Context, result shuttle.SearchResult) error {
	records, err := json.Marshal(result.Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	matching, err := json.Marshal(result.MatchingRecords)
	if err != nil {
		return fmt.Errorf("encode matching records: %w", err)
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	slots := make([]string, len(result.Criteria.TimeSlots))
	for i, s := range result.Criteria.TimeSlots {
		slots[i] = string(s)
	}

	var returnDate *time.Time
	if result.Criteria.RoundTrip() {
		d := result.Criteria.ReturnDate
		returnDate = &d
	}

	query := `
		INSERT INTO search_results (
			run_id, success, direction, depart_date, return_date,
			adults, children, min_seats, time_slots,
			records, matching_records, warnings,
			error_kind, error_message, searched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.pool.Exec(ctx, query,
		result.RunID,
		result.Success,
		string(result.Criteria.Direction),
		result.Criteria.DepartDate,
		returnDate,
		result.Criteria.Adults,
		result.Criteria.Children,
		result.Criteria.MinSeats,
		slots,
		records,
		matching,
		warnings,
		string(result.ErrorKind),
		result.ErrorMessage,
		result.SearchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search result: %w", err)
	}

	return nil
}
