package repository

import (
	"context"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchHistoryRepository handles the append-only discovery run log
type SearchHistoryRepository struct {
	db *pgxpool.Pool
}

// NewSearchHistoryRepository creates a new search history repository
func NewSearchHistoryRepository(db *pgxpool.Pool) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

// Create appends one search run record
func (r *SearchHistoryRepository) Create(ctx context.Context, history *models.SearchHistory) error {
	query := `
		INSERT INTO search_history (search_params, results_count)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		history.SearchParams,
		history.ResultsCount,
	).Scan(&history.ID, &history.CreatedAt)

	return err
}

// ListRecent retrieves the most recent search runs, newest first
func (r *SearchHistoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.SearchHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, search_params, results_count, created_at
		FROM search_history
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SearchHistory
	for rows.Next() {
		entry := &models.SearchHistory{}
		err := rows.Scan(
			&entry.ID,
			&entry.SearchParams,
			&entry.ResultsCount,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
