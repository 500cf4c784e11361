package repository

import (
	"context"
	"errors"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueueRepository handles database operations for the scraping queue
type QueueRepository struct {
	db *pgxpool.Pool
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `id, url, title, source_domain, document_metadata, ai_classification,
	status, retry_count, user_override, error_message, report_id, created_at, completed_at`

func scanQueueItem(row pgx.Row) (*models.QueueItem, error) {
	item := &models.QueueItem{}
	err := row.Scan(
		&item.ID,
		&item.URL,
		&item.Title,
		&item.SourceDomain,
		&item.DocumentMetadata,
		&item.AIClassification,
		&item.Status,
		&item.RetryCount,
		&item.UserOverride,
		&item.ErrorMessage,
		&item.ReportID,
		&item.CreatedAt,
		&item.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Create inserts a new queue item
func (r *QueueRepository) Create(ctx context.Context, item *models.QueueItem) error {
	query := `
		INSERT INTO scraping_queue (
			url, title, source_domain, document_metadata, ai_classification,
			status, retry_count, user_override
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	if item.Status == "" {
		item.Status = models.QueueStatusPendingReview
	}

	err := r.db.QueryRow(
		ctx, query,
		item.URL,
		item.Title,
		item.SourceDomain,
		item.DocumentMetadata,
		item.AIClassification,
		item.Status,
		item.RetryCount,
		item.UserOverride,
	).Scan(&item.ID, &item.CreatedAt)

	return err
}

// GetByID retrieves a queue item by ID
func (r *QueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM scraping_queue WHERE id = $1`
	return scanQueueItem(r.db.QueryRow(ctx, query, id))
}

// NextPending returns the oldest pending item with retries remaining,
// or nil when the queue is drained
func (r *QueueRepository) NextPending(ctx context.Context) (*models.QueueItem, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM scraping_queue
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at
		LIMIT 1`

	item, err := scanQueueItem(r.db.QueryRow(ctx, query, models.QueueStatusPending, models.MaxQueueRetries))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListByStatus retrieves queue items with the given status, newest first.
// An empty status returns everything.
func (r *QueueRepository) ListByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM scraping_queue`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// HasActiveURL reports whether the URL belongs to an item still in flight
// (pending_review, pending, downloading or processing)
func (r *QueueRepository) HasActiveURL(ctx context.Context, url string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM scraping_queue
			WHERE url = $1 AND status = ANY($2)
		)`

	statuses := make([]string, 0, len(models.ActiveQueueStatuses))
	for _, s := range models.ActiveQueueStatuses {
		statuses = append(statuses, string(s))
	}

	var exists bool
	err := r.db.QueryRow(ctx, query, url, statuses).Scan(&exists)
	return exists, err
}

// UpdateStatus sets the status of a queue item
func (r *QueueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus) error {
	query := `UPDATE scraping_queue SET status = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

// TransitionStatus moves an item from one status to another only if it is
// currently in the expected state. Returns true when the transition applied;
// calling it on an item in any other state is a no-op.
func (r *QueueRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.QueueStatus) (bool, error) {
	query := `UPDATE scraping_queue SET status = $3 WHERE id = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSkipped moves an item from pending_review to skipped and stamps
// completed_at. Returns true when the item was actually skipped.
func (r *QueueRepository) MarkSkipped(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE scraping_queue SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4`
	tag, err := r.db.Exec(ctx, query, id, models.QueueStatusSkipped, time.Now().UTC(), models.QueueStatusPendingReview)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FinishAttempt records the outcome of one processing attempt: final status,
// retry count, error text, linked report and the completed_at stamp.
func (r *QueueRepository) FinishAttempt(ctx context.Context, item *models.QueueItem) error {
	query := `
		UPDATE scraping_queue SET
			status = $2,
			retry_count = $3,
			error_message = $4,
			report_id = $5,
			completed_at = $6
		WHERE id = $1`

	_, err := r.db.Exec(
		ctx, query,
		item.ID,
		item.Status,
		item.RetryCount,
		item.ErrorMessage,
		item.ReportID,
		item.CompletedAt,
	)
	return err
}

// CreateDuplicateCheck records that a queue item duplicated an existing report
func (r *QueueRepository) CreateDuplicateCheck(ctx context.Context, check *models.DuplicateCheck) error {
	query := `
		INSERT INTO duplicate_checks (queue_item_id, existing_report_id, similarity_score)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		check.QueueItemID,
		check.ExistingReportID,
		check.SimilarityScore,
	).Scan(&check.ID, &check.CreatedAt)

	return err
}
