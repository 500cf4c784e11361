// Package service holds the business logic tying discovery, classification,
// the review queue, processing and report persistence together.
package service

import (
	"context"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/repository"
	"github.com/scottlabbe/MedicaidReportAIMiner/search"

	"github.com/google/uuid"
)

// QueueStore is the slice of the queue repository the services need
type QueueStore interface {
	Create(ctx context.Context, item *models.QueueItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueueItem, error)
	NextPending(ctx context.Context) (*models.QueueItem, error)
	ListByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueItem, error)
	HasActiveURL(ctx context.Context, url string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.QueueStatus) (bool, error)
	MarkSkipped(ctx context.Context, id uuid.UUID) (bool, error)
	FinishAttempt(ctx context.Context, item *models.QueueItem) error
	CreateDuplicateCheck(ctx context.Context, check *models.DuplicateCheck) error
}

// ReportStore is the slice of the report repository the services need
type ReportStore interface {
	FindByHash(ctx context.Context, fileHash string) (*models.Report, error)
	FindByURL(ctx context.Context, url string) (*models.Report, error)
	FindByFilename(ctx context.Context, filename string) (*models.Report, error)
	CreateWithDetails(ctx context.Context, report *models.Report, details repository.ReportDetails) error
}

// HistoryStore records discovery runs
type HistoryStore interface {
	Create(ctx context.Context, history *models.SearchHistory) error
}

// Searcher finds candidate documents
type Searcher interface {
	Search(ctx context.Context, daysBack, maxResults int) ([]search.Result, error)
	SearchDateRange(ctx context.Context, start, end time.Time, maxResults int) ([]search.Result, error)
}

// ProcessorStarter kicks off background queue processing. Starting an
// already-running processor is a no-op.
type ProcessorStarter interface {
	Start()
}
