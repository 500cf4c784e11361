package service

import (
	"context"
	"testing"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/search"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSearchService(queue *fakeQueueStore, reports *fakeReportStore, history *fakeHistoryStore, searcher Searcher, processor ProcessorStarter) *SearchService {
	return NewSearchService(
		SearchWithQueueStore(queue),
		SearchWithReportStore(reports),
		SearchWithHistoryStore(history),
		SearchWithSearcher(searcher),
		SearchWithClassifier(fakeClassifier{}),
		SearchWithProcessor(processor),
	)
}

func TestSearchAndClassifyAnnotatesDuplicates(t *testing.T) {
	queue := newFakeQueueStore()
	reports := newFakeReportStore()
	history := &fakeHistoryStore{}

	knownURL := "https://oig.hhs.gov/known.pdf"
	reports.reports = append(reports.reports, &models.Report{
		ID:                      uuid.New(),
		ReportTitle:             "Known Audit",
		PublicationYear:         2023,
		PublicationMonth:        4,
		FileHash:                "aaaa",
		OriginalReportSourceURL: &knownURL,
	})

	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Known Audit", URL: knownURL},
		{Title: "Fresh Audit", URL: "https://gao.gov/fresh.pdf"},
	}}

	svc := newTestSearchService(queue, reports, history, searcher, nil)

	results, err := svc.SearchAndClassify(context.Background(), 30, 50)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].IsDuplicate)
	require.NotNil(t, results[0].DuplicateReport)
	assert.Equal(t, "Known Audit", results[0].DuplicateReport.Title)
	assert.Equal(t, 2023, results[0].DuplicateReport.Year)

	assert.False(t, results[1].IsDuplicate)
	assert.Nil(t, results[1].DuplicateReport)

	// Every result carries a classification
	assert.True(t, results[0].Classification.Success)
	assert.True(t, results[1].Classification.Success)

	// The run was recorded
	require.Len(t, history.entries, 1)
	assert.Equal(t, 2, history.entries[0].ResultsCount)
	assert.Equal(t, 30, history.entries[0].SearchParams.DaysBack)
}

func TestSearchAndClassifyMarksInFlightQueueItemsDuplicate(t *testing.T) {
	queue := newFakeQueueStore()
	reports := newFakeReportStore()

	inFlight := "https://gao.gov/inflight.pdf"
	require.NoError(t, queue.Create(context.Background(), &models.QueueItem{
		URL:    inFlight,
		Status: models.QueueStatusPending,
	}))

	searcher := &fakeSearcher{results: []search.Result{{Title: "In Flight", URL: inFlight}}}
	svc := newTestSearchService(queue, reports, &fakeHistoryStore{}, searcher, nil)

	results, err := svc.SearchAndClassify(context.Background(), 7, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].IsDuplicate)
	// Queue matches carry no report info
	assert.Nil(t, results[0].DuplicateReport)
}

func TestAddToQueueSkipsDuplicatesAndAppliesOverrides(t *testing.T) {
	queue := newFakeQueueStore()
	reports := newFakeReportStore()

	dupURL := "https://gao.gov/dup.pdf"
	require.NoError(t, queue.Create(context.Background(), &models.QueueItem{
		URL:    dupURL,
		Status: models.QueueStatusPending,
	}))

	svc := newTestSearchService(queue, reports, &fakeHistoryStore{}, nil, nil)

	candidates := []QueueCandidate{
		{URL: dupURL, Title: "Dup", Source: "gao.gov"},
		{URL: "https://gao.gov/new.pdf", Title: "New", Source: "gao.gov",
			Classification: models.Classification{IsMedicaidAudit: false, Success: true}},
		{URL: "https://cms.gov/other.pdf", Title: "Other", Source: "cms.gov",
			Classification: models.Classification{IsMedicaidAudit: true, Success: true}},
	}
	overrides := map[string]bool{"https://gao.gov/new.pdf": true}

	added, err := svc.AddToQueue(context.Background(), candidates, overrides)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	pending, err := queue.ListByStatus(context.Background(), models.QueueStatusPendingReview)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	overridden := pending[0]
	assert.Equal(t, "https://gao.gov/new.pdf", overridden.URL)
	assert.True(t, overridden.UserOverride)
	assert.True(t, overridden.AIClassification.IsMedicaidAudit)

	plain := pending[1]
	assert.False(t, plain.UserOverride)
}

func TestApproveTransitionsAndStartsProcessorOnce(t *testing.T) {
	queue := newFakeQueueStore()
	processor := &fakeProcessor{}
	svc := newTestSearchService(queue, newFakeReportStore(), &fakeHistoryStore{}, nil, processor)

	ctx := context.Background()
	itemA := &models.QueueItem{URL: "https://a.pdf"}
	itemB := &models.QueueItem{URL: "https://b.pdf"}
	require.NoError(t, queue.Create(ctx, itemA))
	require.NoError(t, queue.Create(ctx, itemB))

	approved, err := svc.Approve(ctx, []uuid.UUID{itemA.ID, itemB.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, approved)
	assert.Equal(t, 1, processor.starts)

	assert.Equal(t, models.QueueStatusPending, itemA.Status)
	assert.Equal(t, models.QueueStatusPending, itemB.Status)

	// Re-approving already-pending items is a no-op and does not
	// respawn the processor
	approved, err = svc.Approve(ctx, []uuid.UUID{itemA.ID, itemB.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, approved)
	assert.Equal(t, 1, processor.starts)
}

func TestApproveEmptyIDsFails(t *testing.T) {
	svc := newTestSearchService(newFakeQueueStore(), newFakeReportStore(), &fakeHistoryStore{}, nil, nil)

	_, err := svc.Approve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestSkipStampsCompletedAt(t *testing.T) {
	queue := newFakeQueueStore()
	svc := newTestSearchService(queue, newFakeReportStore(), &fakeHistoryStore{}, nil, nil)

	ctx := context.Background()
	item := &models.QueueItem{URL: "https://a.pdf"}
	require.NoError(t, queue.Create(ctx, item))

	skipped, err := svc.Skip(ctx, []uuid.UUID{item.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, models.QueueStatusSkipped, item.Status)
	assert.NotNil(t, item.CompletedAt)

	// Skipping again is a no-op
	skipped, err = svc.Skip(ctx, []uuid.UUID{item.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
}

func TestSkipDoesNotTouchPendingItems(t *testing.T) {
	queue := newFakeQueueStore()
	svc := newTestSearchService(queue, newFakeReportStore(), &fakeHistoryStore{}, nil, nil)

	ctx := context.Background()
	item := &models.QueueItem{URL: "https://a.pdf", Status: models.QueueStatusPending}
	require.NoError(t, queue.Create(ctx, item))

	skipped, err := svc.Skip(ctx, []uuid.UUID{item.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, models.QueueStatusPending, item.Status)
}
