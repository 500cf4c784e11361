package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/classifier"
	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/search"

	"github.com/google/uuid"
)

// defaultMaxResults bounds one discovery run
const defaultMaxResults = 50

// SearchService runs discovery, classification and the human review queue
type SearchService struct {
	queue      QueueStore
	reports    ReportStore
	history    HistoryStore
	searcher   Searcher
	classifier classifier.Classifier
	processor  ProcessorStarter
}

// SearchServiceOption is a functional option for SearchService
type SearchServiceOption func(*SearchService)

// SearchWithQueueStore sets the queue store
func SearchWithQueueStore(store QueueStore) SearchServiceOption {
	return func(s *SearchService) {
		s.queue = store
	}
}

// SearchWithReportStore sets the report store
func SearchWithReportStore(store ReportStore) SearchServiceOption {
	return func(s *SearchService) {
		s.reports = store
	}
}

// SearchWithHistoryStore sets the search history store
func SearchWithHistoryStore(store HistoryStore) SearchServiceOption {
	return func(s *SearchService) {
		s.history = store
	}
}

// SearchWithSearcher sets the document searcher
func SearchWithSearcher(searcher Searcher) SearchServiceOption {
	return func(s *SearchService) {
		s.searcher = searcher
	}
}

// SearchWithClassifier sets the AI classifier
func SearchWithClassifier(c classifier.Classifier) SearchServiceOption {
	return func(s *SearchService) {
		s.classifier = c
	}
}

// SearchWithProcessor sets the background queue processor
func SearchWithProcessor(p ProcessorStarter) SearchServiceOption {
	return func(s *SearchService) {
		s.processor = p
	}
}

// NewSearchService creates a new search service
func NewSearchService(opts ...SearchServiceOption) *SearchService {
	s := &SearchService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DuplicateReportInfo summarizes the existing report a result duplicates
type DuplicateReportInfo struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Year  int       `json:"year"`
	Month int       `json:"month"`
}

// ClassifiedResult is a search result annotated with its AI classification
// and duplicate status
type ClassifiedResult struct {
	search.Result
	Classification  models.Classification `json:"ai_classification"`
	IsDuplicate     bool                  `json:"is_duplicate"`
	DuplicateReport *DuplicateReportInfo  `json:"duplicate_report,omitempty"`
}

// SearchAndClassify discovers candidate PDFs from the last daysBack days,
// classifies them, annotates duplicates and records the run
func (s *SearchService) SearchAndClassify(ctx context.Context, daysBack, maxResults int) ([]ClassifiedResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	results, err := s.searcher.Search(ctx, daysBack, maxResults)
	if err != nil {
		return nil, err
	}

	classified, err := s.classifyAndAnnotate(ctx, results)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, models.SearchParams{DaysBack: daysBack}, len(classified))
	return classified, nil
}

// SearchAndClassifyDateRange is SearchAndClassify over an explicit
// publication date window
func (s *SearchService) SearchAndClassifyDateRange(ctx context.Context, start, end time.Time, maxResults int) ([]ClassifiedResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	results, err := s.searcher.SearchDateRange(ctx, start, end, maxResults)
	if err != nil {
		return nil, err
	}

	classified, err := s.classifyAndAnnotate(ctx, results)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, models.SearchParams{
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	}, len(classified))
	return classified, nil
}

func (s *SearchService) classifyAndAnnotate(ctx context.Context, results []search.Result) ([]ClassifiedResult, error) {
	docs := make([]classifier.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, classifier.Document{Title: r.Title, Snippet: r.Snippet, URL: r.URL})
	}
	classifications := classifier.ClassifyBatch(ctx, s.classifier, docs)

	classified := make([]ClassifiedResult, 0, len(results))
	for i, r := range results {
		cr := ClassifiedResult{Result: r, Classification: classifications[i]}

		isDup, info, err := s.checkDuplicate(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		cr.IsDuplicate = isDup
		cr.DuplicateReport = info

		classified = append(classified, cr)
	}
	return classified, nil
}

// checkDuplicate reports whether the URL already belongs to a persisted
// report or an in-flight queue item. Report matches also return summary info.
func (s *SearchService) checkDuplicate(ctx context.Context, url string) (bool, *DuplicateReportInfo, error) {
	report, err := s.reports.FindByURL(ctx, url)
	if err != nil {
		return false, nil, err
	}
	if report != nil {
		return true, &DuplicateReportInfo{
			ID:    report.ID,
			Title: report.ReportTitle,
			Year:  report.PublicationYear,
			Month: report.PublicationMonth,
		}, nil
	}

	active, err := s.queue.HasActiveURL(ctx, url)
	if err != nil {
		return false, nil, err
	}
	return active, nil, nil
}

// CheckDuplicate exposes URL-level duplicate detection to the HTTP layer
func (s *SearchService) CheckDuplicate(ctx context.Context, url string) (bool, *DuplicateReportInfo, error) {
	return s.checkDuplicate(ctx, url)
}

func (s *SearchService) recordHistory(ctx context.Context, params models.SearchParams, count int) {
	if s.history == nil {
		return
	}
	history := &models.SearchHistory{SearchParams: params, ResultsCount: count}
	if err := s.history.Create(ctx, history); err != nil {
		// History is best-effort bookkeeping; a failed insert must not
		// lose the search results
		log.Printf("Failed to record search history: %v", err)
	}
}

// QueueCandidate is one result the operator chose to enqueue
type QueueCandidate struct {
	URL            string                `json:"url"`
	Title          string                `json:"title"`
	Source         string                `json:"source"`
	Metadata       models.SearchMetadata `json:"metadata"`
	Classification models.Classification `json:"ai_classification"`
}

// AddToQueue inserts the candidates as pending_review items, skipping
// duplicates. overrides maps URL to the operator's is-audit verdict; an
// overridden item carries user_override=true. Returns how many were added.
// Discovered items never bypass review.
func (s *SearchService) AddToQueue(ctx context.Context, candidates []QueueCandidate, overrides map[string]bool) (int, error) {
	added := 0

	for _, candidate := range candidates {
		isDup, _, err := s.checkDuplicate(ctx, candidate.URL)
		if err != nil {
			return added, err
		}
		if isDup {
			continue
		}

		item := &models.QueueItem{
			URL:          candidate.URL,
			Title:        candidate.Title,
			SourceDomain: candidate.Source,
			DocumentMetadata: models.DocumentMetadata{
				Search: &candidate.Metadata,
			},
			AIClassification: candidate.Classification,
			Status:           models.QueueStatusPendingReview,
		}

		if verdict, ok := overrides[candidate.URL]; ok {
			item.AIClassification.IsMedicaidAudit = verdict
			item.UserOverride = true
		}

		if err := s.queue.Create(ctx, item); err != nil {
			return added, err
		}
		added++
	}

	return added, nil
}

// PendingReview lists the items awaiting operator review
func (s *SearchService) PendingReview(ctx context.Context) ([]*models.QueueItem, error) {
	return s.queue.ListByStatus(ctx, models.QueueStatusPendingReview)
}

// QueueByStatus lists queue items, optionally filtered by status
func (s *SearchService) QueueByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueItem, error) {
	return s.queue.ListByStatus(ctx, status)
}

var ErrNoItems = errors.New("no item ids given")

// Approve moves each pending_review item to pending and starts the
// background processor once for the whole batch. Ids in any other state
// are no-ops, so repeating an approval neither double-counts nor
// double-processes. Returns how many items were approved.
func (s *SearchService) Approve(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoItems
	}

	approved := 0
	for _, id := range ids {
		ok, err := s.queue.TransitionStatus(ctx, id, models.QueueStatusPendingReview, models.QueueStatusPending)
		if err != nil {
			return approved, err
		}
		if ok {
			approved++
		}
	}

	if approved > 0 && s.processor != nil {
		s.processor.Start()
	}

	return approved, nil
}

// Skip marks each pending_review item skipped. Returns how many items
// were skipped.
func (s *SearchService) Skip(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoItems
	}

	skipped := 0
	for _, id := range ids {
		ok, err := s.queue.MarkSkipped(ctx, id)
		if err != nil {
			return skipped, err
		}
		if ok {
			skipped++
		}
	}

	return skipped, nil
}
