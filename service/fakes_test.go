package service

import (
	"context"
	"errors"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/classifier"
	"github.com/scottlabbe/MedicaidReportAIMiner/extraction"
	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/repository"
	"github.com/scottlabbe/MedicaidReportAIMiner/search"

	"github.com/google/uuid"
)

// fakeQueueStore is an in-memory QueueStore preserving insertion order
type fakeQueueStore struct {
	items         []*models.QueueItem
	statusHistory map[uuid.UUID][]models.QueueStatus
	checks        []*models.DuplicateCheck
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{statusHistory: make(map[uuid.UUID][]models.QueueStatus)}
}

func (f *fakeQueueStore) Create(ctx context.Context, item *models.QueueItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now().UTC()
	if item.Status == "" {
		item.Status = models.QueueStatusPendingReview
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeQueueStore) GetByID(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeQueueStore) NextPending(ctx context.Context) (*models.QueueItem, error) {
	for _, item := range f.items {
		if item.Status == models.QueueStatusPending && item.RetryCount < models.MaxQueueRetries {
			return item, nil
		}
	}
	return nil, nil
}

func (f *fakeQueueStore) ListByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueItem, error) {
	var out []*models.QueueItem
	for _, item := range f.items {
		if status == "" || item.Status == status {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeQueueStore) HasActiveURL(ctx context.Context, url string) (bool, error) {
	for _, item := range f.items {
		if item.URL != url {
			continue
		}
		for _, s := range models.ActiveQueueStatuses {
			if item.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeQueueStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus) error {
	item, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	item.Status = status
	f.statusHistory[id] = append(f.statusHistory[id], status)
	return nil
}

func (f *fakeQueueStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.QueueStatus) (bool, error) {
	for _, item := range f.items {
		if item.ID == id && item.Status == from {
			item.Status = to
			f.statusHistory[id] = append(f.statusHistory[id], to)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQueueStore) MarkSkipped(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, item := range f.items {
		if item.ID == id && item.Status == models.QueueStatusPendingReview {
			item.Status = models.QueueStatusSkipped
			now := time.Now().UTC()
			item.CompletedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQueueStore) FinishAttempt(ctx context.Context, item *models.QueueItem) error {
	stored, err := f.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	stored.Status = item.Status
	stored.RetryCount = item.RetryCount
	stored.ErrorMessage = item.ErrorMessage
	stored.ReportID = item.ReportID
	stored.CompletedAt = item.CompletedAt
	f.statusHistory[item.ID] = append(f.statusHistory[item.ID], item.Status)
	return nil
}

func (f *fakeQueueStore) CreateDuplicateCheck(ctx context.Context, check *models.DuplicateCheck) error {
	check.ID = uuid.New()
	check.CreatedAt = time.Now().UTC()
	f.checks = append(f.checks, check)
	return nil
}

// fakeReportStore is an in-memory ReportStore
type fakeReportStore struct {
	reports []*models.Report
	details map[uuid.UUID]repository.ReportDetails
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{details: make(map[uuid.UUID]repository.ReportDetails)}
}

func (f *fakeReportStore) FindByHash(ctx context.Context, fileHash string) (*models.Report, error) {
	for _, r := range f.reports {
		if r.FileHash == fileHash {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) FindByURL(ctx context.Context, url string) (*models.Report, error) {
	for _, r := range f.reports {
		if r.OriginalReportSourceURL != nil && *r.OriginalReportSourceURL == url {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) FindByFilename(ctx context.Context, filename string) (*models.Report, error) {
	for _, r := range f.reports {
		if r.OriginalFilename == filename {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) CreateWithDetails(ctx context.Context, report *models.Report, details repository.ReportDetails) error {
	for _, r := range f.reports {
		if r.FileHash == report.FileHash {
			return errors.New("duplicate key value violates unique constraint \"reports_file_hash_key\"")
		}
	}
	report.ID = uuid.New()
	report.CreatedAt = time.Now().UTC()
	report.UpdatedAt = report.CreatedAt
	f.reports = append(f.reports, report)
	f.details[report.ID] = details
	return nil
}

// fakeHistoryStore records discovery runs
type fakeHistoryStore struct {
	entries []*models.SearchHistory
}

func (f *fakeHistoryStore) Create(ctx context.Context, history *models.SearchHistory) error {
	history.ID = uuid.New()
	history.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, history)
	return nil
}

// fakeSearcher returns canned results
type fakeSearcher struct {
	results []search.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, daysBack, maxResults int) ([]search.Result, error) {
	return f.results, f.err
}

func (f *fakeSearcher) SearchDateRange(ctx context.Context, start, end time.Time, maxResults int) ([]search.Result, error) {
	return f.results, f.err
}

// fakeClassifier marks everything an audit with fixed confidence
type fakeClassifier struct{}

func (fakeClassifier) ClassifyDocument(ctx context.Context, doc classifier.Document) models.Classification {
	return models.Classification{
		IsMedicaidAudit: true,
		Confidence:      0.9,
		DocumentType:    "audit_report",
		Reasoning:       "looks like an audit",
		Success:         true,
		Provider:        "Fake",
	}
}

func (fakeClassifier) ProviderName() string { return "Fake" }
func (fakeClassifier) Available() bool      { return true }

// fakeProcessor counts Start calls
type fakeProcessor struct {
	starts int
}

func (f *fakeProcessor) Start() {
	f.starts++
}

// fakeExtractor returns canned report data
type fakeExtractor struct {
	data *extraction.ReportData
	log  *extraction.ExtractionLog
	err  error
}

func (f *fakeExtractor) ExtractReportData(ctx context.Context, pdfText string) (*extraction.ReportData, *extraction.ExtractionLog, error) {
	return f.data, f.log, f.err
}

func (f *fakeExtractor) ProviderName() string { return "fake" }

func testReportData() *extraction.ReportData {
	return &extraction.ReportData{
		ReportTitle:       "Audit of Medicaid Eligibility Determinations",
		AuditOrganization: "Office of the State Comptroller",
		PublicationYear:   2024,
		PublicationMonth:  6,
		Objectives:        []string{"Determine whether eligibility determinations complied with requirements"},
		Findings:          []string{"Sampled cases lacked required documentation"},
		Recommendations:   []string{"Strengthen documentation requirements"},
		LLMInsight:        "Eligibility controls need improvement",
		State:             "NY",
		AuditScope:        "January 2022 through December 2023",
		ExtractedKeywords: []string{"eligibility", "documentation"},
	}
}
