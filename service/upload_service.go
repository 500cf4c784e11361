package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/scottlabbe/MedicaidReportAIMiner/cache"
	"github.com/scottlabbe/MedicaidReportAIMiner/extraction"
	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/pdfutil"
	"github.com/scottlabbe/MedicaidReportAIMiner/repository"
	"github.com/scottlabbe/MedicaidReportAIMiner/storage"
)

var (
	ErrNotPDF          = errors.New("only PDF files are accepted")
	ErrDuplicateReport = errors.New("a report with this file content already exists")
	ErrReviewNotFound  = errors.New("no pending review for this token; it may have expired")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
	ErrDuplicateUpload = errors.New("this file is already queued")
)

// UploadCheck is the outcome of pre-ingestion duplicate detection. A hash
// match is a hard duplicate; a filename-only match is a soft warning the
// operator may override.
type UploadCheck struct {
	IsDuplicate    bool                 `json:"is_duplicate"`
	FilenameMatch  bool                 `json:"filename_match"`
	ExistingReport *DuplicateReportInfo `json:"existing_report,omitempty"`
	ExistingByName *DuplicateReportInfo `json:"existing_by_name,omitempty"`
}

// PendingUpload is an extraction result parked for human review
type PendingUpload struct {
	Token            string
	OriginalFilename string
	FileHash         string
	FileSizeBytes    int64
	Content          []byte
	ReportData       *extraction.ReportData
	Keywords         []string
	AILog            *extraction.ExtractionLog
}

// UploadService handles manually uploaded PDFs: queueing them for
// background processing, or extracting immediately for interactive review
type UploadService struct {
	queue        QueueStore
	reports      ReportStore
	store        storage.Storage
	pending      *cache.Store[*PendingUpload]
	newExtractor func(provider string) (extraction.Extractor, error)
	extractText  func(data []byte) (string, error)
}

// UploadServiceOption is a functional option for UploadService
type UploadServiceOption func(*UploadService)

// UploadWithQueueStore sets the queue store
func UploadWithQueueStore(store QueueStore) UploadServiceOption {
	return func(s *UploadService) {
		s.queue = store
	}
}

// UploadWithReportStore sets the report store
func UploadWithReportStore(store ReportStore) UploadServiceOption {
	return func(s *UploadService) {
		s.reports = store
	}
}

// UploadWithStorage sets the PDF archive
func UploadWithStorage(store storage.Storage) UploadServiceOption {
	return func(s *UploadService) {
		s.store = store
	}
}

// UploadWithPendingCache sets the review holding cache
func UploadWithPendingCache(c *cache.Store[*PendingUpload]) UploadServiceOption {
	return func(s *UploadService) {
		s.pending = c
	}
}

// UploadWithExtractorFactory sets how extractors are built per provider
func UploadWithExtractorFactory(factory func(provider string) (extraction.Extractor, error)) UploadServiceOption {
	return func(s *UploadService) {
		s.newExtractor = factory
	}
}

// UploadWithTextExtractor sets the PDF text extraction function
func UploadWithTextExtractor(extract func(data []byte) (string, error)) UploadServiceOption {
	return func(s *UploadService) {
		s.extractText = extract
	}
}

// NewUploadService creates a new upload service
func NewUploadService(opts ...UploadServiceOption) *UploadService {
	s := &UploadService{
		pending:      cache.New[*PendingUpload](cache.DefaultTTL),
		newExtractor: extraction.New,
		extractText:  pdfutil.ExtractText,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the review cache's background sweeper. Parked reviews stay
// claimable; only the periodic expiry reclaim stops.
func (s *UploadService) Close() {
	s.pending.Close()
}

// CheckDuplicateReport looks for an existing report with the same content
// hash (hard duplicate) or, failing that, the same original filename
// (soft warning)
func (s *UploadService) CheckDuplicateReport(ctx context.Context, fileHash, filename string) (*UploadCheck, error) {
	check := &UploadCheck{}

	byHash, err := s.reports.FindByHash(ctx, fileHash)
	if err != nil {
		return nil, err
	}
	if byHash != nil {
		check.IsDuplicate = true
		check.ExistingReport = summarizeReport(byHash)
		return check, nil
	}

	byName, err := s.reports.FindByFilename(ctx, filename)
	if err != nil {
		return nil, err
	}
	if byName != nil {
		check.FilenameMatch = true
		check.ExistingByName = summarizeReport(byName)
	}

	return check, nil
}

func summarizeReport(report *models.Report) *DuplicateReportInfo {
	return &DuplicateReportInfo{
		ID:    report.ID,
		Title: report.ReportTitle,
		Year:  report.PublicationYear,
		Month: report.PublicationMonth,
	}
}

// EnqueueUpload stores the PDF bytes inside a queue item for background
// processing. Uploads enter at pending_review like discovered items, with
// a synthetic classification and user_override set: the operator vouched
// for the document by uploading it.
func (s *UploadService) EnqueueUpload(ctx context.Context, filename string, content []byte, aiProvider string) (*models.QueueItem, *UploadCheck, error) {
	if err := validateUpload(filename, content); err != nil {
		return nil, nil, err
	}

	fileHash := pdfutil.ComputeHash(content)

	check, err := s.CheckDuplicateReport(ctx, fileHash, filename)
	if err != nil {
		return nil, nil, err
	}
	if check.IsDuplicate {
		return nil, check, ErrDuplicateReport
	}

	uploadURL := "upload://" + fileHash
	active, err := s.queue.HasActiveURL(ctx, uploadURL)
	if err != nil {
		return nil, check, err
	}
	if active {
		return nil, check, ErrDuplicateUpload
	}

	item := &models.QueueItem{
		URL:          uploadURL,
		Title:        filename,
		SourceDomain: models.SourceManualUpload,
		DocumentMetadata: models.DocumentMetadata{
			Upload: &models.UploadMetadata{
				OriginalFilename: filename,
				FileHash:         fileHash,
				FileContent:      hex.EncodeToString(content),
				AIProvider:       aiProvider,
			},
		},
		AIClassification: models.Classification{
			IsMedicaidAudit: true,
			Confidence:      1.0,
			DocumentType:    "audit_report",
			Reasoning:       "Manually uploaded by operator",
			Success:         true,
			Provider:        "manual",
		},
		Status:       models.QueueStatusPendingReview,
		UserOverride: true,
	}

	if err := s.queue.Create(ctx, item); err != nil {
		return nil, check, err
	}

	return item, check, nil
}

// ExtractForReview runs the extraction pipeline immediately and parks the
// result for interactive review. The returned PendingUpload's Token claims
// it later; unclaimed results expire from the cache.
func (s *UploadService) ExtractForReview(ctx context.Context, filename string, content []byte, aiProvider string) (*PendingUpload, *UploadCheck, error) {
	if err := validateUpload(filename, content); err != nil {
		return nil, nil, err
	}

	fileHash := pdfutil.ComputeHash(content)

	check, err := s.CheckDuplicateReport(ctx, fileHash, filename)
	if err != nil {
		return nil, nil, err
	}
	if check.IsDuplicate {
		return nil, check, ErrDuplicateReport
	}

	text, err := s.extractText(content)
	if err != nil {
		return nil, check, err
	}

	extractor, err := s.newExtractor(aiProvider)
	if err != nil {
		return nil, check, err
	}
	data, aiLog, err := extractor.ExtractReportData(ctx, text)
	if err != nil {
		return nil, check, err
	}

	pending := &PendingUpload{
		Token:            fileHash,
		OriginalFilename: filename,
		FileHash:         fileHash,
		FileSizeBytes:    int64(len(content)),
		Content:          content,
		ReportData:       data,
		Keywords:         pdfutil.ProcessKeywords(pdfutil.MetadataKeywords(content), data.ExtractedKeywords),
		AILog:            aiLog,
	}
	s.pending.Put(pending.Token, pending)

	return pending, check, nil
}

// PendingReview fetches a parked extraction without claiming it
func (s *UploadService) PendingReview(token string) (*PendingUpload, error) {
	pending, ok := s.pending.Get(token)
	if !ok {
		return nil, ErrReviewNotFound
	}
	return pending, nil
}

// DiscardReview drops a parked extraction the operator rejected
func (s *UploadService) DiscardReview(token string) {
	s.pending.Delete(token)
}

// SaveReviewedReport persists a reviewed extraction as a report. data and
// keywords carry the operator's edits; nil data keeps the extraction as-is.
// The cache entry is claimed, so a second save with the same token fails.
func (s *UploadService) SaveReviewedReport(ctx context.Context, token string, data *extraction.ReportData, keywords []string) (*models.Report, error) {
	pending, ok := s.pending.Take(token)
	if !ok {
		return nil, ErrReviewNotFound
	}

	if data == nil {
		data = pending.ReportData
	}
	if keywords == nil {
		keywords = pending.Keywords
	}

	storagePath := ""
	if s.store != nil {
		var err error
		storagePath, err = s.store.Archive(ctx, pending.FileHash, bytes.NewReader(pending.Content))
		if err != nil {
			// Put the entry back so the operator can retry the save
			s.pending.Put(token, pending)
			return nil, fmt.Errorf("failed to archive PDF: %w", err)
		}
	}

	sourceURL := "Manual Upload: " + pending.OriginalFilename

	report := &models.Report{
		ReportTitle:               data.ReportTitle,
		AuditOrganization:         data.AuditOrganization,
		PublicationYear:           data.PublicationYear,
		PublicationMonth:          data.PublicationMonth,
		PublicationDay:            data.PublicationDay,
		OverallConclusion:         data.OverallConclusion,
		LLMInsight:                &data.LLMInsight,
		PotentialObjectiveSummary: data.PotentialObjectiveSummary,
		OriginalReportSourceURL:   &sourceURL,
		State:                     data.State,
		AuditScope:                data.AuditScope,
		OriginalFilename:          pending.OriginalFilename,
		FileHash:                  pending.FileHash,
		PDFStoragePath:            storagePath,
		FileSizeBytes:             pending.FileSizeBytes,
		Status:                    models.ReportStatusCompleted,
	}

	findings := make([]models.Finding, 0, len(data.Findings))
	for _, text := range data.Findings {
		findings = append(findings, models.Finding{FindingText: text})
	}

	details := repository.ReportDetails{
		Objectives:      data.Objectives,
		Findings:        findings,
		Recommendations: data.Recommendations,
		Keywords:        keywords,
		AILog:           convertExtractionLog(pending.AILog),
	}

	if err := s.reports.CreateWithDetails(ctx, report, details); err != nil {
		s.pending.Put(token, pending)
		return nil, err
	}

	return report, nil
}

func validateUpload(filename string, content []byte) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return ErrNotPDF
	}
	if len(content) == 0 {
		return ErrEmptyUpload
	}
	return nil
}
