package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/extraction"
	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/pdfutil"
	"github.com/scottlabbe/MedicaidReportAIMiner/repository"
	"github.com/scottlabbe/MedicaidReportAIMiner/storage"
)

// downloadTimeout bounds one PDF fetch
const downloadTimeout = 30 * time.Second

// QueueProcessor drains the pending queue in the background. At most one
// processing loop runs per process; Start while a loop is active is a no-op.
type QueueProcessor struct {
	queue        QueueStore
	reports      ReportStore
	store        storage.Storage
	httpClient   *http.Client
	newExtractor func(provider string) (extraction.Extractor, error)
	extractText  func(data []byte) (string, error)

	running sync.Mutex
}

// QueueProcessorOption is a functional option for QueueProcessor
type QueueProcessorOption func(*QueueProcessor)

// ProcessorWithQueueStore sets the queue store
func ProcessorWithQueueStore(store QueueStore) QueueProcessorOption {
	return func(p *QueueProcessor) {
		p.queue = store
	}
}

// ProcessorWithReportStore sets the report store
func ProcessorWithReportStore(store ReportStore) QueueProcessorOption {
	return func(p *QueueProcessor) {
		p.reports = store
	}
}

// ProcessorWithStorage sets the PDF archive
func ProcessorWithStorage(store storage.Storage) QueueProcessorOption {
	return func(p *QueueProcessor) {
		p.store = store
	}
}

// ProcessorWithHTTPClient sets the download client
func ProcessorWithHTTPClient(client *http.Client) QueueProcessorOption {
	return func(p *QueueProcessor) {
		p.httpClient = client
	}
}

// ProcessorWithExtractorFactory sets how extractors are built per provider
func ProcessorWithExtractorFactory(factory func(provider string) (extraction.Extractor, error)) QueueProcessorOption {
	return func(p *QueueProcessor) {
		p.newExtractor = factory
	}
}

// ProcessorWithTextExtractor sets the PDF text extraction function
func ProcessorWithTextExtractor(extract func(data []byte) (string, error)) QueueProcessorOption {
	return func(p *QueueProcessor) {
		p.extractText = extract
	}
}

// NewQueueProcessor creates a new queue processor
func NewQueueProcessor(opts ...QueueProcessorOption) *QueueProcessor {
	p := &QueueProcessor{
		httpClient:   &http.Client{Timeout: downloadTimeout},
		newExtractor: extraction.New,
		extractText:  pdfutil.ExtractText,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the processing loop in a goroutine. If a loop is already
// running this is a no-op, so callers can Start unconditionally after each
// approval batch.
func (p *QueueProcessor) Start() {
	if !p.running.TryLock() {
		return
	}
	go func() {
		defer p.running.Unlock()
		p.ProcessQueue(context.Background())
	}()
}

// ProcessQueue works through pending items oldest first until the queue
// is drained
func (p *QueueProcessor) ProcessQueue(ctx context.Context) {
	for {
		item, err := p.queue.NextPending(ctx)
		if err != nil {
			log.Printf("Queue processor: failed to fetch next item: %v", err)
			return
		}
		if item == nil {
			return
		}

		p.processItem(ctx, item)
	}
}

// processItem runs one attempt on one item. Whatever the outcome, the
// attempt's result (status, retries, error, report link) and completed_at
// are persisted on the way out.
func (p *QueueProcessor) processItem(ctx context.Context, item *models.QueueItem) {
	defer func() {
		now := time.Now().UTC()
		item.CompletedAt = &now
		if err := p.queue.FinishAttempt(ctx, item); err != nil {
			log.Printf("Queue processor: failed to persist outcome for %s: %v", item.ID, err)
		}
	}()

	pdfContent, fileHash, err := p.obtainContent(ctx, item)
	if err != nil {
		p.recordFailure(item, err)
		return
	}

	existing, err := p.reports.FindByHash(ctx, fileHash)
	if err != nil {
		p.recordFailure(item, err)
		return
	}
	if existing != nil {
		// Same file already ingested; link and stop. Duplicate is a
		// success outcome, not a failure.
		item.Status = models.QueueStatusDuplicate
		item.ReportID = &existing.ID
		check := &models.DuplicateCheck{
			QueueItemID:      item.ID,
			ExistingReportID: existing.ID,
			SimilarityScore:  1.0,
		}
		if err := p.queue.CreateDuplicateCheck(ctx, check); err != nil {
			log.Printf("Queue processor: failed to record duplicate check for %s: %v", item.ID, err)
		}
		return
	}

	report, err := p.createReport(ctx, item, pdfContent, fileHash)
	if err != nil {
		p.recordFailure(item, err)
		return
	}

	item.Status = models.QueueStatusCompleted
	item.ReportID = &report.ID
	item.ErrorMessage = nil
	log.Printf("Queue processor: completed %s -> report %s", item.ID, report.ID)
}

// obtainContent gets the PDF bytes: decoded from metadata for uploads,
// downloaded for discovered URLs. The intermediate status is committed
// before any slow work so operators see progress.
func (p *QueueProcessor) obtainContent(ctx context.Context, item *models.QueueItem) ([]byte, string, error) {
	if item.IsUpload() {
		if err := p.queue.UpdateStatus(ctx, item.ID, models.QueueStatusProcessing); err != nil {
			return nil, "", err
		}

		upload := item.DocumentMetadata.Upload
		if upload == nil || upload.FileContent == "" {
			return nil, "", errors.New("no file content found in uploaded item metadata")
		}
		content, err := hex.DecodeString(upload.FileContent)
		if err != nil {
			return nil, "", fmt.Errorf("corrupt embedded file content: %w", err)
		}

		fileHash := upload.FileHash
		if fileHash == "" {
			fileHash = pdfutil.ComputeHash(content)
		}
		return content, fileHash, nil
	}

	if err := p.queue.UpdateStatus(ctx, item.ID, models.QueueStatusDownloading); err != nil {
		return nil, "", err
	}

	content, err := p.download(ctx, item.URL)
	if err != nil {
		return nil, "", err
	}
	return content, pdfutil.ComputeHash(content), nil
}

func (p *QueueProcessor) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download: %w", err)
	}
	return content, nil
}

// createReport runs the full extraction pipeline and persists the report
// with all child entities in one transaction
func (p *QueueProcessor) createReport(ctx context.Context, item *models.QueueItem, pdfContent []byte, fileHash string) (*models.Report, error) {
	text, err := p.extractText(pdfContent)
	if err != nil {
		return nil, err
	}

	provider := "openai"
	if item.DocumentMetadata.Upload != nil && item.DocumentMetadata.Upload.AIProvider != "" {
		provider = item.DocumentMetadata.Upload.AIProvider
	}
	extractor, err := p.newExtractor(provider)
	if err != nil {
		return nil, err
	}

	data, aiLog, err := extractor.ExtractReportData(ctx, text)
	if err != nil {
		return nil, err
	}

	var originalFilename, sourceURL string
	if item.IsUpload() {
		originalFilename = item.Title
		if item.DocumentMetadata.Upload.OriginalFilename != "" {
			originalFilename = item.DocumentMetadata.Upload.OriginalFilename
		}
		sourceURL = "Manual Upload: " + originalFilename
	} else {
		originalFilename = item.Title + ".pdf"
		sourceURL = item.URL
	}

	storagePath := ""
	if p.store != nil {
		storagePath, err = p.store.Archive(ctx, fileHash, bytes.NewReader(pdfContent))
		if err != nil {
			return nil, fmt.Errorf("failed to archive PDF: %w", err)
		}
	}

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
		OriginalFilename:          originalFilename,
		FileHash:                  fileHash,
		PDFStoragePath:            storagePath,
		FileSizeBytes:             int64(len(pdfContent)),
		Status:                    models.ReportStatusCompleted,
	}

	keywords := pdfutil.ProcessKeywords(pdfutil.MetadataKeywords(pdfContent), data.ExtractedKeywords)

	findings := make([]models.Finding, 0, len(data.Findings))
	for _, text := range data.Findings {
		findings = append(findings, models.Finding{FindingText: text})
	}

	details := repository.ReportDetails{
		Objectives:      data.Objectives,
		Findings:        findings,
		Recommendations: data.Recommendations,
		Keywords:        keywords,
		AILog:           convertExtractionLog(aiLog),
	}

	if err := p.reports.CreateWithDetails(ctx, report, details); err != nil {
		return nil, err
	}
	return report, nil
}

// recordFailure marks the attempt failed and re-arms the item for another
// try while retries remain. failed is terminal only once the cap is hit.
func (p *QueueProcessor) recordFailure(item *models.QueueItem, err error) {
	log.Printf("Queue processor: item %s attempt failed: %v", item.ID, err)

	msg := err.Error()
	item.ErrorMessage = &msg
	item.RetryCount++

	if item.RetryCount < models.MaxQueueRetries {
		item.Status = models.QueueStatusPending
	} else {
		item.Status = models.QueueStatusFailed
	}
}

func convertExtractionLog(aiLog *extraction.ExtractionLog) *models.AIProcessingLog {
	if aiLog == nil {
		return nil
	}
	return &models.AIProcessingLog{
		ModelName:        aiLog.ModelName,
		InputTokens:      aiLog.InputTokens,
		OutputTokens:     aiLog.OutputTokens,
		TotalTokens:      aiLog.TotalTokens,
		InputCost:        aiLog.InputCost,
		OutputCost:       aiLog.OutputCost,
		TotalCost:        aiLog.TotalCost,
		ProcessingTimeMs: aiLog.ProcessingTimeMs,
		ExtractionStatus: aiLog.ExtractionStatus,
		ErrorDetails:     aiLog.ErrorDetails,
	}
}
