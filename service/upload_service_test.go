package service

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/scottlabbe/MedicaidReportAIMiner/extraction"
	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/pdfutil"
	"github.com/scottlabbe/MedicaidReportAIMiner/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUploadService(queue *fakeQueueStore, reports *fakeReportStore, opts ...UploadServiceOption) *UploadService {
	base := []UploadServiceOption{
		UploadWithQueueStore(queue),
		UploadWithReportStore(reports),
		UploadWithTextExtractor(func(data []byte) (string, error) {
			return "extracted report text", nil
		}),
		UploadWithExtractorFactory(func(provider string) (extraction.Extractor, error) {
			return &fakeExtractor{
				data: testReportData(),
				log:  &extraction.ExtractionLog{ModelName: "fake-model", ExtractionStatus: "SUCCESS"},
			}, nil
		}),
	}
	return NewUploadService(append(base, opts...)...)
}

func TestEnqueueUploadCreatesReviewItem(t *testing.T) {
	queue := newFakeQueueStore()
	svc := newTestUploadService(queue, newFakeReportStore())

	content := []byte("%PDF-1.4 upload")
	item, check, err := svc.EnqueueUpload(context.Background(), "audit.pdf", content, "gemini")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.False(t, check.IsDuplicate)

	hash := pdfutil.ComputeHash(content)
	assert.Equal(t, "upload://"+hash, item.URL)
	assert.Equal(t, models.SourceManualUpload, item.SourceDomain)
	assert.Equal(t, models.QueueStatusPendingReview, item.Status)
	assert.True(t, item.UserOverride)

	// Classification is synthetic: the operator vouched for the file
	assert.True(t, item.AIClassification.IsMedicaidAudit)
	assert.Equal(t, "manual", item.AIClassification.Provider)

	// The PDF bytes round-trip through the embedded hex payload
	upload := item.DocumentMetadata.Upload
	require.NotNil(t, upload)
	assert.Equal(t, "audit.pdf", upload.OriginalFilename)
	assert.Equal(t, hash, upload.FileHash)
	assert.Equal(t, "gemini", upload.AIProvider)
	decoded, err := hex.DecodeString(upload.FileContent)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestEnqueueUploadRejectsNonPDF(t *testing.T) {
	svc := newTestUploadService(newFakeQueueStore(), newFakeReportStore())

	_, _, err := svc.EnqueueUpload(context.Background(), "notes.txt", []byte("x"), "")
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestEnqueueUploadRejectsEmptyFile(t *testing.T) {
	svc := newTestUploadService(newFakeQueueStore(), newFakeReportStore())

	_, _, err := svc.EnqueueUpload(context.Background(), "empty.pdf", nil, "")
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestEnqueueUploadHashDuplicateIsHardStop(t *testing.T) {
	queue := newFakeQueueStore()
	reports := newFakeReportStore()

	content := []byte("%PDF-1.4 already ingested")
	reports.reports = append(reports.reports, &models.Report{
		ID:          uuid.New(),
		ReportTitle: "Existing",
		FileHash:    pdfutil.ComputeHash(content),
	})

	svc := newTestUploadService(queue, reports)

	_, check, err := svc.EnqueueUpload(context.Background(), "copy.pdf", content, "")
	assert.ErrorIs(t, err, ErrDuplicateReport)
	require.NotNil(t, check)
	assert.True(t, check.IsDuplicate)
	require.NotNil(t, check.ExistingReport)
	assert.Equal(t, "Existing", check.ExistingReport.Title)
	assert.Empty(t, queue.items)
}

func TestEnqueueUploadFilenameMatchIsSoftWarning(t *testing.T) {
	queue := newFakeQueueStore()
	reports := newFakeReportStore()

	reports.reports = append(reports.reports, &models.Report{
		ID:               uuid.New(),
		ReportTitle:      "Old Version",
		OriginalFilename: "audit.pdf",
		FileHash:         "different-hash",
	})

	svc := newTestUploadService(queue, reports)

	item, check, err := svc.EnqueueUpload(context.Background(), "audit.pdf", []byte("%PDF new content"), "")
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.False(t, check.IsDuplicate)
	assert.True(t, check.FilenameMatch)
	require.NotNil(t, check.ExistingByName)
	assert.Equal(t, "Old Version", check.ExistingByName.Title)
}

func TestEnqueueUploadSameFileTwiceBlocked(t *testing.T) {
	queue := newFakeQueueStore()
	svc := newTestUploadService(queue, newFakeReportStore())

	content := []byte("%PDF-1.4 once")
	_, _, err := svc.EnqueueUpload(context.Background(), "a.pdf", content, "")
	require.NoError(t, err)

	_, _, err = svc.EnqueueUpload(context.Background(), "a.pdf", content, "")
	assert.ErrorIs(t, err, ErrDuplicateUpload)
	assert.Len(t, queue.items, 1)
}

func TestExtractForReviewParksResult(t *testing.T) {
	svc := newTestUploadService(newFakeQueueStore(), newFakeReportStore())

	content := []byte("%PDF-1.4 review me")
	pending, check, err := svc.ExtractForReview(context.Background(), "review.pdf", content, "openai")
	require.NoError(t, err)
	assert.False(t, check.IsDuplicate)

	assert.Equal(t, pdfutil.ComputeHash(content), pending.Token)
	assert.Equal(t, "review.pdf", pending.OriginalFilename)
	assert.Equal(t, int64(len(content)), pending.FileSizeBytes)
	assert.Equal(t, "Audit of Medicaid Eligibility Determinations", pending.ReportData.ReportTitle)
	assert.Equal(t, []string{"eligibility", "documentation"}, pending.Keywords)

	// It is fetchable until claimed
	got, err := svc.PendingReview(pending.Token)
	require.NoError(t, err)
	assert.Equal(t, pending.Token, got.Token)
}

func TestSaveReviewedReportPersistsAndClaims(t *testing.T) {
	reports := newFakeReportStore()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := newTestUploadService(newFakeQueueStore(), reports, UploadWithStorage(store))

	content := []byte("%PDF-1.4 reviewed")
	pending, _, err := svc.ExtractForReview(context.Background(), "reviewed.pdf", content, "")
	require.NoError(t, err)

	// The operator edits the title before saving
	edited := *pending.ReportData
	edited.ReportTitle = "Corrected Title"

	report, err := svc.SaveReviewedReport(context.Background(), pending.Token, &edited, []string{"custom"})
	require.NoError(t, err)

	assert.Equal(t, "Corrected Title", report.ReportTitle)
	assert.Equal(t, pending.FileHash, report.FileHash)
	assert.Equal(t, "reviewed.pdf", report.OriginalFilename)
	assert.NotEmpty(t, report.PDFStoragePath)
	require.NotNil(t, report.OriginalReportSourceURL)
	assert.Equal(t, "Manual Upload: reviewed.pdf", *report.OriginalReportSourceURL)

	details := reports.details[report.ID]
	assert.Equal(t, []string{"custom"}, details.Keywords)
	require.NotNil(t, details.AILog)

	// The token was claimed; a second save fails
	_, err = svc.SaveReviewedReport(context.Background(), pending.Token, nil, nil)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestSaveReviewedReportWithoutEditsKeepsExtraction(t *testing.T) {
	reports := newFakeReportStore()
	svc := newTestUploadService(newFakeQueueStore(), reports)

	content := []byte("%PDF-1.4 as-is")
	pending, _, err := svc.ExtractForReview(context.Background(), "asis.pdf", content, "")
	require.NoError(t, err)

	report, err := svc.SaveReviewedReport(context.Background(), pending.Token, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, pending.ReportData.ReportTitle, report.ReportTitle)
	details := reports.details[report.ID]
	assert.Equal(t, pending.Keywords, details.Keywords)
}

func TestSaveReviewedReportUnknownToken(t *testing.T) {
	svc := newTestUploadService(newFakeQueueStore(), newFakeReportStore())

	_, err := svc.SaveReviewedReport(context.Background(), "nope", nil, nil)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestCloseKeepsParkedReviewsClaimable(t *testing.T) {
	svc := newTestUploadService(newFakeQueueStore(), newFakeReportStore())

	content := []byte("%PDF-1.4 still here")
	pending, _, err := svc.ExtractForReview(context.Background(), "still.pdf", content, "")
	require.NoError(t, err)

	// Close only stops the sweeper; repeating it is harmless
	svc.Close()
	svc.Close()

	got, err := svc.PendingReview(pending.Token)
	require.NoError(t, err)
	assert.Equal(t, pending.Token, got.Token)
}

func TestDiscardReviewDropsEntry(t *testing.T) {
	svc := newTestUploadService(newFakeQueueStore(), newFakeReportStore())

	content := []byte("%PDF-1.4 discard")
	pending, _, err := svc.ExtractForReview(context.Background(), "discard.pdf", content, "")
	require.NoError(t, err)

	svc.DiscardReview(pending.Token)

	_, err = svc.PendingReview(pending.Token)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}
