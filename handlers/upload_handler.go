package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/scottlabbe/MedicaidReportAIMiner/extraction"
	"github.com/scottlabbe/MedicaidReportAIMiner/service"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes bounds one uploaded PDF (50 MB)
const maxUploadBytes = 50 << 20

var errFileTooLarge = errors.New("file exceeds the 50 MB upload limit")

// UploadHandler handles HTTP requests for manual PDF uploads and the
// interactive review flow
type UploadHandler struct {
	uploadService *service.UploadService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// uploadFileResult is the per-file outcome of a batch upload
type uploadFileResult struct {
	Filename string      `json:"filename"`
	Status   string      `json:"status"` // queued, duplicate, warning, error
	Message  string      `json:"message,omitempty"`
	QueueID  string      `json:"queue_id,omitempty"`
	Check    interface{} `json:"duplicate_check,omitempty"`
}

// Upload handles POST /api/upload. Each PDF in the multipart "files" field
// is queued for background processing; duplicates and failures are reported
// per file without failing the batch.
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Expected multipart form with files",
			},
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_FILES",
				"message": "No files provided",
			},
		})
		return
	}

	aiProvider := c.PostForm("ai_provider")

	results := make([]uploadFileResult, 0, len(files))
	queued := 0

	for _, fileHeader := range files {
		result := uploadFileResult{Filename: fileHeader.Filename}

		content, err := readMultipartFile(fileHeader)
		if err != nil {
			result.Status = "error"
			result.Message = err.Error()
			results = append(results, result)
			continue
		}

		item, check, err := h.uploadService.EnqueueUpload(c.Request.Context(), fileHeader.Filename, content, aiProvider)
		switch {
		case errors.Is(err, service.ErrDuplicateReport):
			result.Status = "duplicate"
			result.Message = "A report with identical content already exists"
			result.Check = check
		case errors.Is(err, service.ErrDuplicateUpload):
			result.Status = "duplicate"
			result.Message = "This file is already queued"
		case err != nil:
			result.Status = "error"
			result.Message = err.Error()
		default:
			result.Status = "queued"
			result.QueueID = item.ID.String()
			queued++
			if check != nil && check.FilenameMatch {
				result.Status = "warning"
				result.Message = "A report with this filename already exists; queued anyway"
				result.Check = check
			}
		}

		results = append(results, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"queued_count": queued,
			"files":        results,
		},
	})
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file, maxUploadBytes)
}

// readLimited reads at most limit bytes and rejects oversized input
// outright. Truncating instead would hash and queue bytes that never
// existed as a document.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, errFileTooLarge
	}
	return content, nil
}

// ExtractForReview handles POST /api/upload/review: one PDF is extracted
// immediately and parked for interactive review
func (h *UploadHandler) ExtractForReview(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_FILE",
				"message": "Expected a single file in the 'file' field",
			},
		})
		return
	}

	content, err := readMultipartFile(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "READ_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	pending, check, err := h.uploadService.ExtractForReview(c.Request.Context(), fileHeader.Filename, content, c.PostForm("ai_provider"))
	if errors.Is(err, service.ErrDuplicateReport) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DUPLICATE_REPORT",
				"message": err.Error(),
			},
			"data": gin.H{
				"duplicate_check": check,
			},
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EXTRACTION_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token":           pending.Token,
			"filename":        pending.OriginalFilename,
			"file_hash":       pending.FileHash,
			"file_size_bytes": pending.FileSizeBytes,
			"report_data":     pending.ReportData,
			"keywords":        pending.Keywords,
			"duplicate_check": check,
		},
	})
}

// GetReview handles GET /api/review/:token
func (h *UploadHandler) GetReview(c *gin.Context) {
	pending, err := h.uploadService.PendingReview(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REVIEW_NOT_FOUND",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token":           pending.Token,
			"filename":        pending.OriginalFilename,
			"file_hash":       pending.FileHash,
			"file_size_bytes": pending.FileSizeBytes,
			"report_data":     pending.ReportData,
			"keywords":        pending.Keywords,
		},
	})
}

// SaveReviewRequest carries the operator's edits to a pending extraction.
// A nil report_data keeps the extraction unchanged.
type SaveReviewRequest struct {
	ReportData *extraction.ReportData `json:"report_data"`
	Keywords   []string               `json:"keywords"`
}

// SaveReview handles POST /api/review/:token
func (h *UploadHandler) SaveReview(c *gin.Context) {
	var req SaveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	report, err := h.uploadService.SaveReviewedReport(c.Request.Context(), c.Param("token"), req.ReportData, req.Keywords)
	if errors.Is(err, service.ErrReviewNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REVIEW_NOT_FOUND",
				"message": err.Error(),
			},
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SAVE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"report": report,
		},
	})
}

// DiscardReview handles DELETE /api/review/:token
func (h *UploadHandler) DiscardReview(c *gin.Context) {
	h.uploadService.DiscardReview(c.Param("token"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"discarded": true,
		},
	})
}
