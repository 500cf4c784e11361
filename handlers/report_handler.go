package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/repository"
	"github.com/scottlabbe/MedicaidReportAIMiner/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportRepo is the slice of the report repository the handler needs
type ReportRepo interface {
	List(ctx context.Context, limit, offset int) ([]*models.Report, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	UpdateWithDetails(ctx context.Context, report *models.Report, details repository.ReportDetails) error
	ToggleFeatured(ctx context.Context, id uuid.UUID) (bool, error)
	ListFeatured(ctx context.Context) ([]*models.Report, error)
}

// ReportHandler handles HTTP requests for persisted reports. Reports CRUD
// is a thin adapter over the repository; the PDF route streams from the
// archive.
type ReportHandler struct {
	reportRepo ReportRepo
	store      storage.Storage
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportRepo ReportRepo, store storage.Storage) *ReportHandler {
	return &ReportHandler{reportRepo: reportRepo, store: store}
}

// ListReports handles GET /api/reports
func (h *ReportHandler) ListReports(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	reports, err := h.reportRepo.List(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	total, err := h.reportRepo.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"reports":  reports,
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	})
}

// GetReport handles GET /api/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REPORT_ID",
				"message": "Invalid report id format",
			},
		})
		return
	}

	report, err := h.reportRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REPORT_NOT_FOUND",
				"message": "Report not found",
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

// UpdateReportRequest carries the editable report fields and replacement
// child collections
type UpdateReportRequest struct {
	ReportTitle               string           `json:"report_title" binding:"required"`
	AuditOrganization         string           `json:"audit_organization" binding:"required"`
	PublicationYear           int              `json:"publication_year" binding:"required"`
	PublicationMonth          int              `json:"publication_month" binding:"required"`
	PublicationDay            *int             `json:"publication_day"`
	OverallConclusion         *string          `json:"overall_conclusion"`
	LLMInsight                *string          `json:"llm_insight"`
	PotentialObjectiveSummary *string          `json:"potential_objective_summary"`
	OriginalReportSourceURL   *string          `json:"original_report_source_url"`
	State                     string           `json:"state" binding:"required"`
	AuditScope                string           `json:"audit_scope" binding:"required"`
	Objectives                []string         `json:"objectives"`
	Findings                  []models.Finding `json:"findings"`
	Recommendations           []string         `json:"recommendations"`
	Keywords                  []string         `json:"keywords"`
}

// UpdateReport handles PUT /api/reports/:id
func (h *ReportHandler) UpdateReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REPORT_ID",
				"message": "Invalid report id format",
			},
		})
		return
	}

	var req UpdateReportRequest
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

	report := &models.Report{
		ID:                        id,
		ReportTitle:               req.ReportTitle,
		AuditOrganization:         req.AuditOrganization,
		PublicationYear:           req.PublicationYear,
		PublicationMonth:          req.PublicationMonth,
		PublicationDay:            req.PublicationDay,
		OverallConclusion:         req.OverallConclusion,
		LLMInsight:                req.LLMInsight,
		PotentialObjectiveSummary: req.PotentialObjectiveSummary,
		OriginalReportSourceURL:   req.OriginalReportSourceURL,
		State:                     req.State,
		AuditScope:                req.AuditScope,
	}

	details := repository.ReportDetails{
		Objectives:      req.Objectives,
		Findings:        req.Findings,
		Recommendations: req.Recommendations,
		Keywords:        req.Keywords,
	}

	if err := h.reportRepo.UpdateWithDetails(c.Request.Context(), report, details); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPDATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"report_id": id,
		},
	})
}

// ToggleFeatured handles POST /api/reports/:id/featured
func (h *ReportHandler) ToggleFeatured(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REPORT_ID",
				"message": "Invalid report id format",
			},
		})
		return
	}

	featured, err := h.reportRepo.ToggleFeatured(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "TOGGLE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"report_id": id,
			"featured":  featured,
		},
	})
}

// ServePDF handles GET /api/reports/:id/pdf, streaming the archived PDF
func (h *ReportHandler) ServePDF(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REPORT_ID",
				"message": "Invalid report id format",
			},
		})
		return
	}

	report, err := h.reportRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REPORT_NOT_FOUND",
				"message": "Report not found",
			},
		})
		return
	}

	if report.PDFStoragePath == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PDF_NOT_ARCHIVED",
				"message": "No archived PDF for this report",
			},
		})
		return
	}

	file, err := h.store.Retrieve(c.Request.Context(), report.PDFStoragePath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PDF_NOT_FOUND",
				"message": "Archived PDF could not be opened",
			},
		})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PDF_READ_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+report.OriginalFilename+`"`)
	c.Data(http.StatusOK, "application/pdf", content)
}

// FeaturedReports handles GET /api/reports/featured
func (h *ReportHandler) FeaturedReports(c *gin.Context) {
	reports, err := h.reportRepo.ListFeatured(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"reports": reports,
			"count":   len(reports),
		},
	})
}
