package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"
	"github.com/scottlabbe/MedicaidReportAIMiner/repository"
	"github.com/scottlabbe/MedicaidReportAIMiner/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ScrapeHandler handles HTTP requests for discovery and the review queue
type ScrapeHandler struct {
	searchService *service.SearchService
	historyRepo   *repository.SearchHistoryRepository
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(searchService *service.SearchService, historyRepo *repository.SearchHistoryRepository) *ScrapeHandler {
	return &ScrapeHandler{
		searchService: searchService,
		historyRepo:   historyRepo,
	}
}

// SearchHistory handles GET /api/scrape/history
func (h *ScrapeHandler) SearchHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.historyRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "HISTORY_FETCH_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"history": entries,
			"count":   len(entries),
		},
	})
}

// ExecuteSearchRequest represents the request body for running a search.
// Either DaysBack or the StartDate/EndDate pair drives the date filter.
type ExecuteSearchRequest struct {
	DaysBack   int    `json:"days_back"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	MaxResults int    `json:"max_results"`
}

// ExecuteSearch handles POST /api/scrape/search
func (h *ScrapeHandler) ExecuteSearch(c *gin.Context) {
	var req ExecuteSearchRequest
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

	var results []service.ClassifiedResult
	var err error

	if req.StartDate != "" && req.EndDate != "" {
		var start, end time.Time
		start, err = time.Parse("2006-01-02", req.StartDate)
		if err == nil {
			end, err = time.Parse("2006-01-02", req.EndDate)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_DATE",
					"message": "Dates must be in YYYY-MM-DD format",
				},
			})
			return
		}
		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_DATE_RANGE",
					"message": "end_date must not be before start_date",
				},
			})
			return
		}
		results, err = h.searchService.SearchAndClassifyDateRange(c.Request.Context(), start, end, req.MaxResults)
	} else {
		daysBack := req.DaysBack
		if daysBack <= 0 {
			daysBack = 30
		}
		results, err = h.searchService.SearchAndClassify(c.Request.Context(), daysBack, req.MaxResults)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEARCH_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"results": results,
			"count":   len(results),
		},
	})
}

// AddToQueueRequest represents the request body for enqueueing results
type AddToQueueRequest struct {
	Items         []service.QueueCandidate `json:"items" binding:"required"`
	UserOverrides map[string]bool          `json:"user_overrides"`
}

// AddToQueue handles POST /api/scrape/queue
func (h *ScrapeHandler) AddToQueue(c *gin.Context) {
	var req AddToQueueRequest
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

	added, err := h.searchService.AddToQueue(c.Request.Context(), req.Items, req.UserOverrides)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "QUEUE_ADD_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"added_count": added,
		},
	})
}

// QueueStatus handles GET /api/scrape/queue
func (h *ScrapeHandler) QueueStatus(c *gin.Context) {
	status := models.QueueStatus(c.Query("status"))

	items, err := h.searchService.QueueByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "QUEUE_FETCH_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items": items,
			"count": len(items),
		},
	})
}

// PendingReview handles GET /api/scrape/review
func (h *ScrapeHandler) PendingReview(c *gin.Context) {
	items, err := h.searchService.PendingReview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "QUEUE_FETCH_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items": items,
			"count": len(items),
		},
	})
}

// ItemIDsRequest carries the ids for a batch approve or skip
type ItemIDsRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required"`
}

func parseItemIDs(raw []string) ([]uuid.UUID, string) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, s
		}
		ids = append(ids, id)
	}
	return ids, ""
}

// Approve handles POST /api/scrape/queue/approve
func (h *ScrapeHandler) Approve(c *gin.Context) {
	var req ItemIDsRequest
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

	ids, bad := parseItemIDs(req.ItemIDs)
	if bad != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ITEM_ID",
				"message": "Invalid item id: " + bad,
			},
		})
		return
	}

	approved, err := h.searchService.Approve(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "APPROVE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"approved_count": approved,
		},
	})
}

// Skip handles POST /api/scrape/queue/skip
func (h *ScrapeHandler) Skip(c *gin.Context) {
	var req ItemIDsRequest
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

	ids, bad := parseItemIDs(req.ItemIDs)
	if bad != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ITEM_ID",
				"message": "Invalid item id: " + bad,
			},
		})
		return
	}

	skipped, err := h.searchService.Skip(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SKIP_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"skipped_count": skipped,
		},
	})
}

// CheckDuplicate handles GET /api/scrape/duplicate
func (h *ScrapeHandler) CheckDuplicate(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_URL",
				"message": "url query parameter is required",
			},
		})
		return
	}

	isDup, info, err := h.searchService.CheckDuplicate(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DUPLICATE_CHECK_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"is_duplicate":     isDup,
			"duplicate_report": info,
		},
	})
}
