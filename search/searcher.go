package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Result is one normalized candidate document from a discovery run
type Result struct {
	Title        string                `json:"title"`
	URL          string                `json:"url"`
	Snippet      string                `json:"snippet"`
	Source       string                `json:"source"`
	MimeType     string                `json:"mime_type"`
	FileFormat   string                `json:"file_format"`
	FormattedURL string                `json:"formatted_url"`
	Metadata     models.SearchMetadata `json:"metadata"`
	ThumbnailURL string                `json:"thumbnail_url,omitempty"`
}

// defaultAuditSites are the federal and state audit publishers queried when
// MEDICAID_AUDIT_SITES is not set
var defaultAuditSites = []string{
	"oig.hhs.gov",
	"gao.gov",
	"cms.gov",
	"osc.ny.gov",
	"auditor.ca.gov",
	"sao.texas.gov",
	"auditorgeneral.pa.gov",
	"myfloridacfo.com",
	"ohioauditor.gov",
	"illinois.gov",
}

// excludeTerms knock out obvious non-audit document types by title match.
// The prefilter is recall-biased: false positives go on to AI
// classification, false negatives are lost.
var excludeTerms = []string{
	"manual", "guide", "form", "application", "faq",
	"enrollment", "provider directory", "bulletin", "newsletter",
}

// pageSize is the Custom Search API maximum per request
const pageSize = 10

var ErrMissingCredentials = errors.New("missing GOOGLE_API_KEY or GOOGLE_CSE_ID in environment")

// Searcher finds candidate Medicaid audit PDFs through the Google Custom
// Search JSON API
type Searcher struct {
	service *customsearch.Service
	apiKey  string
	cseID   string
	sites   []string
}

// NewSearcher builds a searcher from GOOGLE_API_KEY / GOOGLE_CSE_ID and the
// optional comma-separated MEDICAID_AUDIT_SITES override
func NewSearcher(ctx context.Context) (*Searcher, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	cseID := os.Getenv("GOOGLE_CSE_ID")
	if apiKey == "" || cseID == "" {
		return nil, ErrMissingCredentials
	}

	service, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to build custom search service: %w", err)
	}

	sites := defaultAuditSites
	if env := os.Getenv("MEDICAID_AUDIT_SITES"); env != "" {
		sites = nil
		for _, site := range strings.Split(env, ",") {
			if site = strings.TrimSpace(site); site != "" {
				sites = append(sites, site)
			}
		}
	}

	return &Searcher{
		service: service,
		apiKey:  apiKey,
		cseID:   cseID,
		sites:   sites,
	}, nil
}

// BuildQuery assembles the PDF-restricted site query for the configured
// audit publishers
func (s *Searcher) BuildQuery() string {
	operators := make([]string, 0, len(s.sites))
	for _, site := range s.sites {
		operators = append(operators, "site:"+site)
	}
	return fmt.Sprintf("filetype:pdf (%s) Medicaid audit", strings.Join(operators, " OR "))
}

// Search finds likely Medicaid audit PDFs published within the last daysBack
// days. A transport error aborts the whole run; no partial results.
func (s *Searcher) Search(ctx context.Context, daysBack, maxResults int) ([]Result, error) {
	dateRestrict := ""
	if daysBack > 0 {
		dateRestrict = fmt.Sprintf("d%d", daysBack)
	}
	return s.run(ctx, dateRestrict, "", maxResults)
}

// SearchDateRange finds likely Medicaid audit PDFs published between start
// and end (inclusive)
func (s *Searcher) SearchDateRange(ctx context.Context, start, end time.Time, maxResults int) ([]Result, error) {
	sort := fmt.Sprintf("date:r:%s:%s", start.Format("20060102"), end.Format("20060102"))
	return s.run(ctx, "", sort, maxResults)
}

func (s *Searcher) run(ctx context.Context, dateRestrict, sort string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	query := s.BuildQuery()
	log.Printf("Searching %d audit sites: %s", len(s.sites), query)

	var results []Result

	// The API serves at most 100 results, 10 per page
	for start := int64(1); start <= 100; start += pageSize {
		call := s.service.Cse.List().
			Context(ctx).
			Q(query).
			Cx(s.cseID).
			Start(start).
			Num(pageSize)
		if dateRestrict != "" {
			call = call.DateRestrict(dateRestrict)
		}
		if sort != "" {
			call = call.Sort(sort)
		}

		resp, err := call.Do()
		if err != nil {
			// The API key must never leak through error text
			return nil, fmt.Errorf("custom search request failed: %s", s.redact(err.Error()))
		}

		for _, item := range resp.Items {
			if !strings.HasSuffix(strings.ToLower(item.Link), ".pdf") {
				continue
			}
			result := normalizeItem(item)
			if IsLikelyAudit(result) {
				results = append(results, result)
			}
		}

		if len(results) >= maxResults {
			results = results[:maxResults]
			break
		}
		if len(resp.Items) < pageSize {
			break
		}
	}

	log.Printf("Found %d likely Medicaid audit PDFs", len(results))
	return results, nil
}

func (s *Searcher) redact(msg string) string {
	return strings.ReplaceAll(msg, s.apiKey, "[API_KEY_HIDDEN]")
}

// pagemap is the subset of the Custom Search pagemap payload we read
type pagemap struct {
	Metatags []map[string]string `json:"metatags"`
	Thumbs   []struct {
		Src string `json:"src"`
	} `json:"cse_thumbnail"`
}

func normalizeItem(item *customsearch.Result) Result {
	result := Result{
		Title:        item.Title,
		URL:          item.Link,
		Snippet:      item.Snippet,
		Source:       item.DisplayLink,
		MimeType:     item.Mime,
		FileFormat:   item.FileFormat,
		FormattedURL: item.FormattedUrl,
	}
	if result.Title == "" {
		result.Title = "Unknown"
	}

	if len(item.Pagemap) > 0 {
		var pm pagemap
		if err := json.Unmarshal(item.Pagemap, &pm); err == nil {
			if len(pm.Metatags) > 0 {
				tags := pm.Metatags[0]
				result.Metadata.Author = tags["author"]
				result.Metadata.CreationDate = tags["creationdate"]
				result.Metadata.Subject = tags["subject"]
				result.Metadata.Creator = tags["creator"]
			}
			if len(pm.Thumbs) > 0 {
				result.ThumbnailURL = pm.Thumbs[0].Src
			}
		}
	}
	result.Metadata.MimeType = result.MimeType
	result.Metadata.ThumbnailURL = result.ThumbnailURL

	return result
}

// IsLikelyAudit is the cheap pre-filter applied before AI classification.
// The document must mention Medicaid in its title, URL or snippet, and its
// title must not match a known non-audit document type.
func IsLikelyAudit(result Result) bool {
	title := strings.ToLower(result.Title)
	url := strings.ToLower(result.URL)
	snippet := strings.ToLower(result.Snippet)

	if !strings.Contains(title, "medicaid") &&
		!strings.Contains(url, "medicaid") &&
		!strings.Contains(snippet, "medicaid") {
		return false
	}

	for _, term := range excludeTerms {
		if strings.Contains(title, term) {
			return false
		}
	}

	return true
}
