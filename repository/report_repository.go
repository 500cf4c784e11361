package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository handles database operations for reports and their
// child entities
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, report_title, audit_organization, publication_year, publication_month,
	publication_day, overall_conclusion, llm_insight, potential_objective_summary,
	original_report_source_url, state, audit_scope, original_filename, file_hash,
	pdf_storage_path, file_size_bytes, featured, status, created_at, updated_at`

func scanReport(row pgx.Row) (*models.Report, error) {
	report := &models.Report{}
	err := row.Scan(
		&report.ID,
		&report.ReportTitle,
		&report.AuditOrganization,
		&report.PublicationYear,
		&report.PublicationMonth,
		&report.PublicationDay,
		&report.OverallConclusion,
		&report.LLMInsight,
		&report.PotentialObjectiveSummary,
		&report.OriginalReportSourceURL,
		&report.State,
		&report.AuditScope,
		&report.OriginalFilename,
		&report.FileHash,
		&report.PDFStoragePath,
		&report.FileSizeBytes,
		&report.Featured,
		&report.Status,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// FindByHash looks up a report by its SHA-256 content hash. Returns nil
// when no report matches.
func (r *ReportRepository) FindByHash(ctx context.Context, fileHash string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE file_hash = $1`
	report, err := scanReport(r.db.QueryRow(ctx, query, fileHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

// FindByURL looks up a report by its original source URL. Returns nil when
// no report matches.
func (r *ReportRepository) FindByURL(ctx context.Context, url string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE original_report_source_url = $1`
	report, err := scanReport(r.db.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

// FindByFilename looks up a report by its original filename. Returns nil
// when no report matches. Used for the soft filename-collision warning.
func (r *ReportRepository) FindByFilename(ctx context.Context, filename string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE original_filename = $1 LIMIT 1`
	report, err := scanReport(r.db.QueryRow(ctx, query, filename))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

// GetByID retrieves a report with all child collections loaded
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	report, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := r.loadChildren(ctx, report); err != nil {
		return nil, err
	}

	return report, nil
}

func (r *ReportRepository) loadChildren(ctx context.Context, report *models.Report) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, report_id, objective_text FROM objectives WHERE report_id = $1 ORDER BY id`,
		report.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var o models.Objective
		if err := rows.Scan(&o.ID, &o.ReportID, &o.ObjectiveText); err != nil {
			return err
		}
		report.Objectives = append(report.Objectives, o)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx,
		`SELECT id, report_id, finding_text, financial_impact FROM findings WHERE report_id = $1 ORDER BY id`,
		report.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f models.Finding
		if err := rows.Scan(&f.ID, &f.ReportID, &f.FindingText, &f.FinancialImpact); err != nil {
			return err
		}
		report.Findings = append(report.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx,
		`SELECT id, report_id, recommendation_text, related_finding_id FROM recommendations WHERE report_id = $1 ORDER BY id`,
		report.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rec models.Recommendation
		if err := rows.Scan(&rec.ID, &rec.ReportID, &rec.RecommendationText, &rec.RelatedFindingID); err != nil {
			return err
		}
		report.Recommendations = append(report.Recommendations, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT k.id, k.keyword_text
		FROM keywords k
		JOIN report_keywords rk ON rk.keyword_id = k.id
		WHERE rk.report_id = $1
		ORDER BY k.keyword_text`,
		report.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k models.Keyword
		if err := rows.Scan(&k.ID, &k.KeywordText); err != nil {
			return err
		}
		report.Keywords = append(report.Keywords, k)
	}
	return rows.Err()
}

// ReportDetails bundles everything persisted alongside a new report
type ReportDetails struct {
	Objectives      []string
	Findings        []models.Finding
	Recommendations []string
	Keywords        []string
	AILog           *models.AIProcessingLog
}

// CreateWithDetails persists a report, its child entities, keyword
// associations and the AI processing log in a single transaction
func (r *ReportRepository) CreateWithDetails(ctx context.Context, report *models.Report, details ReportDetails) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO reports (
			report_title, audit_organization, publication_year, publication_month,
			publication_day, overall_conclusion, llm_insight, potential_objective_summary,
			original_report_source_url, state, audit_scope, original_filename,
			file_hash, pdf_storage_path, file_size_bytes, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		) RETURNING id, created_at, updated_at`

	err = tx.QueryRow(
		ctx, query,
		report.ReportTitle,
		report.AuditOrganization,
		report.PublicationYear,
		report.PublicationMonth,
		report.PublicationDay,
		report.OverallConclusion,
		report.LLMInsight,
		report.PotentialObjectiveSummary,
		report.OriginalReportSourceURL,
		report.State,
		report.AuditScope,
		report.OriginalFilename,
		report.FileHash,
		report.PDFStoragePath,
		report.FileSizeBytes,
		report.Status,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	for _, text := range details.Objectives {
		if _, err := tx.Exec(ctx,
			`INSERT INTO objectives (report_id, objective_text) VALUES ($1, $2)`,
			report.ID, text); err != nil {
			return fmt.Errorf("failed to insert objective: %w", err)
		}
	}

	for _, finding := range details.Findings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO findings (report_id, finding_text, financial_impact) VALUES ($1, $2, $3)`,
			report.ID, finding.FindingText, finding.FinancialImpact); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	for _, text := range details.Recommendations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recommendations (report_id, recommendation_text) VALUES ($1, $2)`,
			report.ID, text); err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}
	}

	for _, text := range details.Keywords {
		if err := associateKeyword(ctx, tx, report.ID, text); err != nil {
			return err
		}
	}

	if details.AILog != nil {
		log := details.AILog
		err := tx.QueryRow(ctx, `
			INSERT INTO ai_processing_logs (
				report_id, model_name, input_tokens, output_tokens, total_tokens,
				input_cost, output_cost, total_cost, processing_time_ms,
				extraction_status, error_details
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at`,
			report.ID,
			log.ModelName,
			log.InputTokens,
			log.OutputTokens,
			log.TotalTokens,
			log.InputCost,
			log.OutputCost,
			log.TotalCost,
			log.ProcessingTimeMs,
			log.ExtractionStatus,
			log.ErrorDetails,
		).Scan(&log.ID, &log.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert AI processing log: %w", err)
		}
		log.ReportID = report.ID
	}

	return tx.Commit(ctx)
}

// associateKeyword upserts the keyword by text and links it to the report.
// Keywords are global: two reports sharing a keyword share the row.
func associateKeyword(ctx context.Context, tx pgx.Tx, reportID uuid.UUID, text string) error {
	var keywordID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO keywords (keyword_text) VALUES ($1)
		ON CONFLICT (keyword_text) DO UPDATE SET keyword_text = EXCLUDED.keyword_text
		RETURNING id`,
		text).Scan(&keywordID)
	if err != nil {
		return fmt.Errorf("failed to upsert keyword: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO report_keywords (report_id, keyword_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		reportID, keywordID)
	if err != nil {
		return fmt.Errorf("failed to associate keyword: %w", err)
	}
	return nil
}

// List retrieves reports ordered newest first, paginated
func (r *ReportRepository) List(ctx context.Context, limit, offset int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// Count returns the total number of reports
func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count)
	return count, err
}

// ListFeatured retrieves all featured reports
func (r *ReportRepository) ListFeatured(ctx context.Context) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE featured ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ToggleFeatured flips the featured flag and returns the new value
func (r *ReportRepository) ToggleFeatured(ctx context.Context, id uuid.UUID) (bool, error) {
	var featured bool
	err := r.db.QueryRow(ctx, `
		UPDATE reports SET featured = NOT featured, updated_at = NOW()
		WHERE id = $1
		RETURNING featured`,
		id).Scan(&featured)
	return featured, err
}

// UpdateWithDetails replaces a report's editable fields and child
// collections in a single transaction
func (r *ReportRepository) UpdateWithDetails(ctx context.Context, report *models.Report, details ReportDetails) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE reports SET
			report_title = $2,
			audit_organization = $3,
			publication_year = $4,
			publication_month = $5,
			publication_day = $6,
			overall_conclusion = $7,
			llm_insight = $8,
			potential_objective_summary = $9,
			original_report_source_url = $10,
			state = $11,
			audit_scope = $12,
			updated_at = NOW()
		WHERE id = $1`

	_, err = tx.Exec(
		ctx, query,
		report.ID,
		report.ReportTitle,
		report.AuditOrganization,
		report.PublicationYear,
		report.PublicationMonth,
		report.PublicationDay,
		report.OverallConclusion,
		report.LLMInsight,
		report.PotentialObjectiveSummary,
		report.OriginalReportSourceURL,
		report.State,
		report.AuditScope,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	for _, table := range []string{"objectives", "findings", "recommendations"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE report_id = $1`, report.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM report_keywords WHERE report_id = $1`, report.ID); err != nil {
		return fmt.Errorf("failed to clear keyword associations: %w", err)
	}

	for _, text := range details.Objectives {
		if _, err := tx.Exec(ctx,
			`INSERT INTO objectives (report_id, objective_text) VALUES ($1, $2)`,
			report.ID, text); err != nil {
			return fmt.Errorf("failed to insert objective: %w", err)
		}
	}
	for _, finding := range details.Findings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO findings (report_id, finding_text, financial_impact) VALUES ($1, $2, $3)`,
			report.ID, finding.FindingText, finding.FinancialImpact); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}
	for _, text := range details.Recommendations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recommendations (report_id, recommendation_text) VALUES ($1, $2)`,
			report.ID, text); err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}
	}
	for _, text := range details.Keywords {
		if err := associateKeyword(ctx, tx, report.ID, text); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
