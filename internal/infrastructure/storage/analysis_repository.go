package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var (
	allLayerStatuses = []domain.LayerStatus{
		domain.LayerPending,
		domain.LayerProcessing,
		domain.LayerCompleted,
		domain.LayerFailed,
	}
	openLayerStatuses = []string{string(domain.LayerPending), string(domain.LayerProcessing)}
)

// layerSources lists the statuses a layer may leave to reach next.
func layerSources(next domain.LayerStatus) []string {
	out := make([]string, 0, len(allLayerStatuses))
	for _, s := range allLayerStatuses {
		if s.CanTransitionTo(next) {
			out = append(out, string(s))
		}
	}
	return out
}

// AnalysisRepository persists analyses, their layers and violations through GORM.
type AnalysisRepository struct {
	db *gorm.DB
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

// NewAnalysisRepository wires a gorm.DB implementation.
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// CreateAnalysis inserts the aggregate and its layers in one transaction.
// When analysis.Layers is empty the three initial layers are created.
func (r *AnalysisRepository) CreateAnalysis(ctx context.Context, analysis *domain.Analysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.NewString()
	}
	if analysis.OverallStatus == "" {
		analysis.OverallStatus = domain.OverallPending
	}
	if len(analysis.Layers) == 0 {
		analysis.Layers = domain.InitialLayers(analysis.ID)
	}

	selected, err := encodeJSON(analysis.SelectedGuidelines)
	if err != nil {
		return err
	}
	rec := analysisRecord{
		ID:                 analysis.ID,
		CampaignID:         analysis.CampaignID,
		ComplianceCode:     analysis.ComplianceCode,
		SelectedGuidelines: selected,
		OverallScore:       analysis.OverallScore,
		OverallStatus:      string(analysis.OverallStatus),
	}

	layers := make([]layerRecord, 0, len(analysis.Layers))
	for i := range analysis.Layers {
		l := &analysis.Layers[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.AnalysisID = analysis.ID
		layers = append(layers, layerRecord{
			ID:          l.ID,
			AnalysisID:  analysis.ID,
			LayerNumber: l.Number,
			LayerName:   l.Name,
			Status:      string(l.Status),
			Score:       l.Score,
		})
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
		if err := tx.Create(&layers).Error; err != nil {
			return fmt.Errorf("insert layers: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	analysis.CreatedAt = rec.CreatedAt
	analysis.UpdatedAt = rec.UpdatedAt
	for i := range analysis.Layers {
		analysis.Layers[i].CreatedAt = layers[i].CreatedAt
		analysis.Layers[i].UpdatedAt = layers[i].UpdatedAt
	}
	return nil
}

// GetAnalysis loads the aggregate with layers ordered by number and violations by layer.
func (r *AnalysisRepository) GetAnalysis(ctx context.Context, id string) (domain.Analysis, error) {
	db := r.db.WithContext(ctx)

	var rec analysisRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Analysis{}, fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
		}
		return domain.Analysis{}, fmt.Errorf("get analysis: %w", err)
	}
	analysis, err := rec.toDomain()
	if err != nil {
		return domain.Analysis{}, err
	}

	var layers []layerRecord
	if err := db.Where("analysis_id = ?", id).Order("layer_number ASC").Find(&layers).Error; err != nil {
		return domain.Analysis{}, fmt.Errorf("get layers: %w", err)
	}
	analysis.Layers = make([]domain.VerificationLayer, 0, len(layers))
	for _, l := range layers {
		layer, err := l.toDomain()
		if err != nil {
			return domain.Analysis{}, err
		}
		analysis.Layers = append(analysis.Layers, layer)
	}

	var violations []violationRecord
	if err := db.Where("analysis_id = ?", id).Order("layer_number ASC").Order("position ASC").Find(&violations).Error; err != nil {
		return domain.Analysis{}, fmt.Errorf("get violations: %w", err)
	}
	analysis.Violations = make([]domain.Violation, 0, len(violations))
	for _, v := range violations {
		analysis.Violations = append(analysis.Violations, v.toDomain())
	}

	return analysis, nil
}

type summaryRow struct {
	ID             string
	ComplianceCode string
	OverallScore   int
	OverallStatus  string
	CreatedAt      time.Time
	CampaignID     string
	CampaignTitle  string
	CampaignType   string
	CampaignStatus string
}

// ListAnalyses returns analyses joined with their campaign, newest first.
func (r *AnalysisRepository) ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisSummary, error) {
	query, args, err := listAnalysesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var rows []summaryRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	out := make([]domain.AnalysisSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.AnalysisSummary{
			ID:             row.ID,
			ComplianceCode: row.ComplianceCode,
			OverallScore:   row.OverallScore,
			OverallStatus:  domain.OverallStatus(row.OverallStatus),
			CreatedAt:      row.CreatedAt,
			CampaignID:     row.CampaignID,
			CampaignTitle:  row.CampaignTitle,
			CampaignType:   row.CampaignType,
			CampaignStatus: domain.CampaignStatus(row.CampaignStatus),
		})
	}
	return out, nil
}

// listAnalysesQuery uses '?' placeholders; GORM rebinds them for the active dialect.
func listAnalysesQuery(filter domain.AnalysisFilter) sq.SelectBuilder {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := sq.Select(
		"a.id AS id",
		"a.compliance_code AS compliance_code",
		"a.overall_score AS overall_score",
		"a.overall_status AS overall_status",
		"a.created_at AS created_at",
		"c.id AS campaign_id",
		"c.title AS campaign_title",
		"c.campaign_type AS campaign_type",
		"c.analysis_status AS campaign_status",
	).
		From("analysis_results a").
		Join("campaign_documents c ON c.id = a.campaign_id").
		OrderBy("a.created_at DESC", "a.id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Question)

	if filter.Status != "" {
		q = q.Where(sq.Eq{"a.overall_status": string(filter.Status)})
	}
	if filter.CampaignType != "" {
		q = q.Where(sq.Eq{"c.campaign_type": filter.CampaignType})
	}
	return q
}

// StartLayer moves a pending layer to processing.
func (r *AnalysisRepository) StartLayer(ctx context.Context, analysisID string, number int, details map[string]any) error {
	encoded, err := encodeJSON(details)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateLayer(tx, analysisID, number, domain.LayerProcessing, map[string]any{
			"status":             string(domain.LayerProcessing),
			"processing_details": encoded,
		})
	})
}

// FinishLayer writes the terminal outcome of a layer and its violations atomically.
func (r *AnalysisRepository) FinishLayer(ctx context.Context, analysisID string, number int, outcome ports.LayerOutcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("finish layer %d with %s: %w", number, outcome.Status, domain.ErrInvalidTransition)
	}

	updates := map[string]any{"status": string(outcome.Status)}
	details, err := encodeJSON(outcome.Details)
	if err != nil {
		return err
	}
	updates["processing_details"] = details

	if ev := outcome.Evaluation; ev != nil {
		updates["score"] = ev.Score
		for col, v := range map[string]any{
			"issues":          ev.Issues,
			"warnings":        ev.Warnings,
			"recommendations": ev.Recommendations,
		} {
			encoded, err := encodeJSON(v)
			if err != nil {
				return err
			}
			updates[col] = encoded
		}
	}

	violations := make([]violationRecord, 0, len(outcome.Violations))
	for i, v := range outcome.Violations {
		id := v.ID
		if id == "" {
			id = uuid.NewString()
		}
		violations = append(violations, violationRecord{
			ID:                 id,
			AnalysisID:         analysisID,
			LayerNumber:        number,
			Position:           i,
			ViolationType:      v.ViolationType,
			Severity:           string(v.Severity),
			Description:        v.Description,
			SuggestedFix:       v.SuggestedFix,
			GuidelineReference: v.GuidelineReference,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateLayer(tx, analysisID, number, outcome.Status, updates); err != nil {
			return err
		}
		if len(violations) == 0 {
			return nil
		}
		if err := tx.Create(&violations).Error; err != nil {
			return fmt.Errorf("insert violations: %w", err)
		}
		return nil
	})
}

// AnnotateLayer replaces the processing details of a layer that has not reached a terminal status.
func (r *AnalysisRepository) AnnotateLayer(ctx context.Context, analysisID string, number int, details map[string]any) error {
	encoded, err := encodeJSON(details)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&layerRecord{}).
		Where("analysis_id = ? AND layer_number = ? AND status IN ?", analysisID, number, openLayerStatuses).
		Update("processing_details", encoded)
	if res.Error != nil {
		return fmt.Errorf("annotate layer %d: %w", number, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("annotate layer %d of %s: %w", number, analysisID, domain.ErrInvalidTransition)
	}
	return nil
}

// FailOpenLayers marks every pending or processing layer failed and records reason.
func (r *AnalysisRepository) FailOpenLayers(ctx context.Context, analysisID string, reason string) (int64, error) {
	var failed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []layerRecord
		if err := tx.Where("analysis_id = ? AND status IN ?", analysisID, openLayerStatuses).
			Order("layer_number ASC").Find(&open).Error; err != nil {
			return fmt.Errorf("query open layers: %w", err)
		}

		for _, rec := range open {
			details := map[string]any{}
			if err := decodeJSON(rec.ProcessingDetails, &details); err != nil {
				return err
			}
			if details == nil {
				details = map[string]any{}
			}
			details["error"] = reason
			details["failed_at"] = time.Now().UTC().Format(time.RFC3339Nano)
			encoded, err := encodeJSON(details)
			if err != nil {
				return err
			}

			res := tx.Model(&layerRecord{}).
				Where("id = ? AND status IN ?", rec.ID, openLayerStatuses).
				Updates(map[string]any{
					"status":             string(domain.LayerFailed),
					"processing_details": encoded,
				})
			if res.Error != nil {
				return fmt.Errorf("fail layer %d: %w", rec.LayerNumber, res.Error)
			}
			failed += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return failed, nil
}

// UpdateOverall persists the derived aggregate score and status.
func (r *AnalysisRepository) UpdateOverall(ctx context.Context, analysisID string, score int, status domain.OverallStatus) error {
	res := r.db.WithContext(ctx).
		Model(&analysisRecord{}).
		Where("id = ?", analysisID).
		Updates(map[string]any{
			"overall_score":  score,
			"overall_status": string(status),
		})
	if res.Error != nil {
		return fmt.Errorf("update overall: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("analysis %s: %w", analysisID, domain.ErrNotFound)
	}
	return nil
}

// ListStaleAnalyses returns analyses created before the cutoff whose layer 1 or 2 is still open.
func (r *AnalysisRepository) ListStaleAnalyses(ctx context.Context, createdBefore time.Time) ([]domain.Analysis, error) {
	db := r.db.WithContext(ctx)
	open := db.Model(&layerRecord{}).
		Select("analysis_id").
		Where("layer_number IN ? AND status IN ?",
			[]int{domain.LayerInitialScan, domain.LayerRegulatoryReview}, openLayerStatuses)

	var records []analysisRecord
	if err := db.Where("created_at < ? AND id IN (?)", createdBefore, open).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list stale analyses: %w", err)
	}

	out := make([]domain.Analysis, 0, len(records))
	for _, rec := range records {
		a, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// updateLayer applies updates only when the layer may move to next; otherwise it
// reports ErrNotFound or ErrInvalidTransition.
func updateLayer(tx *gorm.DB, analysisID string, number int, next domain.LayerStatus, updates map[string]any) error {
	res := tx.Model(&layerRecord{}).
		Where("analysis_id = ? AND layer_number = ? AND status IN ?", analysisID, number, layerSources(next)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update layer %d: %w", number, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var current layerRecord
	err := tx.Where("analysis_id = ? AND layer_number = ?", analysisID, number).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("layer %d of %s: %w", number, analysisID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load layer %d: %w", number, err)
	}
	return fmt.Errorf("layer %d %s -> %s: %w", number, current.Status, next, domain.ErrInvalidTransition)
}
