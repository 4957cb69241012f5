package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CampaignCompliance/internal/domain"
	"CampaignCompliance/internal/usecase"
)

const maxBodyBytes = 8 << 20

// AnalysisStarter accepts new analysis submissions.
type AnalysisStarter interface {
	StartAnalysis(ctx context.Context, sub usecase.Submission) (usecase.StartResult, error)
}

// StatusReader serves analysis status and listings.
type StatusReader interface {
	GetStatus(ctx context.Context, analysisID string) (usecase.AnalysisView, error)
	ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisSummary, error)
}

// GuidelineManager ingests and serves guidelines.
type GuidelineManager interface {
	Upload(ctx context.Context, in usecase.GuidelineUpload) (domain.Guideline, error)
	Get(ctx context.Context, id string) (domain.Guideline, error)
	List(ctx context.Context, filter domain.GuidelineFilter) ([]domain.Guideline, error)
}

type handlers struct {
	analyses   AnalysisStarter
	status     StatusReader
	guidelines GuidelineManager
	logger     *zap.Logger
}

func (h *handlers) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnalysisRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	res, err := h.analyses.StartAnalysis(r.Context(), usecase.Submission{
		Title:        req.Title,
		Content:      req.CampaignContent,
		FileURL:      req.FileURL,
		CampaignType: req.CampaignType,
		GuidelineIDs: req.SelectedGuidelines,
	})
	if err != nil {
		h.fail(w, r, "start analysis", err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitAnalysisResponse{
		Success:        true,
		AnalysisID:     res.AnalysisID,
		ComplianceCode: res.ComplianceCode,
	})
}

func (h *handlers) getAnalysis(w http.ResponseWriter, r *http.Request) {
	view, err := h.status.GetStatus(r.Context(), chi.URLParam(r, "analysisID"))
	if err != nil {
		h.fail(w, r, "get analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{Success: true, Analysis: toAnalysisDTO(view)})
}

func (h *handlers) listAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AnalysisFilter{
		Status:       domain.OverallStatus(q.Get("status")),
		CampaignType: q.Get("campaignType"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		filter.Limit = limit
	}

	summaries, err := h.status.ListAnalyses(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list analyses", err)
		return
	}
	out := AnalysisListResponse{Analyses: make([]AnalysisSummaryDTO, 0, len(summaries))}
	for _, s := range summaries {
		out.Analyses = append(out.Analyses, toSummaryDTO(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) uploadGuideline(w http.ResponseWriter, r *http.Request) {
	var req UploadGuidelineRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	g, err := h.guidelines.Upload(r.Context(), usecase.GuidelineUpload{
		Name:    req.Name,
		Type:    req.Type,
		Content: req.Content,
		FileURL: req.FileURL,
	})
	if err != nil {
		h.fail(w, r, "upload guideline", err)
		return
	}
	writeJSON(w, http.StatusCreated, GuidelineResponse{Success: true, Guideline: toGuidelineDTO(g)})
}

func (h *handlers) listGuidelines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.GuidelineFilter{Status: domain.ExtractionStatus(q.Get("status"))}
	if raw := q.Get("type"); raw != "" {
		t, err := domain.ParseGuidelineType(raw)
		if err != nil {
			h.fail(w, r, "list guidelines", err)
			return
		}
		filter.Type = t
	}

	guidelines, err := h.guidelines.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list guidelines", err)
		return
	}
	out := GuidelineListResponse{Guidelines: make([]GuidelineDTO, 0, len(guidelines))}
	for _, g := range guidelines {
		out.Guidelines = append(out.Guidelines, toGuidelineDTO(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getGuideline(w http.ResponseWriter, r *http.Request) {
	g, err := h.guidelines.Get(r.Context(), chi.URLParam(r, "guidelineID"))
	if err != nil {
		h.fail(w, r, "get guideline", err)
		return
	}
	writeJSON(w, http.StatusOK, GuidelineResponse{Success: true, Guideline: toGuidelineDTO(g)})
}

// fail maps err onto a status code and writes the error body. Server faults are logged.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("unsupported content type %s", ct)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
