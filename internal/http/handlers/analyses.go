package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/tasks"
)

type analyzeRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	MediaType   string `json:"media_type" validate:"required,oneof=image/jpeg image/png image/webp"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type analysisDTO struct {
	ID           string    `json:"id"`
	NorwoodStage int       `json:"norwood_stage"`
	Confidence   string    `json:"confidence"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AnalysisText string    `json:"analysis_text"`
	Reasoning    string    `json:"reasoning"`
	ImageURL     string    `json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *App) analysisDTO(an domain.Analysis) analysisDTO {
	return analysisDTO{
		ID:           an.ID,
		NorwoodStage: an.NorwoodStage,
		Confidence:   an.Confidence,
		Title:        an.Title,
		Description:  an.Description,
		AnalysisText: an.AnalysisText,
		Reasoning:    an.Reasoning,
		ImageURL:     a.storageURL(an.ImageKey),
		CreatedAt:    an.CreatedAt,
	}
}

func (a *App) storageURL(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(a.Cfg.StorageBaseURL, "/") + "/" + key
}

// AnalyzeSubmit enqueues a single-photo classification and returns the
// pollable task id. Free accounts burn their analysis counter when the
// task completes, not at submission.
func (a *App) AnalyzeSubmit(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	if !user.CanAnalyze() {
		a.error(w, http.StatusPaymentRequired, "payment_required", "no free analyses remaining")
		return
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image_base64 and a supported media_type are required")
		return
	}
	if decodedSize(req.ImageBase64) > a.Cfg.MaxImageSizeBytes() {
		a.error(w, http.StatusBadRequest, "bad_request", "image too large")
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.ImageBase64); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image_base64 is not valid base64")
		return
	}

	run, err := a.Tasks.Submit(r.Context(), domain.TaskKindAnalyzeImage, user.ID, tasks.AnalyzeImagePayload{
		UserID:      user.ID,
		ImageBase64: req.ImageBase64,
		MediaType:   req.MediaType,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("enqueue analysis")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue analysis")
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{TaskID: run.ID, Status: string(run.Status)})
}

func (a *App) AnalysesList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	analyses, err := a.Analyses.ListByUser(r.Context(), userID, 50)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	items := make([]analysisDTO, 0, len(analyses))
	for _, an := range analyses {
		items = append(items, a.analysisDTO(an))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) AnalysisDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	analysis, err := a.Analyses.GetForUser(r.Context(), id, userID)
	if err != nil {
		a.domainError(w, err, "analysis not found")
		return
	}
	if err := a.Analyses.Delete(r.Context(), id, userID); err != nil {
		a.domainError(w, err, "analysis not found")
		return
	}
	if err := a.Store.Delete(r.Context(), analysis.ImageKey); err != nil {
		a.Logger.Warn().Err(err).Str("key", analysis.ImageKey).Msg("delete stored image")
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}

// decodedSize estimates the byte length of base64 input without decoding.
func decodedSize(b64 string) int64 {
	return int64(len(b64)) * 3 / 4
}
