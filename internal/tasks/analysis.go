package tasks

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"server/internal/domain"
	"server/internal/llm"
)

// AnalysisResult is the poll payload for a finished analysis run.
type AnalysisResult struct {
	AnalysisID   string `json:"analysis_id"`
	NorwoodStage int    `json:"norwood_stage"`
	Confidence   string `json:"confidence"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	AnalysisText string `json:"analysis_text"`
	Reasoning    string `json:"reasoning"`
	ImageKey     string `json:"image_key"`
}

func (h *Handler) handleAnalyzeImage(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[AnalyzeImagePayload](t)
	if f != nil {
		return nil, f
	}

	raw, err := base64.StdEncoding.DecodeString(payload.ImageBase64)
	if err != nil {
		return nil, fail(domain.TaskErrorValidation, fmt.Errorf("decode image: %w", err))
	}

	imageKey := fmt.Sprintf("analyses/%s/%s%s", payload.UserID, uuid.NewString(), extensionFor(payload.MediaType))
	imageKey, err = h.store.Write(ctx, imageKey, raw)
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}

	images := h.withChart(llm.Image{Data: payload.ImageBase64, MediaType: payload.MediaType})
	userText := "Classify the Norwood stage of the person in the photo."
	if len(images) > 1 {
		userText = "The first image is the Norwood scale reference chart. The second image is the user's photo to analyze. Classify their Norwood stage."
	}

	var result llm.NorwoodAnalysisResult
	if err := h.llm.Vision(ctx, images, llm.NorwoodAnalysisPrompt, userText, &result); err != nil {
		h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_fail": 1})
		return nil, fail(classifyLLM(err), err)
	}

	analysisID, err := uuid.NewV7()
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}
	analysis := &domain.Analysis{
		ID:           analysisID.String(),
		UserID:       payload.UserID,
		ImageKey:     imageKey,
		NorwoodStage: result.NorwoodStage,
		Confidence:   result.Confidence,
		Title:        result.Title,
		Description:  result.Description,
		AnalysisText: result.AnalysisText,
		Reasoning:    result.Reasoning,
	}
	if err := h.analyses.Create(ctx, analysis); err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}

	if err := h.users.DecrementFreeAnalyses(ctx, payload.UserID); err != nil {
		h.logger.Warn().Err(err).Str("user_id", payload.UserID).Msg("decrement free analyses")
	}

	h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_success": 1, "analyses_completed": 1})

	return AnalysisResult{
		AnalysisID:   analysis.ID,
		NorwoodStage: result.NorwoodStage,
		Confidence:   result.Confidence,
		Title:        result.Title,
		Description:  result.Description,
		AnalysisText: result.AnalysisText,
		Reasoning:    result.Reasoning,
		ImageKey:     imageKey,
	}, nil
}

// withChart prepends the Norwood reference chart when one is configured.
func (h *Handler) withChart(images ...llm.Image) []llm.Image {
	chart := h.loadChart()
	if chart == nil {
		return images
	}
	return append([]llm.Image{*chart}, images...)
}

func (h *Handler) loadChart() *llm.Image {
	path := strings.TrimSpace(h.cfg.NorwoodChartPath)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Warn().Err(err).Str("path", path).Msg("norwood chart unavailable")
		return nil
	}
	return &llm.Image{
		Data:      base64.StdEncoding.EncodeToString(data),
		MediaType: chartMediaType(path),
	}
}

func chartMediaType(path string) string {
	switch {
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// classifyLLM treats any error out of the vendor client as upstream unless
// classification already knows better.
func classifyLLM(err error) domain.TaskErrorKind {
	if kind := classify(err); kind != domain.TaskErrorInternal {
		return kind
	}
	return domain.TaskErrorUpstream
}

func (h *Handler) countAnalytics(ctx context.Context, counters map[string]int) {
	day := time.Now().UTC().Format("2006-01-02")
	if err := h.analytics.IncrementCounters(ctx, day, counters); err != nil {
		h.logger.Warn().Err(err).Msg("increment analytics counters")
	}
}
