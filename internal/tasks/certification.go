package tasks

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"server/internal/domain"
	"server/internal/llm"
	"server/internal/pdf"
)

// PhotoValidationOutcome is the poll payload for a photo validation run.
type PhotoValidationOutcome struct {
	PhotoID         string           `json:"photo_id"`
	Slot            domain.PhotoSlot `json:"slot"`
	Approved        bool             `json:"approved"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	QualityNotes    string           `json:"quality_notes"`
}

// DiagnosisResult is the poll payload for a finished diagnosis run.
type DiagnosisResult struct {
	CertificationID            string   `json:"certification_id"`
	NorwoodStage               int      `json:"norwood_stage"`
	NorwoodVariant             string   `json:"norwood_variant,omitempty"`
	Confidence                 float64  `json:"confidence"`
	ClinicalAssessment         string   `json:"clinical_assessment"`
	ObservableFeatures         []string `json:"observable_features"`
	DifferentialConsiderations string   `json:"differential_considerations"`
	PDFKey                     string   `json:"pdf_key"`
}

func (h *Handler) handleValidatePhoto(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[ValidatePhotoPayload](t)
	if f != nil {
		return nil, f
	}

	photo, err := h.certs.GetPhoto(ctx, payload.PhotoID)
	if err != nil {
		return nil, fail(classify(err), fmt.Errorf("load photo: %w", err))
	}

	raw, err := h.store.Read(ctx, photo.ImageKey)
	if err != nil {
		return nil, fail(domain.TaskErrorInternal, err)
	}

	userText := fmt.Sprintf("This photo was submitted as the %s view. Decide whether it is usable.", strings.ToUpper(string(photo.Slot)))
	var result llm.PhotoValidationResult
	if err := h.llm.Vision(ctx, []llm.Image{{
		Data:      base64.StdEncoding.EncodeToString(raw),
		MediaType: photo.MediaType,
	}}, llm.PhotoValidationPrompt, userText, &result); err != nil {
		h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_fail": 1})
		return nil, fail(classifyLLM(err), err)
	}
	h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_success": 1})

	status := domain.ValidationApproved
	if !result.Approved {
		status = domain.ValidationRejected
	}
	if err := h.certs.SetPhotoValidation(ctx, photo.ID, status, result.RejectionReason, result.QualityNotes); err != nil {
		return nil, fail(classify(err), err)
	}

	return PhotoValidationOutcome{
		PhotoID:         photo.ID,
		Slot:            photo.Slot,
		Approved:        result.Approved,
		RejectionReason: result.RejectionReason,
		QualityNotes:    result.QualityNotes,
	}, nil
}

// handleDiagnose runs the three-photo clinical diagnosis. The task is
// idempotent against an analyzing certification: re-running overwrites the
// persisted diagnosis and re-renders the certificate.
func (h *Handler) handleDiagnose(ctx context.Context, t *asynq.Task) (any, *failure) {
	payload, f := decodePayload[DiagnosePayload](t)
	if f != nil {
		return nil, f
	}

	cert, err := h.certs.GetByID(ctx, payload.CertificationID)
	if err != nil {
		return nil, fail(classify(err), fmt.Errorf("load certification: %w", err))
	}
	if cert.Status != domain.CertificationAnalyzing {
		return nil, fail(domain.TaskErrorValidation, fmt.Errorf("certification %s is %s: %w", cert.ID, cert.Status, domain.ErrInvalidState))
	}

	approved := cert.ApprovedSlots()
	images := make([]llm.Image, 0, len(domain.RequiredSlots))
	for _, slot := range domain.RequiredSlots {
		photo, ok := approved[slot]
		if !ok {
			h.failCertification(ctx, cert.ID)
			return nil, fail(domain.TaskErrorValidation, fmt.Errorf("missing approved %s photo: %w", slot, domain.ErrInvalidState))
		}
		raw, err := h.store.Read(ctx, photo.ImageKey)
		if err != nil {
			h.failCertification(ctx, cert.ID)
			return nil, fail(domain.TaskErrorInternal, err)
		}
		images = append(images, llm.Image{
			Data:      base64.StdEncoding.EncodeToString(raw),
			MediaType: photo.MediaType,
		})
	}

	var diagnosis llm.CertificationDiagnosis
	userText := "The photos are provided in order: FRONT, LEFT, RIGHT. Provide the official certification diagnosis."
	if err := h.llm.Vision(ctx, h.withChart(images...), llm.CertificationDiagnosisPrompt, userText, &diagnosis); err != nil {
		h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_fail": 1})
		kind := classifyLLM(err)
		// The attempt budget still applies to upstream failures; only a
		// terminal failure flips the workflow.
		if !kind.Retryable() || exhausted(ctx) {
			h.failCertification(ctx, cert.ID)
		}
		return nil, fail(kind, err)
	}
	h.countAnalytics(ctx, map[string]int{"ai_requests": 1, "request_success": 1})

	user, err := h.users.GetByID(ctx, cert.UserID)
	if err != nil {
		h.failCertification(ctx, cert.ID)
		return nil, fail(classify(err), err)
	}

	certifiedAt := time.Now().UTC()
	document, err := pdf.Render(pdf.Certificate{
		UserName:           user.DisplayName(),
		NorwoodStage:       diagnosis.NorwoodStage,
		NorwoodVariant:     diagnosis.NorwoodVariant,
		Confidence:         diagnosis.Confidence,
		ClinicalAssessment: diagnosis.ClinicalAssessment,
		CertifiedAt:        certifiedAt,
	})
	if err != nil {
		h.failCertification(ctx, cert.ID)
		return nil, fail(domain.TaskErrorInternal, err)
	}

	pdfKey := fmt.Sprintf("certifications/%s/certificate.pdf", cert.ID)
	pdfKey, err = h.store.Write(ctx, pdfKey, document)
	if err != nil {
		h.failCertification(ctx, cert.ID)
		return nil, fail(domain.TaskErrorInternal, err)
	}

	cert.NorwoodStage = diagnosis.NorwoodStage
	cert.NorwoodVariant = diagnosis.NorwoodVariant
	cert.Confidence = diagnosis.Confidence
	cert.ClinicalAssessment = diagnosis.ClinicalAssessment
	cert.ObservableFeatures = diagnosis.ObservableFeatures
	cert.DifferentialConsiderations = diagnosis.DifferentialConsiderations
	cert.PDFKey = pdfKey
	cert.CertifiedAt = &certifiedAt
	if err := h.certs.CompleteDiagnosis(ctx, cert); err != nil {
		return nil, fail(classify(err), err)
	}

	h.countAnalytics(ctx, map[string]int{"certifications_completed": 1})

	return DiagnosisResult{
		CertificationID:            cert.ID,
		NorwoodStage:               diagnosis.NorwoodStage,
		NorwoodVariant:             diagnosis.NorwoodVariant,
		Confidence:                 diagnosis.Confidence,
		ClinicalAssessment:         diagnosis.ClinicalAssessment,
		ObservableFeatures:         diagnosis.ObservableFeatures,
		DifferentialConsiderations: diagnosis.DifferentialConsiderations,
		PDFKey:                     pdfKey,
	}, nil
}

func (h *Handler) failCertification(ctx context.Context, certID string) {
	if err := h.certs.TransitionStatus(ctx, certID, domain.CertificationAnalyzing, domain.CertificationFailed); err != nil {
		h.logger.Warn().Err(err).Str("certification_id", certID).Msg("mark certification failed")
	}
}

// exhausted reports whether the broker has no attempts left for this task.
func exhausted(ctx context.Context) bool {
	retryCount, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retryCount >= maxRetry
}
