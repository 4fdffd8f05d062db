package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/tasks"
	"server/pkg/zip"
)

type certificationDTO struct {
	ID                         string                `json:"id"`
	Status                     string                `json:"status"`
	NorwoodStage               int                   `json:"norwood_stage,omitempty"`
	NorwoodVariant             string                `json:"norwood_variant,omitempty"`
	Confidence                 float64               `json:"confidence,omitempty"`
	ClinicalAssessment         string                `json:"clinical_assessment,omitempty"`
	ObservableFeatures         []string              `json:"observable_features,omitempty"`
	DifferentialConsiderations string                `json:"differential_considerations,omitempty"`
	PDFURL                     string                `json:"pdf_url,omitempty"`
	CertifiedAt                *time.Time            `json:"certified_at,omitempty"`
	CreatedAt                  time.Time             `json:"created_at"`
	Photos                     []certificationPhotoDTO `json:"photos"`
	MissingSlots               []domain.PhotoSlot    `json:"missing_slots"`
	ReadyForDiagnosis          bool                  `json:"ready_for_diagnosis"`
}

type certificationPhotoDTO struct {
	ID               string `json:"id"`
	Slot             string `json:"slot"`
	ImageURL         string `json:"image_url"`
	ValidationStatus string `json:"validation_status"`
	RejectionReason  string `json:"rejection_reason,omitempty"`
	QualityNotes     string `json:"quality_notes,omitempty"`
}

func (a *App) certificationDTO(c *domain.Certification) certificationDTO {
	dto := certificationDTO{
		ID:                         c.ID,
		Status:                     string(c.Status),
		NorwoodStage:               c.NorwoodStage,
		NorwoodVariant:             c.NorwoodVariant,
		Confidence:                 c.Confidence,
		ClinicalAssessment:         c.ClinicalAssessment,
		ObservableFeatures:         c.ObservableFeatures,
		DifferentialConsiderations: c.DifferentialConsiderations,
		PDFURL:                     a.storageURL(c.PDFKey),
		CertifiedAt:                c.CertifiedAt,
		CreatedAt:                  c.CreatedAt,
		Photos:                     make([]certificationPhotoDTO, 0, len(c.Photos)),
		MissingSlots:               c.MissingSlots(),
		ReadyForDiagnosis:          c.ReadyForDiagnosis(),
	}
	if dto.MissingSlots == nil {
		dto.MissingSlots = []domain.PhotoSlot{}
	}
	for _, p := range c.Photos {
		dto.Photos = append(dto.Photos, certificationPhotoDTO{
			ID:               p.ID,
			Slot:             string(p.Slot),
			ImageURL:         a.storageURL(p.ImageKey),
			ValidationStatus: string(p.ValidationStatus),
			RejectionReason:  p.RejectionReason,
			QualityNotes:     p.QualityNotes,
		})
	}
	return dto
}

type cooldownResponse struct {
	Eligible        bool       `json:"eligible"`
	DaysRemaining   int        `json:"days_remaining"`
	LastCompletedAt *time.Time `json:"last_completed_at"`
}

// CertificationCooldown reports whether the user may start a new attempt.
func (a *App) CertificationCooldown(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	resp := cooldownResponse{Eligible: true}
	last, err := a.Certs.LastCompleted(r.Context(), user.ID)
	switch {
	case err == nil && last.CertifiedAt != nil:
		resp.LastCompletedAt = last.CertifiedAt
		if !user.IsAdmin {
			resp.DaysRemaining = domain.CooldownRemaining(*last.CertifiedAt, time.Now().UTC())
			resp.Eligible = resp.DaysRemaining == 0
		}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusOK, resp)
}

// CertificationStart returns the user's active attempt or creates a new
// one. The cooldown window and the one-active-attempt rule are enforced
// here; the partial unique index backs the latter under races.
func (a *App) CertificationStart(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}

	if active, err := a.Certs.GetActiveByUser(r.Context(), user.ID); err == nil {
		a.json(w, http.StatusOK, a.certificationDTO(active))
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		a.domainError(w, err, "")
		return
	}

	if !user.IsAdmin {
		last, err := a.Certs.LastCompleted(r.Context(), user.ID)
		if err == nil && last.CertifiedAt != nil {
			if days := domain.CooldownRemaining(*last.CertifiedAt, time.Now().UTC()); days > 0 {
				a.error(w, http.StatusConflict, "cooldown",
					fmt.Sprintf("new certification available in %d days", days))
				return
			}
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			a.domainError(w, err, "")
			return
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	cert := &domain.Certification{
		ID:     id.String(),
		UserID: user.ID,
		Status: domain.CertificationPhotosPending,
	}
	if err := a.Certs.Create(r.Context(), cert); err != nil {
		a.domainError(w, err, "")
		return
	}
	a.json(w, http.StatusCreated, a.certificationDTO(cert))
}

func (a *App) CertificationGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	cert, err := a.Certs.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}
	a.json(w, http.StatusOK, a.certificationDTO(cert))
}

type photoUploadRequest struct {
	Slot        string `json:"slot" validate:"required"`
	ImageBase64 string `json:"image_base64" validate:"required"`
	MediaType   string `json:"media_type" validate:"required,oneof=image/jpeg image/png image/webp"`
}

type photoUploadResponse struct {
	PhotoID string `json:"photo_id"`
	Slot    string `json:"slot"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
}

// CertificationPhotoUpload binds an image to a slot and enqueues its
// validation. An approved slot is immutable; delete it first to redo.
func (a *App) CertificationPhotoUpload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	cert, err := a.Certs.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}
	if cert.Status != domain.CertificationPhotosPending {
		a.error(w, http.StatusConflict, "conflict", "certification is not accepting photos")
		return
	}

	var req photoUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "slot, image_base64 and a supported media_type are required")
		return
	}
	slot := domain.PhotoSlot(req.Slot)
	if !slot.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "slot must be front, left or right")
		return
	}
	if decodedSize(req.ImageBase64) > a.Cfg.MaxImageSizeBytes() {
		a.error(w, http.StatusBadRequest, "bad_request", "image too large")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image_base64 is not valid base64")
		return
	}

	if existing, err := a.Certs.GetPhotoBySlot(r.Context(), cert.ID, slot); err == nil {
		if existing.ValidationStatus == domain.ValidationApproved {
			a.error(w, http.StatusConflict, "slot_approved", "slot already holds an approved photo; delete it to retake")
			return
		}
		if err := a.Certs.DeletePhoto(r.Context(), existing.ID); err != nil {
			a.domainError(w, err, "")
			return
		}
		if err := a.Store.Delete(r.Context(), existing.ImageKey); err != nil {
			a.Logger.Warn().Err(err).Str("key", existing.ImageKey).Msg("delete replaced photo")
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		a.domainError(w, err, "")
		return
	}

	photoID, err := uuid.NewV7()
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	key := fmt.Sprintf("certifications/%s/%s-%s%s", cert.ID, slot, photoID.String(), extensionFor(req.MediaType))
	key, err = a.Store.Write(r.Context(), key, raw)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	photo := &domain.CertificationPhoto{
		ID:               photoID.String(),
		CertificationID:  cert.ID,
		Slot:             slot,
		ImageKey:         key,
		MediaType:        req.MediaType,
		ValidationStatus: domain.ValidationPending,
	}
	if err := a.Certs.CreatePhoto(r.Context(), photo); err != nil {
		a.domainError(w, err, "")
		return
	}

	run, err := a.Tasks.Submit(r.Context(), domain.TaskKindValidatePhoto, userID, tasks.ValidatePhotoPayload{
		CertificationID: cert.ID,
		PhotoID:         photo.ID,
		Slot:            slot,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("enqueue photo validation")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue validation")
		return
	}
	a.json(w, http.StatusAccepted, photoUploadResponse{
		PhotoID: photo.ID,
		Slot:    string(slot),
		TaskID:  run.ID,
		Status:  string(run.Status),
	})
}

// CertificationPhotoDelete clears a slot so it can be retaken. This is the
// only way to replace an approved photo.
func (a *App) CertificationPhotoDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	cert, err := a.Certs.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}
	if cert.Status != domain.CertificationPhotosPending {
		a.error(w, http.StatusConflict, "conflict", "certification is not accepting photo changes")
		return
	}
	slot := domain.PhotoSlot(chi.URLParam(r, "slot"))
	if !slot.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "slot must be front, left or right")
		return
	}
	photo, err := a.Certs.GetPhotoBySlot(r.Context(), cert.ID, slot)
	if err != nil {
		a.domainError(w, err, "no photo in slot")
		return
	}
	if err := a.Certs.DeletePhoto(r.Context(), photo.ID); err != nil {
		a.domainError(w, err, "no photo in slot")
		return
	}
	if err := a.Store.Delete(r.Context(), photo.ImageKey); err != nil {
		a.Logger.Warn().Err(err).Str("key", photo.ImageKey).Msg("delete stored photo")
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}

// CertificationDiagnose re-verifies the three approved slots server-side,
// flips the workflow to analyzing, and enqueues the diagnosis. An attempt
// already analyzing without a stored diagnosis may resubmit (crash
// recovery).
func (a *App) CertificationDiagnose(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	cert, err := a.Certs.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}

	switch cert.Status {
	case domain.CertificationPhotosPending:
		if !cert.ReadyForDiagnosis() {
			a.error(w, http.StatusConflict, "photos_incomplete",
				fmt.Sprintf("missing approved photos: %v", cert.MissingSlots()))
			return
		}
		if err := a.Certs.TransitionStatus(r.Context(), cert.ID, domain.CertificationPhotosPending, domain.CertificationAnalyzing); err != nil {
			a.domainError(w, err, "certification not found")
			return
		}
	case domain.CertificationAnalyzing:
		if cert.HasDiagnosis() {
			a.error(w, http.StatusConflict, "conflict", "diagnosis already in progress")
			return
		}
		// resumable: fall through and enqueue again
	default:
		a.error(w, http.StatusConflict, "conflict", "certification is not ready for diagnosis")
		return
	}

	run, err := a.Tasks.Submit(r.Context(), domain.TaskKindDiagnose, userID, tasks.DiagnosePayload{
		CertificationID: cert.ID,
		UserID:          userID,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("enqueue diagnosis")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue diagnosis")
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{TaskID: run.ID, Status: string(run.Status)})
}

func (a *App) CertificationsHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	certs, err := a.Certs.ListCompletedByUser(r.Context(), userID)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	items := make([]certificationDTO, 0, len(certs))
	for i := range certs {
		items = append(items, a.certificationDTO(&certs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// CertificationPublic serves a completed certificate without auth, for
// share links.
func (a *App) CertificationPublic(w http.ResponseWriter, r *http.Request) {
	cert, err := a.Certs.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}
	user, err := a.Users.GetByID(r.Context(), cert.UserID)
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}
	dto := a.certificationDTO(cert)
	a.json(w, http.StatusOK, map[string]any{
		"certification": dto,
		"user_name":     user.DisplayName(),
	})
}

// CertificationExport bundles the three photos and the certificate PDF
// into a zip download.
func (a *App) CertificationExport(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	cert, err := a.Certs.GetForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err, "certification not found")
		return
	}
	if cert.Status != domain.CertificationCompleted {
		a.error(w, http.StatusConflict, "conflict", "certification is not completed")
		return
	}

	var entries []zip.Entry
	for _, p := range cert.Photos {
		data, err := a.Store.Read(r.Context(), p.ImageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", p.ImageKey).Msg("read photo for export")
			continue
		}
		entries = append(entries, zip.Entry{
			Name: fmt.Sprintf("%s%s", p.Slot, extensionFor(p.MediaType)),
			Data: data,
		})
	}
	if cert.PDFKey != "" {
		if data, err := a.Store.Read(r.Context(), cert.PDFKey); err == nil {
			entries = append(entries, zip.Entry{Name: "certificate.pdf", Data: data})
		}
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored artifacts for this certification")
		return
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		a.domainError(w, err, "")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="certification-%s.zip"`, cert.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
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
