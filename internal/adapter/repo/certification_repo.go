package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// CertificationRepositoryPG implements domain.CertificationRepository.
type CertificationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCertificationRepository creates a certification repository backed by PostgreSQL.
func NewCertificationRepository(pool *pgxpool.Pool) *CertificationRepositoryPG {
	return &CertificationRepositoryPG{pool: pool}
}

const certColumns = `id, user_id, status, norwood_stage, norwood_variant, confidence, clinical_assessment, observable_features, differential_considerations, pdf_key, certified_at, created_at, updated_at`

// Create inserts a fresh certification in photos_pending.
func (r *CertificationRepositoryPG) Create(ctx context.Context, cert *domain.Certification) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO certifications (id, user_id, status)
VALUES ($1, $2, $3);
`, cert.ID, cert.UserID, domain.CertificationPhotosPending)
	return err
}

// GetByID fetches a certification with its photos.
func (r *CertificationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Certification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certifications WHERE id = $1`, id)
	cert, err := scanCertification(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachPhotos(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// GetForUser fetches a certification owned by the user, with photos.
func (r *CertificationRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.Certification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certifications WHERE id = $1 AND user_id = $2`, id, userID)
	cert, err := scanCertification(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachPhotos(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// GetActiveByUser returns the user's non-terminal certification, if any.
// The partial unique index on (user_id) WHERE status IN
// ('photos_pending','analyzing') guarantees at most one row.
func (r *CertificationRepositoryPG) GetActiveByUser(ctx context.Context, userID string) (*domain.Certification, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+certColumns+`
FROM certifications
WHERE user_id = $1
  AND status IN ('photos_pending', 'analyzing')
LIMIT 1;
`, userID)
	cert, err := scanCertification(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachPhotos(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// LastCompleted returns the user's most recent completed certification.
func (r *CertificationRepositoryPG) LastCompleted(ctx context.Context, userID string) (*domain.Certification, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+certColumns+`
FROM certifications
WHERE user_id = $1 AND status = 'completed'
ORDER BY certified_at DESC
LIMIT 1;
`, userID)
	return scanCertification(row)
}

// ListCompletedByUser returns completed certifications, newest first.
func (r *CertificationRepositoryPG) ListCompletedByUser(ctx context.Context, userID string) ([]domain.Certification, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+certColumns+`
FROM certifications
WHERE user_id = $1 AND status = 'completed'
ORDER BY certified_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Certification
	for rows.Next() {
		cert, err := scanCertification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *cert)
	}
	return items, rows.Err()
}

// GetPublic returns a completed certification without owner scoping, used
// by the public verification page.
func (r *CertificationRepositoryPG) GetPublic(ctx context.Context, id string) (*domain.Certification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certifications WHERE id = $1 AND status = 'completed'`, id)
	return scanCertification(row)
}

// Delete removes a certification and cascades to its photos.
func (r *CertificationRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM certifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionStatus moves the workflow forward. The WHERE clause carries the
// state machine: an update from any other state matches no row and the call
// reports ErrInvalidState.
func (r *CertificationRepositoryPG) TransitionStatus(ctx context.Context, id string, from, to domain.CertificationStatus) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidState
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE certifications
SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2;
`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// CompleteDiagnosis persists the diagnosis payload, the rendered document
// key, and the terminal completed status in one statement. Re-running
// against an analyzing row overwrites a previous partial diagnosis, which
// makes the diagnose task safe to retry.
func (r *CertificationRepositoryPG) CompleteDiagnosis(ctx context.Context, cert *domain.Certification) error {
	features, err := json.Marshal(cert.ObservableFeatures)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE certifications
SET status = 'completed',
    norwood_stage = $2,
    norwood_variant = $3,
    confidence = $4,
    clinical_assessment = $5,
    observable_features = $6,
    differential_considerations = $7,
    pdf_key = $8,
    certified_at = $9,
    updated_at = NOW()
WHERE id = $1 AND status = 'analyzing';
`,
		cert.ID,
		cert.NorwoodStage,
		nullableString(cert.NorwoodVariant),
		cert.Confidence,
		cert.ClinicalAssessment,
		features,
		cert.DifferentialConsiderations,
		cert.PDFKey,
		cert.CertifiedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// CreatePhoto inserts a photo row bound to a slot. The unique constraint on
// (certification_id, slot) rejects duplicate slots.
func (r *CertificationRepositoryPG) CreatePhoto(ctx context.Context, photo *domain.CertificationPhoto) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO certification_photos (id, certification_id, slot, image_key, media_type, validation_status)
VALUES ($1, $2, $3, $4, $5, $6);
`, photo.ID, photo.CertificationID, photo.Slot, photo.ImageKey, photo.MediaType, domain.ValidationPending)
	return err
}

const photoColumns = `id, certification_id, slot, image_key, media_type, validation_status, COALESCE(rejection_reason, ''), COALESCE(quality_notes, ''), created_at`

// GetPhoto fetches a photo by its identifier.
func (r *CertificationRepositoryPG) GetPhoto(ctx context.Context, id string) (*domain.CertificationPhoto, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM certification_photos WHERE id = $1`, id)
	return scanPhoto(row)
}

// GetPhotoBySlot fetches the photo currently occupying a slot.
func (r *CertificationRepositoryPG) GetPhotoBySlot(ctx context.Context, certID string, slot domain.PhotoSlot) (*domain.CertificationPhoto, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM certification_photos WHERE certification_id = $1 AND slot = $2`, certID, slot)
	return scanPhoto(row)
}

// DeletePhoto removes a photo row.
func (r *CertificationRepositoryPG) DeletePhoto(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM certification_photos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPhotoImage records where the uploaded bytes were stored.
func (r *CertificationRepositoryPG) SetPhotoImage(ctx context.Context, id, imageKey, mediaType string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE certification_photos SET image_key = $2, media_type = $3 WHERE id = $1;
`, id, imageKey, mediaType)
	return err
}

// SetPhotoValidation writes the validation verdict for a photo.
func (r *CertificationRepositoryPG) SetPhotoValidation(ctx context.Context, id string, status domain.ValidationStatus, reason, notes string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE certification_photos
SET validation_status = $2, rejection_reason = NULLIF($3, ''), quality_notes = NULLIF($4, '')
WHERE id = $1;
`, id, status, reason, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CertificationRepositoryPG) attachPhotos(ctx context.Context, cert *domain.Certification) error {
	rows, err := r.pool.Query(ctx, `
SELECT `+photoColumns+`
FROM certification_photos
WHERE certification_id = $1
ORDER BY created_at;
`, cert.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return err
		}
		cert.Photos = append(cert.Photos, *photo)
	}
	return rows.Err()
}

func scanCertification(row pgx.Row) (*domain.Certification, error) {
	var c domain.Certification
	var stage *int
	var variant, assessment, differential, pdfKey *string
	var confidence *float64
	var features []byte
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Status,
		&stage,
		&variant,
		&confidence,
		&assessment,
		&features,
		&differential,
		&pdfKey,
		&c.CertifiedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if stage != nil {
		c.NorwoodStage = *stage
	}
	if variant != nil {
		c.NorwoodVariant = *variant
	}
	if confidence != nil {
		c.Confidence = *confidence
	}
	if assessment != nil {
		c.ClinicalAssessment = *assessment
	}
	if differential != nil {
		c.DifferentialConsiderations = *differential
	}
	if pdfKey != nil {
		c.PDFKey = *pdfKey
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &c.ObservableFeatures); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func scanPhoto(row pgx.Row) (*domain.CertificationPhoto, error) {
	var p domain.CertificationPhoto
	if err := row.Scan(
		&p.ID,
		&p.CertificationID,
		&p.Slot,
		&p.ImageKey,
		&p.MediaType,
		&p.ValidationStatus,
		&p.RejectionReason,
		&p.QualityNotes,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
