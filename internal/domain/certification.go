package domain

import "time"

// PhotoSlot identifies one of the three fixed certification photo positions.
type PhotoSlot string

const (
	PhotoSlotFront PhotoSlot = "front"
	PhotoSlotLeft  PhotoSlot = "left"
	PhotoSlotRight PhotoSlot = "right"
)

// RequiredSlots lists every slot a certification must fill before diagnosis.
var RequiredSlots = []PhotoSlot{PhotoSlotFront, PhotoSlotLeft, PhotoSlotRight}

// Valid reports whether the slot is one of the three known positions.
func (s PhotoSlot) Valid() bool {
	switch s {
	case PhotoSlotFront, PhotoSlotLeft, PhotoSlotRight:
		return true
	}
	return false
}

// ValidationStatus tracks per-photo validation outcome.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// CertificationStatus is the workflow state of a certification attempt.
type CertificationStatus string

const (
	CertificationPhotosPending CertificationStatus = "photos_pending"
	CertificationAnalyzing     CertificationStatus = "analyzing"
	CertificationCompleted     CertificationStatus = "completed"
	CertificationFailed        CertificationStatus = "failed"
)

// Terminal reports whether the workflow accepts no further transitions.
func (s CertificationStatus) Terminal() bool {
	return s == CertificationCompleted || s == CertificationFailed
}

// CanTransition encodes the strictly forward-moving state machine:
// photos_pending -> analyzing -> completed, with failed reachable from any
// non-terminal state.
func (s CertificationStatus) CanTransition(to CertificationStatus) bool {
	if s.Terminal() {
		return false
	}
	switch to {
	case CertificationAnalyzing:
		return s == CertificationPhotosPending
	case CertificationCompleted:
		return s == CertificationAnalyzing
	case CertificationFailed:
		return true
	}
	return false
}

// CertificationPhoto is one uploaded image bound to a slot.
type CertificationPhoto struct {
	ID               string
	CertificationID  string
	Slot             PhotoSlot
	ImageKey         string
	MediaType        string
	ValidationStatus ValidationStatus
	RejectionReason  string
	QualityNotes     string
	CreatedAt        time.Time
}

// Certification is one photo-based classification attempt.
type Certification struct {
	ID                         string
	UserID                     string
	Status                     CertificationStatus
	NorwoodStage               int
	NorwoodVariant             string
	Confidence                 float64
	ClinicalAssessment         string
	ObservableFeatures         []string
	DifferentialConsiderations string
	PDFKey                     string
	CertifiedAt                *time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
	Photos                     []CertificationPhoto
}

// ApprovedSlots returns the set of slots holding an approved photo.
func (c Certification) ApprovedSlots() map[PhotoSlot]CertificationPhoto {
	out := make(map[PhotoSlot]CertificationPhoto, len(c.Photos))
	for _, p := range c.Photos {
		if p.ValidationStatus == ValidationApproved {
			out[p.Slot] = p
		}
	}
	return out
}

// MissingSlots lists required slots without an approved photo, in fixed order.
func (c Certification) MissingSlots() []PhotoSlot {
	approved := c.ApprovedSlots()
	var missing []PhotoSlot
	for _, slot := range RequiredSlots {
		if _, ok := approved[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	return missing
}

// ReadyForDiagnosis reports whether all three slots hold approved photos.
func (c Certification) ReadyForDiagnosis() bool {
	return len(c.MissingSlots()) == 0
}

// HasDiagnosis reports whether a diagnosis payload was already persisted.
// Used to decide whether an analyzing certification is resumable.
func (c Certification) HasDiagnosis() bool {
	return c.NorwoodStage > 0
}

// CooldownDays is the window after a completed certification during which a
// user may not start a new one. Admin-flagged accounts are exempt.
const CooldownDays = 30

// CooldownRemaining returns whole days left in the cooldown window that
// started at certifiedAt, rounded up; zero when the window has elapsed.
func CooldownRemaining(certifiedAt time.Time, now time.Time) int {
	end := certifiedAt.AddDate(0, 0, CooldownDays)
	if !now.Before(end) {
		return 0
	}
	days := int(end.Sub(now).Hours() / 24)
	if end.Sub(now)%(24*time.Hour) != 0 {
		days++
	}
	return days
}
