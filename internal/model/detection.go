package model

import (
	"strings"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/roast"
)

// DetectionRecord is one roast estimate taken from a still image.
type DetectionRecord struct {
	ID         string      `gorm:"primaryKey;size:36" json:"id"`
	OwnerID    *string     `gorm:"size:36;index" json:"owner_id,omitempty"`
	ImageRef   string      `gorm:"not null" json:"image_ref"`
	RoastIndex float64     `gorm:"not null" json:"roast_index"`
	RoastLabel roast.Label `gorm:"size:16;not null" json:"roast_label"`
	Confidence float64     `gorm:"not null" json:"confidence"`
	Advisory   string      `json:"advisory"`
	CreatedAt  time.Time   `gorm:"not null;index" json:"created_at"`
}

// DetectionInput carries the caller-supplied fields of a new DetectionRecord.
// The backend assigns ID and CreatedAt.
type DetectionInput struct {
	OwnerID    *string     `json:"owner_id,omitempty"`
	ImageRef   string      `json:"image_ref"`
	RoastIndex float64     `json:"roast_index"`
	RoastLabel roast.Label `json:"roast_label"`
	Confidence float64     `json:"confidence"`
	Advisory   string      `json:"advisory"`
}

// Validate checks the record invariants.
func (in DetectionInput) Validate() error {
	if strings.TrimSpace(in.ImageRef) == "" {
		return errs.Validation("image_ref", "must not be empty")
	}
	if !in.RoastLabel.Valid() {
		return errs.Validation("roast_label", "unknown roast level %q", in.RoastLabel)
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return errs.Validation("confidence", "must be within [0, 1], got %v", in.Confidence)
	}
	if in.RoastIndex < 0 {
		return errs.Validation("roast_index", "must not be negative")
	}
	return nil
}

// Record builds the stored form of in with the given identity and time.
func (in DetectionInput) Record(id string, createdAt time.Time) DetectionRecord {
	return DetectionRecord{
		ID:         id,
		OwnerID:    in.OwnerID,
		ImageRef:   in.ImageRef,
		RoastIndex: in.RoastIndex,
		RoastLabel: in.RoastLabel,
		Confidence: in.Confidence,
		Advisory:   in.Advisory,
		CreatedAt:  createdAt,
	}
}
