package models

import "time"

// RecordType tags what a stored record holds.
type RecordType string

const (
	RecordTypeReport      RecordType = "report"
	RecordTypeCertificate RecordType = "certificate"
)

// Attachment is an embedded binary payload kept as base64.
type Attachment struct {
	Base64   string `json:"base64" validate:"required,base64"`
	MIMEType string `json:"mime_type" validate:"required"`
}

// StoredRecord is an immutable report or certificate saved by a document producer.
// The Owner* fields are a snapshot of the owner taken at save time; visibility is
// decided from them and they are never refreshed from the live account.
type StoredRecord struct {
	ID               string       `db:"id" json:"id"`
	OwnerID          string       `db:"owner_id" json:"owner_id"`
	OwnerUsername    string       `db:"owner_username" json:"owner_username"`
	OwnerRole        Role         `db:"owner_role" json:"owner_role"`
	OwnerDesignation Designation  `db:"owner_designation" json:"owner_designation,omitempty"`
	Title            string       `db:"title" json:"title"`
	Type             RecordType   `db:"type" json:"type"`
	Content          string       `db:"content" json:"content"`
	Images           []Attachment `db:"-" json:"images,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

// RecordSummary is the list view of a record without payloads.
type RecordSummary struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Type             RecordType  `json:"type"`
	OwnerID          string      `json:"owner_id"`
	OwnerUsername    string      `json:"owner_username"`
	OwnerRole        Role        `json:"owner_role"`
	OwnerDesignation Designation `json:"owner_designation,omitempty"`
	ImageCount       int         `json:"image_count"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Summary builds the list view of the record.
func (r StoredRecord) Summary() RecordSummary {
	return RecordSummary{
		ID:               r.ID,
		Title:            r.Title,
		Type:             r.Type,
		OwnerID:          r.OwnerID,
		OwnerUsername:    r.OwnerUsername,
		OwnerRole:        r.OwnerRole,
		OwnerDesignation: r.OwnerDesignation,
		ImageCount:       len(r.Images),
		CreatedAt:        r.CreatedAt,
	}
}
