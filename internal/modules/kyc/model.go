// README: KYC verification types, per-type documents and provider task records.
package kyc

import (
	"encoding/json"
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/types"
)

type Type string

const (
	TypePAN            Type = "ind_pan"
	TypeAadhaar        Type = "ind_aadhaar"
	TypeDrivingLicense Type = "ind_driving_license"
	TypeFace           Type = "face"
)

var Types = []Type{TypePAN, TypeAadhaar, TypeDrivingLicense, TypeFace}

func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type DocStatus string

const (
	DocNotProvided DocStatus = "not_provided"
	DocPending     DocStatus = "pending"
	DocVerified    DocStatus = "verified"
	DocFailed      DocStatus = "failed"
)

type OverallStatus string

const (
	OverallNotStarted OverallStatus = "not_started"
	OverallPending    OverallStatus = "pending"
	OverallVerified   OverallStatus = "verified"
	OverallFailed     OverallStatus = "failed"
)

type Document struct {
	Status    DocStatus  `json:"status"`
	RequestID string     `json:"request_id,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Profile is the aggregated KYC subdocument stored on the user.
type Profile struct {
	PAN            Document      `json:"ind_pan"`
	Aadhaar        Document      `json:"ind_aadhaar"`
	DrivingLicense Document      `json:"ind_driving_license"`
	Face           Document      `json:"face"`
	Overall        OverallStatus `json:"overall_status"`
}

func NewProfile() Profile {
	return Profile{
		PAN:            Document{Status: DocNotProvided},
		Aadhaar:        Document{Status: DocNotProvided},
		DrivingLicense: Document{Status: DocNotProvided},
		Face:           Document{Status: DocNotProvided},
		Overall:        OverallNotStarted,
	}
}

// Doc returns the document slot for t, or nil for an unknown type.
func (p *Profile) Doc(t Type) *Document {
	switch t {
	case TypePAN:
		return &p.PAN
	case TypeAadhaar:
		return &p.Aadhaar
	case TypeDrivingLicense:
		return &p.DrivingLicense
	case TypeFace:
		return &p.Face
	}
	return nil
}

// normalize fills statuses missing from older rows.
func (p *Profile) normalize() {
	for _, t := range Types {
		if d := p.Doc(t); d.Status == "" {
			d.Status = DocNotProvided
		}
	}
	if p.Overall == "" {
		p.Overall = ComputeOverall(*p)
	}
}

// Task is one provider verification task. Status and Result hold the latest raw callback.
type Task struct {
	ID        types.ID
	UserID    types.ID
	Type      Type
	RequestID string
	GroupID   string
	TaskID    string
	Status    string
	Result    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

const TaskPending = "pending"

var (
	ErrUnknownType     = errs.New(errs.ErrValidation, "unknown_kyc_type", "unknown verification type")
	ErrMissingDocument = errs.New(errs.ErrValidation, "kyc_document_missing", "required document image is missing")
	ErrConsentRequired = errs.New(errs.ErrValidation, "kyc_consent_required", "aadhaar verification requires explicit consent")
	ErrAlreadyVerified = errs.New(errs.ErrConflict, "kyc_already_verified", "this document type is already verified")
	ErrTaskNotFound    = errs.New(errs.ErrNotFound, "kyc_task_not_found", "verification task not found")
	ErrUserNotFound    = errs.New(errs.ErrNotFound, "user_not_found", "user not found")
	ErrInvalidCallback = errs.New(errs.ErrValidation, "invalid_kyc_callback", "callback is missing request and task identifiers")
	ErrUnauthorized    = errs.New(errs.ErrUnauthorized, "invalid_callback_token", "callback token mismatch")
	ErrProvider        = errs.New(errs.ErrExternal, "kyc_provider_error", "identity provider request failed")
)
