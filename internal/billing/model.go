package billing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusVoid    PaymentStatus = "void"
)

func (s PaymentStatus) Valid() bool {
	return s == StatusPending || s == StatusPaid || s == StatusVoid
}

var (
	ErrInvoiceNotFound = apperr.NotFound("invoice not found")
	ErrNotPending      = apperr.Conflict("only pending invoices can be paid or voided")
	ErrInvalidStatus   = apperr.Validation("payment_status must be one of pending, paid, void")
)

type Invoice struct {
	ID            uuid.UUID     `json:"id"`
	Number        string        `json:"number"`
	PatientID     uuid.UUID     `json:"patient_id"`
	PatientName   string        `json:"patient_name,omitempty"`
	AppointmentID *uuid.UUID    `json:"appointment_id,omitempty"`
	Concept       string        `json:"concept"`
	Amount        float64       `json:"amount"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	Notes         string        `json:"notes"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type CreateInput struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Concept       string     `json:"concept"`
	Amount        float64    `json:"amount"`
	Tax           float64    `json:"tax"`
	Notes         string     `json:"notes"`
}

func (in *CreateInput) validate() error {
	in.Concept = strings.TrimSpace(in.Concept)
	in.Notes = strings.TrimSpace(in.Notes)
	switch {
	case in.PatientID == uuid.Nil:
		return apperr.Validation("patient_id is required")
	case in.Concept == "":
		return apperr.Validation("concept is required")
	case in.Amount < 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0):
		return apperr.Validation("amount must be zero or positive")
	case in.Tax < 0 || math.IsNaN(in.Tax) || math.IsInf(in.Tax, 0):
		return apperr.Validation("tax must be zero or positive")
	}
	return nil
}

// cents rounds to two decimals, the precision of the stored columns.
func cents(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}

type ListFilter struct {
	PatientID *uuid.UUID
	Status    PaymentStatus
	Page      int
	Limit     int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
}

func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }

type Page struct {
	Invoices []Invoice `json:"invoices"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}
