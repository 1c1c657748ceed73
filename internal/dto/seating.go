package dto

import (
	"time"

	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/seating"
)

// SeatingStudent is one roster entry in a request or roster import result.
type SeatingStudent struct {
	ID      int      `json:"id" validate:"required,min=1"`
	Gender  string   `json:"gender" validate:"required,oneof=M F"`
	Special []string `json:"special,omitempty" validate:"omitempty,dive,oneof=vision height hearing"`
}

// SeparationPair names two students that must not sit next to each other.
type SeparationPair struct {
	A int `json:"a" validate:"required,min=1"`
	B int `json:"b" validate:"required,min=1"`
}

// SeatPosition is a 0-indexed seat.
type SeatPosition struct {
	Row int `json:"row" validate:"min=0"`
	Col int `json:"col" validate:"min=0"`
}

// GenerateSeatingRequest asks for a new seating proposal.
type GenerateSeatingRequest struct {
	ClassID  string           `json:"classId" validate:"omitempty,max=64"`
	Rows     int              `json:"rows" validate:"required,min=1"`
	Cols     int              `json:"cols" validate:"required,min=1"`
	Students []SeatingStudent `json:"students" validate:"required,min=1,dive"`
	Pairs    []SeparationPair `json:"pairs" validate:"omitempty,dive"`
	// Seed shuffles the candidate seat order. Ignored when Order is given.
	Seed  *int64         `json:"seed,omitempty"`
	Order []SeatPosition `json:"order,omitempty" validate:"omitempty,dive"`
}

// RegenerateSeatingRequest reruns a proposal. A nil seed picks a fresh one.
type RegenerateSeatingRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

// SeatAssignment is one student's seat in a response.
type SeatAssignment struct {
	StudentID int      `json:"studentId"`
	Gender    string   `json:"gender"`
	Special   []string `json:"special,omitempty"`
	Row       int      `json:"row"`
	Col       int      `json:"col"`
}

// SeatingProposalResponse returns a generated, not yet saved, seating.
type SeatingProposalResponse struct {
	ProposalID       string                   `json:"proposalId"`
	ClassID          string                   `json:"classId,omitempty"`
	Rows             int                      `json:"rows"`
	Cols             int                      `json:"cols"`
	Seed             *int64                   `json:"seed,omitempty"`
	Assignments      []SeatAssignment         `json:"assignments"`
	Chart            [][]string               `json:"chart"`
	Violations       []seating.Violation      `json:"violations"`
	PreferenceMisses []seating.PreferenceMiss `json:"preferenceMisses"`
	Steps            int                      `json:"steps"`
	ExpiresAt        time.Time                `json:"expiresAt"`
}

// RosterImportResponse returns the typed roster parsed from an upload.
type RosterImportResponse struct {
	Students []SeatingStudent `json:"students"`
	Pairs    []SeparationPair `json:"pairs"`
}

// SaveSeatingPlanRequest persists a proposal as a named plan.
type SaveSeatingPlanRequest struct {
	ProposalID      string `json:"proposalId" validate:"required"`
	ClassID         string `json:"classId" validate:"required,max=64"`
	Name            string `json:"name" validate:"required,max=120"`
	AllowViolations bool   `json:"allowViolations"`
}

// SeatingPlanQuery filters plan listings.
type SeatingPlanQuery struct {
	ClassID  string `form:"classId"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// SeatingPlanResponse is a saved plan with its seats and a freshly checked violation list.
type SeatingPlanResponse struct {
	Plan        models.SeatingPlan  `json:"plan"`
	Assignments []SeatAssignment    `json:"assignments"`
	Chart       [][]string          `json:"chart"`
	Violations  []seating.Violation `json:"violations"`
}

// CreateSeatingExportRequest asks for an asynchronous chart export.
type CreateSeatingExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf xlsx"`
}

// SeatingExportResponse reports an export job's state.
type SeatingExportResponse struct {
	ID        string              `json:"id"`
	PlanID    string              `json:"planId"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
