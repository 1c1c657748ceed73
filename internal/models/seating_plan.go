package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SeatingPlan is a saved seat assignment for one class.
type SeatingPlan struct {
	ID             string          `db:"id" json:"id"`
	ClassID        string          `db:"class_id" json:"classId"`
	Name           string          `db:"name" json:"name"`
	Rows           int             `db:"rows" json:"rows"`
	Cols           int             `db:"cols" json:"cols"`
	Seed           *int64          `db:"seed" json:"seed,omitempty"`
	Pairs          SeparationPairs `db:"pairs" json:"pairs"`
	ViolationCount int             `db:"violation_count" json:"violationCount"`
	CreatedBy      string          `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// SeatingPlanSeat is one student's seat within a saved plan.
type SeatingPlanSeat struct {
	PlanID    string `db:"plan_id" json:"-"`
	StudentID int    `db:"student_id" json:"studentId"`
	Gender    string `db:"gender" json:"gender"`
	Special   string `db:"special" json:"special,omitempty"`
	Row       int    `db:"row_index" json:"row"`
	Col       int    `db:"col_index" json:"col"`
}

// SeparationPair is the persisted form of a separation constraint.
type SeparationPair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// SeparationPairs is stored as a JSONB array.
type SeparationPairs []SeparationPair

// Value marshals pairs to JSON for persistence.
func (p SeparationPairs) Value() (driver.Value, error) {
	if p == nil {
		p = SeparationPairs{}
	}
	data, err := json.Marshal([]SeparationPair(p))
	if err != nil {
		return nil, fmt.Errorf("marshal separation pairs: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB column into pairs.
func (p *SeparationPairs) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = SeparationPairs{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SeparationPairs", value)
	}
	if len(data) == 0 {
		*p = SeparationPairs{}
		return nil
	}
	var pairs []SeparationPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("unmarshal separation pairs: %w", err)
	}
	*p = pairs
	return nil
}

// SeatingPlanFilter narrows plan listings.
type SeatingPlanFilter struct {
	ClassID  string
	Page     int
	PageSize int
}
