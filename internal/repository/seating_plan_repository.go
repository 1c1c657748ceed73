package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/seating-api/internal/models"
)

const seatingPlanColumns = `id, class_id, name, rows, cols, seed, pairs, violation_count, created_by, created_at`

// SeatingPlanRepository persists saved seating plans and their seats.
type SeatingPlanRepository struct {
	db *sqlx.DB
}

// NewSeatingPlanRepository constructs the repository.
func NewSeatingPlanRepository(db *sqlx.DB) *SeatingPlanRepository {
	return &SeatingPlanRepository{db: db}
}

// Create inserts the plan and all of its seats in one transaction.
func (r *SeatingPlanRepository) Create(ctx context.Context, plan *models.SeatingPlan, seats []models.SeatingPlanSeat) (err error) {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create seating plan: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const planQuery = `INSERT INTO seating_plans (id, class_id, name, rows, cols, seed, pairs, violation_count, created_by, created_at)
VALUES (:id, :class_id, :name, :rows, :cols, :seed, :pairs, :violation_count, :created_by, :created_at)`
	if _, err = tx.NamedExecContext(ctx, planQuery, plan); err != nil {
		return fmt.Errorf("insert seating plan: %w", err)
	}

	const seatQuery = `INSERT INTO seating_plan_seats (plan_id, student_id, gender, special, row_index, col_index)
VALUES (:plan_id, :student_id, :gender, :special, :row_index, :col_index)`
	for i := range seats {
		seats[i].PlanID = plan.ID
		if _, err = tx.NamedExecContext(ctx, seatQuery, &seats[i]); err != nil {
			return fmt.Errorf("insert seat for student %d: %w", seats[i].StudentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seating plan: %w", err)
	}
	return nil
}

// FindByID returns a plan header. Missing plans yield sql.ErrNoRows.
func (r *SeatingPlanRepository) FindByID(ctx context.Context, id string) (*models.SeatingPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM seating_plans WHERE id = $1`, seatingPlanColumns)
	var plan models.SeatingPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, fmt.Errorf("get seating plan: %w", err)
	}
	return &plan, nil
}

// ListSeats returns the seats of a plan, front row first.
func (r *SeatingPlanRepository) ListSeats(ctx context.Context, planID string) ([]models.SeatingPlanSeat, error) {
	const query = `SELECT plan_id, student_id, gender, special, row_index, col_index
FROM seating_plan_seats WHERE plan_id = $1 ORDER BY row_index ASC, col_index ASC`
	var seats []models.SeatingPlanSeat
	if err := r.db.SelectContext(ctx, &seats, query, planID); err != nil {
		return nil, fmt.Errorf("list seating plan seats: %w", err)
	}
	return seats, nil
}

// List returns plans newest first with the total count for pagination.
func (r *SeatingPlanRepository) List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error) {
	where := ""
	args := []interface{}{}
	if filter.ClassID != "" {
		where = " WHERE class_id = $1"
		args = append(args, filter.ClassID)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM seating_plans%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, seatingPlanColumns, where, size, offset)
	var plans []models.SeatingPlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list seating plans: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM seating_plans`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count seating plans: %w", err)
	}
	return plans, total, nil
}

// Delete removes a plan and its seats. Missing plans yield sql.ErrNoRows.
func (r *SeatingPlanRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete seating plan: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM seating_plan_seats WHERE plan_id = $1`, id); err != nil {
		return fmt.Errorf("delete seating plan seats: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM seating_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete seating plan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete seating plan: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete seating plan: %w", err)
	}
	return nil
}
