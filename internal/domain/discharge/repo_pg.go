package discharge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carecircle/api/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `id, circle_id, patient_id, created_by, facility_name,
	COALESCE(to_char(discharge_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(admission_date, 'YYYY-MM-DD'), ''),
	reason_for_stay, discharge_type, status, current_step,
	checklist_state, shift_assignments, medication_changes,
	generated_task_ids, generated_shift_ids, generated_binder_item_ids, generated_handoff_id,
	completed_at, completed_by, created_at, updated_at`

// scanRecord decodes the JSON sub-documents into their typed forms. A blob
// that does not parse yields ErrMalformedState.
func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r                              Record
		stateJSON, shiftJSON, medsJSON []byte
	)
	err := row.Scan(&r.ID, &r.CircleID, &r.PatientID, &r.CreatedBy, &r.FacilityName,
		&r.DischargeDate, &r.AdmissionDate,
		&r.ReasonForStay, &r.DischargeType, &r.Status, &r.CurrentStep,
		&stateJSON, &shiftJSON, &medsJSON,
		&r.TaskIDs, &r.ShiftIDs, &r.BinderItemIDs, &r.HandoffID,
		&r.CompletedAt, &r.CompletedBy, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := decodeState(&r, stateJSON, shiftJSON, medsJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeState(r *Record, stateJSON, shiftJSON, medsJSON []byte) error {
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &r.ChecklistState); err != nil {
			return fmt.Errorf("%w: checklist state: %v", ErrMalformedState, err)
		}
	}
	if len(shiftJSON) > 0 {
		if err := json.Unmarshal(shiftJSON, &r.ShiftPlan); err != nil {
			return fmt.Errorf("%w: shift assignments: %v", ErrMalformedState, err)
		}
	}
	if len(medsJSON) > 0 {
		if err := json.Unmarshal(medsJSON, &r.Medications); err != nil {
			return fmt.Errorf("%w: medication changes: %v", ErrMalformedState, err)
		}
	}
	return nil
}

func encodeState(r *Record) (state, shifts, meds []byte, err error) {
	if state, err = json.Marshal(r.ChecklistState); err != nil {
		return nil, nil, nil, err
	}
	plan := r.ShiftPlan
	if plan == nil {
		plan = ShiftPlan{}
	}
	if shifts, err = json.Marshal(plan); err != nil {
		return nil, nil, nil, err
	}
	medications := r.Medications
	if medications == nil {
		medications = []MedicationChange{}
	}
	if meds, err = json.Marshal(medications); err != nil {
		return nil, nil, nil, err
	}
	return state, shifts, meds, nil
}

func (p *recordRepoPG) Create(ctx context.Context, r *Record) error {
	r.ID = uuid.New()
	state, shifts, meds, err := encodeState(r)
	if err != nil {
		return fmt.Errorf("encode wizard state: %w", err)
	}
	return db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO discharge_record (id, circle_id, patient_id, created_by, facility_name,
			discharge_date, admission_date, reason_for_stay, discharge_type, status, current_step,
			checklist_state, shift_assignments, medication_changes)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,'')::date,NULLIF($7,'')::date,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		r.ID, r.CircleID, r.PatientID, r.CreatedBy, r.FacilityName,
		r.DischargeDate, r.AdmissionDate, r.ReasonForStay, r.DischargeType, r.Status, r.CurrentStep,
		state, shifts, meds).
		Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (p *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+recordCols+` FROM discharge_record WHERE id = $1`, id))
}

func (p *recordRepoPG) ListByCircle(ctx context.Context, circleID uuid.UUID, status string, limit, offset int) ([]*Record, int, error) {
	where := ` WHERE circle_id = $1`
	args := []interface{}{circleID}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $2`
	}

	conn := db.Conn(ctx, p.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM discharge_record`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+recordCols+` FROM discharge_record`+where+
		` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (p *recordRepoPG) UpdateProgress(ctx context.Context, r *Record) error {
	state, shifts, meds, err := encodeState(r)
	if err != nil {
		return fmt.Errorf("encode wizard state: %w", err)
	}
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE discharge_record SET facility_name = $2,
			discharge_date = NULLIF($3,'')::date, admission_date = NULLIF($4,'')::date,
			reason_for_stay = $5, discharge_type = $6, current_step = $7,
			checklist_state = $8, shift_assignments = $9, medication_changes = $10,
			updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'`,
		r.ID, r.FacilityName, r.DischargeDate, r.AdmissionDate, r.ReasonForStay,
		r.DischargeType, r.CurrentStep, state, shifts, meds)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInProgress
	}
	return nil
}

func (p *recordRepoPG) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE discharge_record SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInProgress
	}
	return nil
}

func (p *recordRepoPG) Complete(ctx context.Context, id, actorID uuid.UUID, at time.Time, refs GeneratedRefs) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE discharge_record SET status = 'completed', completed_at = $2, completed_by = $3,
			generated_task_ids = $4, generated_shift_ids = $5, generated_binder_item_ids = $6,
			generated_handoff_id = $7, updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'`,
		id, at, actorID, nonNil(refs.TaskIDs), nonNil(refs.ShiftIDs), nonNil(refs.BinderItemIDs), refs.HandoffID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInProgress
	}
	return nil
}

type checklistRepoPG struct{ pool *pgxpool.Pool }

func NewChecklistRepoPG(pool *pgxpool.Pool) ChecklistRepository {
	return &checklistRepoPG{pool: pool}
}

const itemCols = `id, discharge_record_id, category, item_text, sort_order, is_completed,
	create_task, task_id, assignee_id, due_date, notes, created_at`

func scanItem(row pgx.Row) (*ChecklistItem, error) {
	var it ChecklistItem
	err := row.Scan(&it.ID, &it.RecordID, &it.Category, &it.ItemText, &it.SortOrder, &it.IsCompleted,
		&it.CreateTask, &it.TaskID, &it.AssigneeID, &it.DueDate, &it.Notes, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return &it, err
}

func (p *checklistRepoPG) CreateItems(ctx context.Context, items []*ChecklistItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		it.ID = uuid.New()
		batch.Queue(`
			INSERT INTO discharge_checklist_item (id, discharge_record_id, category, item_text, sort_order,
				is_completed, create_task, assignee_id, due_date, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING created_at`,
			it.ID, it.RecordID, it.Category, it.ItemText, it.SortOrder,
			it.IsCompleted, it.CreateTask, it.AssigneeID, it.DueDate, it.Notes).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.CreatedAt)
			})
	}
	return sendBatch(ctx, p.pool, batch)
}

// sendBatch runs b on the context transaction when there is one.
func sendBatch(ctx context.Context, pool *pgxpool.Pool, b *pgx.Batch) error {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx.SendBatch(ctx, b).Close()
	}
	return pool.SendBatch(ctx, b).Close()
}

func (p *checklistRepoPG) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*ChecklistItem, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, `SELECT `+itemCols+` FROM discharge_checklist_item
		WHERE discharge_record_id = $1 ORDER BY sort_order, created_at`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChecklistItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *checklistRepoPG) GetItem(ctx context.Context, id uuid.UUID) (*ChecklistItem, error) {
	return scanItem(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM discharge_checklist_item WHERE id = $1`, id))
}

func (p *checklistRepoPG) UpdateItem(ctx context.Context, it *ChecklistItem) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE discharge_checklist_item SET is_completed = $2, create_task = $3,
			assignee_id = $4, due_date = $5, notes = $6
		WHERE id = $1`,
		it.ID, it.IsCompleted, it.CreateTask, it.AssigneeID, it.DueDate, it.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (p *checklistRepoPG) SetTaskID(ctx context.Context, itemID, taskID uuid.UUID) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE discharge_checklist_item SET task_id = $2
		WHERE id = $1 AND task_id IS NULL`, itemID, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyLinked
	}
	return nil
}
