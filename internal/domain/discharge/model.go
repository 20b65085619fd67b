package discharge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	MinStep = 1
	MaxStep = 7
)

// DischargeType selects the checklist template a record is seeded from.
type DischargeType string

const (
	TypeGeneral     DischargeType = "general"
	TypeSurgery     DischargeType = "surgery"
	TypeStroke      DischargeType = "stroke"
	TypeCardiac     DischargeType = "cardiac"
	TypeFall        DischargeType = "fall"
	TypePsychiatric DischargeType = "psychiatric"
	TypeOther       DischargeType = "other"
)

func (t DischargeType) Valid() bool {
	switch t {
	case TypeGeneral, TypeSurgery, TypeStroke, TypeCardiac, TypeFall, TypePsychiatric, TypeOther:
		return true
	}
	return false
}

type Category string

const (
	CategoryBeforeLeaving Category = "before_leaving"
	CategoryMedications   Category = "medications"
	CategoryEquipment     Category = "equipment"
	CategoryHomePrep      Category = "home_prep"
	CategoryFirstWeek     Category = "first_week"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryBeforeLeaving, CategoryMedications, CategoryEquipment, CategoryHomePrep, CategoryFirstWeek:
		return true
	}
	return false
}

// Record maps to the discharge_record table. One record is one run of the
// discharge wizard.
type Record struct {
	ID             uuid.UUID          `json:"id"`
	CircleID       uuid.UUID          `json:"circleId"`
	PatientID      uuid.UUID          `json:"patientId"`
	CreatedBy      uuid.UUID          `json:"createdBy"`
	FacilityName   string             `json:"facilityName"`
	DischargeDate  string             `json:"dischargeDate,omitempty"`
	AdmissionDate  string             `json:"admissionDate,omitempty"`
	ReasonForStay  string             `json:"reasonForStay,omitempty"`
	DischargeType  DischargeType      `json:"dischargeType"`
	Status         string             `json:"status"`
	CurrentStep    int                `json:"currentStep"`
	ChecklistState ChecklistState     `json:"checklistState"`
	ShiftPlan      ShiftPlan          `json:"shiftAssignments"`
	Medications    []MedicationChange `json:"medicationChanges"`
	GeneratedRefs
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy *uuid.UUID `json:"completedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// GeneratedRefs are written once, together with the completed transition.
type GeneratedRefs struct {
	TaskIDs       []uuid.UUID `json:"generatedTaskIds"`
	ShiftIDs      []uuid.UUID `json:"generatedShiftIds"`
	BinderItemIDs []uuid.UUID `json:"generatedBinderItemIds"`
	HandoffID     *uuid.UUID  `json:"generatedHandoffId,omitempty"`
}

// ChecklistState tracks which checklist sections the wizard has walked
// through with the caregiver.
type ChecklistState struct {
	ReviewedSections []Category `json:"reviewedSections,omitempty" validate:"dive,category"`
}

// ChecklistItem maps to the discharge_checklist_item table. TaskID is set
// exactly once, when a task is generated for the item.
type ChecklistItem struct {
	ID          uuid.UUID  `json:"id"`
	RecordID    uuid.UUID  `json:"dischargeRecordId"`
	Category    Category   `json:"category"`
	ItemText    string     `json:"itemText"`
	SortOrder   int        `json:"sortOrder"`
	IsCompleted bool       `json:"isCompleted"`
	CreateTask  bool       `json:"createTask"`
	TaskID      *uuid.UUID `json:"taskId,omitempty"`
	AssigneeID  *uuid.UUID `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NeedsTask reports whether the task generator should act on the item.
func (i *ChecklistItem) NeedsTask() bool {
	return i.CreateTask && i.TaskID == nil
}

type ChangeType string

const (
	ChangeNew             ChangeType = "new"
	ChangeStopped         ChangeType = "stopped"
	ChangeDoseChanged     ChangeType = "dose_changed"
	ChangeScheduleChanged ChangeType = "schedule_changed"
)

// UnmarshalJSON folds case so "DOSE_CHANGED" and "dose_changed" are equal.
func (c *ChangeType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("changeType must be a string")
	}
	*c = ChangeType(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeNew, ChangeStopped, ChangeDoseChanged, ChangeScheduleChanged:
		return true
	}
	return false
}

// Label is the human wording used in handoff summaries.
func (c ChangeType) Label() string {
	switch c {
	case ChangeNew:
		return "Started"
	case ChangeStopped:
		return "Stopped"
	case ChangeDoseChanged:
		return "Dose changed"
	case ChangeScheduleChanged:
		return "Schedule changed"
	}
	return "Changed"
}

// KeepsTaking reports whether the change leaves a medication the patient
// must keep taking, which is what earns it a binder entry.
func (c ChangeType) KeepsTaking() bool {
	return c == ChangeNew || c == ChangeDoseChanged
}

type MedicationChange struct {
	Name         string     `json:"name" validate:"required,max=200"`
	ChangeType   ChangeType `json:"changeType" validate:"change_type"`
	Dosage       string     `json:"dosage,omitempty" validate:"max=1000"`
	Frequency    string     `json:"frequency,omitempty" validate:"max=1000"`
	Instructions string     `json:"instructions,omitempty" validate:"max=1000"`
	Source       string     `json:"source,omitempty" validate:"omitempty,oneof=manual scanned imported"`
}

const MaxShiftOffset = 30

// ShiftAssignment is one day-offset → assignee entry as entered in the
// wizard. Entries are kept even when malformed; the shift generator skips
// those individually.
type ShiftAssignment struct {
	Key      string
	Assignee string
}

// DayOffset parses the key as an integer day offset in [0, MaxShiftOffset].
// Only the canonical decimal form is accepted, so "01" and "+1" cannot name
// the same day as "1".
func (a ShiftAssignment) DayOffset() (int, bool) {
	n, err := strconv.Atoi(a.Key)
	if err != nil || strconv.Itoa(n) != a.Key || n < 0 || n > MaxShiftOffset {
		return 0, false
	}
	return n, true
}

// AssigneeID accepts only the canonical 36-character UUID form.
func (a ShiftAssignment) AssigneeID() (uuid.UUID, bool) {
	if len(a.Assignee) != 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(a.Assignee)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ShiftPlan is stored as a JSON object keyed by day offset.
type ShiftPlan []ShiftAssignment

func (p ShiftPlan) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(p))
	for _, a := range p {
		m[a.Key] = a.Assignee
	}
	return json.Marshal(m)
}

func (p *ShiftPlan) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("shift assignments must be an object")
	}
	plan := make(ShiftPlan, 0, len(raw))
	for k, v := range raw {
		var assignee string
		// Non-string values stay in the plan with an empty assignee.
		_ = json.Unmarshal(v, &assignee)
		plan = append(plan, ShiftAssignment{Key: k, Assignee: assignee})
	}
	sort.Slice(plan, func(i, j int) bool {
		ni, oki := plan[i].DayOffset()
		nj, okj := plan[j].DayOffset()
		if oki != okj {
			return oki
		}
		if oki && ni != nj {
			return ni < nj
		}
		return plan[i].Key < plan[j].Key
	})
	*p = plan
	return nil
}
