package discharge

import "time"

// ComputeDueDate returns when a task generated for a checklist item in
// category should be due. The result is never before now.
func ComputeDueDate(dischargeDate time.Time, category Category, now time.Time) time.Time {
	var due time.Time
	switch category {
	case CategoryBeforeLeaving, CategoryMedications:
		due = dischargeDate
	case CategoryEquipment, CategoryHomePrep:
		due = dischargeDate.AddDate(0, 0, -1)
	case CategoryFirstWeek:
		due = dischargeDate.AddDate(0, 0, 7)
	default:
		due = dischargeDate.AddDate(0, 0, 3)
	}
	if due.Before(now) {
		return now
	}
	return due
}
