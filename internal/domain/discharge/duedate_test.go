package discharge

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeDueDate(t *testing.T) {
	discharge := day(2025, 1, 10)
	early := day(2025, 1, 1)

	tests := []struct {
		name     string
		category Category
		now      time.Time
		want     time.Time
	}{
		{"before leaving on the day", CategoryBeforeLeaving, early, day(2025, 1, 10)},
		{"medications on the day", CategoryMedications, early, day(2025, 1, 10)},
		{"equipment the day before", CategoryEquipment, early, day(2025, 1, 9)},
		{"home prep the day before", CategoryHomePrep, early, day(2025, 1, 9)},
		{"first week after seven days", CategoryFirstWeek, early, day(2025, 1, 17)},
		{"unknown category after three days", Category("other"), early, day(2025, 1, 13)},
		{"equipment clamped to now", CategoryEquipment, day(2025, 1, 10), day(2025, 1, 10)},
		{"past discharge clamped", CategoryMedications, day(2025, 2, 1), day(2025, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDueDate(discharge, tt.category, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("ComputeDueDate(%s) = %s, want %s", tt.category, got, tt.want)
			}
		})
	}
}

func TestComputeDueDate_NeverBeforeNow(t *testing.T) {
	categories := []Category{
		CategoryBeforeLeaving, CategoryMedications, CategoryEquipment,
		CategoryHomePrep, CategoryFirstWeek, Category(""),
	}
	discharge := day(2025, 3, 15)
	for offset := -20; offset <= 20; offset++ {
		now := discharge.AddDate(0, 0, offset).Add(7 * time.Hour)
		for _, c := range categories {
			if got := ComputeDueDate(discharge, c, now); got.Before(now) {
				t.Fatalf("ComputeDueDate(%s, now=%s) = %s, before now", c, now, got)
			}
		}
	}
}
