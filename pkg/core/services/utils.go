package services

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

// groupShiftsByVolunteer buckets shifts by their primary volunteer, skipping
// any without one
func groupShiftsByVolunteer(shifts []model.Shift) map[string][]model.Shift {
	grouped := make(map[string][]model.Shift)
	for _, shift := range shifts {
		if shift.VolunteerID == "" {
			continue
		}
		grouped[shift.VolunteerID] = append(grouped[shift.VolunteerID], shift)
	}
	return grouped
}

// timeSlotMap indexes time slots by ID
func timeSlotMap(slots []model.TimeSlot) map[string]model.TimeSlot {
	byID := make(map[string]model.TimeSlot, len(slots))
	for _, slot := range slots {
		byID[slot.ID] = slot
	}
	return byID
}

// summarize pairs shifts with their time slots, sorted by date then slot
// order. Shifts referencing an unknown time slot are dropped with a warning;
// they cannot be rendered into an email.
func summarize(shifts []model.Shift, slots map[string]model.TimeSlot, logger *zap.Logger) []ShiftSummary {
	summaries := make([]ShiftSummary, 0, len(shifts))
	for _, shift := range shifts {
		slot, ok := slots[shift.TimeSlotID]
		if !ok {
			logger.Warn("Shift references unknown time slot",
				zap.String("shift_id", shift.ID),
				zap.String("time_slot_id", shift.TimeSlotID))
			continue
		}
		summaries = append(summaries, ShiftSummary{Shift: shift, TimeSlot: slot})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Shift.Date != summaries[j].Shift.Date {
			return summaries[i].Shift.Date < summaries[j].Shift.Date
		}
		return summaries[i].TimeSlot.SortOrder < summaries[j].TimeSlot.SortOrder
	})

	return summaries
}

// shiftStart resolves the start instant of a shift via its time slot
func shiftStart(shift model.Shift, slots map[string]model.TimeSlot) (time.Time, bool) {
	slot, ok := slots[shift.TimeSlotID]
	if !ok {
		return time.Time{}, false
	}
	start, err := slot.StartOn(shift.Date)
	if err != nil {
		return time.Time{}, false
	}
	return start, true
}

// datesCovering returns the distinct calendar-day strings touched by the
// window [from, to], in order. Sweep queries filter by date column first and
// refine by exact start time in memory.
func datesCovering(from, to time.Time) []string {
	last := to.UTC().Format("2006-01-02")
	var dates []string
	for d := from.UTC(); ; d = d.Add(24 * time.Hour) {
		date := d.Format("2006-01-02")
		dates = append(dates, date)
		if date == last {
			break
		}
	}
	return dates
}
