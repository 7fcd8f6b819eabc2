package model

import (
	"fmt"
	"time"
)

const halfDaySeconds = 43200

// FormatSlot renders the canonical full-day slot string, e.g. "2026-2.14"
func FormatSlot(t time.Time) string {
	return fmt.Sprintf("%d-%d.%d", t.Year(), int(t.Month()), t.Day())
}

// FormatHalfSlot renders a half-day slot, e.g. "2026-2.14 (AM)". A half-day
// slot and a full-day slot for the same date are distinct keys.
func FormatHalfSlot(t time.Time, morning bool) string {
	if morning {
		return FormatSlot(t) + " (AM)"
	}
	return FormatSlot(t) + " (PM)"
}

// DateSlots derives the date-slot keys covered by an approval detail.
//
// When the upstream provides a per-day slice, each day item yields one slot:
// a 43200-second item is a half day (AM when the item starts before noon),
// anything else a full day. Without a slice the calendar days between
// new_begin and new_end are walked, all half days when the range type is
// "halfday". A nil return means the detail has no parsable vacation block
// and the approval is skipped by callers.
func DateSlots(d *ApprovalDetail) []string {
	vac := d.Vacation()
	if vac == nil {
		return nil
	}

	att := vac.Attendance
	if att.SliceInfo != nil && len(att.SliceInfo.DayItems) > 0 {
		slots := make([]string, 0, len(att.SliceInfo.DayItems))
		for _, item := range att.SliceInfo.DayItems {
			day := time.Unix(item.Daytime, 0)
			if item.Duration == halfDaySeconds {
				slots = append(slots, FormatHalfSlot(day, day.Hour() < 12))
			} else {
				slots = append(slots, FormatSlot(day))
			}
		}
		return slots
	}

	begin := time.Unix(att.DateRange.NewBegin, 0)
	end := time.Unix(att.DateRange.NewEnd, 0)
	if att.DateRange.NewBegin == 0 || end.Before(begin) {
		return nil
	}

	halfDay := att.DateRange.Type == "halfday"
	morning := begin.Hour() < 12

	var slots []string
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	for day := time.Date(begin.Year(), begin.Month(), begin.Day(), 0, 0, 0, 0, begin.Location()); !day.After(endDay); day = day.AddDate(0, 0, 1) {
		if halfDay {
			slots = append(slots, FormatHalfSlot(day, morning))
		} else {
			slots = append(slots, FormatSlot(day))
		}
	}
	return slots
}
