package model_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/minato-lab/leavesync/pkg/domain/model"
)

func leaveDetail(spNo string, att model.Attendance) *model.ApprovalDetail {
	return &model.ApprovalDetail{
		SpNo:   spNo,
		SpName: model.LeaveFormName,
		ApplyData: model.ApplyData{
			Contents: []model.Content{
				{Control: "Vacation", Value: model.ContentValue{
					Vacation: &model.Vacation{Attendance: att},
				}},
			},
		},
	}
}

func TestFormatSlot(t *testing.T) {
	day := time.Date(2026, 2, 14, 0, 0, 0, 0, time.Local)
	gt.Value(t, model.FormatSlot(day)).Equal("2026-2.14")
	gt.Value(t, model.FormatHalfSlot(day, true)).Equal("2026-2.14 (AM)")
	gt.Value(t, model.FormatHalfSlot(day, false)).Equal("2026-2.14 (PM)")

	// No zero padding for single-digit month and day
	gt.Value(t, model.FormatSlot(time.Date(2026, 3, 5, 0, 0, 0, 0, time.Local))).Equal("2026-3.5")
}

func TestDateSlotsRange(t *testing.T) {
	t.Run("multi-day range walks every calendar day", func(t *testing.T) {
		d := leaveDetail("SP1", model.Attendance{
			DateRange: model.DateRange{
				NewBegin: time.Date(2026, 2, 13, 9, 0, 0, 0, time.Local).Unix(),
				NewEnd:   time.Date(2026, 2, 15, 18, 0, 0, 0, time.Local).Unix(),
			},
		})
		gt.Value(t, model.DateSlots(d)).Equal([]string{"2026-2.13", "2026-2.14", "2026-2.15"})
	})

	t.Run("range crossing month boundary", func(t *testing.T) {
		d := leaveDetail("SP2", model.Attendance{
			DateRange: model.DateRange{
				NewBegin: time.Date(2026, 1, 30, 9, 0, 0, 0, time.Local).Unix(),
				NewEnd:   time.Date(2026, 2, 2, 18, 0, 0, 0, time.Local).Unix(),
			},
		})
		gt.Value(t, model.DateSlots(d)).Equal([]string{"2026-1.30", "2026-1.31", "2026-2.1", "2026-2.2"})
	})

	t.Run("halfday range marks AM when beginning before noon", func(t *testing.T) {
		d := leaveDetail("SP3", model.Attendance{
			DateRange: model.DateRange{
				Type:     "halfday",
				NewBegin: time.Date(2026, 2, 14, 9, 0, 0, 0, time.Local).Unix(),
				NewEnd:   time.Date(2026, 2, 14, 12, 0, 0, 0, time.Local).Unix(),
			},
		})
		gt.Value(t, model.DateSlots(d)).Equal([]string{"2026-2.14 (AM)"})
	})

	t.Run("halfday range marks PM when beginning at noon or later", func(t *testing.T) {
		d := leaveDetail("SP4", model.Attendance{
			DateRange: model.DateRange{
				Type:     "halfday",
				NewBegin: time.Date(2026, 2, 14, 14, 0, 0, 0, time.Local).Unix(),
				NewEnd:   time.Date(2026, 2, 14, 18, 0, 0, 0, time.Local).Unix(),
			},
		})
		gt.Value(t, model.DateSlots(d)).Equal([]string{"2026-2.14 (PM)"})
	})

	t.Run("inverted range yields nothing", func(t *testing.T) {
		d := leaveDetail("SP5", model.Attendance{
			DateRange: model.DateRange{
				NewBegin: time.Date(2026, 2, 15, 0, 0, 0, 0, time.Local).Unix(),
				NewEnd:   time.Date(2026, 2, 14, 0, 0, 0, 0, time.Local).Unix(),
			},
		})
		gt.Value(t, len(model.DateSlots(d))).Equal(0)
	})
}

func TestDateSlotsSlice(t *testing.T) {
	t.Run("per-day slice wins over the range", func(t *testing.T) {
		d := leaveDetail("SP6", model.Attendance{
			DateRange: model.DateRange{
				NewBegin: time.Date(2026, 2, 10, 0, 0, 0, 0, time.Local).Unix(),
				NewEnd:   time.Date(2026, 2, 20, 0, 0, 0, 0, time.Local).Unix(),
			},
			SliceInfo: &model.SliceInfo{DayItems: []model.DayItem{
				{Daytime: time.Date(2026, 2, 13, 0, 0, 0, 0, time.Local).Unix(), Duration: 86400},
				{Daytime: time.Date(2026, 2, 14, 0, 0, 0, 0, time.Local).Unix(), Duration: 86400},
			}},
		})
		gt.Value(t, model.DateSlots(d)).Equal([]string{"2026-2.13", "2026-2.14"})
	})

	t.Run("43200-second item is a half day", func(t *testing.T) {
		am := time.Date(2026, 2, 14, 9, 0, 0, 0, time.Local)
		pm := time.Date(2026, 2, 15, 14, 0, 0, 0, time.Local)
		d := leaveDetail("SP7", model.Attendance{
			SliceInfo: &model.SliceInfo{DayItems: []model.DayItem{
				{Daytime: am.Unix(), Duration: 43200},
				{Daytime: pm.Unix(), Duration: 43200},
			}},
		})
		gt.Value(t, model.DateSlots(d)).Equal([]string{"2026-2.14 (AM)", "2026-2.15 (PM)"})
	})
}

func TestDateSlotsNoVacation(t *testing.T) {
	d := &model.ApprovalDetail{
		SpNo:   "SP8",
		SpName: model.LeaveFormName,
		ApplyData: model.ApplyData{
			Contents: []model.Content{{Control: "Text"}},
		},
	}
	gt.Value(t, model.DateSlots(d)).Nil()
}

func TestDateSlotsLongRange(t *testing.T) {
	// A two-week leave generates one slot per day
	begin := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	d := leaveDetail("SP9", model.Attendance{
		DateRange: model.DateRange{
			NewBegin: begin.Unix(),
			NewEnd:   begin.AddDate(0, 0, 13).Unix(),
		},
	})
	slots := model.DateSlots(d)
	gt.Array(t, slots).Length(14)
	for i, slot := range slots {
		gt.Value(t, slot).Equal(fmt.Sprintf("2026-3.%d", i+1))
	}
}
