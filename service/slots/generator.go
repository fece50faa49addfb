// Package slots turns recurring availability, existing appointments and
// unavailability ranges into the bookable slot grid for a doctor's day.
package slots

import (
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/interval"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"gorm.io/gorm"
)

const DefaultSlotMinutes = 30

type Slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

type DaySchedule struct {
	DoctorID uint   `json:"doctor_id"`
	Date     string `json:"date"`
	Slots    []Slot `json:"slots"`
	Message  string `json:"message,omitempty"`
}

type Generator struct {
	db *gorm.DB
}

func NewGenerator(db *gorm.DB) *Generator {
	return &Generator{db: db}
}

// DaySchedule produces the ordered slot grid for one doctor and date. A
// closed day yields an empty grid with an explanatory message; a weekday
// without enabled windows yields an empty grid silently.
func (g *Generator) DaySchedule(doctorID uint, date time.Time, slotMinutes int) (*DaySchedule, error) {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	date = DateOnly(date)

	schedule := &DaySchedule{
		DoctorID: doctorID,
		Date:     date.Format("2006-01-02"),
		Slots:    []Slot{},
	}

	if scheduling.IsClinicClosed(date) {
		schedule.Message = scheduling.ClosedDayMessage
		return schedule, nil
	}

	windows, err := windowSpans(g.db, doctorID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}

	busy, err := bookedSpans(g.db, doctorID, date)
	if err != nil {
		return nil, err
	}

	blocked, err := blockedRanges(g.db, doctorID, date)
	if err != nil {
		return nil, err
	}

	for _, window := range interval.MergeSpans(windows) {
		for cur := window.Start; cur+slotMinutes <= window.End; cur += slotMinutes {
			span := interval.Span{Start: cur, End: cur + slotMinutes}
			schedule.Slots = append(schedule.Slots, Slot{
				StartTime: interval.FormatClock(span.Start),
				EndTime:   interval.FormatClock(span.End),
				Available: !conflicts(span, date, busy, blocked),
			})
		}
	}

	return schedule, nil
}

// CheckFree verifies that the span is inside an enabled window and clear of
// non-cancelled appointments and unavailability ranges. It runs against the
// caller's db handle so the ledger can call it inside a booking transaction.
// The returned error is ErrSlotUnavailable on any conflict.
func CheckFree(db *gorm.DB, doctorID uint, date time.Time, span interval.Span) error {
	return CheckFreeExcluding(db, doctorID, date, span, 0)
}

// CheckFreeExcluding is CheckFree with one appointment left out of the
// conflict scan. A reschedule moving an appointment within the same day must
// not collide with the slot it is vacating.
func CheckFreeExcluding(db *gorm.DB, doctorID uint, date time.Time, span interval.Span, excludeID uint) error {
	date = DateOnly(date)

	if scheduling.IsClinicClosed(date) {
		return scheduling.ErrSlotUnavailable
	}

	windows, err := windowSpans(db, doctorID, int(date.Weekday()))
	if err != nil {
		return err
	}

	covered := false
	for _, window := range interval.MergeSpans(windows) {
		if window.Contains(span) {
			covered = true
			break
		}
	}
	if !covered {
		return scheduling.ErrSlotUnavailable
	}

	busy, err := bookedSpansExcluding(db, doctorID, date, excludeID)
	if err != nil {
		return err
	}
	blocked, err := blockedRanges(db, doctorID, date)
	if err != nil {
		return err
	}

	if conflicts(span, date, busy, blocked) {
		return scheduling.ErrSlotUnavailable
	}
	return nil
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func conflicts(span interval.Span, date time.Time, busy []interval.Span, blocked []interval.Range) bool {
	for _, b := range busy {
		if span.Overlaps(b) {
			return true
		}
	}
	slotRange := span.OnDate(date)
	for _, b := range blocked {
		if slotRange.Overlaps(b) {
			return true
		}
	}
	return false
}

func windowSpans(db *gorm.DB, doctorID uint, weekday int) ([]interval.Span, error) {
	var windows []models.AvailabilityWindow
	err := db.
		Where("doctor_id = ? AND weekday = ? AND enabled = ?", doctorID, weekday, true).
		Order("start_time").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}

	spans := make([]interval.Span, 0, len(windows))
	for _, w := range windows {
		start, err := interval.ParseClock(w.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := interval.ParseClock(w.EndTime)
		if err != nil {
			return nil, err
		}
		span, err := interval.NewSpan(start, end)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, nil
}

func bookedSpans(db *gorm.DB, doctorID uint, date time.Time) ([]interval.Span, error) {
	return bookedSpansExcluding(db, doctorID, date, 0)
}

func bookedSpansExcluding(db *gorm.DB, doctorID uint, date time.Time, excludeID uint) ([]interval.Span, error) {
	query := db.
		Where("doctor_id = ? AND date = ? AND status <> ?", doctorID, date, models.AppointmentCancelled)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var appointments []models.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		return nil, err
	}

	spans := make([]interval.Span, 0, len(appointments))
	for _, a := range appointments {
		start, err := interval.ParseClock(a.StartTime)
		if err != nil {
			return nil, err
		}
		spans = append(spans, interval.Span{Start: start, End: start + a.DurationMinutes})
	}
	return spans, nil
}

func blockedRanges(db *gorm.DB, doctorID uint, date time.Time) ([]interval.Range, error) {
	dayEnd := date.AddDate(0, 0, 1)

	var ranges []models.UnavailabilityRange
	err := db.
		Where("doctor_id = ? AND starts_at < ? AND ends_at > ?", doctorID, dayEnd, date).
		Find(&ranges).Error
	if err != nil {
		return nil, err
	}

	out := make([]interval.Range, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, interval.Range{Start: r.StartsAt, End: r.EndsAt})
	}
	return out, nil
}
