package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/interval"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"gorm.io/gorm"
)

// Store owns recurring availability windows and one-off unavailability
// ranges. It validates interval shape only; cross-entity conflict checks
// belong to the slot generator and the appointment ledger.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SetWindow(doctorID uint, weekday int, start, end string, enabled bool) (*models.AvailabilityWindow, error) {
	if weekday < 0 || weekday > 6 {
		return nil, fmt.Errorf("%w: weekday must be 0-6", scheduling.ErrInvalidInterval)
	}
	if _, err := spanOf(start, end); err != nil {
		return nil, err
	}

	window := models.AvailabilityWindow{
		DoctorID:  doctorID,
		Weekday:   weekday,
		StartTime: start,
		EndTime:   end,
		Enabled:   enabled,
	}
	if err := s.db.Create(&window).Error; err != nil {
		return nil, err
	}
	return &window, nil
}

func (s *Store) UpdateWindow(doctorID, windowID uint, start, end string, enabled bool) (*models.AvailabilityWindow, error) {
	if _, err := spanOf(start, end); err != nil {
		return nil, err
	}

	var window models.AvailabilityWindow
	if err := s.db.Where("id = ? AND doctor_id = ?", windowID, doctorID).First(&window).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.ErrNotFound
		}
		return nil, err
	}

	window.StartTime = start
	window.EndTime = end
	window.Enabled = enabled
	if err := s.db.Save(&window).Error; err != nil {
		return nil, err
	}
	return &window, nil
}

// ListWindows returns a doctor's windows for one weekday, or for the whole
// week when weekday is negative. Disabled windows are excluded unless asked
// for (the admin view wants them).
func (s *Store) ListWindows(doctorID uint, weekday int, includeDisabled bool) ([]models.AvailabilityWindow, error) {
	query := s.db.Where("doctor_id = ?", doctorID)
	if weekday >= 0 {
		query = query.Where("weekday = ?", weekday)
	}
	if !includeDisabled {
		query = query.Where("enabled = ?", true)
	}

	var windows []models.AvailabilityWindow
	if err := query.Order("weekday, start_time").Find(&windows).Error; err != nil {
		return nil, err
	}
	return windows, nil
}

func (s *Store) DeleteWindow(doctorID, windowID uint) error {
	result := s.db.Where("id = ? AND doctor_id = ?", windowID, doctorID).Delete(&models.AvailabilityWindow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (s *Store) AddUnavailability(doctorID uint, startsAt, endsAt time.Time, reason string) (*models.UnavailabilityRange, error) {
	if _, err := interval.NewRange(startsAt, endsAt); err != nil {
		return nil, scheduling.ErrInvalidInterval
	}

	blocked := models.UnavailabilityRange{
		DoctorID: doctorID,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Reason:   reason,
	}
	if err := s.db.Create(&blocked).Error; err != nil {
		return nil, err
	}
	return &blocked, nil
}

// ListUnavailability returns every range intersecting [from, to), not only
// ranges fully inside it.
func (s *Store) ListUnavailability(doctorID uint, from, to time.Time) ([]models.UnavailabilityRange, error) {
	var ranges []models.UnavailabilityRange
	err := s.db.
		Where("doctor_id = ? AND starts_at < ? AND ends_at > ?", doctorID, to, from).
		Order("starts_at").
		Find(&ranges).Error
	if err != nil {
		return nil, err
	}
	return ranges, nil
}

func (s *Store) DeleteUnavailability(doctorID, rangeID uint) error {
	result := s.db.Where("id = ? AND doctor_id = ?", rangeID, doctorID).Delete(&models.UnavailabilityRange{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func spanOf(start, end string) (interval.Span, error) {
	startMin, err := interval.ParseClock(start)
	if err != nil {
		return interval.Span{}, fmt.Errorf("%w: %v", scheduling.ErrInvalidInterval, err)
	}
	endMin, err := interval.ParseClock(end)
	if err != nil {
		return interval.Span{}, fmt.Errorf("%w: %v", scheduling.ErrInvalidInterval, err)
	}
	span, err := interval.NewSpan(startMin, endMin)
	if err != nil {
		return interval.Span{}, scheduling.ErrInvalidInterval
	}
	return span, nil
}
