// Package reschedule manages proposal and approval of a new time for an
// existing appointment.
package reschedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/interval"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/slots"
	"gorm.io/gorm"
)

type Coordinator struct {
	db        *gorm.DB
	clock     scheduling.Clock
	directory scheduling.UserDirectory
	sink      scheduling.NotificationSink
}

func NewCoordinator(db *gorm.DB, clock scheduling.Clock, directory scheduling.UserDirectory, sink scheduling.NotificationSink) *Coordinator {
	return &Coordinator{db: db, clock: clock, directory: directory, sink: sink}
}

// Propose files a reschedule request without moving the appointment. An
// earlier pending request for the same appointment is superseded, never
// stacked.
func (c *Coordinator) Propose(appointmentID, requestedBy uint, newDate time.Time, newStartTime, reason string) (*models.RescheduleRequest, error) {
	if _, err := interval.ParseClock(newStartTime); err != nil {
		return nil, fmt.Errorf("%w: %v", scheduling.ErrInvalidInterval, err)
	}

	appointment, err := c.getAppointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.IsTerminal() {
		return nil, scheduling.ErrInvalidTransition
	}

	actor, err := c.directory.Get(requestedBy)
	if err != nil {
		return nil, err
	}
	relation := scheduling.RelationTo(actor, appointment.PatientID, appointment.DoctorID)
	if !scheduling.Allowed(scheduling.OpProposeReschedule, relation) {
		return nil, scheduling.ErrPermissionDenied
	}

	request := models.RescheduleRequest{
		AppointmentID: appointmentID,
		RequestedBy:   requestedBy,
		NewDate:       slots.DateOnly(newDate),
		NewStartTime:  newStartTime,
		Reason:        reason,
		Status:        models.ReschedulePending,
	}

	err = c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RescheduleRequest{}).
			Where("appointment_id = ? AND status = ?", appointmentID, models.ReschedulePending).
			Update("status", models.RescheduleSuperseded).Error; err != nil {
			return err
		}
		return tx.Create(&request).Error
	})
	if err != nil {
		return nil, err
	}

	c.notify("reschedule.proposed", appointment, &request)
	return &request, nil
}

// Approve re-runs the full availability check against the new date/time and,
// only if the new slot is free, moves the appointment in place (status
// unchanged). On conflict both records stay untouched.
func (c *Coordinator) Approve(requestID, approvedBy uint) (*models.RescheduleRequest, error) {
	request, appointment, err := c.authorizeResponse(requestID, approvedBy)
	if err != nil {
		return nil, err
	}

	start, err := interval.ParseClock(request.NewStartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scheduling.ErrInvalidInterval, err)
	}
	span := interval.Span{Start: start, End: start + appointment.DurationMinutes}
	now := c.clock.Now()

	err = c.db.Transaction(func(tx *gorm.DB) error {
		if err := slots.CheckFreeExcluding(tx, appointment.DoctorID, request.NewDate, span, appointment.ID); err != nil {
			return err
		}

		update := tx.Model(&models.Appointment{}).
			Where("id = ?", appointment.ID).
			Updates(map[string]interface{}{
				"date":       request.NewDate,
				"start_time": request.NewStartTime,
			})
		if update.Error != nil {
			if errors.Is(update.Error, gorm.ErrDuplicatedKey) {
				return scheduling.ErrSlotUnavailable
			}
			return update.Error
		}

		return tx.Model(&models.RescheduleRequest{}).
			Where("id = ?", request.ID).
			Updates(map[string]interface{}{
				"status":       models.RescheduleApproved,
				"responded_by": approvedBy,
				"responded_at": &now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	if err := c.db.First(request, request.ID).Error; err != nil {
		return nil, err
	}

	c.notify("reschedule.approved", appointment, request)
	return request, nil
}

// Reject closes a pending request with response notes; the appointment is
// untouched.
func (c *Coordinator) Reject(requestID, rejectedBy uint, notes string) (*models.RescheduleRequest, error) {
	request, appointment, err := c.authorizeResponse(requestID, rejectedBy)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	if err := c.db.Model(&models.RescheduleRequest{}).
		Where("id = ?", request.ID).
		Updates(map[string]interface{}{
			"status":         models.RescheduleRejected,
			"response_notes": notes,
			"responded_by":   rejectedBy,
			"responded_at":   &now,
		}).Error; err != nil {
		return nil, err
	}

	if err := c.db.First(request, request.ID).Error; err != nil {
		return nil, err
	}

	c.notify("reschedule.rejected", appointment, request)
	return request, nil
}

// ListForAppointment returns all requests for an appointment, newest first.
func (c *Coordinator) ListForAppointment(appointmentID uint) ([]models.RescheduleRequest, error) {
	var requests []models.RescheduleRequest
	err := c.db.
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *Coordinator) authorizeResponse(requestID, actorID uint) (*models.RescheduleRequest, *models.Appointment, error) {
	var request models.RescheduleRequest
	if err := c.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, scheduling.ErrNotFound
		}
		return nil, nil, err
	}

	appointment, err := c.getAppointment(request.AppointmentID)
	if err != nil {
		return nil, nil, err
	}
	// the appointment may have been cancelled or closed since Propose
	if appointment.IsTerminal() {
		return nil, nil, scheduling.ErrInvalidTransition
	}

	actor, err := c.directory.Get(actorID)
	if err != nil {
		return nil, nil, err
	}
	relation := scheduling.RelationTo(actor, appointment.PatientID, appointment.DoctorID)
	if !scheduling.Allowed(scheduling.OpRespondReschedule, relation) {
		return nil, nil, scheduling.ErrPermissionDenied
	}

	if request.Status != models.ReschedulePending {
		return nil, nil, scheduling.ErrInvalidTransition
	}
	return &request, appointment, nil
}

func (c *Coordinator) getAppointment(appointmentID uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := c.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.ErrNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

func (c *Coordinator) notify(event string, appointment *models.Appointment, request *models.RescheduleRequest) {
	payload := map[string]interface{}{
		"appointment_id": appointment.ID,
		"request_id":     request.ID,
		"new_date":       request.NewDate.Format("2006-01-02"),
		"new_start_time": request.NewStartTime,
		"status":         request.Status,
	}
	c.sink.Emit(event, appointment.PatientID, payload)
	c.sink.Emit(event, appointment.DoctorID, payload)
}
