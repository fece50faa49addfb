package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/interval"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/slots"
	"gorm.io/gorm"
)

// Ledger owns appointment records. Status moves only through the explicit
// transition methods here; nothing else writes status.
type Ledger struct {
	db           *gorm.DB
	clock        scheduling.Clock
	directory    scheduling.UserDirectory
	sink         scheduling.NotificationSink
	cancellation scheduling.CancellationPolicy
}

func NewLedger(db *gorm.DB, clock scheduling.Clock, directory scheduling.UserDirectory, sink scheduling.NotificationSink) *Ledger {
	return &Ledger{
		db:           db,
		clock:        clock,
		directory:    directory,
		sink:         sink,
		cancellation: scheduling.DefaultCancellationPolicy(),
	}
}

// WithCancellationPolicy overrides the default 24h cutoff rule.
func (l *Ledger) WithCancellationPolicy(policy scheduling.CancellationPolicy) *Ledger {
	l.cancellation = policy
	return l
}

type CreateRequest struct {
	PatientID       uint
	DoctorID        uint
	Date            time.Time
	StartTime       string
	DurationMinutes int
	Type            string
	ChiefComplaint  string
}

// Create books a pending appointment. The availability check and the insert
// run in one transaction; the partial unique index on
// (doctor_id, date, start_time) over non-cancelled rows settles concurrent
// bookings, so a duplicated-key failure comes back as ErrSlotUnavailable
// rather than trusting the prior read.
func (l *Ledger) Create(req CreateRequest) (*models.Appointment, error) {
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = slots.DefaultSlotMinutes
	}

	start, err := interval.ParseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scheduling.ErrInvalidInterval, err)
	}
	span := interval.Span{Start: start, End: start + req.DurationMinutes}

	doctor, err := l.directory.Get(req.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != models.RoleDoctor {
		return nil, scheduling.ErrNotFound
	}
	if !doctor.Approved {
		return nil, scheduling.ErrDoctorNotApproved
	}
	if _, err := l.directory.Get(req.PatientID); err != nil {
		return nil, err
	}

	appointment := models.Appointment{
		Reference:       uuid.NewString(),
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		Date:            slots.DateOnly(req.Date),
		// canonical form, so the uniqueness index sees one spelling per slot
		StartTime:       interval.FormatClock(start),
		DurationMinutes: req.DurationMinutes,
		Status:          models.AppointmentPending,
		Type:            req.Type,
		ChiefComplaint:  req.ChiefComplaint,
		FeeAmount:       doctor.ConsultationFee,
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := slots.CheckFree(tx, req.DoctorID, appointment.Date, span); err != nil {
			return err
		}
		if err := tx.Create(&appointment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return scheduling.ErrSlotUnavailable
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.notifyParties("appointment.requested", &appointment)
	return &appointment, nil
}

// Confirm moves a pending appointment to confirmed. Doctor or admin only.
func (l *Ledger) Confirm(appointmentID, actorID uint) (*models.Appointment, error) {
	appointment, _, err := l.authorize(appointmentID, actorID, scheduling.OpConfirm)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.AppointmentPending {
		return nil, scheduling.ErrInvalidTransition
	}

	now := l.clock.Now()
	if err := l.transition(appointment, models.AppointmentConfirmed, map[string]interface{}{
		"status":       models.AppointmentConfirmed,
		"confirmed_at": &now,
	}); err != nil {
		return nil, err
	}

	l.notifyParties("appointment.confirmed", appointment)
	return appointment, nil
}

// Cancel is valid from pending or confirmed, subject to the cutoff policy.
func (l *Ledger) Cancel(appointmentID, actorID uint, reason string) (*models.Appointment, error) {
	appointment, actor, err := l.authorize(appointmentID, actorID, scheduling.OpCancel)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.AppointmentPending && appointment.Status != models.AppointmentConfirmed {
		return nil, scheduling.ErrInvalidTransition
	}

	now := l.clock.Now()
	startAt, err := startInstant(appointment)
	if err != nil {
		return nil, err
	}
	if !l.cancellation.Allows(now, startAt, actor.Role) {
		return nil, scheduling.ErrTooLateToCancel
	}

	if err := l.transition(appointment, models.AppointmentCancelled, map[string]interface{}{
		"status":              models.AppointmentCancelled,
		"cancelled_at":        &now,
		"cancelled_by":        actorID,
		"cancellation_reason": reason,
	}); err != nil {
		return nil, err
	}

	l.notifyParties("appointment.cancelled", appointment)
	return appointment, nil
}

// Complete is valid from confirmed, assigned doctor only.
func (l *Ledger) Complete(appointmentID, actorID uint, notes, recommendations string) (*models.Appointment, error) {
	appointment, _, err := l.authorize(appointmentID, actorID, scheduling.OpComplete)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.AppointmentConfirmed {
		return nil, scheduling.ErrInvalidTransition
	}

	now := l.clock.Now()
	if err := l.transition(appointment, models.AppointmentCompleted, map[string]interface{}{
		"status":          models.AppointmentCompleted,
		"completed_at":    &now,
		"notes":           notes,
		"recommendations": recommendations,
	}); err != nil {
		return nil, err
	}

	l.notifyParties("appointment.completed", appointment)
	return appointment, nil
}

// MarkNoShow is an administrative terminal transition from pending or
// confirmed.
func (l *Ledger) MarkNoShow(appointmentID, actorID uint) (*models.Appointment, error) {
	appointment, _, err := l.authorize(appointmentID, actorID, scheduling.OpMarkNoShow)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.AppointmentPending && appointment.Status != models.AppointmentConfirmed {
		return nil, scheduling.ErrInvalidTransition
	}

	if err := l.transition(appointment, models.AppointmentNoShow, map[string]interface{}{
		"status": models.AppointmentNoShow,
	}); err != nil {
		return nil, err
	}

	l.notifyParties("appointment.no_show", appointment)
	return appointment, nil
}

// RecordPayment attaches a payment to an appointment and marks it paid. The
// fee amount itself never changes after creation.
func (l *Ledger) RecordPayment(appointmentID, actorID uint, amount float64, method, reference string) (*models.Payment, error) {
	appointment, err := l.Get(appointmentID)
	if err != nil {
		return nil, err
	}

	actor, err := l.directory.Get(actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && actorID != appointment.PatientID {
		return nil, scheduling.ErrPermissionDenied
	}

	if reference == "" {
		reference = uuid.NewString()
	}
	payment := models.Payment{
		AppointmentID: appointment.ID,
		PatientID:     appointment.PatientID,
		Amount:        amount,
		Method:        method,
		Reference:     reference,
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Appointment{}).
			Where("id = ?", appointment.ID).
			Updates(map[string]interface{}{"is_paid": true, "payment_ref": reference}).Error
	})
	if err != nil {
		return nil, err
	}

	l.notifyParties("appointment.paid", appointment)
	return &payment, nil
}

func (l *Ledger) Get(appointmentID uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := l.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.ErrNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

func (l *Ledger) authorize(appointmentID, actorID uint, op scheduling.Operation) (*models.Appointment, scheduling.Account, error) {
	appointment, err := l.Get(appointmentID)
	if err != nil {
		return nil, scheduling.Account{}, err
	}

	actor, err := l.directory.Get(actorID)
	if err != nil {
		return nil, scheduling.Account{}, err
	}

	relation := scheduling.RelationTo(actor, appointment.PatientID, appointment.DoctorID)
	if !scheduling.Allowed(op, relation) {
		return nil, scheduling.Account{}, scheduling.ErrPermissionDenied
	}
	return appointment, actor, nil
}

// transition applies the update only if the row still holds the status the
// guard saw, so a concurrent transition loses cleanly.
func (l *Ledger) transition(appointment *models.Appointment, to string, updates map[string]interface{}) error {
	result := l.db.Model(&models.Appointment{}).
		Where("id = ? AND status = ?", appointment.ID, appointment.Status).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrInvalidTransition
	}
	return l.db.First(appointment, appointment.ID).Error
}

func (l *Ledger) notifyParties(event string, appointment *models.Appointment) {
	payload := map[string]interface{}{
		"appointment_id": appointment.ID,
		"reference":      appointment.Reference,
		"date":           appointment.Date.Format("2006-01-02"),
		"start_time":     appointment.StartTime,
		"status":         appointment.Status,
	}
	l.sink.Emit(event, appointment.PatientID, payload)
	l.sink.Emit(event, appointment.DoctorID, payload)
}

func startInstant(appointment *models.Appointment) (time.Time, error) {
	start, err := interval.ParseClock(appointment.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return appointment.Date.Add(time.Duration(start) * time.Minute), nil
}
