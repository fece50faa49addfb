package reschedule

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/db"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	monday     = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	nextMonday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	db          *gorm.DB
	coordinator *Coordinator

	patient  uint
	doctor   uint
	admin    uint
	stranger uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = gdb.AutoMigrate(
		&models.User{},
		&models.Doctor{},
		&models.AvailabilityWindow{},
		&models.UnavailabilityRange{},
		&models.Appointment{},
		&models.RescheduleRequest{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.EnsureBookingIndex(gdb); err != nil {
		t.Fatalf("booking index: %v", err)
	}

	f := &fixture{db: gdb}
	f.patient = f.seedUser(t, "Pat Ient", models.RolePatient)
	f.admin = f.seedUser(t, "Ad Min", models.RoleAdmin)
	f.stranger = f.seedUser(t, "Stran Ger", models.RolePatient)
	f.doctor = f.seedUser(t, "Doc Tor", models.RoleDoctor)
	if err := gdb.Create(&models.Doctor{UserID: f.doctor, Approved: true, ConsultationFee: 100}).Error; err != nil {
		t.Fatalf("seed doctor profile: %v", err)
	}

	window := models.AvailabilityWindow{
		DoctorID:  f.doctor,
		Weekday:   int(time.Monday),
		StartTime: "09:00",
		EndTime:   "17:00",
		Enabled:   true,
	}
	if err := gdb.Create(&window).Error; err != nil {
		t.Fatalf("seed window: %v", err)
	}

	clock := &fakeClock{now: time.Date(2025, 2, 24, 12, 0, 0, 0, time.UTC)}
	f.coordinator = NewCoordinator(gdb, clock, scheduling.NewGormDirectory(gdb), scheduling.NopSink{})
	return f
}

func (f *fixture) seedUser(t *testing.T, name, role string) uint {
	t.Helper()
	user := models.User{
		FullName:     name,
		Email:        strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@clinic.test",
		PasswordHash: "x",
		Role:         role,
	}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user.ID
}

func (f *fixture) seedAppointment(t *testing.T, date time.Time, start, status string) *models.Appointment {
	t.Helper()
	appointment := models.Appointment{
		Reference:       fmt.Sprintf("seed-%s-%s-%s", date.Format("0102"), start, status),
		PatientID:       f.patient,
		DoctorID:        f.doctor,
		Date:            date,
		StartTime:       start,
		DurationMinutes: 30,
		Status:          status,
		FeeAmount:       100,
	}
	if err := f.db.Create(&appointment).Error; err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return &appointment
}

func TestProposeAndApprove(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)

	request, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "11:00", "work conflict")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if request.Status != models.ReschedulePending {
		t.Errorf("proposed status = %q, want pending", request.Status)
	}

	approved, err := f.coordinator.Approve(request.ID, f.doctor)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.RescheduleApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if approved.RespondedAt == nil || approved.RespondedBy == nil || *approved.RespondedBy != f.doctor {
		t.Errorf("response metadata missing: %+v", approved)
	}

	var moved models.Appointment
	if err := f.db.First(&moved, appointment.ID).Error; err != nil {
		t.Fatalf("reload appointment: %v", err)
	}
	if !moved.Date.Equal(nextMonday) || moved.StartTime != "11:00" {
		t.Errorf("appointment at %v %s, want %v 11:00", moved.Date, moved.StartTime, nextMonday)
	}
	if moved.Status != models.AppointmentConfirmed {
		t.Errorf("approval changed status to %q", moved.Status)
	}
}

func TestApprove_SameDayMove(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)

	request, err := f.coordinator.Propose(appointment.ID, f.patient, monday, "14:00", "later that day")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	// the slot being vacated must not count as a conflict
	if _, err := f.coordinator.Approve(request.ID, f.doctor); err != nil {
		t.Fatalf("same-day approve: %v", err)
	}

	var moved models.Appointment
	if err := f.db.First(&moved, appointment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !moved.Date.Equal(monday) || moved.StartTime != "14:00" {
		t.Errorf("appointment at %v %s, want %v 14:00", moved.Date, moved.StartTime, monday)
	}
}

func TestApprove_OccupiedTargetLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)
	f.seedAppointment(t, nextMonday, "11:00", models.AppointmentConfirmed)

	request, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "11:00", "work conflict")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := f.coordinator.Approve(request.ID, f.doctor); !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("approve into occupied slot = %v, want ErrSlotUnavailable", err)
	}

	var unmoved models.Appointment
	if err := f.db.First(&unmoved, appointment.ID).Error; err != nil {
		t.Fatalf("reload appointment: %v", err)
	}
	if !unmoved.Date.Equal(monday) || unmoved.StartTime != "10:00" {
		t.Errorf("appointment moved to %v %s despite failed approval", unmoved.Date, unmoved.StartTime)
	}

	var pending models.RescheduleRequest
	if err := f.db.First(&pending, request.ID).Error; err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if pending.Status != models.ReschedulePending {
		t.Errorf("request status = %q after failed approval, want pending", pending.Status)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentPending)

	request, err := f.coordinator.Propose(appointment.ID, f.doctor, nextMonday, "09:00", "double booked")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	rejected, err := f.coordinator.Reject(request.ID, f.admin, "keep the original time")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.RescheduleRejected || rejected.ResponseNotes != "keep the original time" {
		t.Errorf("rejected = %+v", rejected)
	}

	var untouched models.Appointment
	if err := f.db.First(&untouched, appointment.ID).Error; err != nil {
		t.Fatalf("reload appointment: %v", err)
	}
	if !untouched.Date.Equal(monday) || untouched.StartTime != "10:00" {
		t.Errorf("rejection moved the appointment to %v %s", untouched.Date, untouched.StartTime)
	}

	if _, err := f.coordinator.Approve(request.ID, f.doctor); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Errorf("approving a rejected request = %v, want ErrInvalidTransition", err)
	}
}

func TestPropose_SupersedesPendingRequest(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)

	first, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "11:00", "first try")
	if err != nil {
		t.Fatalf("first propose: %v", err)
	}
	second, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "14:00", "better time")
	if err != nil {
		t.Fatalf("second propose: %v", err)
	}

	var reloaded models.RescheduleRequest
	if err := f.db.First(&reloaded, first.ID).Error; err != nil {
		t.Fatalf("reload first request: %v", err)
	}
	if reloaded.Status != models.RescheduleSuperseded {
		t.Errorf("first request = %q, want superseded", reloaded.Status)
	}

	if _, err := f.coordinator.Approve(first.ID, f.doctor); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Errorf("approving a superseded request = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.coordinator.Approve(second.ID, f.doctor); err != nil {
		t.Errorf("approving the live request: %v", err)
	}
}

func TestPropose_Rejections(t *testing.T) {
	f := newFixture(t)
	live := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)
	done := f.seedAppointment(t, monday, "12:00", models.AppointmentCompleted)

	if _, err := f.coordinator.Propose(done.ID, f.patient, nextMonday, "11:00", ""); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Errorf("propose on completed = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.coordinator.Propose(live.ID, f.stranger, nextMonday, "11:00", ""); !errors.Is(err, scheduling.ErrPermissionDenied) {
		t.Errorf("stranger propose = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.coordinator.Propose(live.ID, f.patient, nextMonday, "nope", ""); !errors.Is(err, scheduling.ErrInvalidInterval) {
		t.Errorf("bad time propose = %v, want ErrInvalidInterval", err)
	}
	if _, err := f.coordinator.Propose(4242, f.patient, nextMonday, "11:00", ""); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("propose on missing appointment = %v, want ErrNotFound", err)
	}
}

func TestRespond_AppointmentCancelledAfterPropose(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)

	request, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "11:00", "work conflict")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if err := f.db.Model(&models.Appointment{}).
		Where("id = ?", appointment.ID).
		Update("status", models.AppointmentCancelled).Error; err != nil {
		t.Fatalf("cancel appointment: %v", err)
	}

	if _, err := f.coordinator.Approve(request.ID, f.doctor); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("approve on cancelled appointment = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.coordinator.Reject(request.ID, f.doctor, "moot"); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("reject on cancelled appointment = %v, want ErrInvalidTransition", err)
	}

	var untouched models.Appointment
	if err := f.db.First(&untouched, appointment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !untouched.Date.Equal(monday) || untouched.StartTime != "10:00" {
		t.Errorf("cancelled appointment moved to %v %s", untouched.Date, untouched.StartTime)
	}
	if untouched.Status != models.AppointmentCancelled {
		t.Errorf("status = %q, want cancelled", untouched.Status)
	}
}

func TestRespond_PatientCannotDecide(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)

	request, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "11:00", "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := f.coordinator.Approve(request.ID, f.patient); !errors.Is(err, scheduling.ErrPermissionDenied) {
		t.Errorf("patient approve = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.coordinator.Reject(request.ID, f.patient, ""); !errors.Is(err, scheduling.ErrPermissionDenied) {
		t.Errorf("patient reject = %v, want ErrPermissionDenied", err)
	}
}

func TestListForAppointment(t *testing.T) {
	f := newFixture(t)
	appointment := f.seedAppointment(t, monday, "10:00", models.AppointmentConfirmed)

	if _, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "11:00", "first"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.coordinator.Propose(appointment.ID, f.patient, nextMonday, "14:00", "second"); err != nil {
		t.Fatalf("propose: %v", err)
	}

	requests, err := f.coordinator.ListForAppointment(appointment.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(requests))
	}
}
