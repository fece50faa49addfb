package appointment

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

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	db     *gorm.DB
	clock  *fakeClock
	ledger *Ledger

	patient    uint
	patient2   uint
	doctor     uint
	unapproved uint
	admin      uint
	stranger   uint
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
		&models.Payment{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.EnsureBookingIndex(gdb); err != nil {
		t.Fatalf("booking index: %v", err)
	}

	f := &fixture{
		db:    gdb,
		clock: &fakeClock{now: time.Date(2025, 2, 24, 12, 0, 0, 0, time.UTC)},
	}
	f.patient = f.seedUser(t, "Pat Ient", models.RolePatient)
	f.patient2 = f.seedUser(t, "Other Patient", models.RolePatient)
	f.admin = f.seedUser(t, "Ad Min", models.RoleAdmin)
	f.stranger = f.seedUser(t, "Stran Ger", models.RolePatient)
	f.doctor = f.seedDoctor(t, "Doc Tor", true, 150)
	f.unapproved = f.seedDoctor(t, "New Doc", false, 80)

	// full Monday so slot placement never gets in the way of a test
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

	directory := scheduling.NewGormDirectory(gdb)
	f.ledger = NewLedger(gdb, f.clock, directory, scheduling.NopSink{})
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

func (f *fixture) seedDoctor(t *testing.T, name string, approved bool, fee float64) uint {
	t.Helper()
	userID := f.seedUser(t, name, models.RoleDoctor)
	doctor := models.Doctor{
		UserID:          userID,
		Specialty:       "general",
		Approved:        approved,
		ConsultationFee: fee,
	}
	if err := f.db.Create(&doctor).Error; err != nil {
		t.Fatalf("seed doctor %s: %v", name, err)
	}
	return userID
}

func (f *fixture) book(t *testing.T, start string) *models.Appointment {
	t.Helper()
	appointment, err := f.ledger.Create(CreateRequest{
		PatientID: f.patient,
		DoctorID:  f.doctor,
		Date:      monday,
		StartTime: start,
		Type:      models.ConsultationInitial,
	})
	if err != nil {
		t.Fatalf("book %s: %v", start, err)
	}
	return appointment
}

// seedStatus plants an appointment already in the given status, bypassing the
// ledger, so transition guards can be probed state by state.
func (f *fixture) seedStatus(t *testing.T, start, status string) *models.Appointment {
	t.Helper()
	appointment := models.Appointment{
		Reference:       fmt.Sprintf("seed-%s-%s", start, status),
		PatientID:       f.patient,
		DoctorID:        f.doctor,
		Date:            monday,
		StartTime:       start,
		DurationMinutes: 30,
		Status:          status,
		FeeAmount:       150,
	}
	if err := f.db.Create(&appointment).Error; err != nil {
		t.Fatalf("seed %s appointment: %v", status, err)
	}
	return &appointment
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	appointment := f.book(t, "10:00")

	if appointment.Status != models.AppointmentPending {
		t.Errorf("new appointment status = %q, want pending", appointment.Status)
	}
	if appointment.Reference == "" {
		t.Errorf("new appointment has no reference")
	}
	if appointment.FeeAmount != 150 {
		t.Errorf("fee = %v, want the doctor's fee 150", appointment.FeeAmount)
	}
	if appointment.DurationMinutes != 30 {
		t.Errorf("duration = %d, want the 30 minute default", appointment.DurationMinutes)
	}
	if !appointment.Date.Equal(monday) {
		t.Errorf("date = %v, want %v", appointment.Date, monday)
	}
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	friday := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{
			"unapproved doctor",
			CreateRequest{PatientID: f.patient, DoctorID: f.unapproved, Date: monday, StartTime: "10:00"},
			scheduling.ErrDoctorNotApproved,
		},
		{
			"doctor id is not a doctor",
			CreateRequest{PatientID: f.patient, DoctorID: f.patient2, Date: monday, StartTime: "10:00"},
			scheduling.ErrNotFound,
		},
		{
			"unknown patient",
			CreateRequest{PatientID: 9999, DoctorID: f.doctor, Date: monday, StartTime: "10:00"},
			scheduling.ErrNotFound,
		},
		{
			"malformed start time",
			CreateRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "25:99"},
			scheduling.ErrInvalidInterval,
		},
		{
			// "9:30" and "09:30" must never name the same slot twice
			"unpadded start time",
			CreateRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "9:30"},
			scheduling.ErrInvalidInterval,
		},
		{
			"closed day",
			CreateRequest{PatientID: f.patient, DoctorID: f.doctor, Date: friday, StartTime: "10:00"},
			scheduling.ErrSlotUnavailable,
		},
		{
			"outside working hours",
			CreateRequest{PatientID: f.patient, DoctorID: f.doctor, Date: monday, StartTime: "07:00"},
			scheduling.ErrSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ledger.Create(tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreate_DoubleBooking(t *testing.T) {
	f := newFixture(t)
	f.book(t, "10:00")

	_, err := f.ledger.Create(CreateRequest{
		PatientID: f.patient2,
		DoctorID:  f.doctor,
		Date:      monday,
		StartTime: "10:00",
	})
	if !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("second booking = %v, want ErrSlotUnavailable", err)
	}

	// overlapping but not identical start collides too
	_, err = f.ledger.Create(CreateRequest{
		PatientID: f.patient2,
		DoctorID:  f.doctor,
		Date:      monday,
		StartTime: "10:15",
	})
	if !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("overlapping booking = %v, want ErrSlotUnavailable", err)
	}
}

// The partial unique index is the last line of defence when two writers pass
// the availability read at the same time.
func TestBookedSlotIndex_StopsRacingInsert(t *testing.T) {
	f := newFixture(t)
	f.book(t, "10:00")

	racing := models.Appointment{
		Reference:       "racing",
		PatientID:       f.patient2,
		DoctorID:        f.doctor,
		Date:            monday,
		StartTime:       "10:00",
		DurationMinutes: 30,
		Status:          models.AppointmentPending,
	}
	err := f.db.Create(&racing).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("racing insert = %v, want duplicated key", err)
	}
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t)
	appointment := f.book(t, "10:00")

	if _, err := f.ledger.Cancel(appointment.ID, f.admin, "schedule change"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rebooked, err := f.ledger.Create(CreateRequest{
		PatientID: f.patient2,
		DoctorID:  f.doctor,
		Date:      monday,
		StartTime: "10:00",
	})
	if err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
	if rebooked.PatientID != f.patient2 {
		t.Errorf("rebooked patient = %d, want %d", rebooked.PatientID, f.patient2)
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	appointment := f.book(t, "10:00")

	confirmed, err := f.ledger.Confirm(appointment.ID, f.doctor)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != models.AppointmentConfirmed {
		t.Errorf("status = %q, want confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil {
		t.Errorf("confirmed_at not set")
	}

	if _, err := f.ledger.Confirm(appointment.ID, f.doctor); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Errorf("double confirm = %v, want ErrInvalidTransition", err)
	}
}

func TestComplete_RecordsNotes(t *testing.T) {
	f := newFixture(t)
	appointment := f.book(t, "10:00")
	if _, err := f.ledger.Confirm(appointment.ID, f.doctor); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	completed, err := f.ledger.Complete(appointment.ID, f.doctor, "seen", "rest and fluids")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != models.AppointmentCompleted || completed.CompletedAt == nil {
		t.Errorf("completed = %q/%v", completed.Status, completed.CompletedAt)
	}
	if completed.Notes != "seen" || completed.Recommendations != "rest and fluids" {
		t.Errorf("notes not recorded: %+v", completed)
	}
}

func TestTransitionTable(t *testing.T) {
	states := []string{
		models.AppointmentPending,
		models.AppointmentConfirmed,
		models.AppointmentCompleted,
		models.AppointmentCancelled,
		models.AppointmentNoShow,
	}

	// which source states each operation accepts
	allowed := map[string]map[string]bool{
		"confirm":  {models.AppointmentPending: true},
		"cancel":   {models.AppointmentPending: true, models.AppointmentConfirmed: true},
		"complete": {models.AppointmentConfirmed: true},
		"no_show":  {models.AppointmentPending: true, models.AppointmentConfirmed: true},
	}

	for _, state := range states {
		for _, op := range []string{"confirm", "cancel", "complete", "no_show"} {
			t.Run(state+"_"+op, func(t *testing.T) {
				f := newFixture(t)
				appointment := f.seedStatus(t, "10:00", state)

				var err error
				switch op {
				case "confirm":
					_, err = f.ledger.Confirm(appointment.ID, f.doctor)
				case "cancel":
					_, err = f.ledger.Cancel(appointment.ID, f.admin, "x")
				case "complete":
					_, err = f.ledger.Complete(appointment.ID, f.doctor, "", "")
				case "no_show":
					_, err = f.ledger.MarkNoShow(appointment.ID, f.admin)
				}

				if allowed[op][state] {
					if err != nil {
						t.Errorf("%s from %s: %v, want success", op, state, err)
					}
				} else if !errors.Is(err, scheduling.ErrInvalidTransition) {
					t.Errorf("%s from %s: %v, want ErrInvalidTransition", op, state, err)
				}
			})
		}
	}
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		name string
		call func(f *fixture, id uint) error
	}{
		{"stranger cannot confirm", func(f *fixture, id uint) error {
			_, err := f.ledger.Confirm(id, f.stranger)
			return err
		}},
		{"patient cannot confirm", func(f *fixture, id uint) error {
			_, err := f.ledger.Confirm(id, f.patient)
			return err
		}},
		{"patient cannot complete", func(f *fixture, id uint) error {
			_, err := f.ledger.Complete(id, f.patient, "", "")
			return err
		}},
		{"doctor cannot mark no-show", func(f *fixture, id uint) error {
			_, err := f.ledger.MarkNoShow(id, f.doctor)
			return err
		}},
		{"stranger cannot cancel", func(f *fixture, id uint) error {
			_, err := f.ledger.Cancel(id, f.stranger, "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			appointment := f.book(t, "10:00")
			if err := tt.call(f, appointment.ID); !errors.Is(err, scheduling.ErrPermissionDenied) {
				t.Errorf("got %v, want ErrPermissionDenied", err)
			}
		})
	}
}

func TestCancel_CutoffBoundary(t *testing.T) {
	start := monday.Add(10 * time.Hour) // 10:00 on the booked day

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"just outside cutoff", start.Add(-24*time.Hour - time.Second), nil},
		{"exactly at cutoff", start.Add(-24 * time.Hour), scheduling.ErrTooLateToCancel},
		{"inside cutoff", start.Add(-23*time.Hour - 59*time.Minute), scheduling.ErrTooLateToCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			appointment := f.book(t, "10:00")

			f.clock.now = tt.now
			_, err := f.ledger.Cancel(appointment.ID, f.patient, "cannot make it")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("cancel at %v = %v, want %v", tt.now, err, tt.wantErr)
			}
		})
	}
}

func TestCancel_AdminExemptFromCutoff(t *testing.T) {
	f := newFixture(t)
	appointment := f.book(t, "10:00")

	f.clock.now = monday.Add(9 * time.Hour) // one hour before start
	cancelled, err := f.ledger.Cancel(appointment.ID, f.admin, "clinic emergency")
	if err != nil {
		t.Fatalf("admin late cancel: %v", err)
	}
	if cancelled.Status != models.AppointmentCancelled || cancelled.CancelledAt == nil {
		t.Errorf("cancelled = %q/%v", cancelled.Status, cancelled.CancelledAt)
	}
	if cancelled.CancelledBy == nil || *cancelled.CancelledBy != f.admin {
		t.Errorf("cancelled_by = %v, want %d", cancelled.CancelledBy, f.admin)
	}
}

func TestCancel_DoctorBoundByDefaultCutoff(t *testing.T) {
	f := newFixture(t)
	appointment := f.book(t, "10:00")

	f.clock.now = monday.Add(9 * time.Hour)
	if _, err := f.ledger.Cancel(appointment.ID, f.doctor, "overrun"); !errors.Is(err, scheduling.ErrTooLateToCancel) {
		t.Fatalf("doctor late cancel = %v, want ErrTooLateToCancel", err)
	}

	f.ledger.WithCancellationPolicy(scheduling.CancellationPolicy{
		Cutoff:      24 * time.Hour,
		ExemptRoles: []string{models.RoleAdmin, models.RoleDoctor},
	})
	if _, err := f.ledger.Cancel(appointment.ID, f.doctor, "overrun"); err != nil {
		t.Fatalf("exempt doctor late cancel: %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	appointment := f.book(t, "10:00")

	payment, err := f.ledger.RecordPayment(appointment.ID, f.patient, 150, "card", "")
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if payment.Reference == "" {
		t.Errorf("payment reference not generated")
	}

	var reloaded models.Appointment
	if err := f.db.First(&reloaded, appointment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsPaid {
		t.Errorf("appointment not marked paid")
	}
	if reloaded.FeeAmount != 150 {
		t.Errorf("fee changed to %v on payment", reloaded.FeeAmount)
	}

	if _, err := f.ledger.RecordPayment(appointment.ID, f.stranger, 150, "card", ""); !errors.Is(err, scheduling.ErrPermissionDenied) {
		t.Errorf("stranger payment = %v, want ErrPermissionDenied", err)
	}
}

func TestGet_Missing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.Get(4242); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("Get(4242) = %v, want ErrNotFound", err)
	}
}
