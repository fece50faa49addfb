package scheduling

import (
	"errors"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"gorm.io/gorm"
)

// Clock is abstracted so the cancellation cutoff rule is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Account is the identity view the scheduling core needs from the user
// directory. Approved and ConsultationFee are zero-valued for non-doctors.
type Account struct {
	ID              uint
	FullName        string
	Email           string
	Role            string
	Approved        bool
	ConsultationFee float64
}

// UserDirectory resolves user ids to accounts. The scheduling core never
// reads user rows directly.
type UserDirectory interface {
	Get(userID uint) (Account, error)
}

// NotificationSink receives domain events fire-and-forget. Implementations
// must swallow and log their own failures; a scheduling action stays
// authoritative even when its notification cannot be delivered.
type NotificationSink interface {
	Emit(event string, userID uint, payload map[string]interface{})
}

// NopSink discards events. Used in tests and as a safe default.
type NopSink struct{}

func (NopSink) Emit(string, uint, map[string]interface{}) {}

// GormDirectory is the in-process UserDirectory over the users table.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) Get(userID uint) (Account, error) {
	var user models.User
	if err := d.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}

	account := Account{
		ID:       user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
	}

	if user.Role == models.RoleDoctor {
		var doctor models.Doctor
		if err := d.db.Where("user_id = ?", user.ID).First(&doctor).Error; err == nil {
			account.Approved = doctor.Approved
			account.ConsultationFee = doctor.ConsultationFee
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, err
		}
	}

	return account, nil
}
