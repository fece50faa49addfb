package scheduling

import (
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
)

// ClosedWeekday is the clinic-wide closed day. It applies to every doctor and
// is not per-doctor configuration.
const ClosedWeekday = time.Friday

const ClosedDayMessage = "the clinic is closed on this day"

// IsClinicClosed is the single definition of the closed-day rule. Every entry
// point that cares about it calls this instead of re-checking the weekday.
func IsClinicClosed(date time.Time) bool {
	return date.Weekday() == ClosedWeekday
}

// Operation names an authorization-sensitive action on an appointment or one
// of its reschedule requests.
type Operation string

const (
	OpConfirm           Operation = "confirm"
	OpCancel            Operation = "cancel"
	OpComplete          Operation = "complete"
	OpMarkNoShow        Operation = "mark_no_show"
	OpProposeReschedule Operation = "propose_reschedule"
	OpRespondReschedule Operation = "respond_reschedule"
)

// Relation is the actor's relation to the appointment in question.
type Relation string

const (
	RelationPatient Relation = "patient"
	RelationDoctor  Relation = "doctor"
	RelationAdmin   Relation = "admin"
	RelationNone    Relation = "none"
)

// transitionACL is the whole authorization model for appointment mutations:
// one table instead of role checks scattered through handlers.
var transitionACL = map[Operation]map[Relation]bool{
	OpConfirm: {
		RelationDoctor: true,
		RelationAdmin:  true,
	},
	OpCancel: {
		RelationPatient: true,
		RelationDoctor:  true,
		RelationAdmin:   true,
	},
	OpComplete: {
		RelationDoctor: true,
	},
	OpMarkNoShow: {
		RelationAdmin: true,
	},
	OpProposeReschedule: {
		RelationPatient: true,
		RelationDoctor:  true,
		RelationAdmin:   true,
	},
	OpRespondReschedule: {
		RelationDoctor: true,
		RelationAdmin:  true,
	},
}

// Allowed reports whether the relation may perform the operation.
func Allowed(op Operation, rel Relation) bool {
	return transitionACL[op][rel]
}

// RelationTo classifies an actor against an appointment's parties. Admins
// outrank party membership.
func RelationTo(actor Account, patientID, doctorID uint) Relation {
	switch {
	case actor.Role == models.RoleAdmin:
		return RelationAdmin
	case actor.ID == doctorID:
		return RelationDoctor
	case actor.ID == patientID:
		return RelationPatient
	default:
		return RelationNone
	}
}

// CancellationPolicy implements the cutoff rule. Roles listed in ExemptRoles
// may cancel inside the cutoff; by default only admins are exempt, keeping
// the patient-facing 24 hour rule symmetric for doctors until the clinic
// decides otherwise.
type CancellationPolicy struct {
	Cutoff      time.Duration
	ExemptRoles []string
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{
		Cutoff:      24 * time.Hour,
		ExemptRoles: []string{models.RoleAdmin},
	}
}

// Allows reports whether an actor with the given role may cancel an
// appointment starting at start, as of now.
func (p CancellationPolicy) Allows(now, start time.Time, role string) bool {
	for _, exempt := range p.ExemptRoles {
		if role == exempt {
			return true
		}
	}
	return start.Sub(now) > p.Cutoff
}
