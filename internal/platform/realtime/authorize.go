package realtime

import (
	"errors"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

var (
	ErrUnknownTable    = errors.New("table does not publish changes")
	ErrFilterNotPinned = errors.New("filter must select the caller's own records")
	ErrRoleNotAllowed  = errors.New("role may not subscribe to this table")
)

// Authorize decides whether id may open a subscription on table with filter.
// Conversation and appointment feeds must be pinned to the caller's side of
// the pair. Report notifications carry no report content and are open to
// every doctor, matching the shared pending queue.
func Authorize(id *auth.Identity, table string, filter Filter) error {
	switch table {
	case TableChatMessages, TableAppointments, TableDoctorPatients:
		column := ""
		switch id.Role {
		case auth.RolePatient:
			column = "patient_id"
		case auth.RoleDoctor:
			column = "doctor_id"
		default:
			return ErrRoleNotAllowed
		}
		if filter[column] != id.ProfileID.String() {
			return ErrFilterNotPinned
		}
		return nil
	case TableSymptomReports:
		if id.Role != auth.RoleDoctor {
			return ErrRoleNotAllowed
		}
		return nil
	default:
		return ErrUnknownTable
	}
}
