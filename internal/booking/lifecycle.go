package booking

import "coachbot/clients/coachapi"

// CanTransition проверяет переход статуса записи.
// pending -> confirmed | cancelled, confirmed -> cancelled, confirmed -> confirmed (правка).
// В pending вернуться нельзя, отмена окончательна.
func CanTransition(from, to coachapi.AppointmentStatus) bool {
	switch from {
	case coachapi.StatusPending:
		return to == coachapi.StatusConfirmed || to == coachapi.StatusCancelled
	case coachapi.StatusConfirmed:
		return to == coachapi.StatusConfirmed || to == coachapi.StatusCancelled
	}
	return false
}

// Editable - запись можно править на месте
func Editable(a coachapi.Appointment) bool {
	return a.Status == coachapi.StatusConfirmed
}

// Cancellable - запись можно отменить
func Cancellable(a coachapi.Appointment) bool {
	return CanTransition(a.Status, coachapi.StatusCancelled)
}

// Confirmable - заявку можно подтвердить
func Confirmable(a coachapi.Appointment) bool {
	return a.Status == coachapi.StatusPending
}
