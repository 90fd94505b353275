// Package booking - черновики записи, выбор слотов и изменения записей.
package booking

import (
	"coachbot/clients/coachapi"
	"coachbot/internal/validation"
)

// ValidationError - ошибка ввода, обнаруженная до запроса к API
type ValidationError = validation.ValidationError

// Policy - как применять предложенный тип визита
type Policy int

const (
	// SuggestOnly - тип только предлагается, применяет его пользователь
	SuggestOnly Policy = iota
	// AutoApply - предложение применяется, пока пользователь не выбрал тип сам
	AutoApply
)

// apply возвращает тип визита после смены числа участников.
// chosen - тип выбран пользователем явно и не перезаписывается.
func (p Policy) apply(current coachapi.AppointmentType, chosen bool, count int) coachapi.AppointmentType {
	if p != AutoApply || chosen {
		return current
	}
	if t, ok := SuggestType(count); ok {
		return t
	}
	return current
}

// SuggestType выводит тип визита из числа участников: 1 - personal, 2 - split, 3+ - group.
// Для 0 участников предложения нет.
func SuggestType(count int) (coachapi.AppointmentType, bool) {
	switch {
	case count <= 0:
		return "", false
	case count == 1:
		return coachapi.TypePersonal, true
	case count == 2:
		return coachapi.TypeSplit, true
	default:
		return coachapi.TypeGroup, true
	}
}

// ArityOK проверяет число участников для типа визита
func ArityOK(t coachapi.AppointmentType, count int) bool {
	switch t {
	case coachapi.TypePersonal:
		return count == 1
	case coachapi.TypeSplit:
		return count == 2
	case coachapi.TypeGroup:
		return count >= 3
	case coachapi.TypeUnavailable:
		return count == 0
	}
	return false
}

// ValidateArity возвращает ошибку с ключом сообщения для типа визита
func ValidateArity(t coachapi.AppointmentType, count int) error {
	if ArityOK(t, count) {
		return nil
	}
	switch t {
	case coachapi.TypePersonal, coachapi.TypeSplit, coachapi.TypeGroup, coachapi.TypeUnavailable:
		return ValidationError{Field: "clients", Key: "validation_" + string(t) + "_arity"}
	}
	return ValidationError{Field: "type", Key: "validation_type"}
}
