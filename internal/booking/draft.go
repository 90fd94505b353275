package booking

import (
	"strings"

	"coachbot/clients/coachapi"
)

// Draft - черновик записи клиента к тренеру.
// Поля зависят друг от друга: смена тренера сбрасывает дату и слот, смена даты - слот.
// Черновик живёт только в памяти и теряется при уходе с экрана.
type Draft struct {
	professional *coachapi.PersonRef
	date         string
	slot         *coachapi.AvailabilitySlot
	participants []coachapi.PersonRef
	description  string

	typ        coachapi.AppointmentType
	typeChosen bool
	policy     Policy
}

// NewDraft создаёт пустой черновик с политикой применения предложенного типа
func NewDraft(policy Policy) *Draft {
	return &Draft{policy: policy}
}

// Clone возвращает независимую копию черновика
func (d *Draft) Clone() *Draft {
	c := *d
	if d.professional != nil {
		p := *d.professional
		c.professional = &p
	}
	if d.slot != nil {
		sl := *d.slot
		c.slot = &sl
	}
	c.participants = append([]coachapi.PersonRef(nil), d.participants...)
	return &c
}

// SetProfessional выбирает тренера и сбрасывает дату и слот
func (d *Draft) SetProfessional(p coachapi.PersonRef) {
	d.professional = &p
	d.date = ""
	d.slot = nil
}

// SetDate выбирает дату YYYY-MM-DD и сбрасывает слот
func (d *Draft) SetDate(date string) {
	d.date = date
	d.slot = nil
}

// SetSlot выбирает слот. Недоступный слот не выбирается.
func (d *Draft) SetSlot(s coachapi.AvailabilitySlot) error {
	if !s.Available {
		return ValidationError{Field: "slot", Key: "validation_slot_unavailable"}
	}
	d.slot = &s
	return nil
}

// SetParticipants меняет участников и пересчитывает предложенный тип.
// Выбранный пользователем тип не перезаписывается.
func (d *Draft) SetParticipants(ps []coachapi.PersonRef) {
	d.participants = append([]coachapi.PersonRef(nil), ps...)
	d.typ = d.policy.apply(d.typ, d.typeChosen, len(d.participants))
}

// ChooseType - явный выбор типа пользователем
func (d *Draft) ChooseType(t coachapi.AppointmentType) {
	d.typ = t
	d.typeChosen = true
}

// AcceptSuggestion применяет предложенный тип
func (d *Draft) AcceptSuggestion() bool {
	t, ok := SuggestType(len(d.participants))
	if !ok {
		return false
	}
	d.typ = t
	d.typeChosen = true
	return true
}

// Suggested - тип, предложенный по числу участников
func (d *Draft) Suggested() (coachapi.AppointmentType, bool) {
	return SuggestType(len(d.participants))
}

// SetDescription задаёт комментарий к записи
func (d *Draft) SetDescription(s string) {
	d.description = strings.TrimSpace(s)
}

func (d *Draft) Professional() *coachapi.PersonRef { return d.professional }
func (d *Draft) Date() string { return d.date }
func (d *Draft) Slot() *coachapi.AvailabilitySlot { return d.slot }
func (d *Draft) Participants() []coachapi.PersonRef { return d.participants }
func (d *Draft) Type() coachapi.AppointmentType { return d.typ }
func (d *Draft) Description() string { return d.description }

// Validate проверяет обязательные поля и число участников
func (d *Draft) Validate() error {
	switch {
	case d.professional == nil:
		return ValidationError{Field: "professional_id", Key: "validation_professional"}
	case d.date == "":
		return ValidationError{Field: "date", Key: "validation_date"}
	case d.slot == nil:
		return ValidationError{Field: "slot", Key: "validation_slot"}
	case d.typ == "":
		return ValidationError{Field: "type", Key: "validation_type"}
	}
	return ValidateArity(d.typ, len(d.participants))
}

// CanConfirm - можно ли отправлять черновик
func (d *Draft) CanConfirm() bool {
	return d.Validate() == nil
}

// Request строит запрос записи
func (d *Draft) Request() (coachapi.BookRequest, error) {
	if err := d.Validate(); err != nil {
		return coachapi.BookRequest{}, err
	}
	return coachapi.BookRequest{
		ProfessionalID: d.professional.ID,
		StartTime:      Stamp(d.date, d.slot.StartTime),
		EndTime:        Stamp(d.date, d.slot.EndTime),
		Type:           d.typ,
		Description:    d.description,
	}, nil
}
