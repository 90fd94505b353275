package booking

import (
	"strings"

	"coachbot/clients/coachapi"
)

// GroupDraft - создание сплит или групповой тренировки тренером.
// Участники выбираются либо все подписчики сразу, либо вручную; режимы взаимоисключающие.
type GroupDraft struct {
	Range       TimeRange
	typ         coachapi.AppointmentType
	typeChosen  bool
	policy      Policy
	all         bool
	selected    []int64
	description string
}

// NewGroupDraft создаёт черновик с типом split или group
func NewGroupDraft(t coachapi.AppointmentType, policy Policy) *GroupDraft {
	return &GroupDraft{typ: t, policy: policy}
}

// Clone возвращает независимую копию черновика
func (g *GroupDraft) Clone() *GroupDraft {
	c := *g
	c.Range = g.Range.clone()
	c.selected = append([]int64(nil), g.selected...)
	return &c
}

// ChooseType - явный выбор типа тренером, предложения его больше не меняют
func (g *GroupDraft) ChooseType(t coachapi.AppointmentType) {
	g.typ = t
	g.typeChosen = true
}

// Resuggest пересчитывает тип по выбранным участникам согласно политике.
// Предлагаются только split и group.
func (g *GroupDraft) Resuggest(subscribers []coachapi.PersonRef) {
	t := g.policy.apply(g.typ, g.typeChosen, len(g.Participants(subscribers)))
	if t == coachapi.TypeSplit || t == coachapi.TypeGroup {
		g.typ = t
	}
}

// Type возвращает тип визита
func (g *GroupDraft) Type() coachapi.AppointmentType {
	return g.typ
}

// SelectAll выбирает всех подписчиков и сбрасывает ручной выбор
func (g *GroupDraft) SelectAll() {
	g.all = true
	g.selected = nil
}

// AllSelected - выбраны все подписчики
func (g *GroupDraft) AllSelected() bool {
	return g.all
}

// Toggle добавляет или убирает клиента из ручного выбора и снимает режим "все"
func (g *GroupDraft) Toggle(clientID int64) {
	g.all = false
	for i, id := range g.selected {
		if id == clientID {
			g.selected = append(g.selected[:i], g.selected[i+1:]...)
			return
		}
	}
	g.selected = append(g.selected, clientID)
}

// IsSelected - клиент выбран вручную
func (g *GroupDraft) IsSelected(clientID int64) bool {
	for _, id := range g.selected {
		if id == clientID {
			return true
		}
	}
	return false
}

// SetDescription задаёт комментарий
func (g *GroupDraft) SetDescription(s string) {
	g.description = strings.TrimSpace(s)
}

// Participants возвращает участников из списка подписчиков.
// Клиенты без chat_id или locale отбрасываются: им нельзя отправить уведомление.
func (g *GroupDraft) Participants(subscribers []coachapi.PersonRef) []coachapi.PersonRef {
	out := make([]coachapi.PersonRef, 0, len(subscribers))
	for _, s := range subscribers {
		if !s.Notifiable() {
			continue
		}
		if g.all || g.IsSelected(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// Validate проверяет интервал, тип и число участников
func (g *GroupDraft) Validate(subscribers []coachapi.PersonRef) error {
	if err := g.Range.validate(); err != nil {
		return err
	}
	if g.typ != coachapi.TypeSplit && g.typ != coachapi.TypeGroup {
		return ValidationError{Field: "type", Key: "validation_type"}
	}
	return ValidateArity(g.typ, len(g.Participants(subscribers)))
}

// Request строит запрос создания визита
func (g *GroupDraft) Request(subscribers []coachapi.PersonRef) (coachapi.GroupVisitRequest, error) {
	if err := g.Validate(subscribers); err != nil {
		return coachapi.GroupVisitRequest{}, err
	}
	participants := g.Participants(subscribers)
	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	start, end := g.Range.Bounds()
	return coachapi.GroupVisitRequest{
		StartTime:   start,
		EndTime:     end,
		Type:        g.typ,
		Description: g.description,
		ClientIDs:   ids,
	}, nil
}

// UnavailableDraft - блок недоступного времени тренера, без участников
type UnavailableDraft struct {
	Range       TimeRange
	description string
}

// Clone возвращает независимую копию черновика
func (u *UnavailableDraft) Clone() *UnavailableDraft {
	c := *u
	c.Range = u.Range.clone()
	return &c
}

// SetDescription задаёт причину блока
func (u *UnavailableDraft) SetDescription(s string) {
	u.description = strings.TrimSpace(s)
}

// Request строит запрос блока недоступности
func (u *UnavailableDraft) Request() (coachapi.UnavailableRequest, error) {
	if err := u.Range.validate(); err != nil {
		return coachapi.UnavailableRequest{}, err
	}
	if err := ValidateArity(coachapi.TypeUnavailable, 0); err != nil {
		return coachapi.UnavailableRequest{}, err
	}
	start, end := u.Range.Bounds()
	return coachapi.UnavailableRequest{StartTime: start, EndTime: end, Description: u.description}, nil
}
