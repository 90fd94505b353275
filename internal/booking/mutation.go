package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"coachbot/clients/coachapi"
	"coachbot/internal/host"
	"coachbot/internal/i18n"
	"coachbot/internal/validation"
)

// ErrorKind - класс ошибки изменения записи
type ErrorKind string

const (
	KindValidation ErrorKind = "validation" // до запроса, на сервер не уходит
	KindConflict   ErrorKind = "conflict"   // 409 при подтверждении
	KindGeneric    ErrorKind = "generic"
)

// MutationError - ошибка изменения. Message уже содержит текст для пользователя.
type MutationError struct {
	Kind    ErrorKind
	Key     string
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Key)
}

func (e *MutationError) Unwrap() error { return e.Err }

// API - методы REST API, которые вызывают изменения
type API interface {
	BookAppointment(ctx context.Context, req coachapi.BookRequest) (*coachapi.Appointment, error)
	ConfirmAppointment(ctx context.Context, id int64) (*coachapi.Appointment, error)
	CancelAppointment(ctx context.Context, id int64, reason string) (*coachapi.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, req coachapi.UpdateRequest) (*coachapi.Appointment, error)
	CreateGroupVisit(ctx context.Context, req coachapi.GroupVisitRequest) (*coachapi.Appointment, error)
	CreateUnavailable(ctx context.Context, req coachapi.UnavailableRequest) (*coachapi.Appointment, error)
	CreatePackage(ctx context.Context, req coachapi.CreatePackageRequest) (*coachapi.Package, error)
	NotifyAppointmentRequest(ctx context.Context, n coachapi.Notification) error
	NotifyCancellation(ctx context.Context, n coachapi.Notification) error
}

// Translator переводит ключи сообщений
type Translator interface {
	T(key string, lang i18n.Language) string
}

// Mutator выполняет изменения записей от имени пользователя одного взаимодействия.
// Об успехе и ошибке сообщает через мост хоста.
type Mutator struct {
	api      API
	bridge   host.Bridge
	tr       Translator
	lang     i18n.Language
	validate *validation.Validator
	log      *zap.Logger

	// Actor - имя пользователя для уведомлений второй стороне
	Actor string
}

// NewMutator создаёт исполнитель изменений. bridge == nil - host.Noop.
func NewMutator(api API, bridge host.Bridge, tr Translator, lang i18n.Language, v *validation.Validator, log *zap.Logger) *Mutator {
	if bridge == nil {
		bridge = host.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if v == nil {
		v = validation.New()
	}
	return &Mutator{api: api, bridge: bridge, tr: tr, lang: lang, validate: v, log: log}
}

func (m *Mutator) invalid(err error) *MutationError {
	var ve ValidationError
	key := "error_generic"
	if errors.As(err, &ve) {
		key = ve.Key
	}
	m.bridge.NotifyError()
	return &MutationError{Kind: KindValidation, Key: key, Message: m.tr.T(key, m.lang), Err: err}
}

// fail классифицирует ошибку API: текст сервера или общий текст.
// conflictKey != "" - 409 получает своё сообщение, так делает только подтверждение.
func (m *Mutator) fail(err error, conflictKey string) *MutationError {
	m.bridge.NotifyError()

	if conflictKey != "" && errors.Is(err, coachapi.ErrConflict) {
		return &MutationError{Kind: KindConflict, Key: conflictKey, Message: m.tr.T(conflictKey, m.lang), Err: err}
	}

	msg := coachapi.ServerMessage(err)
	if msg == "" {
		msg = m.tr.T("error_generic", m.lang)
	}
	return &MutationError{Kind: KindGeneric, Key: "error_generic", Message: msg, Err: err}
}

func (m *Mutator) succeed() {
	m.bridge.NotifySuccess()
}

// notify отправляет уведомление, ошибка только логируется
func (m *Mutator) notify(ctx context.Context, kind string, send func(context.Context, coachapi.Notification) error, to *coachapi.PersonRef, appt coachapi.Appointment, reason string) {
	if to == nil {
		return
	}
	n, ok := coachapi.NewNotification(*to, appt, m.Actor)
	if !ok {
		m.log.Debug("адресат без chat_id или locale, уведомление пропущено",
			zap.String("kind", kind), zap.Int64("person_id", to.ID))
		return
	}
	n.Reason = reason
	if err := send(ctx, n); err != nil {
		m.log.Warn("не удалось отправить уведомление",
			zap.String("kind", kind), zap.Int64("appointment_id", appt.ID), zap.Error(err))
	}
}

// Create отправляет черновик клиента. onSuccess вызывается после успешной записи.
func (m *Mutator) Create(ctx context.Context, d *Draft, onSuccess func(*coachapi.Appointment)) (*coachapi.Appointment, error) {
	req, err := d.Request()
	if err != nil {
		return nil, m.invalid(err)
	}
	if err := m.validate.Struct(req); err != nil {
		return nil, m.invalid(err)
	}

	appt, err := m.api.BookAppointment(ctx, req)
	if err != nil {
		return nil, m.fail(err, "")
	}
	m.succeed()

	if appt.Professional == nil {
		appt.Professional = d.Professional()
	}
	m.notify(ctx, "appointment_request", m.api.NotifyAppointmentRequest, appt.Professional, *appt, "")

	if onSuccess != nil {
		onSuccess(appt)
	}
	return appt, nil
}

// CreateGroup создаёт сплит или групповую тренировку из подписчиков
func (m *Mutator) CreateGroup(ctx context.Context, g *GroupDraft, subscribers []coachapi.PersonRef, onSuccess func(*coachapi.Appointment)) (*coachapi.Appointment, error) {
	req, err := g.Request(subscribers)
	if err != nil {
		return nil, m.invalid(err)
	}
	if err := m.validate.Struct(req); err != nil {
		return nil, m.invalid(err)
	}

	appt, err := m.api.CreateGroupVisit(ctx, req)
	if err != nil {
		return nil, m.fail(err, "")
	}
	m.succeed()
	if onSuccess != nil {
		onSuccess(appt)
	}
	return appt, nil
}

// CreateUnavailable создаёт блок недоступного времени
func (m *Mutator) CreateUnavailable(ctx context.Context, u *UnavailableDraft, onSuccess func(*coachapi.Appointment)) (*coachapi.Appointment, error) {
	req, err := u.Request()
	if err != nil {
		return nil, m.invalid(err)
	}
	if err := m.validate.Struct(req); err != nil {
		return nil, m.invalid(err)
	}

	appt, err := m.api.CreateUnavailable(ctx, req)
	if err != nil {
		return nil, m.fail(err, "")
	}
	m.succeed()
	if onSuccess != nil {
		onSuccess(appt)
	}
	return appt, nil
}

// Confirm подтверждает заявку. 409 означает пересечение по времени.
func (m *Mutator) Confirm(ctx context.Context, appt coachapi.Appointment) (*coachapi.Appointment, error) {
	if !Confirmable(appt) {
		return nil, m.invalid(ValidationError{Field: "status", Key: "error_invalid_transition"})
	}
	updated, err := m.api.ConfirmAppointment(ctx, appt.ID)
	if err != nil {
		return nil, m.fail(err, "error_time_conflict")
	}
	m.succeed()
	return updated, nil
}

// Cancel отменяет запись с непустой причиной.
// counterparty != nil - вторая сторона получает уведомление; его сбой не мешает отмене.
func (m *Mutator) Cancel(ctx context.Context, appt coachapi.Appointment, reason string, counterparty *coachapi.PersonRef) (*coachapi.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, m.invalid(ValidationError{Field: "cancellation_reason", Key: "validation_cancellation_reason"})
	}
	if !Cancellable(appt) {
		return nil, m.invalid(ValidationError{Field: "status", Key: "error_invalid_transition"})
	}

	updated, err := m.api.CancelAppointment(ctx, appt.ID, reason)
	if err != nil {
		return nil, m.fail(err, "")
	}
	m.succeed()

	m.notify(ctx, "cancellation", m.api.NotifyCancellation, counterparty, appt, reason)
	return updated, nil
}

// Edit - правка подтверждённой записи. Нулевые поля не меняются.
type Edit struct {
	Description *string
	Type        coachapi.AppointmentType
	ClientIDs   []int64
	StartTime   string
	EndTime     string
}

// Update правит подтверждённую запись.
// Тип проверяется по числу участников после правки; итоговый список участников определяет сервер.
func (m *Mutator) Update(ctx context.Context, appt coachapi.Appointment, e Edit) (*coachapi.Appointment, error) {
	if !Editable(appt) {
		return nil, m.invalid(ValidationError{Field: "status", Key: "error_invalid_transition"})
	}

	typ := appt.Type
	if e.Type != "" {
		typ = e.Type
	}
	count := len(appt.Clients)
	if e.ClientIDs != nil {
		count = len(e.ClientIDs)
	}
	if err := ValidateArity(typ, count); err != nil {
		return nil, m.invalid(err)
	}
	if (e.StartTime == "") != (e.EndTime == "") {
		return nil, m.invalid(ValidationError{Field: "end_time", Key: "validation_end_time"})
	}

	req := coachapi.UpdateRequest{
		Description: e.Description,
		Type:        e.Type,
		ClientIDs:   e.ClientIDs,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
	}
	updated, err := m.api.UpdateAppointment(ctx, appt.ID, req)
	if err != nil {
		return nil, m.fail(err, "")
	}
	m.succeed()
	return updated, nil
}

// CreatePackage выдаёт пакет тренировок клиенту
func (m *Mutator) CreatePackage(ctx context.Context, req coachapi.CreatePackageRequest) (*coachapi.Package, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, m.invalid(err)
	}
	if req.ExpiresAt < req.IssuedAt {
		return nil, m.invalid(ValidationError{Field: "expires_at", Key: "validation_expires_at"})
	}

	pkg, err := m.api.CreatePackage(ctx, req)
	if err != nil {
		return nil, m.fail(err, "")
	}
	m.succeed()
	return pkg, nil
}
