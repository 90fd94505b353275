package booking

import (
	"context"
	"errors"
	"testing"

	"coachbot/clients/coachapi"
	"coachbot/internal/host"
	"coachbot/internal/i18n"
)

type keyTranslator struct{}

func (keyTranslator) T(key string, lang i18n.Language) string { return string(lang) + ":" + key }

type fakeAPI struct {
	calls      []string
	err        error
	notifyErr  error
	notified   []coachapi.Notification
	lastBook   coachapi.BookRequest
	lastUpdate coachapi.UpdateRequest
	lastReason string
}

func (f *fakeAPI) record(name string) (*coachapi.Appointment, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	return &coachapi.Appointment{ID: 100, Status: coachapi.StatusConfirmed}, nil
}

func (f *fakeAPI) BookAppointment(_ context.Context, req coachapi.BookRequest) (*coachapi.Appointment, error) {
	f.lastBook = req
	return f.record("book")
}

func (f *fakeAPI) ConfirmAppointment(context.Context, int64) (*coachapi.Appointment, error) {
	return f.record("confirm")
}

func (f *fakeAPI) CancelAppointment(_ context.Context, _ int64, reason string) (*coachapi.Appointment, error) {
	f.lastReason = reason
	return f.record("cancel")
}

func (f *fakeAPI) UpdateAppointment(_ context.Context, _ int64, req coachapi.UpdateRequest) (*coachapi.Appointment, error) {
	f.lastUpdate = req
	return f.record("update")
}

func (f *fakeAPI) CreateGroupVisit(context.Context, coachapi.GroupVisitRequest) (*coachapi.Appointment, error) {
	return f.record("group")
}

func (f *fakeAPI) CreateUnavailable(context.Context, coachapi.UnavailableRequest) (*coachapi.Appointment, error) {
	return f.record("unavailable")
}

func (f *fakeAPI) CreatePackage(context.Context, coachapi.CreatePackageRequest) (*coachapi.Package, error) {
	f.calls = append(f.calls, "package")
	if f.err != nil {
		return nil, f.err
	}
	return &coachapi.Package{ID: 7}, nil
}

func (f *fakeAPI) NotifyAppointmentRequest(_ context.Context, n coachapi.Notification) error {
	f.calls = append(f.calls, "notify_request")
	f.notified = append(f.notified, n)
	return f.notifyErr
}

func (f *fakeAPI) NotifyCancellation(_ context.Context, n coachapi.Notification) error {
	f.calls = append(f.calls, "notify_cancel")
	f.notified = append(f.notified, n)
	return f.notifyErr
}

func newMutator(api *fakeAPI) (*Mutator, *host.Recorder) {
	rec := &host.Recorder{}
	m := NewMutator(api, rec, keyTranslator{}, i18n.LangEnglish, nil, nil)
	m.Actor = "Ann Client"
	return m, rec
}

func readyDraft(pro coachapi.PersonRef) *Draft {
	d := NewDraft(AutoApply)
	d.SetProfessional(pro)
	d.SetDate("2024-06-01")
	d.SetSlot(daySlots[0])
	d.SetParticipants([]coachapi.PersonRef{{ID: 5}})
	return d
}

func TestCreate(t *testing.T) {
	api := &fakeAPI{}
	m, rec := newMutator(api)
	pro := coachapi.PersonRef{ID: 1, ChatID: ptr(int64(77)), Locale: ptr("ru")}

	var got *coachapi.Appointment
	_, err := m.Create(context.Background(), readyDraft(pro), func(a *coachapi.Appointment) { got = a })
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got == nil || got.ID != 100 {
		t.Error("onSuccess не вызван")
	}
	if rec.Successes != 1 {
		t.Errorf("Successes = %d", rec.Successes)
	}
	if len(api.notified) != 1 || api.notified[0].ChatID != 77 || api.notified[0].FromName != "Ann Client" {
		t.Errorf("notified = %+v", api.notified)
	}
	if api.lastBook.ProfessionalID != 1 || api.lastBook.Type != coachapi.TypePersonal {
		t.Errorf("book = %+v", api.lastBook)
	}
}

func TestCreateValidationSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	m, rec := newMutator(api)

	d := NewDraft(AutoApply)
	d.SetProfessional(coachapi.PersonRef{ID: 1})
	_, err := m.Create(context.Background(), d, nil)

	var me *MutationError
	if !errors.As(err, &me) || me.Kind != KindValidation || me.Key != "validation_date" {
		t.Fatalf("Create() error = %v", err)
	}
	if me.Message != "en:validation_date" {
		t.Errorf("Message = %q", me.Message)
	}
	if len(api.calls) != 0 {
		t.Errorf("запросы к API: %v", api.calls)
	}
	if rec.Errors != 1 {
		t.Errorf("Errors = %d", rec.Errors)
	}
}

func TestCreateServerMessage(t *testing.T) {
	api := &fakeAPI{err: &coachapi.APIError{StatusCode: 500, Message: "db down"}}
	m, _ := newMutator(api)

	_, err := m.Create(context.Background(), readyDraft(coachapi.PersonRef{ID: 1}), nil)
	var me *MutationError
	if !errors.As(err, &me) || me.Kind != KindGeneric || me.Message != "db down" {
		t.Fatalf("Create() error = %v", err)
	}

	api.err = errors.New("dial tcp: refused")
	_, err = m.Create(context.Background(), readyDraft(coachapi.PersonRef{ID: 1}), nil)
	if !errors.As(err, &me) || me.Message != "en:error_generic" {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestConfirmConflict(t *testing.T) {
	pending := coachapi.Appointment{ID: 3, Status: coachapi.StatusPending}

	tests := []struct {
		name    string
		err     error
		appt    coachapi.Appointment
		kind    ErrorKind
		message string
	}{
		{"conflict", &coachapi.APIError{StatusCode: 409, Message: "overlap"}, pending, KindConflict, "en:error_time_conflict"},
		{"generic", &coachapi.APIError{StatusCode: 500}, pending, KindGeneric, "en:error_generic"},
		{"gone", &coachapi.APIError{StatusCode: 404, Message: "appointment removed"}, pending, KindGeneric, "appointment removed"},
		{"already cancelled", nil, coachapi.Appointment{ID: 3, Status: coachapi.StatusCancelled}, KindValidation, "en:error_invalid_transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMutator(&fakeAPI{err: tt.err})
			_, err := m.Confirm(context.Background(), tt.appt)
			var me *MutationError
			if !errors.As(err, &me) {
				t.Fatalf("Confirm() error = %v", err)
			}
			if me.Kind != tt.kind || me.Message != tt.message {
				t.Errorf("MutationError = %+v", me)
			}
		})
	}
}

func TestCancelRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\n\t"} {
		api := &fakeAPI{}
		m, _ := newMutator(api)
		_, err := m.Cancel(context.Background(), coachapi.Appointment{ID: 1, Status: coachapi.StatusConfirmed}, reason, nil)
		var me *MutationError
		if !errors.As(err, &me) || me.Kind != KindValidation || me.Key != "validation_cancellation_reason" {
			t.Errorf("Cancel(%q) error = %v", reason, err)
		}
		if len(api.calls) != 0 {
			t.Errorf("Cancel(%q) обратился к API: %v", reason, api.calls)
		}
	}
}

func TestCancelNotificationFailureSwallowed(t *testing.T) {
	api := &fakeAPI{notifyErr: errors.New("notifier down")}
	m, rec := newMutator(api)
	pro := &coachapi.PersonRef{ID: 1, ChatID: ptr(int64(9)), Locale: ptr("en")}

	_, err := m.Cancel(context.Background(), coachapi.Appointment{ID: 1, Status: coachapi.StatusPending}, " заболел ", pro)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if api.lastReason != "заболел" {
		t.Errorf("reason = %q", api.lastReason)
	}
	if len(api.notified) != 1 || api.notified[0].Reason != "заболел" {
		t.Errorf("notified = %+v", api.notified)
	}
	if rec.Successes != 1 || rec.Errors != 0 {
		t.Errorf("bridge = %+v", rec)
	}
}

func TestCancelSkipsUnreachableCounterparty(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newMutator(api)
	pro := &coachapi.PersonRef{ID: 1, Locale: ptr("en")}

	if _, err := m.Cancel(context.Background(), coachapi.Appointment{ID: 1, Status: coachapi.StatusConfirmed}, "busy", pro); err != nil {
		t.Fatal(err)
	}
	if len(api.notified) != 0 {
		t.Errorf("уведомление без chat_id: %+v", api.notified)
	}
}

func TestUpdateArity(t *testing.T) {
	confirmed := coachapi.Appointment{
		ID:      1,
		Status:  coachapi.StatusConfirmed,
		Type:    coachapi.TypeSplit,
		Clients: []coachapi.PersonRef{{ID: 1}, {ID: 2}},
	}

	tests := []struct {
		name    string
		appt    coachapi.Appointment
		edit    Edit
		wantErr bool
	}{
		{"description only", confirmed, Edit{Description: ptr("new")}, false},
		{"type mismatch", confirmed, Edit{Type: coachapi.TypeGroup}, true},
		{"type with new clients", confirmed, Edit{Type: coachapi.TypeGroup, ClientIDs: []int64{1, 2, 3}}, false},
		{"pending not editable", coachapi.Appointment{ID: 1, Status: coachapi.StatusPending, Type: coachapi.TypePersonal, Clients: []coachapi.PersonRef{{ID: 1}}}, Edit{Description: ptr("x")}, true},
		{"half reschedule", confirmed, Edit{StartTime: "2024-06-01T09:00:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			m, _ := newMutator(api)
			_, err := m.Update(context.Background(), tt.appt, tt.edit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Update() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && len(api.calls) != 0 {
				t.Errorf("запросы к API при ошибке проверки: %v", api.calls)
			}
		})
	}
}

func TestCreatePackage(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newMutator(api)

	bad := coachapi.CreatePackageRequest{ClientID: 1, AppointmentsNumber: 10, IssuedAt: "2024-06-10", ExpiresAt: "2024-06-01"}
	if _, err := m.CreatePackage(context.Background(), bad); err == nil {
		t.Error("пакет с окончанием раньше начала принят")
	}
	bad.ExpiresAt = "01.07.2024"
	if _, err := m.CreatePackage(context.Background(), bad); err == nil {
		t.Error("пакет с неверной датой принят")
	}

	ok := coachapi.CreatePackageRequest{ClientID: 1, AppointmentsNumber: 10, IssuedAt: "2024-06-01", ExpiresAt: "2024-07-01"}
	pkg, err := m.CreatePackage(context.Background(), ok)
	if err != nil || pkg.ID != 7 {
		t.Fatalf("CreatePackage() = %+v, %v", pkg, err)
	}
}

func TestOnlyConfirmMapsConflict(t *testing.T) {
	confirmed := coachapi.Appointment{ID: 1, Status: coachapi.StatusConfirmed, Type: coachapi.TypePersonal, Clients: []coachapi.PersonRef{{ID: 1}}}
	conflict := &coachapi.APIError{StatusCode: 409, Message: "slot taken"}
	missing := &coachapi.APIError{StatusCode: 404, Message: "professional deactivated"}

	tests := []struct {
		name    string
		err     error
		run     func(m *Mutator) error
		message string
	}{
		{"update 409", conflict, func(m *Mutator) error {
			_, err := m.Update(context.Background(), confirmed, Edit{Description: ptr("x")})
			return err
		}, "slot taken"},
		{"create 404", missing, func(m *Mutator) error {
			_, err := m.Create(context.Background(), readyDraft(coachapi.PersonRef{ID: 1}), nil)
			return err
		}, "professional deactivated"},
		{"create 404 without message", &coachapi.APIError{StatusCode: 404}, func(m *Mutator) error {
			_, err := m.Create(context.Background(), readyDraft(coachapi.PersonRef{ID: 1}), nil)
			return err
		}, "en:error_generic"},
		{"package 409", conflict, func(m *Mutator) error {
			_, err := m.CreatePackage(context.Background(), coachapi.CreatePackageRequest{
				ClientID: 1, AppointmentsNumber: 5, IssuedAt: "2024-06-01", ExpiresAt: "2024-07-01",
			})
			return err
		}, "slot taken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMutator(&fakeAPI{err: tt.err})
			err := tt.run(m)
			var me *MutationError
			if !errors.As(err, &me) {
				t.Fatalf("error = %v", err)
			}
			if me.Kind != KindGeneric || me.Message != tt.message {
				t.Errorf("MutationError = %+v, want generic %q", me, tt.message)
			}
		})
	}
}
