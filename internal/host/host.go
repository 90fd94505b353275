// Package host описывает возможности клиента Telegram, доступные экранам:
// отклик на действие, диалог подтверждения и кнопка "назад".
package host

// Bridge - возможности хоста. Реализация без хоста - Noop.
type Bridge interface {
	// NotifySuccess подтверждает успешное действие
	NotifySuccess()
	// NotifyError сообщает о неудаче действия
	NotifyError()
	// ConfirmDialog спрашивает подтверждение; ответ придёт отдельным событием с action
	ConfirmDialog(text, action string) error
	// ShowBackButton показывает кнопку возврата на экран target
	ShowBackButton(target string)
	HideBackButton()
}

// Noop - мост без хоста, все методы ничего не делают
type Noop struct{}

func (Noop) NotifySuccess() {}
func (Noop) NotifyError() {}
func (Noop) ConfirmDialog(string, string) error { return nil }
func (Noop) ShowBackButton(string) {}
func (Noop) HideBackButton() {}

var _ Bridge = Noop{}

// Recorder запоминает вызовы моста, используется в тестах экранов
type Recorder struct {
	Successes   int
	Errors      int
	Dialogs     []string
	BackTarget  string
	BackVisible bool
}

func (r *Recorder) NotifySuccess() { r.Successes++ }
func (r *Recorder) NotifyError() { r.Errors++ }

func (r *Recorder) ConfirmDialog(text, action string) error {
	r.Dialogs = append(r.Dialogs, action)
	return nil
}

func (r *Recorder) ShowBackButton(target string) {
	r.BackTarget = target
	r.BackVisible = true
}

func (r *Recorder) HideBackButton() {
	r.BackTarget = ""
	r.BackVisible = false
}
