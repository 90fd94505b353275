package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachbot/internal/host"
)

// telegramBridge - возможности хоста в чате Telegram.
// Отклик на действие показывается всплывающим ответом на нажатие кнопки.
type telegramBridge struct {
	b          *Bot
	chatID     int64
	callbackID string
	answered   bool
}

var _ host.Bridge = (*telegramBridge)(nil)

func (br *telegramBridge) answer(text string) {
	if br.callbackID == "" || br.answered {
		return
	}
	br.answered = true
	if _, err := br.b.api.Request(tgbotapi.NewCallback(br.callbackID, text)); err != nil {
		br.b.log.Debug("не удалось ответить на callback", zap.Int64("chat_id", br.chatID), zap.Error(err))
	}
}

// ack убирает "часики" с кнопки, если ответа ещё не было
func (br *telegramBridge) ack() {
	br.answer("")
}

func (br *telegramBridge) NotifySuccess() {
	br.answer("✅")
}

func (br *telegramBridge) NotifyError() {
	br.answer("⚠️")
}

// ConfirmDialog отправляет вопрос с кнопками "да" и "нет".
// Ответ "да" вернётся callback-ом dlg:y:<action>.
func (br *telegramBridge) ConfirmDialog(text, action string) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(br.b.t("btn_yes", br.chatID), "dlg:y:"+action),
			tgbotapi.NewInlineKeyboardButtonData(br.b.t("btn_no", br.chatID), "dlg:n"),
		),
	)
	msg := tgbotapi.NewMessage(br.chatID, text)
	msg.ReplyMarkup = keyboard
	_, err := br.b.api.Send(msg)
	return err
}

func (br *telegramBridge) ShowBackButton(target string) {
	br.b.states.update(br.chatID, func(st *chatState) { st.back = target })
}

func (br *telegramBridge) HideBackButton() {
	br.b.states.update(br.chatID, func(st *chatState) { st.back = "" })
}
