package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachbot/clients/coachapi"
	"coachbot/internal/booking"
	"coachbot/internal/calendar"
	"coachbot/internal/i18n"
	"coachbot/internal/validation"
)

// lang возвращает язык чата
func (b *Bot) lang(chatID int64) i18n.Language {
	var hint string
	b.states.update(chatID, func(st *chatState) { hint = st.hint })
	return b.sessions.Language(chatID, hint)
}

// t возвращает перевод для пользователя
func (b *Bot) t(key string, chatID int64) string {
	return b.tr.T(key, b.lang(chatID))
}

// sendMessage отправляет текст с логированием ошибки
func (b *Bot) sendMessage(chatID int64, text string) error {
	_, err := b.send(chatID, text, nil)
	return err
}

// send отправляет сообщение с клавиатурой (nil - без клавиатуры)
func (b *Bot) send(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Warn("не удалось отправить сообщение", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent, err
}

// render показывает экран: редактирует сообщение запроса или отправляет новое
func (b *Bot) render(r *request, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if r.messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(r.chatID, r.messageID, text, keyboard)
		if _, err := b.api.Send(edit); err != nil {
			if strings.Contains(err.Error(), "message is not modified") {
				return
			}
			b.log.Debug("не удалось отредактировать сообщение, отправляем новое",
				zap.Int64("chat_id", r.chatID), zap.Error(err))
		} else {
			return
		}
	}
	if sent, err := b.send(r.chatID, text, keyboard); err == nil {
		r.messageID = sent.MessageID
	}
}

// deleteMessage удаляет сообщение, ошибка только логируется
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Debug("не удалось удалить сообщение", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendError логирует ошибку и отправляет пользователю сообщение по ключу
func (b *Bot) sendError(r *request, key string, err error) {
	if err != nil {
		b.log.Warn("ошибка обработки", zap.Int64("chat_id", r.chatID), zap.String("key", key), zap.Error(err))
	}
	r.bridge.NotifyError()
	_ = b.sendMessage(r.chatID, b.tr.T(key, r.lang))
}

// showFailure сообщает об ошибке изменения или загрузки
func (b *Bot) showFailure(r *request, err error) {
	var mErr *booking.MutationError
	if errors.As(err, &mErr) {
		if mErr.Kind != booking.KindValidation {
			b.log.Info("изменение не выполнено", zap.Int64("chat_id", r.chatID),
				zap.String("kind", string(mErr.Kind)), zap.Error(mErr.Err))
		}
		_ = b.sendMessage(r.chatID, mErr.Message)
		return
	}
	var vErr validation.ValidationError
	if errors.As(err, &vErr) {
		r.bridge.NotifyError()
		_ = b.sendMessage(r.chatID, b.tr.T(vErr.Key, r.lang))
		return
	}
	if msg := coachapi.ServerMessage(err); msg != "" {
		b.log.Warn("ошибка API", zap.Int64("chat_id", r.chatID), zap.Error(err))
		r.bridge.NotifyError()
		_ = b.sendMessage(r.chatID, msg)
		return
	}
	b.sendError(r, "error_generic", err)
}

// showRetry сообщает об ошибке загрузки и предлагает повторить запрос кнопкой
func (b *Bot) showRetry(r *request, err error, retryData string) {
	b.log.Warn("ошибка загрузки", zap.Int64("chat_id", r.chatID), zap.Error(err))
	r.bridge.NotifyError()
	text := coachapi.ServerMessage(err)
	if text == "" {
		text = b.tr.T("error_generic", r.lang)
	}
	b.render(r, text, b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_retry", r.lang), retryData),
	)))
}

// withNavigation добавляет ряд "назад" (если задан экран возврата) и "меню"
func (b *Bot) withNavigation(r *request, rows ...[]tgbotapi.InlineKeyboardButton) tgbotapi.InlineKeyboardMarkup {
	var back string
	b.states.update(r.chatID, func(st *chatState) { back = st.back })

	nav := []tgbotapi.InlineKeyboardButton{}
	if back != "" {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_back", r.lang), "back"))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_menu", r.lang), "menu"))
	rows = append(rows, nav)
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// pagerRow строит кнопки листания страниц. Пустой ряд не добавляется.
func (b *Bot) pagerRow(r *request, prefix string, page int, prev, next bool) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	if prev {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_prev", r.lang), fmt.Sprintf("%s:pg:%d", prefix, page-1)))
	}
	if next {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_next", r.lang), fmt.Sprintf("%s:pg:%d", prefix, page+1)))
	}
	return row
}

// parseID разбирает идентификатор, 0 при ошибке
func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// safeInt разбирает целое, 0 при ошибке
func safeInt(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// truncateString обрезает строку до maxLen символов с многоточием
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func (b *Bot) typeName(t coachapi.AppointmentType, lang i18n.Language) string {
	return b.tr.T("type_"+string(t), lang)
}

func (b *Bot) statusName(s coachapi.AppointmentStatus, lang i18n.Language) string {
	return b.tr.T("status_"+string(s), lang)
}

// timeRange форматирует интервал записи: ДД.ММ.ГГГГ ЧЧ:ММ–ЧЧ:ММ
func timeRange(start, end string) string {
	return fmt.Sprintf("%s %s–%s", calendar.FormatDate(start), coachapi.Clock(start), coachapi.Clock(end))
}

// clientNames перечисляет участников через запятую
func clientNames(clients []coachapi.PersonRef) string {
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.FullName())
	}
	return strings.Join(names, ", ")
}

// appointmentLabel - короткая подпись записи для кнопки
func (b *Bot) appointmentLabel(a coachapi.Appointment, lang i18n.Language) string {
	label := fmt.Sprintf("%s · %s", timeRange(a.StartTime, a.EndTime), b.typeName(a.Type, lang))
	if len(a.Clients) == 1 {
		label += " · " + a.Clients[0].FullName()
	}
	return truncateString(label, 60)
}

// formatAppointment - карточка записи
func (b *Bot) formatAppointment(a coachapi.Appointment, lang i18n.Language) string {
	var sb strings.Builder
	sb.WriteString(b.tr.Tf("appointment_title", lang, a.ID))
	sb.WriteString("\n\n")
	sb.WriteString(b.tr.Tf("appointment_time", lang, timeRange(a.StartTime, a.EndTime)))
	sb.WriteString("\n")
	sb.WriteString(b.tr.Tf("appointment_type", lang, b.typeName(a.Type, lang)))
	sb.WriteString("\n")
	sb.WriteString(b.tr.Tf("appointment_status", lang, b.statusName(a.Status, lang)))
	if a.Professional != nil {
		sb.WriteString("\n")
		sb.WriteString(b.tr.Tf("appointment_professional", lang, a.Professional.FullName()))
	}
	if len(a.Clients) > 0 {
		sb.WriteString("\n")
		sb.WriteString(b.tr.Tf("appointment_clients", lang, clientNames(a.Clients)))
	}
	if a.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(b.tr.Tf("appointment_description", lang, a.Description))
	}
	return sb.String()
}
