package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachbot/internal/i18n"
)

// showSettings показывает меню настроек
func (b *Bot) showSettings(r *request) {
	langName := i18n.GetLanguageName(r.lang)
	langFlag := i18n.GetLanguageFlag(r.lang)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.Tf("settings_language", r.lang, langFlag+" "+langName), "set:lang"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_menu", r.lang), "menu"),
		),
	)
	b.render(r, b.tr.T("settings_title", r.lang), keyboard)
}

// handleSettingsCallback обрабатывает кнопки настроек
func (b *Bot) handleSettingsCallback(ctx context.Context, r *request, data string) {
	switch data {
	case "set:lang":
		var row []tgbotapi.InlineKeyboardButton
		for _, lang := range i18n.Languages {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				i18n.GetLanguageFlag(lang)+" "+i18n.GetLanguageName(lang), "lang:"+string(lang)))
		}
		keyboard := tgbotapi.NewInlineKeyboardMarkup(row,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_back", r.lang), "set:back"),
			),
		)
		b.render(r, b.tr.T("settings_select_language", r.lang), keyboard)
	case "set:back":
		b.showSettings(r)
	}
}

// changeLanguage меняет язык. Зарегистрированным изменение сохраняется в API.
func (b *Bot) changeLanguage(ctx context.Context, r *request, lang i18n.Language) {
	if err := b.sessions.SetLocale(ctx, r.chatID, lang); err != nil {
		b.log.Warn("ошибка смены языка", zap.Int64("chat_id", r.chatID), zap.Error(err))
		b.showFailure(r, err)
		return
	}
	r.lang = lang
	r.bridge.NotifySuccess()

	sess, ok := b.sessions.Peek(r.chatID)
	if !ok {
		b.showRoleSelection(r)
		return
	}
	r.sess = sess
	b.render(r, b.tr.Tf("settings_language_changed", r.lang, i18n.GetLanguageName(lang)), tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_back", r.lang), "set:back"),
		),
	))
	// обновляем подписи главного меню
	b.showMainMenu(r)
}
