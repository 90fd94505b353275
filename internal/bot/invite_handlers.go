package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/booking"
	"coachbot/internal/query"
)

const listInvites = "iv"

type inviteList = query.List[coachapi.Invite, struct{}]

// inviteFlow - отправка приглашений на сплит или групповую тренировку
type inviteFlow struct {
	appt     coachapi.Appointment
	missing  []coachapi.PersonRef
	pending  []coachapi.PersonRef
	selected map[int64]bool
}

func (b *Bot) invites(r *request) *inviteList {
	api := r.sess.API()
	return listFor(b.states, r.chatID, listInvites, func() *inviteList {
		return query.NewList[coachapi.Invite, struct{}](func(ctx context.Context, req coachapi.PageRequest, _ struct{}) (coachapi.Page[coachapi.Invite], error) {
			return api.ListInvites(ctx, req)
		}, b.pageSize, struct{}{})
	})
}

// showInvites - приглашения клиента
func (b *Bot) showInvites(ctx context.Context, r *request, refetch bool) {
	lst := b.invites(r)
	if refetch {
		if _, applied := lst.Refetch(ctx); !applied {
			return
		}
	}
	ls := lst.Snapshot()
	b.states.update(r.chatID, func(st *chatState) {
		st.origin = listInvites
		st.back = ""
	})
	if ls.Err != nil {
		b.showRetry(r, ls.Err, fmt.Sprintf("%s:pg:%d", listInvites, ls.Page))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, inv := range ls.Data {
		label := truncateString(fmt.Sprintf("%s · %s · %s", timeRange(inv.StartTime, inv.EndTime),
			b.typeName(inv.Type, r.lang), inv.ProfessionalName), 60)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("iv:%d", inv.ID))))
	}
	if pager := b.pagerRow(r, listInvites, ls.Page, ls.PrevEnabled, ls.NextEnabled); len(pager) > 0 {
		rows = append(rows, pager)
	}

	text := b.tr.T("invites_title", r.lang)
	if len(ls.Data) == 0 {
		text += "\n\n" + b.tr.T("list_empty", r.lang)
	}
	b.render(r, text, b.withNavigation(r, rows...))
}

// handleInviteCallback - листание, карточка, принять или отклонить
func (b *Bot) handleInviteCallback(ctx context.Context, r *request, data string) {
	rest := strings.TrimPrefix(data, "iv:")
	switch {
	case strings.HasPrefix(rest, "pg:"):
		if _, applied := b.invites(r).SetPage(ctx, safeInt(strings.TrimPrefix(rest, "pg:"))); applied {
			b.showInvites(ctx, r, false)
		}
	case strings.HasPrefix(rest, "acc:"):
		id := parseID(strings.TrimPrefix(rest, "acc:"))
		if err := r.bridge.ConfirmDialog(b.tr.T("invite_accept_question", r.lang), fmt.Sprintf("iva:%d", id)); err != nil {
			b.showFailure(r, err)
		}
	case strings.HasPrefix(rest, "del:"):
		id := parseID(strings.TrimPrefix(rest, "del:"))
		if err := r.bridge.ConfirmDialog(b.tr.T("invite_dismiss_question", r.lang), fmt.Sprintf("ivd:%d", id)); err != nil {
			b.showFailure(r, err)
		}
	default:
		b.showInvite(ctx, r, parseID(rest))
	}
}

// showInvite показывает карточку приглашения
func (b *Bot) showInvite(ctx context.Context, r *request, id int64) {
	inv, err := r.sess.API().GetInvite(ctx, id)
	if errors.Is(err, coachapi.ErrNotFound) {
		b.sendError(r, "invite_unavailable", err)
		return
	}
	if err != nil {
		b.showFailure(r, err)
		return
	}
	r.bridge.ShowBackButton(backInvites)

	text := b.tr.Tf("invite_details", r.lang, inv.ProfessionalName, timeRange(inv.StartTime, inv.EndTime), b.typeName(inv.Type, r.lang))
	if inv.Description != "" {
		text += "\n" + b.tr.Tf("appointment_description", r.lang, inv.Description)
	}
	keyboard := b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_accept", r.lang), fmt.Sprintf("iv:acc:%d", inv.ID)),
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_dismiss", r.lang), fmt.Sprintf("iv:del:%d", inv.ID)),
	))
	b.render(r, text, keyboard)
}

// acceptInvite принимает приглашение после подтверждения
func (b *Bot) acceptInvite(ctx context.Context, r *request, id int64) {
	err := r.sess.API().AcceptInvite(ctx, id)
	if errors.Is(err, coachapi.ErrNotFound) {
		b.sendError(r, "invite_unavailable", err)
		return
	}
	if err != nil {
		b.showFailure(r, err)
		return
	}
	r.bridge.NotifySuccess()
	b.states.invalidate(r.chatID, listInvites, listClientAppointments)
	_ = b.sendMessage(r.chatID, b.tr.T("invite_accepted", r.lang))
	b.showInvites(ctx, r, true)
}

// dismissInvite удаляет приглашение после подтверждения
func (b *Bot) dismissInvite(ctx context.Context, r *request, id int64) {
	err := r.sess.API().DeleteInvite(ctx, id)
	if errors.Is(err, coachapi.ErrNotFound) {
		b.sendError(r, "invite_unavailable", err)
		return
	}
	if err != nil {
		b.showFailure(r, err)
		return
	}
	r.bridge.NotifySuccess()
	b.states.invalidate(r.chatID, listInvites)
	_ = b.sendMessage(r.chatID, b.tr.T("invite_dismissed", r.lang))
	b.showInvites(ctx, r, true)
}

// openInviteLink открывает приглашение по ссылке после загрузки списка приглашений
func (b *Bot) openInviteLink(ctx context.Context, r *request, id int64) {
	if id == 0 || r.sess.IsProfessional() {
		return
	}
	lst := b.invites(r)
	b.showInvites(ctx, r, true)

	details := *r
	details.messageID = 0
	err := query.After(ctx, lst.Loaded(), func(ctx context.Context) error {
		b.showInvite(ctx, &details, id)
		return nil
	})
	if err != nil {
		b.showFailure(r, err)
	}
}

// Приглашения от тренера

// showInviteTargets показывает приглашённых и клиентов, которых можно пригласить
func (b *Bot) showInviteTargets(ctx context.Context, r *request, apptID int64) {
	retry := fmt.Sprintf("api:%d", apptID)
	appt, err := b.viewing(ctx, r, apptID)
	if err != nil {
		b.showRetry(r, err, retry)
		return
	}
	api := r.sess.API()
	missing, err := api.MissingInviteUsers(ctx, apptID)
	if err != nil {
		b.showRetry(r, err, retry)
		return
	}
	pending, err := api.PendingInviteUsers(ctx, apptID)
	if err != nil {
		b.showRetry(r, err, retry)
		return
	}

	b.states.update(r.chatID, func(st *chatState) {
		st.invite = &inviteFlow{appt: appt, missing: missing, pending: pending, selected: make(map[int64]bool)}
	})
	b.renderInviteTargets(r)
}

func (b *Bot) renderInviteTargets(r *request) {
	var text string
	var rows [][]tgbotapi.InlineKeyboardButton
	b.states.update(r.chatID, func(st *chatState) {
		f := st.invite
		if f == nil {
			return
		}
		pending := b.tr.T("invites_none_pending", r.lang)
		if len(f.pending) > 0 {
			pending = clientNames(f.pending)
		}
		text = b.tr.Tf("invite_targets", r.lang, timeRange(f.appt.StartTime, f.appt.EndTime), pending)

		for i, c := range f.missing {
			if i >= maxClientRows {
				break
			}
			if !c.Notifiable() {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🚫 "+c.FullName(), "ignore")))
				continue
			}
			label := "▫️ " + c.FullName()
			if f.selected[c.ID] {
				label = "✅ " + c.FullName()
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("ivt:%d", c.ID))))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_send_invites", r.lang), "ivs"),
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_back", r.lang), fmt.Sprintf("ap:%d", f.appt.ID)),
		))
	})
	if text == "" {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	b.render(r, text, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// handleInviteSendCallback - выбор клиентов и отправка приглашений
func (b *Bot) handleInviteSendCallback(ctx context.Context, r *request, data string) {
	if strings.HasPrefix(data, "ivt:") {
		id := parseID(strings.TrimPrefix(data, "ivt:"))
		b.states.update(r.chatID, func(st *chatState) {
			if st.invite != nil {
				st.invite.selected[id] = !st.invite.selected[id]
			}
		})
		b.renderInviteTargets(r)
		return
	}

	var apptID int64
	var ids []int64
	b.states.update(r.chatID, func(st *chatState) {
		if st.invite == nil {
			return
		}
		apptID = st.invite.appt.ID
		for _, c := range st.invite.missing {
			// приглашение уходит только тем, кому можно отправить уведомление
			if st.invite.selected[c.ID] && c.Notifiable() {
				ids = append(ids, c.ID)
			}
		}
	})
	if apptID == 0 {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	if len(ids) == 0 {
		b.showFailure(r, booking.ValidationError{Field: "client_ids", Key: "validation_invite_clients"})
		return
	}

	if err := r.sess.API().SendInvites(ctx, apptID, ids); err != nil {
		b.showFailure(r, err)
		return
	}
	r.bridge.NotifySuccess()
	_ = b.sendMessage(r.chatID, b.tr.Tf("invites_sent", r.lang, len(ids)))
	b.showInviteTargets(ctx, r, apptID)
}
