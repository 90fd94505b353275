package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/query"
)

const (
	listProfessionals = "pr"
	listClients       = "cl"
)

type personList = query.List[coachapi.PersonRef, struct{}]

func (b *Bot) professionals(r *request) *personList {
	api := r.sess.API()
	return listFor(b.states, r.chatID, listProfessionals, func() *personList {
		return query.NewList[coachapi.PersonRef, struct{}](func(ctx context.Context, req coachapi.PageRequest, _ struct{}) (coachapi.Page[coachapi.PersonRef], error) {
			return api.ListProfessionals(ctx, req)
		}, b.pageSize, struct{}{})
	})
}

func (b *Bot) clients(r *request) *personList {
	api := r.sess.API()
	return listFor(b.states, r.chatID, listClients, func() *personList {
		return query.NewList[coachapi.PersonRef, struct{}](func(ctx context.Context, req coachapi.PageRequest, _ struct{}) (coachapi.Page[coachapi.PersonRef], error) {
			return api.ProfessionalClients(ctx, req)
		}, b.pageSize, struct{}{})
	})
}

// loadSubscriptions обновляет подписки клиента
func (b *Bot) loadSubscriptions(ctx context.Context, r *request) error {
	subs, err := r.sess.API().ClientSubscriptions(ctx, r.sess.User.ID)
	if err != nil {
		return err
	}
	set := make(map[int64]bool, len(subs))
	for _, p := range subs {
		set[p.ID] = true
	}
	b.states.update(r.chatID, func(st *chatState) { st.subs = set })
	return nil
}

// showProfessionals - тренеры с подпиской и отпиской
func (b *Bot) showProfessionals(ctx context.Context, r *request, refetch bool) {
	lst := b.professionals(r)
	if refetch {
		if _, applied := lst.Refetch(ctx); !applied {
			return
		}
		if err := b.loadSubscriptions(ctx, r); err != nil {
			b.showFailure(r, err)
			return
		}
	}
	ls := lst.Snapshot()
	b.states.update(r.chatID, func(st *chatState) {
		st.origin = listProfessionals
		st.back = ""
	})
	if ls.Err != nil {
		b.showRetry(r, ls.Err, fmt.Sprintf("%s:pg:%d", listProfessionals, ls.Page))
		return
	}

	var subs map[int64]bool
	b.states.update(r.chatID, func(st *chatState) { subs = st.subs })

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range ls.Data {
		switch {
		case !p.Notifiable():
			// без chat_id или locale подписка недоступна
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🚫 "+p.FullName(), "ignore")))
		case subs[p.ID]:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(b.tr.Tf("btn_unsubscribe", r.lang, p.FullName()), fmt.Sprintf("pr:uns:%d", p.ID))))
		default:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(b.tr.Tf("btn_subscribe", r.lang, p.FullName()), fmt.Sprintf("pr:sub:%d", p.ID))))
		}
	}
	if pager := b.pagerRow(r, listProfessionals, ls.Page, ls.PrevEnabled, ls.NextEnabled); len(pager) > 0 {
		rows = append(rows, pager)
	}

	text := b.tr.T("professionals_title", r.lang)
	if len(ls.Data) == 0 {
		text += "\n\n" + b.tr.T("list_empty", r.lang)
	}
	b.render(r, text, b.withNavigation(r, rows...))
}

// showClients - подписчики тренера
func (b *Bot) showClients(ctx context.Context, r *request, refetch bool) {
	lst := b.clients(r)
	if refetch {
		if _, applied := lst.Refetch(ctx); !applied {
			return
		}
	}
	ls := lst.Snapshot()
	b.states.update(r.chatID, func(st *chatState) {
		st.origin = listClients
		st.back = ""
	})
	if ls.Err != nil {
		b.showRetry(r, ls.Err, fmt.Sprintf("%s:pg:%d", listClients, ls.Page))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range ls.Data {
		label := "👤 " + c.FullName()
		if !c.Notifiable() {
			label = "🚫 " + c.FullName()
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("cl:%d", c.ID))))
	}
	if pager := b.pagerRow(r, listClients, ls.Page, ls.PrevEnabled, ls.NextEnabled); len(pager) > 0 {
		rows = append(rows, pager)
	}

	text := b.tr.T("clients_title", r.lang)
	if len(ls.Data) == 0 {
		text += "\n\n" + b.tr.T("list_empty", r.lang)
	}
	b.render(r, text, b.withNavigation(r, rows...))
}

// handleSubscriptionCallback - листание тренеров и клиентов, подписка
func (b *Bot) handleSubscriptionCallback(ctx context.Context, r *request, data string) {
	key, rest, _ := strings.Cut(data, ":")

	switch {
	case key == listProfessionals && strings.HasPrefix(rest, "pg:"):
		if _, applied := b.professionals(r).SetPage(ctx, safeInt(strings.TrimPrefix(rest, "pg:"))); applied {
			b.showProfessionals(ctx, r, false)
		}
	case key == listProfessionals && strings.HasPrefix(rest, "sub:"):
		b.toggleSubscription(ctx, r, parseID(strings.TrimPrefix(rest, "sub:")), true)
	case key == listProfessionals && strings.HasPrefix(rest, "uns:"):
		b.toggleSubscription(ctx, r, parseID(strings.TrimPrefix(rest, "uns:")), false)
	case key == listClients && strings.HasPrefix(rest, "pg:"):
		if _, applied := b.clients(r).SetPage(ctx, safeInt(strings.TrimPrefix(rest, "pg:"))); applied {
			b.showClients(ctx, r, false)
		}
	case key == listClients:
		r.bridge.ShowBackButton(backClients)
		b.showPackages(ctx, r, parseID(rest), true)
	}
}

func (b *Bot) toggleSubscription(ctx context.Context, r *request, professionalID int64, subscribe bool) {
	var pro *coachapi.PersonRef
	for _, p := range b.professionals(r).Snapshot().Data {
		if p.ID == professionalID {
			p := p
			pro = &p
			break
		}
	}
	if pro == nil || !pro.Notifiable() {
		b.sendError(r, "error_not_notifiable", nil)
		return
	}

	api := r.sess.API()
	var err error
	if subscribe {
		err = api.Subscribe(ctx, professionalID)
	} else {
		err = api.Unsubscribe(ctx, professionalID)
	}
	if err != nil {
		b.showFailure(r, err)
		return
	}
	r.bridge.NotifySuccess()

	if err := b.loadSubscriptions(ctx, r); err != nil {
		b.showFailure(r, err)
		return
	}
	b.showProfessionals(ctx, r, false)
}
