package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/calendar"
	"coachbot/internal/query"
)

const listPackages = "pk"

// фильтр списка пакетов - id клиента, 0 - все доступные пользователю
type packageList = query.List[coachapi.Package, int64]

// packageFlow - выдача пакета клиенту
type packageFlow struct {
	clientID int64
	count    int
	issuedAt string
}

func (b *Bot) packages(r *request) *packageList {
	api := r.sess.API()
	return listFor(b.states, r.chatID, listPackages, func() *packageList {
		return query.NewList[coachapi.Package, int64](api.ListPackages, b.pageSize, 0)
	})
}

// showPackages - пакеты тренировок. clientID != 0 - пакеты одного клиента.
func (b *Bot) showPackages(ctx context.Context, r *request, clientID int64, refetch bool) {
	lst := b.packages(r)
	var applied bool
	switch {
	case lst.Filter() != clientID:
		_, applied = lst.SetFilter(ctx, clientID)
	case refetch:
		_, applied = lst.Refetch(ctx)
	default:
		applied = true
	}
	if !applied {
		return
	}

	ls := lst.Snapshot()
	b.states.update(r.chatID, func(st *chatState) {
		st.origin = listPackages
		if clientID == 0 {
			st.back = ""
		}
	})
	if ls.Err != nil {
		b.showRetry(r, ls.Err, fmt.Sprintf("%s:pg:%d", listPackages, ls.Page))
		return
	}

	pro := r.sess.IsProfessional()
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range ls.Data {
		owner := p.Professional.FullName()
		if pro {
			owner = p.Client.FullName()
		}
		label := b.tr.Tf("package_label", r.lang, owner, p.Remaining(), p.AppointmentsNumber, calendar.FormatDate(p.ExpiresAt))
		if p.Exhausted() {
			label = "⛔ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncateString(label, 60), fmt.Sprintf("pk:%d", p.ID))))
	}
	if pager := b.pagerRow(r, listPackages, ls.Page, ls.PrevEnabled, ls.NextEnabled); len(pager) > 0 {
		rows = append(rows, pager)
	}
	if pro && clientID != 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_create_package", r.lang), fmt.Sprintf("pk:new:%d", clientID))))
	}

	text := b.tr.T("packages_title", r.lang)
	if len(ls.Data) == 0 {
		text += "\n\n" + b.tr.T("list_empty", r.lang)
	}
	if pro && clientID == 0 {
		text += "\n\n" + b.tr.T("packages_create_hint", r.lang)
	}
	b.render(r, text, b.withNavigation(r, rows...))
}

// handlePackageCallback - листание, карточка и выдача пакета
func (b *Bot) handlePackageCallback(ctx context.Context, r *request, data string) {
	rest := strings.TrimPrefix(data, "pk:")
	switch {
	case strings.HasPrefix(rest, "pg:"):
		lst := b.packages(r)
		if _, applied := lst.SetPage(ctx, safeInt(strings.TrimPrefix(rest, "pg:"))); applied {
			b.showPackages(ctx, r, lst.Filter(), false)
		}
	case strings.HasPrefix(rest, "new:"):
		if !r.sess.IsProfessional() {
			return
		}
		clientID := parseID(strings.TrimPrefix(rest, "new:"))
		b.states.update(r.chatID, func(st *chatState) {
			st.pkg = &packageFlow{clientID: clientID}
			st.step = stepPackageCount
		})
		_ = b.sendMessage(r.chatID, b.tr.T("package_enter_count", r.lang))
	default:
		b.showPackage(ctx, r, parseID(rest))
	}
}

func (b *Bot) showPackage(ctx context.Context, r *request, id int64) {
	p, err := r.sess.API().GetPackage(ctx, id)
	if err != nil {
		b.showRetry(r, err, fmt.Sprintf("pk:%d", id))
		return
	}
	r.bridge.ShowBackButton(backPackages)

	var sb strings.Builder
	sb.WriteString(b.tr.Tf("package_details", r.lang,
		p.ID, p.Client.FullName(), p.Professional.FullName(),
		calendar.FormatDate(p.IssuedAt), calendar.FormatDate(p.ExpiresAt),
		len(p.Appointments), p.AppointmentsNumber, p.Remaining()))
	if p.Exhausted() {
		sb.WriteString("\n")
		sb.WriteString(b.tr.T("package_exhausted", r.lang))
	}
	for _, a := range p.Appointments {
		sb.WriteString("\n• ")
		sb.WriteString(b.appointmentLabel(a, r.lang))
	}
	b.render(r, sb.String(), b.withNavigation(r))
}

// handlePackageInput - количество, дата выдачи и дата окончания пакета
func (b *Bot) handlePackageInput(ctx context.Context, r *request, text string) {
	var flow packageFlow
	var step string
	b.states.update(r.chatID, func(st *chatState) {
		step = st.step
		if st.pkg != nil {
			flow = *st.pkg
		}
	})
	if flow.clientID == 0 {
		b.states.clear(r.chatID)
		b.sendError(r, "error_session_expired", nil)
		return
	}

	switch step {
	case stepPackageCount:
		n := safeInt(text)
		if err := b.validate.Var("appointments_number", n, "min=1,max=100"); err != nil {
			b.showFailure(r, err)
			return
		}
		b.states.update(r.chatID, func(st *chatState) {
			st.pkg.count = n
			st.step = stepPackageIssuedAt
		})
		_ = b.sendMessage(r.chatID, b.tr.T("package_enter_issued_at", r.lang))

	case stepPackageIssuedAt:
		date, err := calendar.ParseDate(text)
		if err != nil {
			b.sendError(r, "validation_issued_at", nil)
			return
		}
		b.states.update(r.chatID, func(st *chatState) {
			st.pkg.issuedAt = date
			st.step = stepPackageExpiresAt
		})
		_ = b.sendMessage(r.chatID, b.tr.T("package_enter_expires_at", r.lang))

	case stepPackageExpiresAt:
		date, err := calendar.ParseDate(text)
		if err != nil {
			b.sendError(r, "validation_expires_at", nil)
			return
		}
		req := coachapi.CreatePackageRequest{
			ClientID:           flow.clientID,
			AppointmentsNumber: flow.count,
			IssuedAt:           flow.issuedAt,
			ExpiresAt:          date,
		}
		pkg, err := b.mutator(r).CreatePackage(ctx, req)
		if err != nil {
			b.showFailure(r, err)
			return
		}
		b.states.update(r.chatID, func(st *chatState) {
			st.pkg = nil
			st.step = ""
		})
		b.states.invalidate(r.chatID, listPackages)
		_ = b.sendMessage(r.chatID, b.tr.Tf("package_created", r.lang, pkg.AppointmentsNumber, calendar.FormatDate(pkg.ExpiresAt)))
		b.showPackages(ctx, r, flow.clientID, true)
	}
}
