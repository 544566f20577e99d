package app

import (
	"fmt"
	"strings"

	"github.com/m3rciful/intakebot/bot/flow"
	"github.com/m3rciful/intakebot/bot/orders"
	tg "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/callbacks"
	"github.com/m3rciful/intakebot/core/telegram/commands"
	"github.com/m3rciful/intakebot/core/telegram/format"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const msgGreeting = "👋 Добро пожаловать\n\nЯ помогу подобрать лучшее решение под вашу задачу."

func subjectFrom(c tele.Context) flow.Subject {
	s := c.Sender()
	if s == nil {
		return flow.Subject{}
	}
	return flow.Subject{ID: s.ID, Username: s.Username}
}

// conversationBridge routes free text into the flow router while a dialog
// is in progress.
type conversationBridge struct {
	flow *flow.Router
}

func (b *conversationBridge) InProgress(userID int64) bool {
	return b.flow.InProgress(userID)
}

func (b *conversationBridge) ConversationHandler(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return b.flow.HandleFreeText(ctx, subjectFrom(c), c.Text())
}

func (a *App) registerHandlers(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Description: "Главное меню",
		Handler: func(c tele.Context) error {
			return tghelpers.SendText(c, msgGreeting, &tele.SendOptions{ReplyMarkup: mainMenu()})
		},
	})

	reg.RegisterCommand("/orders", commands.Command{
		Description: "Выгрузка заявок",
		AdminOnly:   true,
		Hidden:      true,
		Handler:     a.handleOrdersExport,
	})

	reg.SetTextFallback(func(c tele.Context) error {
		switch c.Text() {
		case btnServices:
			return tghelpers.SendText(c, "Выберите услугу 👇", &tele.SendOptions{ReplyMarkup: servicesMenu()})
		case btnQuestion:
			return tghelpers.SendText(c, "Выберите вопрос 👇", &tele.SendOptions{ReplyMarkup: questionsMenu()})
		}
		return nil
	})

	menuHandler := func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		return a.flow.HandleMenuSelection(ctx, subjectFrom(c), callbacks.CallbackPayload(c))
	}
	if err := reg.RegisterCallback(serviceCallbackKey, menuHandler); err != nil {
		return err
	}
	if err := reg.RegisterCallback(questionCallbackKey, menuHandler); err != nil {
		return err
	}

	if err := reg.RegisterCallback(adminCallbackKey, func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		return a.flow.HandleAdminControl(ctx, subjectFrom(c), callbacks.CallbackPayload(c))
	}); err != nil {
		return err
	}

	return nil
}

// handleOrdersExport renders the order log for the admin.
func (a *App) handleOrdersExport(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	records, err := a.store.LoadAll(ctx)
	if err != nil {
		_ = tghelpers.SendText(c, "⚠️ Не удалось прочитать журнал заявок.")
		return err
	}
	if len(records) == 0 {
		return tghelpers.SendText(c, "Заявок пока нет.")
	}

	return tghelpers.SendMD(c, renderOrdersExport(records))
}

// renderOrdersExport builds the Markdown order listing. Every interpolated
// field is escaped; usernames and messages routinely carry '_' and '*'.
func renderOrdersExport(records []orders.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Заявки: %d*\n", len(records))
	for i, r := range records {
		username := format.DerefString(r.Username, "-")
		if username != "-" {
			username = "@" + username
		}
		fmt.Fprintf(&b, "\n%d. %s %s (%d)\n🛠 %s\n📌 %s\n",
			i+1, r.Date, escapeMD(username), r.UserID, escapeMD(r.Service), escapeMD(r.Message))
	}
	return b.String()
}

func escapeMD(s string) string {
	escaped, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return escaped
}
