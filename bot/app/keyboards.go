package app

import (
	"github.com/m3rciful/intakebot/bot/catalog"
	"github.com/m3rciful/intakebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Main reply keyboard labels.
const (
	btnServices = "🤖 Услуги"
	btnQuestion = "❓ Задать вопрос"
)

// Registry keys for menu callbacks.
const (
	serviceCallbackKey  = "svc"
	questionCallbackKey = "ques"
)

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{btnServices, btnQuestion})
}

func servicesMenu() *tele.ReplyMarkup {
	cats := catalog.Categories()
	btns := make([]keyboard.InlineBtn, len(cats))
	for i, c := range cats {
		btns[i] = keyboard.InlineBtn{Text: c.Label, Unique: serviceCallbackKey, Data: c.Key}
	}
	return keyboard.InlineButtons(btns)
}

func questionsMenu() *tele.ReplyMarkup {
	topics := catalog.Topics()
	btns := make([]keyboard.InlineBtn, len(topics))
	for i, t := range topics {
		btns[i] = keyboard.InlineBtn{Text: t.Label, Unique: questionCallbackKey, Data: t.Key}
	}
	return keyboard.InlineButtons(btns)
}
