package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/m3rciful/intakebot/bot/flow"
	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/intakebot/core/telegram/sender"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// adminCallbackKey is the registry key for admin control callbacks.
// The payload is an opaque correlation token.
const adminCallbackKey = "adm"

// teleOutbox delivers flow messages over Telegram through the async sender
// dispatcher. The bot handle is bound once the runtime is up.
type teleOutbox struct {
	bot        atomic.Pointer[tele.Bot]
	dispatcher atomic.Pointer[tgsender.Dispatcher]
}

// Bind wires the live bot and dispatcher into the outbox.
func (o *teleOutbox) Bind(bot *tele.Bot, d *tgsender.Dispatcher) {
	o.bot.Store(bot)
	o.dispatcher.Store(d)
}

// Send delivers text to a user. Controls become an inline keyboard whose
// callback data carries the control token under the admin callback key.
// Delivery is fire-and-forget through the dispatcher when one is bound.
func (o *teleOutbox) Send(ctx context.Context, userID int64, text string, controls ...flow.Control) error {
	bot := o.bot.Load()
	if bot == nil {
		return errors.New("outbox: bot not bound")
	}

	var opts []interface{}
	if len(controls) > 0 {
		btns := make([]keyboard.InlineBtn, len(controls))
		for i, ctl := range controls {
			btns[i] = keyboard.InlineBtn{Text: ctl.Label, Unique: adminCallbackKey, Data: ctl.Token}
		}
		opts = append(opts, keyboard.InlineButtonsNPerRow(btns, 2))
	}

	run := func() error {
		_, err := bot.Send(tele.ChatID(userID), text, opts...)
		return err
	}

	disp := o.dispatcher.Load()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, "outbox.send", "sendMessage", run); err != nil {
		if errors.Is(err, tgsender.ErrQueueFull) || errors.Is(err, tgsender.ErrQueueClosed) {
			logger.TG.Warn("outbox queue fallback",
				slog.String("event", "outbox.fallback"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return fmt.Errorf("outbox: enqueue: %w", err)
	}
	return nil
}
