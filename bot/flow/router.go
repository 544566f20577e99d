// Package flow implements the conversation state machine: menu selections,
// free-text routing between user and admin, and admin inline controls.
package flow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/m3rciful/intakebot/bot/catalog"
	"github.com/m3rciful/intakebot/bot/orders"
	"github.com/m3rciful/intakebot/bot/session"
	"github.com/m3rciful/intakebot/bot/token"
	"github.com/m3rciful/intakebot/core/logger"
	"log/slog"
)

// Control is an inline button attached to an outbound message.
// Token is opaque callback data produced by the token package.
type Control struct {
	Label string
	Token string
}

// Outbox delivers outbound messages. Implementations decide transport details;
// the router only cares that the text and controls reach the recipient.
type Outbox interface {
	Send(ctx context.Context, userID int64, text string, controls ...Control) error
}

// Subject identifies the acting party of an inbound event.
type Subject struct {
	ID       int64
	Username string
}

// User-facing and admin-facing message texts.
const (
	MsgTaskPrompt      = "Мы уже знаем, что вам предложить 👍\nОпишите задачу одним сообщением."
	MsgOrderAccepted   = "✅ Заявка отправлена специалисту"
	MsgOrderSaveFailed = "⚠️ Не удалось сохранить заявку, попробуйте ещё раз."
	MsgQuestionSent    = "Вопрос отправлен 👌"
	MsgUnknownMenuItem = "Команда не распознана, попробуйте ещё раз."
	MsgTemplateThanks  = "Спасибо за обращение! Мы скоро свяжемся с вами."
	MsgReplySent       = "Ответ отправлен ✅"
	MsgManualPrompt    = "Введите ответ клиенту:"
	MsgAdminOnly       = "Эта кнопка доступна только администратору."
	MsgBadControl      = "⚠️ Некорректная кнопка, действие не выполнено."
)

// Admin control button labels.
const (
	btnTemplateOK     = "✅ Спасибо"
	btnTemplateMore   = "✏️ Уточнить"
	btnManualReply    = "✍ Ответить вручную"
	btnAnswerQuestion = "✅ Ответить"
)

// Router owns the per-subject state machine. All three entry points serialize
// on the subject they act for, so two updates from the same subject never
// interleave; distinct subjects run concurrently.
type Router struct {
	sessions session.Store
	orders   orders.Store
	outbox   Outbox
	adminID  int64
	now      func() time.Time
	locks    *subjectLocks
}

// Options configures a Router.
type Options struct {
	Sessions session.Store
	Orders   orders.Store
	Outbox   Outbox
	AdminID  int64
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewRouter builds a Router from options.
func NewRouter(opts Options) *Router {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		sessions: opts.Sessions,
		orders:   opts.Orders,
		outbox:   opts.Outbox,
		adminID:  opts.AdminID,
		now:      now,
		locks:    newSubjectLocks(),
	}
}

// InProgress reports whether the subject has a dialog awaiting free text.
func (r *Router) InProgress(id int64) bool {
	return r.sessions.InProgress(id)
}

// HandleMenuSelection processes an inline menu press: a service category
// arms an intake session, a question topic notifies the admin immediately.
// Unknown keys produce a notice and no state change.
func (r *Router) HandleMenuSelection(ctx context.Context, subj Subject, key string) error {
	l := r.locks.lock(subj.ID)
	defer l.Unlock()

	if cat, err := catalog.CategoryByKey(key); err == nil {
		r.sessions.Set(subj.ID, session.Session{
			State: session.StateAwaitingTask,
			Data:  map[string]string{session.KeyCategory: cat.Key},
		})
		logger.Flow.Info("intake armed",
			slog.String("event", "flow.intake.armed"),
			slog.Int64("user_id", subj.ID),
			slog.String("category", cat.Key),
		)
		return r.outbox.Send(ctx, subj.ID, MsgTaskPrompt)
	}

	if topic, err := catalog.TopicByKey(key); err == nil {
		tok, err := token.Encode(token.Token{
			Action:   token.ActionAnswerQuestion,
			TargetID: subj.ID,
			TopicKey: topic.Key,
		})
		if err != nil {
			return fmt.Errorf("flow: encode answer control: %w", err)
		}

		text := fmt.Sprintf("❓ Вопрос от @%s (%d)\nТема: %s",
			displayName(subj), subj.ID, topic.Summary)
		if err := r.outbox.Send(ctx, r.adminID, text, Control{Label: btnAnswerQuestion, Token: tok}); err != nil {
			return err
		}
		logger.Flow.Info("question relayed",
			slog.String("event", "flow.question"),
			slog.Int64("user_id", subj.ID),
			slog.String("topic", topic.Key),
		)
		return r.outbox.Send(ctx, subj.ID, MsgQuestionSent)
	}

	logger.Flow.Warn("unknown menu key",
		slog.String("event", "flow.menu.unknown"),
		slog.Int64("user_id", subj.ID),
		slog.String("category", key),
	)
	return r.outbox.Send(ctx, subj.ID, MsgUnknownMenuItem)
}

// HandleFreeText routes a free-text message according to the subject's state.
// With no dialog in progress the message is ignored.
func (r *Router) HandleFreeText(ctx context.Context, subj Subject, text string) error {
	l := r.locks.lock(subj.ID)
	defer l.Unlock()

	sess, ok := r.sessions.Get(subj.ID)
	if !ok {
		return nil
	}

	switch sess.State {
	case session.StateAwaitingTask:
		return r.acceptTask(ctx, subj, sess, text)

	case session.StateAwaitingReply:
		if subj.ID != r.adminID {
			// Only the admin is ever put into this state.
			return nil
		}
		return r.deliverReply(ctx, subj, sess, text)

	case session.StateIdle:
		return nil

	default:
		return nil
	}
}

func (r *Router) acceptTask(ctx context.Context, subj Subject, sess session.Session, text string) error {
	category := sess.Data[session.KeyCategory]
	rec := orders.NewRecord(r.now(), subj.ID, subj.Username, category, text)

	// The order must be durable before anyone hears about it. On failure the
	// session survives so the subject can simply resend the description.
	if err := r.orders.Append(ctx, rec); err != nil {
		logger.Flow.Error("order append failed",
			slog.String("event", "flow.intake.persist_fail"),
			slog.Int64("user_id", subj.ID),
			slog.String("category", category),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		if sendErr := r.outbox.Send(ctx, subj.ID, MsgOrderSaveFailed); sendErr != nil {
			logger.Flow.Warn("failure notice not delivered",
				slog.String("event", "flow.intake.notice_fail"),
				slog.Int64("user_id", subj.ID),
			)
		}
		return err
	}

	tplTok, err := token.Encode(token.Token{Action: token.ActionTemplateReply, TargetID: subj.ID})
	if err != nil {
		return fmt.Errorf("flow: encode template control: %w", err)
	}
	manualTok, err := token.Encode(token.Token{Action: token.ActionManualReply, TargetID: subj.ID})
	if err != nil {
		return fmt.Errorf("flow: encode manual control: %w", err)
	}

	notify := fmt.Sprintf("📩 Новая заявка\n\n👤 @%s (%d)\n🛠 Услуга: %s\n\n📌 %s",
		displayName(subj), subj.ID, category, text)
	if err := r.outbox.Send(ctx, r.adminID, notify,
		Control{Label: btnTemplateOK, Token: tplTok},
		Control{Label: btnTemplateMore, Token: tplTok},
		Control{Label: btnManualReply, Token: manualTok},
	); err != nil {
		logger.Flow.Warn("admin notify failed",
			slog.String("event", "flow.intake.notify_fail"),
			slog.Int64("user_id", subj.ID),
		)
	}

	if err := r.outbox.Send(ctx, subj.ID, MsgOrderAccepted); err != nil {
		logger.Flow.Warn("confirmation failed",
			slog.String("event", "flow.intake.confirm_fail"),
			slog.Int64("user_id", subj.ID),
		)
	}

	r.sessions.Clear(subj.ID)
	logger.Flow.Info("order accepted",
		slog.String("event", "flow.intake.accepted"),
		slog.Int64("user_id", subj.ID),
		slog.String("category", category),
	)
	return nil
}

func (r *Router) deliverReply(ctx context.Context, admin Subject, sess session.Session, text string) error {
	raw := sess.Data[session.KeyTargetID]
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || target <= 0 {
		r.sessions.Clear(admin.ID)
		return fmt.Errorf("flow: reply session has invalid target %q", raw)
	}

	if err := r.outbox.Send(ctx, target, text); err != nil {
		return err
	}
	if err := r.outbox.Send(ctx, admin.ID, MsgReplySent); err != nil {
		logger.Flow.Warn("reply confirmation failed",
			slog.String("event", "flow.reply.confirm_fail"),
			slog.Int64("target_id", target),
		)
	}

	r.sessions.Clear(admin.ID)
	logger.Flow.Info("reply delivered",
		slog.String("event", "flow.reply.delivered"),
		slog.Int64("target_id", target),
		slog.String("topic", sess.Data[session.KeyTopic]),
	)
	return nil
}

// HandleAdminControl processes a press on an admin inline control. The raw
// callback payload is a correlation token; malformed payloads are rejected
// outright rather than guessed at.
func (r *Router) HandleAdminControl(ctx context.Context, subj Subject, raw string) error {
	if subj.ID != r.adminID {
		logger.Flow.Warn("control pressed by non-admin",
			slog.String("event", "flow.control.denied"),
			slog.Int64("user_id", subj.ID),
		)
		return r.outbox.Send(ctx, subj.ID, MsgAdminOnly)
	}

	tok, err := token.Decode(raw)
	if err != nil {
		if sendErr := r.outbox.Send(ctx, subj.ID, MsgBadControl); sendErr != nil {
			logger.Flow.Warn("bad-control notice failed",
				slog.String("event", "flow.control.notice_fail"),
				slog.Int64("user_id", subj.ID),
			)
		}
		return err
	}

	l := r.locks.lock(subj.ID)
	defer l.Unlock()

	switch tok.Action {
	case token.ActionTemplateReply:
		if err := r.outbox.Send(ctx, tok.TargetID, MsgTemplateThanks); err != nil {
			return err
		}
		logger.Flow.Info("template reply sent",
			slog.String("event", "flow.control.template"),
			slog.Int64("target_id", tok.TargetID),
		)
		return r.outbox.Send(ctx, subj.ID, MsgReplySent)

	case token.ActionManualReply:
		r.sessions.Set(subj.ID, session.Session{
			State: session.StateAwaitingReply,
			Data: map[string]string{
				session.KeyTargetID: strconv.FormatInt(tok.TargetID, 10),
			},
		})
		logger.Flow.Info("manual reply armed",
			slog.String("event", "flow.control.manual"),
			slog.Int64("target_id", tok.TargetID),
		)
		return r.outbox.Send(ctx, subj.ID, MsgManualPrompt)

	case token.ActionAnswerQuestion:
		summary := catalog.TopicSummary(tok.TopicKey)
		r.sessions.Set(subj.ID, session.Session{
			State: session.StateAwaitingReply,
			Data: map[string]string{
				session.KeyTargetID:   strconv.FormatInt(tok.TargetID, 10),
				session.KeyTopic:      tok.TopicKey,
				session.KeyTopicLabel: summary,
			},
		})
		logger.Flow.Info("answer armed",
			slog.String("event", "flow.control.answer"),
			slog.Int64("target_id", tok.TargetID),
			slog.String("topic", tok.TopicKey),
		)
		return r.outbox.Send(ctx, subj.ID, fmt.Sprintf("Введите ответ на вопрос: «%s»", summary))

	default:
		return r.outbox.Send(ctx, subj.ID, MsgBadControl)
	}
}

func displayName(s Subject) string {
	if s.Username != "" {
		return s.Username
	}
	return "unknown"
}
