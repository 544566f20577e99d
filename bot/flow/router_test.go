package flow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/intakebot/bot/flow"
	"github.com/m3rciful/intakebot/bot/orders"
	"github.com/m3rciful/intakebot/bot/session"
	"github.com/m3rciful/intakebot/bot/token"
)

const adminID int64 = 999

type sentMsg struct {
	To       int64
	Text     string
	Controls []flow.Control
}

type fakeOutbox struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeOutbox) Send(_ context.Context, userID int64, text string, controls ...flow.Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{To: userID, Text: text, Controls: controls})
	return nil
}

func (f *fakeOutbox) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMsg, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeOutbox) sentTo(id int64) []sentMsg {
	var out []sentMsg
	for _, m := range f.messages() {
		if m.To == id {
			out = append(out, m)
		}
	}
	return out
}

type memOrders struct {
	mu      sync.Mutex
	records []orders.Record
	fail    bool
}

func (m *memOrders) Append(_ context.Context, r orders.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return &orders.PersistenceError{Op: "append", Err: errors.New("disk full")}
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memOrders) LoadAll(_ context.Context) ([]orders.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orders.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

type fixture struct {
	router   *flow.Router
	outbox   *fakeOutbox
	orders   *memOrders
	sessions session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	out := &fakeOutbox{}
	ord := &memOrders{}
	sess := session.NewMemoryStore()
	r := flow.NewRouter(flow.Options{
		Sessions: sess,
		Orders:   ord,
		Outbox:   out,
		AdminID:  adminID,
		Now:      func() time.Time { return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) },
	})
	return &fixture{router: r, outbox: out, orders: ord, sessions: sess}
}

func TestIntakeEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := flow.Subject{ID: 42, Username: "alice"}

	require.NoError(t, f.router.HandleMenuSelection(ctx, user, "business"))

	sess, ok := f.sessions.Get(user.ID)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingTask, sess.State)
	assert.Equal(t, "business", sess.Data[session.KeyCategory])
	require.Len(t, f.outbox.sentTo(user.ID), 1)
	assert.Equal(t, flow.MsgTaskPrompt, f.outbox.sentTo(user.ID)[0].Text)
	assert.True(t, f.router.InProgress(user.ID))

	require.NoError(t, f.router.HandleFreeText(ctx, user, "нужен бот для записи клиентов"))

	recs, _ := f.orders.LoadAll(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(42), recs[0].UserID)
	require.NotNil(t, recs[0].Username)
	assert.Equal(t, "alice", *recs[0].Username)
	assert.Equal(t, "business", recs[0].Service)
	assert.Equal(t, "нужен бот для записи клиентов", recs[0].Message)
	assert.Equal(t, "2026-08-31T10:00:00", recs[0].Date)

	adminMsgs := f.outbox.sentTo(adminID)
	require.Len(t, adminMsgs, 1)
	assert.Contains(t, adminMsgs[0].Text, "@alice (42)")
	assert.Contains(t, adminMsgs[0].Text, "нужен бот для записи клиентов")
	require.Len(t, adminMsgs[0].Controls, 3)
	for _, ctl := range adminMsgs[0].Controls[:2] {
		tok, err := token.Decode(ctl.Token)
		require.NoError(t, err)
		assert.Equal(t, token.ActionTemplateReply, tok.Action)
		assert.Equal(t, user.ID, tok.TargetID)
	}
	manual, err := token.Decode(adminMsgs[0].Controls[2].Token)
	require.NoError(t, err)
	assert.Equal(t, token.ActionManualReply, manual.Action)
	assert.Equal(t, user.ID, manual.TargetID)

	userMsgs := f.outbox.sentTo(user.ID)
	require.Len(t, userMsgs, 2)
	assert.Equal(t, flow.MsgOrderAccepted, userMsgs[1].Text)
	assert.False(t, f.router.InProgress(user.ID))
}

func TestQuestionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := flow.Subject{ID: 7, Username: "bob"}

	require.NoError(t, f.router.HandleMenuSelection(ctx, user, "q_price"))

	assert.False(t, f.router.InProgress(user.ID), "questions must not open a session")

	adminMsgs := f.outbox.sentTo(adminID)
	require.Len(t, adminMsgs, 1)
	assert.Contains(t, adminMsgs[0].Text, "интересует стоимость")
	require.Len(t, adminMsgs[0].Controls, 1)

	tok, err := token.Decode(adminMsgs[0].Controls[0].Token)
	require.NoError(t, err)
	assert.Equal(t, token.ActionAnswerQuestion, tok.Action)
	assert.Equal(t, user.ID, tok.TargetID)
	assert.Equal(t, "q_price", tok.TopicKey)

	userMsgs := f.outbox.sentTo(user.ID)
	require.Len(t, userMsgs, 1)
	assert.Equal(t, flow.MsgQuestionSent, userMsgs[0].Text)
}

func TestUnknownSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := flow.Subject{ID: 7}

	require.NoError(t, f.router.HandleMenuSelection(ctx, user, "bogus_key"))

	assert.False(t, f.router.InProgress(user.ID))
	require.Len(t, f.outbox.sentTo(user.ID), 1)
	assert.Equal(t, flow.MsgUnknownMenuItem, f.outbox.sentTo(user.ID)[0].Text)
	assert.Empty(t, f.outbox.sentTo(adminID))
}

func TestTemplateReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := flow.Subject{ID: adminID, Username: "admin"}

	raw, err := token.Encode(token.Token{Action: token.ActionTemplateReply, TargetID: 42})
	require.NoError(t, err)

	require.NoError(t, f.router.HandleAdminControl(ctx, admin, raw))

	target := f.outbox.sentTo(42)
	require.Len(t, target, 1)
	assert.Equal(t, flow.MsgTemplateThanks, target[0].Text)

	adminMsgs := f.outbox.sentTo(adminID)
	require.Len(t, adminMsgs, 1)
	assert.Equal(t, flow.MsgReplySent, adminMsgs[0].Text)
	assert.False(t, f.router.InProgress(adminID))
}

func TestManualReplyEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := flow.Subject{ID: adminID, Username: "admin"}

	raw, err := token.Encode(token.Token{Action: token.ActionManualReply, TargetID: 42})
	require.NoError(t, err)

	require.NoError(t, f.router.HandleAdminControl(ctx, admin, raw))
	assert.True(t, f.router.InProgress(adminID))
	require.Len(t, f.outbox.sentTo(adminID), 1)
	assert.Equal(t, flow.MsgManualPrompt, f.outbox.sentTo(adminID)[0].Text)

	require.NoError(t, f.router.HandleFreeText(ctx, admin, "здравствуйте, отвечаю на вашу заявку"))

	target := f.outbox.sentTo(42)
	require.Len(t, target, 1)
	assert.Equal(t, "здравствуйте, отвечаю на вашу заявку", target[0].Text)
	assert.Empty(t, target[0].Controls)
	assert.False(t, f.router.InProgress(adminID))
}

func TestAnswerQuestionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := flow.Subject{ID: adminID}

	raw, err := token.Encode(token.Token{Action: token.ActionAnswerQuestion, TargetID: 42, TopicKey: "q_crm"})
	require.NoError(t, err)

	require.NoError(t, f.router.HandleAdminControl(ctx, admin, raw))

	prompt := f.outbox.sentTo(adminID)
	require.Len(t, prompt, 1)
	assert.Contains(t, prompt[0].Text, "интересует интеграция с CRM")

	sess, ok := f.sessions.Get(adminID)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingReply, sess.State)
	assert.Equal(t, "q_crm", sess.Data[session.KeyTopic])

	require.NoError(t, f.router.HandleFreeText(ctx, admin, "да, подключаем любую CRM"))
	target := f.outbox.sentTo(42)
	require.Len(t, target, 1)
	assert.Equal(t, "да, подключаем любую CRM", target[0].Text)
}

func TestAnswerUnknownTopicKeepsRawKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := flow.Subject{ID: adminID}

	raw, err := token.Encode(token.Token{Action: token.ActionAnswerQuestion, TargetID: 42, TopicKey: "q_mystery"})
	require.NoError(t, err)

	require.NoError(t, f.router.HandleAdminControl(ctx, admin, raw))

	prompt := f.outbox.sentTo(adminID)
	require.Len(t, prompt, 1)
	assert.Contains(t, prompt[0].Text, "q_mystery")
}

func TestIdleFreeTextIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleFreeText(ctx, flow.Subject{ID: 42}, "привет"))
	assert.Empty(t, f.outbox.messages())

	recs, _ := f.orders.LoadAll(ctx)
	assert.Empty(t, recs)
}

func TestPersistenceFailureHoldsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := flow.Subject{ID: 42, Username: "alice"}

	require.NoError(t, f.router.HandleMenuSelection(ctx, user, "ai"))
	f.orders.fail = true

	err := f.router.HandleFreeText(ctx, user, "описание задачи")
	require.Error(t, err)

	var pe *orders.PersistenceError
	require.ErrorAs(t, err, &pe)

	// No confirmation, no admin notification, session intact for a retry.
	assert.Empty(t, f.outbox.sentTo(adminID))
	userMsgs := f.outbox.sentTo(user.ID)
	require.Len(t, userMsgs, 2)
	assert.Equal(t, flow.MsgOrderSaveFailed, userMsgs[1].Text)
	assert.True(t, f.router.InProgress(user.ID))

	// Retry succeeds once the store recovers.
	f.orders.fail = false
	require.NoError(t, f.router.HandleFreeText(ctx, user, "описание задачи"))
	recs, _ := f.orders.LoadAll(ctx)
	assert.Len(t, recs, 1)
	assert.False(t, f.router.InProgress(user.ID))
}

func TestMalformedControlRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := flow.Subject{ID: adminID}

	err := f.router.HandleAdminControl(ctx, admin, "tpl_ok_42")
	require.Error(t, err)

	var malformed *token.ErrMalformed
	require.ErrorAs(t, err, &malformed)

	adminMsgs := f.outbox.sentTo(adminID)
	require.Len(t, adminMsgs, 1)
	assert.Equal(t, flow.MsgBadControl, adminMsgs[0].Text)
	assert.Empty(t, f.outbox.sentTo(42), "a malformed token must never reach a guessed target")
	assert.False(t, f.router.InProgress(adminID))
}

func TestNonAdminControlDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	imposter := flow.Subject{ID: 13}

	raw, err := token.Encode(token.Token{Action: token.ActionTemplateReply, TargetID: 42})
	require.NoError(t, err)

	require.NoError(t, f.router.HandleAdminControl(ctx, imposter, raw))

	assert.Empty(t, f.outbox.sentTo(42))
	msgs := f.outbox.sentTo(imposter.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, flow.MsgAdminOnly, msgs[0].Text)
}

func TestAwaitingReplyIgnoredForNonAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A non-admin can only end up here through store manipulation, but the
	// router still refuses to forward anything.
	f.sessions.Set(13, session.Session{
		State: session.StateAwaitingReply,
		Data:  map[string]string{session.KeyTargetID: "42"},
	})

	require.NoError(t, f.router.HandleFreeText(ctx, flow.Subject{ID: 13}, "leak attempt"))
	assert.Empty(t, f.outbox.messages())
}

func TestInvalidReplyTargetClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := flow.Subject{ID: adminID}

	f.sessions.Set(adminID, session.Session{
		State: session.StateAwaitingReply,
		Data:  map[string]string{session.KeyTargetID: "not-a-number"},
	})

	err := f.router.HandleFreeText(ctx, admin, "hello")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid target"))
	assert.False(t, f.router.InProgress(adminID))
	assert.Empty(t, f.outbox.messages())
}

func TestConcurrentSubjectsIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			subj := flow.Subject{ID: int64(i + 1)}
			assert.NoError(t, f.router.HandleMenuSelection(ctx, subj, "sales"))
			assert.NoError(t, f.router.HandleFreeText(ctx, subj, "task"))
		}(i)
	}
	wg.Wait()

	recs, _ := f.orders.LoadAll(ctx)
	assert.Len(t, recs, n)
	for i := 0; i < n; i++ {
		assert.False(t, f.router.InProgress(int64(i+1)))
	}
}
