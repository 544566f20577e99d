// Package session keeps per-subject conversation state in memory.
package session

// State is the conversation state of a single subject.
type State string

const (
	// StateIdle means no dialog is in progress.
	StateIdle State = "idle"
	// StateAwaitingTask means the subject picked a service category and the
	// next free-text message is the task description.
	StateAwaitingTask State = "awaiting_task"
	// StateAwaitingReply means the admin pressed a manual-reply control and
	// the next free-text message is forwarded to the stored target.
	StateAwaitingReply State = "awaiting_reply"
)

// Data keys stored alongside the state.
const (
	KeyCategory   = "category"
	KeyTargetID   = "target_id"
	KeyTopic      = "topic"
	KeyTopicLabel = "topic_label"
)

// Session is a snapshot of one subject's dialog state.
type Session struct {
	State State
	Data  map[string]string
}

// Store manages sessions keyed by subject id.
// Set overwrites unconditionally (last writer wins) and Get returns a copy,
// so callers never alias store-owned state.
type Store interface {
	Get(id int64) (Session, bool)
	Set(id int64, s Session)
	Clear(id int64)
	InProgress(id int64) bool
}
