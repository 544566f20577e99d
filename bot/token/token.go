// Package token encodes correlation tokens carried in admin inline controls.
// A token survives a round trip through Telegram callback data and tells the
// router which action the admin chose, which user it concerns, and optionally
// which question topic it answers.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action identifies what pressing a control means.
type Action string

const (
	// ActionTemplateReply sends a canned acknowledgment to the target.
	ActionTemplateReply Action = "tpl"
	// ActionManualReply arms a manual reply session for the target.
	ActionManualReply Action = "manual"
	// ActionAnswerQuestion arms a manual reply bound to a question topic.
	ActionAnswerQuestion Action = "answer"
)

const version = "v1"

// ErrMalformed reports callback data that is not a valid token.
// Decoding never guesses: anything that does not parse exactly is rejected.
type ErrMalformed struct {
	Raw    string
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("token: malformed %q: %s", e.Raw, e.Reason)
}

// Code identifies the error class for structured handler logs.
func (e *ErrMalformed) Code() string { return "MALFORMED_TOKEN" }

// Token is the decoded form of a correlation token.
type Token struct {
	Action   Action
	TargetID int64
	TopicKey string
}

var topicEnc = base64.RawURLEncoding

// Encode renders the token as `v1:<action>:<target>[:<base64url(topic)>]`.
// The topic is armored so free-form keys can never collide with the delimiter.
// A topic is mandatory for ActionAnswerQuestion and forbidden otherwise.
func Encode(t Token) (string, error) {
	switch t.Action {
	case ActionTemplateReply, ActionManualReply:
		if t.TopicKey != "" {
			return "", fmt.Errorf("token: action %q does not carry a topic", t.Action)
		}
	case ActionAnswerQuestion:
		if t.TopicKey == "" {
			return "", errors.New("token: answer action requires a topic")
		}
	default:
		return "", fmt.Errorf("token: unknown action %q", t.Action)
	}
	if t.TargetID <= 0 {
		return "", fmt.Errorf("token: invalid target id %d", t.TargetID)
	}

	s := version + ":" + string(t.Action) + ":" + strconv.FormatInt(t.TargetID, 10)
	if t.TopicKey != "" {
		s += ":" + topicEnc.EncodeToString([]byte(t.TopicKey))
	}
	return s, nil
}

// Decode parses callback data back into a Token.
func Decode(raw string) (Token, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Token{}, &ErrMalformed{Raw: raw, Reason: "wrong field count"}
	}
	if parts[0] != version {
		return Token{}, &ErrMalformed{Raw: raw, Reason: "unsupported version"}
	}

	action := Action(parts[1])
	switch action {
	case ActionTemplateReply, ActionManualReply, ActionAnswerQuestion:
	default:
		return Token{}, &ErrMalformed{Raw: raw, Reason: "unknown action"}
	}

	target, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || target <= 0 {
		return Token{}, &ErrMalformed{Raw: raw, Reason: "invalid target id"}
	}

	t := Token{Action: action, TargetID: target}

	if action == ActionAnswerQuestion {
		if len(parts) != 4 || parts[3] == "" {
			return Token{}, &ErrMalformed{Raw: raw, Reason: "missing topic"}
		}
		topic, err := topicEnc.DecodeString(parts[3])
		if err != nil || len(topic) == 0 {
			return Token{}, &ErrMalformed{Raw: raw, Reason: "undecodable topic"}
		}
		t.TopicKey = string(topic)
		return t, nil
	}

	if len(parts) != 3 {
		return Token{}, &ErrMalformed{Raw: raw, Reason: "unexpected topic field"}
	}
	return t, nil
}
