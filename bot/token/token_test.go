package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Token{
		{Action: ActionTemplateReply, TargetID: 1},
		{Action: ActionTemplateReply, TargetID: 123456789},
		{Action: ActionManualReply, TargetID: 42},
		{Action: ActionAnswerQuestion, TargetID: 42, TopicKey: "q_price"},
		{Action: ActionAnswerQuestion, TargetID: 9007199254740993, TopicKey: "q_custom"},
		{Action: ActionAnswerQuestion, TargetID: 7, TopicKey: "weird:topic|with_delims"},
	}
	for _, tc := range cases {
		raw, err := Encode(tc)
		require.NoError(t, err, "encode %+v", tc)

		got, err := Decode(raw)
		require.NoError(t, err, "decode %q", raw)
		assert.Equal(t, tc, got)
	}
}

func TestEncodeInjective(t *testing.T) {
	tokens := []Token{
		{Action: ActionTemplateReply, TargetID: 1},
		{Action: ActionTemplateReply, TargetID: 11},
		{Action: ActionManualReply, TargetID: 1},
		{Action: ActionManualReply, TargetID: 11},
		{Action: ActionAnswerQuestion, TargetID: 1, TopicKey: "q_price"},
		{Action: ActionAnswerQuestion, TargetID: 1, TopicKey: "q_ai"},
		{Action: ActionAnswerQuestion, TargetID: 11, TopicKey: "q_price"},
	}
	seen := make(map[string]Token, len(tokens))
	for _, tok := range tokens {
		raw, err := Encode(tok)
		require.NoError(t, err)
		if prev, dup := seen[raw]; dup {
			t.Fatalf("tokens %+v and %+v encode to the same string %q", prev, tok, raw)
		}
		seen[raw] = tok
	}
}

func TestEncodeValidation(t *testing.T) {
	cases := []Token{
		{Action: "bogus", TargetID: 1},
		{Action: ActionTemplateReply, TargetID: 0},
		{Action: ActionTemplateReply, TargetID: -5},
		{Action: ActionTemplateReply, TargetID: 1, TopicKey: "q_price"},
		{Action: ActionManualReply, TargetID: 1, TopicKey: "q_price"},
		{Action: ActionAnswerQuestion, TargetID: 1},
	}
	for _, tc := range cases {
		_, err := Encode(tc)
		assert.Error(t, err, "expected encode failure for %+v", tc)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"v1",
		"v1:tpl",
		"v2:tpl:1",
		"v1:frob:1",
		"v1:tpl:abc",
		"v1:tpl:0",
		"v1:tpl:-3",
		"v1:tpl:1:extra",
		"v1:answer:1",
		"v1:answer:1:",
		"v1:answer:1:not%base64",
		"v1:answer:1:cV9wcmljZQ:more",
		"tpl_ok_12345",
		"manual_12345",
	}
	for _, raw := range cases {
		_, err := Decode(raw)
		require.Error(t, err, "decode %q", raw)

		var malformed *ErrMalformed
		require.ErrorAs(t, err, &malformed, "decode %q", raw)
		assert.Equal(t, "MALFORMED_TOKEN", malformed.Code())
	}
}

func TestEncodedLengthFitsCallbackData(t *testing.T) {
	// Telegram caps callback data at 64 bytes.
	raw, err := Encode(Token{
		Action:   ActionAnswerQuestion,
		TargetID: 9223372036854775807,
		TopicKey: "q_security",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), 64, "encoded token %q", raw)
}
