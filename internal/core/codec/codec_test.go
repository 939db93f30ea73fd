package codec

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pchat/pkg/types"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload types.Payload
	}{
		{"message", types.ChatMessage{Username: "alice", Text: "hi", TimestampMillis: 1000}},
		{"message empty strings", types.ChatMessage{Username: "", Text: "", TimestampMillis: 0}},
		{"message max timestamp", types.ChatMessage{Username: "bob", Text: "late", TimestampMillis: math.MaxUint64}},
		{"message unicode", types.ChatMessage{Username: "李雷", Text: "你好 👋", TimestampMillis: 1700000000000}},
		{"presence", types.PresenceUpdate{Username: "alice", LastSeenMillis: 2000}},
		{"presence max timestamp", types.PresenceUpdate{Username: "", LastSeenMillis: math.MaxUint64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(Encode(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestEncode_Pointer(t *testing.T) {
	msg := &types.ChatMessage{Username: "alice", Text: "hi", TimestampMillis: 1}
	assert.Equal(t, Encode(*msg), Encode(msg))
	assert.Nil(t, Encode(nil))
}

func TestEncode_TimestampIsDecimalString(t *testing.T) {
	data := Encode(types.PresenceUpdate{Username: "u", LastSeenMillis: 42})

	fields, err := scan(data)
	require.NoError(t, err)
	ts, ok := fields.get(fieldTimestamp)
	require.True(t, ok)
	assert.Equal(t, "42", ts)
}

// build 按给定字段手工拼装线上数据
func build(fields ...any) []byte {
	var b []byte
	for i := 0; i+1 < len(fields); i += 2 {
		b = appendString(b, protowire.Number(fields[i].(int)), fields[i+1].(string))
	}
	return b
}

func TestDecode_UnknownTag(t *testing.T) {
	_, err := Decode(build(1, "reaction", 2, "alice", 3, "1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTag))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ReasonUnknownTag, de.Reason)
	assert.Equal(t, "reaction", de.Tag)
}

func TestDecode_MissingField(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		field string
	}{
		{"empty input", nil, "type"},
		{"no type", build(2, "alice", 3, "1", 4, "hi"), "type"},
		{"message without text", build(1, "message", 2, "alice", 3, "1"), "text"},
		{"message without username", build(1, "message", 3, "1", 4, "hi"), "username"},
		{"message without timestamp", build(1, "message", 2, "alice", 4, "hi"), "timestamp"},
		{"presence without last_connection", build(1, "user_status", 2, "alice"), "last_connection"},
		{"presence without username", build(1, "user_status", 3, "5"), "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, ErrMissingField)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated length", []byte{0x0a, 0x10, 'm'}},
		{"truncated tag", []byte{0x80}},
		{"varint type field", protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 7)},
		{"invalid utf8", append(build(1, "message", 2, "alice", 3, "1"), appendString(nil, 4, "\xff\xfe")...)},
		{"non decimal timestamp", build(1, "message", 2, "alice", 3, "12ab", 4, "hi")},
		{"negative timestamp", build(1, "user_status", 2, "alice", 3, "-1")},
		{"overflowing timestamp", build(1, "user_status", 2, "alice", 3, "18446744073709551616")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, ErrMalformed)
			assert.False(t, errors.Is(err, ErrUnknownTag))
		})
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	data := build(1, "message", 2, "alice")
	data = protowire.AppendTag(data, 9, protowire.VarintType)
	data = protowire.AppendVarint(data, 123)
	data = appendString(data, 15, "extension")
	data = append(data, build(3, "1000", 4, "hi")...)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, types.ChatMessage{Username: "alice", Text: "hi", TimestampMillis: 1000}, got)
}

func TestDecode_PresenceIgnoresText(t *testing.T) {
	got, err := Decode(build(1, "user_status", 2, "bob", 3, "7", 4, "ignored"))
	require.NoError(t, err)
	assert.Equal(t, types.PresenceUpdate{Username: "bob", LastSeenMillis: 7}, got)
}

func TestDecode_LastFieldWins(t *testing.T) {
	got, err := Decode(build(1, "message", 2, "a", 2, "b", 3, "1", 4, "x"))
	require.NoError(t, err)
	assert.Equal(t, "b", got.(types.ChatMessage).Username)
}

func TestDecode_GarbageNeverPanics(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	seed := Encode(types.ChatMessage{Username: "alice", Text: "hello world", TimestampMillis: 1000})

	for i := 0; i < 2000; i++ {
		var data []byte
		if i%2 == 0 {
			data = make([]byte, r.Intn(64))
			r.Read(data)
		} else {
			data = append([]byte(nil), seed...)
			data[r.Intn(len(data))] ^= byte(1 + r.Intn(255))
			data = data[:r.Intn(len(data)+1)]
		}

		assert.NotPanics(t, func() {
			p, err := Decode(data)
			if err == nil {
				assert.NotNil(t, p)
				return
			}
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "unknown_tag", ReasonUnknownTag.String())
	assert.Equal(t, "missing_field", ReasonMissingField.String())
	assert.Equal(t, "malformed", ReasonMalformed.String())
}

func TestReasonOf(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
	assert.Equal(t, ReasonMissingField, ReasonOf(err))

	_, err = Decode([]byte{0xff})
	require.Error(t, err)
	assert.Equal(t, ReasonMalformed, ReasonOf(err))

	wrapped := fmt.Errorf("observer: %w", &DecodeError{Reason: ReasonUnknownTag, Tag: "typing"})
	assert.Equal(t, ReasonUnknownTag, ReasonOf(wrapped))

	assert.Equal(t, ReasonMalformed, ReasonOf(errors.New("other")))
}
