package codec

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pchat/pkg/types"
)

// 字段号
const (
	fieldType      protowire.Number = 1
	fieldUsername  protowire.Number = 2
	fieldTimestamp protowire.Number = 3 // ChatMessage.timestamp / PresenceUpdate.last_connection
	fieldText      protowire.Number = 4
)

// 字段名（用于错误信息）
const (
	nameType           = "type"
	nameUsername       = "username"
	nameTimestamp      = "timestamp"
	nameLastConnection = "last_connection"
	nameText           = "text"
)

// ============================================================================
//                              编码
// ============================================================================

// Encode 编码载荷
//
// 对任何合法载荷都成功；nil 载荷返回 nil。
func Encode(p types.Payload) []byte {
	switch v := p.(type) {
	case types.ChatMessage:
		b := make([]byte, 0, 32+len(v.Username)+len(v.Text))
		b = appendString(b, fieldType, string(types.KindMessage))
		b = appendString(b, fieldUsername, v.Username)
		b = appendString(b, fieldTimestamp, strconv.FormatUint(v.TimestampMillis, 10))
		b = appendString(b, fieldText, v.Text)
		return b
	case *types.ChatMessage:
		if v == nil {
			return nil
		}
		return Encode(*v)
	case types.PresenceUpdate:
		b := make([]byte, 0, 40+len(v.Username))
		b = appendString(b, fieldType, string(types.KindUserStatus))
		b = appendString(b, fieldUsername, v.Username)
		b = appendString(b, fieldTimestamp, strconv.FormatUint(v.LastSeenMillis, 10))
		return b
	case *types.PresenceUpdate:
		if v == nil {
			return nil
		}
		return Encode(*v)
	default:
		return nil
	}
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// ============================================================================
//                              解码
// ============================================================================

// wireFields 一次解码读到的已知字段
type wireFields struct {
	values [fieldText + 1]string
	seen   [fieldText + 1]bool
}

func (f *wireFields) get(num protowire.Number) (string, bool) {
	return f.values[num], f.seen[num]
}

// Decode 解码载荷
//
// 未知字段号被跳过；重复字段以最后一次出现为准。
// 失败时返回 *DecodeError，对任意输入都不会 panic。
func Decode(data []byte) (types.Payload, error) {
	fields, err := scan(data)
	if err != nil {
		return nil, err
	}

	tag, ok := fields.get(fieldType)
	if !ok {
		return nil, missingField("", nameType)
	}

	switch types.PayloadKind(tag) {
	case types.KindMessage:
		return decodeMessage(fields)
	case types.KindUserStatus:
		return decodePresence(fields)
	default:
		return nil, &DecodeError{Reason: ReasonUnknownTag, Tag: tag}
	}
}

func decodeMessage(f *wireFields) (types.Payload, error) {
	tag := string(types.KindMessage)

	username, ok := f.get(fieldUsername)
	if !ok {
		return nil, missingField(tag, nameUsername)
	}
	rawTS, ok := f.get(fieldTimestamp)
	if !ok {
		return nil, missingField(tag, nameTimestamp)
	}
	text, ok := f.get(fieldText)
	if !ok {
		return nil, missingField(tag, nameText)
	}
	ts, err := parseMillis(rawTS)
	if err != nil {
		return nil, malformed(nameTimestamp, err)
	}

	return types.ChatMessage{
		Username:        username,
		Text:            text,
		TimestampMillis: ts,
	}, nil
}

func decodePresence(f *wireFields) (types.Payload, error) {
	tag := string(types.KindUserStatus)

	username, ok := f.get(fieldUsername)
	if !ok {
		return nil, missingField(tag, nameUsername)
	}
	rawTS, ok := f.get(fieldTimestamp)
	if !ok {
		return nil, missingField(tag, nameLastConnection)
	}
	ts, err := parseMillis(rawTS)
	if err != nil {
		return nil, malformed(nameLastConnection, err)
	}

	return types.PresenceUpdate{
		Username:       username,
		LastSeenMillis: ts,
	}, nil
}

// scan 遍历线上字段，收集字段 1~4
func scan(data []byte) (*wireFields, error) {
	f := &wireFields{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, malformed("", protowire.ParseError(n))
		}
		data = data[n:]

		if num < fieldType || num > fieldText {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, malformed("", protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		name := fieldName(num)
		if typ != protowire.BytesType {
			return nil, malformed(name, fmt.Errorf("unexpected wire type %d", typ))
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, malformed(name, protowire.ParseError(n))
		}
		data = data[n:]

		if !utf8.Valid(v) {
			return nil, malformed(name, errors.New("invalid UTF-8"))
		}
		f.values[num] = string(v)
		f.seen[num] = true
	}
	return f, nil
}

func fieldName(num protowire.Number) string {
	switch num {
	case fieldType:
		return nameType
	case fieldUsername:
		return nameUsername
	case fieldTimestamp:
		return nameTimestamp
	case fieldText:
		return nameText
	default:
		return strconv.Itoa(int(num))
	}
}

// parseMillis 解析十进制毫秒时间戳
func parseMillis(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return v, nil
}
