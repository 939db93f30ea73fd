package codec

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrUnknownTag type 字段不是已知载荷类型
	ErrUnknownTag = errors.New("codec: unknown payload tag")

	// ErrMissingField 缺少载荷必需字段
	ErrMissingField = errors.New("codec: missing required field")

	// ErrMalformed 线上数据格式错误
	ErrMalformed = errors.New("codec: malformed payload")
)

// Reason 解码失败原因
type Reason int

const (
	// ReasonUnknownTag 未知载荷类型
	ReasonUnknownTag Reason = iota
	// ReasonMissingField 缺少必需字段
	ReasonMissingField
	// ReasonMalformed 数据格式错误
	ReasonMalformed
)

// String 返回原因名称（用作指标标签）
func (r Reason) String() string {
	switch r {
	case ReasonUnknownTag:
		return "unknown_tag"
	case ReasonMissingField:
		return "missing_field"
	case ReasonMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DecodeError 解码错误
type DecodeError struct {
	Reason Reason
	Field  string // 相关字段名（如果适用）
	Tag    string // 读到的 type 值（如果适用）
	Err    error  // 底层错误
}

// Error 实现 error 接口
func (e *DecodeError) Error() string {
	switch e.Reason {
	case ReasonUnknownTag:
		return fmt.Sprintf("codec: unknown payload tag %q", e.Tag)
	case ReasonMissingField:
		if e.Tag != "" {
			return fmt.Sprintf("codec: %s payload missing field %q", e.Tag, e.Field)
		}
		return fmt.Sprintf("codec: missing field %q", e.Field)
	default:
		msg := "codec: malformed payload"
		if e.Field != "" {
			msg += " (field " + e.Field + ")"
		}
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

// Unwrap 支持 errors.Unwrap
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is 按原因匹配预定义错误
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrUnknownTag:
		return e.Reason == ReasonUnknownTag
	case ErrMissingField:
		return e.Reason == ReasonMissingField
	case ErrMalformed:
		return e.Reason == ReasonMalformed
	}
	return false
}

// ReasonOf 返回解码错误的原因
//
// 非 DecodeError 的错误归为 ReasonMalformed。
func ReasonOf(err error) Reason {
	var derr *DecodeError
	if errors.As(err, &derr) {
		return derr.Reason
	}
	return ReasonMalformed
}

func missingField(tag, field string) *DecodeError {
	return &DecodeError{Reason: ReasonMissingField, Tag: tag, Field: field}
}

func malformed(field string, err error) *DecodeError {
	return &DecodeError{Reason: ReasonMalformed, Field: field, Err: err}
}
