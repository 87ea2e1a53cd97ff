package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig 是所有字段校验错误的公共哨兵，调用方可用 errors.Is 判断。
var ErrInvalidConfig = errors.New("invalid config")

// FieldError 指出具体出错的配置键及原因。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("配置项 %s %s", e.Field, e.Reason)
}

func (e FieldError) Unwrap() error {
	return ErrInvalidConfig
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}
