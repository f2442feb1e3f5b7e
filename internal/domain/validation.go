package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotFound 表示引用的联系记录不存在（包括格式错误的 ID）。
var ErrNotFound = errors.New("contact not found")

// 校验规则名称，同时作为 ValidationError.Rule 的取值。
const (
	RuleMissingField  = "missing field"
	RuleBadEmail      = "bad email"
	RuleInvalidStatus = "invalid status"
	RuleInvalidBody   = "invalid body"
)

// emailRegex 只要求 local@domain.tld 形状，不做 RFC 5322 完整校验。
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError 调用方输入不合法
type ValidationError struct {
	Rule  string
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Rule
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Field)
}

// IsValidationError 判断 err 链中是否包含 *ValidationError。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidEmail 判断邮箱是否符合 local@domain.tld 形状。
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// Normalize 去除全部字段首尾空白，并将邮箱转为小写。
func (in ContactInput) Normalize() ContactInput {
	return ContactInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Service: strings.TrimSpace(in.Service),
		Message: strings.TrimSpace(in.Message),
	}
}

// Validate 规范化输入并按顺序校验：先检查必填字段，再检查邮箱格式。
//
// 返回规范化后的输入；失败时返回 *ValidationError。
func (in ContactInput) Validate() (ContactInput, error) {
	normalized := in.Normalize()

	required := []struct {
		field string
		value string
	}{
		{"name", normalized.Name},
		{"email", normalized.Email},
		{"phone", normalized.Phone},
		{"service", normalized.Service},
		{"message", normalized.Message},
	}
	for _, r := range required {
		if r.value == "" {
			return ContactInput{}, &ValidationError{Rule: RuleMissingField, Field: r.field}
		}
	}

	if !ValidEmail(normalized.Email) {
		return ContactInput{}, &ValidationError{Rule: RuleBadEmail, Field: "email"}
	}

	return normalized, nil
}

// ParseStatus 校验状态值是否属于固定枚举。
func ParseStatus(value string) (ContactStatus, error) {
	status := ContactStatus(value)
	if !status.Valid() {
		return "", &ValidationError{Rule: RuleInvalidStatus, Field: "status"}
	}
	return status, nil
}
