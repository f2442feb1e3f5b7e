package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

var (
	// ErrSubmissionInFlight 上一次提交尚未完成
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrSubmissionFailed 提交失败，调用方应保留表单内容并提示重试
	ErrSubmissionFailed = errors.New("there was an error submitting your message, please try again")
)

// Redirector 打开即时通讯深链接（浏览器新标签页、系统 opener 等）
type Redirector interface {
	Open(ctx context.Context, link string) error
}

// RedirectorFunc 让普通函数满足 Redirector
type RedirectorFunc func(ctx context.Context, link string) error

// Open 实现 Redirector
func (f RedirectorFunc) Open(ctx context.Context, link string) error {
	return f(ctx, link)
}

// MessagingLink 生成携带表单内容的 wa.me 链接
//
// number 含国家码、不含 + 和空格。
func MessagingLink(number string, input ContactInput) string {
	var text strings.Builder
	fmt.Fprintf(&text, "Name: %s\n", input.Name)
	fmt.Fprintf(&text, "Email: %s\n", input.Email)
	fmt.Fprintf(&text, "Phone: %s\n", input.Phone)
	if input.Service != "" {
		fmt.Fprintf(&text, "Service: %s\n", input.Service)
	}
	fmt.Fprintf(&text, "Message: %s", input.Message)

	return "https://wa.me/" + url.PathEscape(number) + "?" + url.Values{"text": {text.String()}}.Encode()
}

// Submitter 表单提交器
//
// 同一时刻只允许一次提交；提交前异步打开深链接，其结果不影响提交。
type Submitter struct {
	client    *Client
	number    string
	redirect  Redirector
	onFailure func(error)
	inFlight  atomic.Bool
}

// SubmitterOption 配置 Submitter
type SubmitterOption func(*Submitter)

// WithRedirect 配置深链接号码与打开方式，number 为空时不触发
func WithRedirect(number string, r Redirector) SubmitterOption {
	return func(s *Submitter) {
		s.number = number
		s.redirect = r
	}
}

// WithFailureHook 接收提交失败的原始错误，用于日志
func WithFailureHook(fn func(error)) SubmitterOption {
	return func(s *Submitter) { s.onFailure = fn }
}

// NewSubmitter 创建表单提交器
func NewSubmitter(c *Client, opts ...SubmitterOption) *Submitter {
	s := &Submitter{client: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit 提交一次表单，成功返回记录 ID
//
// 失败时返回 ErrSubmissionFailed（包含原始错误），input 不会被修改。
func (s *Submitter) Submit(ctx context.Context, input ContactInput) (string, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return "", ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	if s.redirect != nil && s.number != "" {
		link := MessagingLink(s.number, input)
		go func() {
			_ = s.redirect.Open(context.WithoutCancel(ctx), link)
		}()
	}

	id, err := s.client.Submit(ctx, input)
	if err != nil {
		if s.onFailure != nil {
			s.onFailure(err)
		}
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return id, nil
}

// InFlight 是否有提交正在进行
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}
