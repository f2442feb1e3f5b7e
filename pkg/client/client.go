// Package client 是联系表单 API 的 Go 客户端。
//
// Client 对应五个 HTTP 接口；Submitter 在 Client 之上实现表单提交语义
// （单次在途提交、提交前触发即时通讯深链接）。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout 单次请求超时
const DefaultTimeout = 15 * time.Second

// ContactInput 表单提交字段
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// Contact 服务端保存的联系记录
type Contact struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Service       string     `json:"service"`
	Message       string     `json:"message"`
	Status        string     `json:"status"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	SourceAddress string     `json:"sourceAddress,omitempty"`
}

// HealthStatus GET / 的响应
type HealthStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError 服务端返回的失败响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound 判断错误是否为 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// envelope 服务端统一响应结构
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	ID      string          `json:"id"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

// Client 联系表单 API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option 配置 Client
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New 创建客户端，baseURL 形如 https://api.example.com
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health 调用 GET /
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	resp, body, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}

// Submit 提交联系表单，返回新记录 ID
func (c *Client) Submit(ctx context.Context, input ContactInput) (string, error) {
	env, err := c.call(ctx, http.MethodPost, "/api/contact", input, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return env.ID, nil
}

// List 获取全部联系记录，最新的在前
func (c *Client) List(ctx context.Context) ([]Contact, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/contacts", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	contacts := []Contact{}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &contacts); err != nil {
			return nil, fmt.Errorf("decode contacts: %w", err)
		}
	}
	return contacts, nil
}

// Get 获取单条联系记录
func (c *Client) Get(ctx context.Context, id string) (*Contact, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/contacts/"+url.PathEscape(id), nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var contact Contact
	if err := json.Unmarshal(env.Data, &contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	return &contact, nil
}

// UpdateStatus 修改联系记录状态
func (c *Client) UpdateStatus(ctx context.Context, id, status string) error {
	payload := map[string]string{"status": status}
	_, err := c.call(ctx, http.MethodPatch, "/api/contacts/"+url.PathEscape(id)+"/status", payload, http.StatusOK)
	return err
}

// call 发送请求并解析统一响应结构
func (c *Client) call(ctx context.Context, method, path string, payload interface{}, want int) (*envelope, error) {
	resp, body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != want {
		return nil, apiError(resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

// apiError 从失败响应中尽量取出 message
func apiError(statusCode int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return &APIError{StatusCode: statusCode, Message: env.Message}
	}
	return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}
