package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
)

// sendMailFunc 与 gosmtp.SendMail 签名一致，便于替换
type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r *bytes.Reader) error

// MailSink 在有新的表单提交时给运营人员发邮件
type MailSink struct {
	cfg  config.SMTPConfig
	send sendMailFunc
}

// NewMailSink 创建邮件通知渠道
func NewMailSink(cfg config.SMTPConfig) *MailSink {
	return &MailSink{
		cfg: cfg,
		send: func(addr string, a sasl.Client, from string, to []string, r *bytes.Reader) error {
			return gosmtp.SendMail(addr, a, from, to, r)
		},
	}
}

// Name 实现 Sink
func (m *MailSink) Name() string { return "smtp" }

// Deliver 只处理 contact.created 事件
func (m *MailSink) Deliver(ctx context.Context, event domain.ContactEvent) error {
	if event.Type != domain.EventContactCreated {
		return nil
	}

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	msg := buildMessage(m.cfg.From, m.cfg.To, event)

	// SendMail 不支持 context，超时后放弃等待
	done := make(chan error, 1)
	go func() {
		done <- m.send(m.cfg.Address, auth, m.cfg.From, m.cfg.To, bytes.NewReader(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail via %s: %w", m.cfg.Address, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail via %s: %w", m.cfg.Address, ctx.Err())
	}
}

// buildMessage 生成纯文本通知邮件
func buildMessage(from string, to []string, event domain.ContactEvent) []byte {
	c := event.Contact
	subject := mime.QEncoding.Encode("utf-8", headerSafe(fmt.Sprintf("New contact submission: %s (%s)", c.Name, c.Service)))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", event.OccurredAt.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Reply-To: %s\r\n", headerSafe(c.Email))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "ID:        %s\r\n", c.ID)
	fmt.Fprintf(&buf, "Name:      %s\r\n", c.Name)
	fmt.Fprintf(&buf, "Email:     %s\r\n", c.Email)
	fmt.Fprintf(&buf, "Phone:     %s\r\n", c.Phone)
	fmt.Fprintf(&buf, "Service:   %s\r\n", c.Service)
	fmt.Fprintf(&buf, "Submitted: %s\r\n", c.SubmittedAt.Format(time.RFC3339))
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(c.Message, "\r\n", "\n"), "\n", "\r\n"))
	buf.WriteString("\r\n")

	return buf.Bytes()
}

// headerSafe 去掉换行，防止表单内容注入邮件头
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
