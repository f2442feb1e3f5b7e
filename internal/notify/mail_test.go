package notify

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
)

// captureBackend 是只记录收到邮件的 SMTP 服务端
type captureBackend struct {
	mu   sync.Mutex
	from string
	to   []string
	data []byte
}

func (b *captureBackend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	return &captureSession{b: b}, nil
}

type captureSession struct {
	b *captureBackend
}

func (s *captureSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.to = append(s.b.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.data = data
	return nil
}

func (s *captureSession) Reset() {}

func (s *captureSession) Logout() error { return nil }

func startSMTPServer(t *testing.T) (*captureBackend, string) {
	t.Helper()

	backend := &captureBackend{}
	server := gosmtp.NewServer(backend)
	server.Domain = "localhost"
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { _ = server.Close() })

	return backend, l.Addr().String()
}

func createdEvent() domain.ContactEvent {
	return domain.ContactEvent{
		Type: domain.EventContactCreated,
		Contact: domain.Contact{
			ID:          "64b7f0c2a1b2c3d4e5f60718",
			Name:        "Meera Iyer",
			Email:       "meera@example.com",
			Phone:       "+91 90000 00000",
			Service:     "visa-guidance",
			Message:     "Need help with\nstudent visa",
			Status:      domain.StatusNew,
			SubmittedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		},
		OccurredAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMailSink_SendsCreatedEvent(t *testing.T) {
	backend, addr := startSMTPServer(t)

	sink := NewMailSink(config.SMTPConfig{
		Address: addr,
		From:    "no-reply@educonsult.local",
		To:      []string{"ops@educonsult.local"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Deliver(ctx, createdEvent()))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "no-reply@educonsult.local", backend.from)
	assert.Equal(t, []string{"ops@educonsult.local"}, backend.to)

	body := string(backend.data)
	assert.Contains(t, body, "Subject: New contact submission: Meera Iyer (visa-guidance)")
	assert.Contains(t, body, "Reply-To: meera@example.com")
	assert.Contains(t, body, "Phone:     +91 90000 00000")
	assert.Contains(t, body, "Need help with\r\nstudent visa")
}

func TestMailSink_IgnoresStatusUpdates(t *testing.T) {
	called := false
	sink := NewMailSink(config.SMTPConfig{Address: "127.0.0.1:1", To: []string{"ops@example.com"}})
	sink.send = func(string, sasl.Client, string, []string, *bytes.Reader) error {
		called = true
		return nil
	}

	event := createdEvent()
	event.Type = domain.EventContactStatusUpdated
	require.NoError(t, sink.Deliver(context.Background(), event))
	assert.False(t, called)
}

func TestMailSink_UsesPlainAuthWhenConfigured(t *testing.T) {
	var gotAuth sasl.Client
	sink := NewMailSink(config.SMTPConfig{
		Address:  "mail.example.com:587",
		Username: "ops",
		Password: "secret",
		From:     "no-reply@example.com",
		To:       []string{"ops@example.com"},
	})
	sink.send = func(_ string, a sasl.Client, _ string, _ []string, _ *bytes.Reader) error {
		gotAuth = a
		return nil
	}

	require.NoError(t, sink.Deliver(context.Background(), createdEvent()))
	require.NotNil(t, gotAuth)

	mech, ir, err := gotAuth.Start()
	require.NoError(t, err)
	assert.Equal(t, sasl.Plain, mech)
	assert.Equal(t, "\x00ops\x00secret", string(ir))
}

func TestMailSink_GivesUpOnTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	sink := NewMailSink(config.SMTPConfig{Address: "slow:25", To: []string{"ops@example.com"}})
	sink.send = func(string, sasl.Client, string, []string, *bytes.Reader) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sink.Deliver(ctx, createdEvent())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHeaderSafe(t *testing.T) {
	assert.Equal(t, "a  Bcc: x", headerSafe("a\r\nBcc: x"))
}
