package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mail "github.com/go-mail/mail"
)

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.local", FromEmail: "no-reply@x.io"})
	var captured *mail.Message
	s.dial = func(m *mail.Message) error { captured = m; return nil }

	res := s.Send(context.Background(), "a@x.io", KindVerificationCode, Payload{Code: "123456", TTL: 15 * time.Minute})
	if !res.Success || res.Err != nil {
		t.Fatalf("send: %+v", res)
	}
	var buf bytes.Buffer
	if _, err := captured.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "123456") || captured.GetHeader("To")[0] != "a@x.io" {
		t.Fatalf("message: %s", buf.String())
	}
}

func TestSMTPSenderReportsFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.local"})
	s.dial = func(*mail.Message) error { return errors.New("connection refused") }
	if res := s.Send(context.Background(), "a@x.io", KindPasswordReset, Payload{}); res.Success || res.Err == nil {
		t.Fatalf("expected failure: %+v", res)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Send(context.Background(), "a@x.io", KindVerificationCode, Payload{Code: "1"})
	r.Send(context.Background(), "a@x.io", KindVerificationCode, Payload{Code: "2"})
	if last, ok := r.Last("a@x.io"); !ok || last.Payload.Code != "2" || r.Count() != 2 {
		t.Fatalf("recorder: %+v", last)
	}
}
