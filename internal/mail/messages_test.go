package mail

import (
	"strings"
	"testing"

	"github.com/khanghh/appsso/internal/render"
)

type recordingSender struct {
	sent []*Message
}

func (r *recordingSender) Send(message *Message) error {
	r.sent = append(r.sent, message)
	return nil
}

func TestSendWelcome(t *testing.T) {
	if err := render.Initialize(map[string]interface{}{"siteName": "Apps SSO"}, ""); err != nil {
		t.Fatalf("render.Initialize: %v", err)
	}
	sender := &recordingSender{}
	if err := SendWelcome(sender, "a@x.com", "Ann", "Apps SSO"); err != nil {
		t.Fatalf("SendWelcome: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To[0] != "a@x.com" || msg.Subject != "Welcome to Apps SSO" || !msg.IsHTML {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.Body, "Hi Ann") {
		t.Fatalf("unexpected body %s", msg.Body)
	}
}

func TestNullMailSender(t *testing.T) {
	var sender MailSender = NullMailSender{}
	if err := sender.Send(&Message{To: []string{"a@x.com"}}); err != nil {
		t.Fatalf("NullMailSender: %v", err)
	}
}
