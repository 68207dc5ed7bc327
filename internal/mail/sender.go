package mail

type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	IsHTML      bool
	Embeds      map[string]string
	Attachments []string
}

type MailSender interface {
	Send(message *Message) error
}

// NullMailSender drops every message. Used when no mail backend is configured.
type NullMailSender struct{}

func (NullMailSender) Send(message *Message) error {
	return nil
}
