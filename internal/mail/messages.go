package mail

import (
	"fmt"

	"github.com/khanghh/appsso/internal/render"
)

func SendWelcome(sender MailSender, toEmail string, name string, siteName string) error {
	body, err := render.RenderHTML("mail/welcome", map[string]interface{}{
		"name": name,
	})
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Welcome to %s", siteName),
		Body:    body,
		IsHTML:  true,
	})
}
