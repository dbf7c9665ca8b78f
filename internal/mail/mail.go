// Package mail sends the owner a notification when a question arrives.
package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/dtommyhil/tommyhil-portfolio/internal/db"
)

// Notifier sends question notifications through Resend. Notification
// failures are expected to be logged and swallowed by the caller; a lost
// email must never fail the submission.
type Notifier struct {
	client *resend.Client
	from   string
	to     string
}

// NewNotifier creates a Notifier for the given Resend API key and addresses.
func NewNotifier(apiKey, from, to string) *Notifier {
	return &Notifier{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

// QuestionReceived emails the owner about a newly submitted question.
func (n *Notifier) QuestionReceived(ctx context.Context, question *db.Question) error {
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		ReplyTo: question.Email,
		Subject: fmt.Sprintf("New question from %s", question.Name),
		Text:    Body(question),
	}

	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}

// Body renders the plain-text notification body.
func Body(question *db.Question) string {
	return fmt.Sprintf("From: %s <%s>\n\n%s\n\nQuestion ID: %s",
		question.Name, question.Email, question.Message, question.ID)
}
