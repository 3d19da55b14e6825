package mail

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// SendFunc delivers one message.
type SendFunc func(to, subject, body string) error

// TrialNotifier tells account holders that their trial is about to end.
type TrialNotifier struct {
	send    SendFunc
	appName string
}

// NewTrialNotifier uses SendMail unless send is given.
func NewTrialNotifier(send SendFunc) *TrialNotifier {
	if send == nil {
		send = SendMail
	}
	return &TrialNotifier{send: send, appName: env.GetEnv("APP_NAME", "PayFox")}
}

func (n *TrialNotifier) SendTrialEndingNotice(ctx context.Context, account *models.Account, trialEnd *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account == nil || account.Email == "" {
		return fmt.Errorf("account has no email address")
	}

	when := "soon"
	if trialEnd != nil {
		when = "on " + trialEnd.UTC().Format("January 2, 2006")
	}
	subject := fmt.Sprintf("Your %s trial ends %s", n.appName, when)
	body := fmt.Sprintf(
		"<p>Hello,</p><p>your %s trial ends %s. Add a payment method to keep your subscription active.</p>",
		html.EscapeString(n.appName), html.EscapeString(when),
	)
	return n.send(account.Email, subject, body)
}
