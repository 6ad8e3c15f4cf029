// Package notify delivers verification and password reset links to account
// holders. The account service only sees the Notifier interface.
package notify

import (
	"context"
	"fmt"
	"strings"
)

type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Templates builds the outbound messages from the public base URL and the
// application name shown in subjects.
type Templates struct {
	PublicURL string
	AppName   string
}

func (t Templates) VerificationLink(token string) string {
	return strings.TrimRight(t.PublicURL, "/") + "/verify-email/" + token
}

func (t Templates) ResetLink(token string) string {
	return strings.TrimRight(t.PublicURL, "/") + "/reset-password/" + token
}

func (t Templates) Verification(to string, token string) Message {
	return Message{
		Kind:    KindVerification,
		To:      to,
		Subject: fmt.Sprintf("Verify Your Email - %s", t.AppName),
		Body:    fmt.Sprintf("Click this link to verify your email: %s", t.VerificationLink(token)),
	}
}

func (t Templates) PasswordReset(to string, token string) Message {
	return Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: fmt.Sprintf("Password Reset Request - %s", t.AppName),
		Body:    fmt.Sprintf("Click this link to reset your password:\n%s", t.ResetLink(token)),
	}
}
