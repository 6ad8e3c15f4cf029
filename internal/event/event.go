package event

import "time"

type Type string

const (
	TypeAccountRegistered     Type = "account.registered"
	TypeAccountVerified       Type = "account.verified"
	TypeAccountLogin          Type = "account.login"
	TypeAccountLoginFailed    Type = "account.login_failed"
	TypeResetRequested        Type = "account.reset_requested"
	TypeResetCompleted        Type = "account.reset_completed"
	TypeNotificationDelivered Type = "notification.delivered"
	TypeNotificationFailed    Type = "notification.failed"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	AccountID string    `json:"accountId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Failed reports whether the event records an unsuccessful outcome.
func (e Event) Failed() bool {
	return e.Type == TypeAccountLoginFailed || e.Type == TypeNotificationFailed
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
