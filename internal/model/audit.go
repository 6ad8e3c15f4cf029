package model

import "time"

type AuditEntry struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	AccountID  string    `json:"accountId,omitempty"`
	Email      string    `json:"email,omitempty"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type AuditQuery struct {
	AccountID string
	Page      int
	Limit     int
}

type AuditEntryList struct {
	Entries []AuditEntry `json:"entries"`
}
