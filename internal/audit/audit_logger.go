// Package audit writes one JSON line per balance mutation and billing event.
package audit

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Balance   int64     `json:"balance,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger is the audit sink used by the services.
type Logger interface {
	LogEntry(entryID, accountID, entryType string, delta, balance int64)
	LogTransfer(reference, fromAccount, toAccount string, amount int64, status string)
	LogWebhook(eventID, eventType, status string)
	LogError(reference, accountID string, err error)
}

type AuditLogger struct {
	out *log.Logger
}

func NewAuditLogger() *AuditLogger {
	return NewAuditLoggerTo(os.Stdout)
}

func NewAuditLoggerTo(w io.Writer) *AuditLogger {
	return &AuditLogger{out: log.New(w, "", log.LstdFlags)}
}

func (a *AuditLogger) LogEntry(entryID, accountID, entryType string, delta, balance int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "LEDGER_ENTRY",
		Reference: entryID,
		AccountID: accountID,
		Amount:    delta,
		Balance:   balance,
		Status:    "SUCCESS",
		Details:   map[string]string{"type": entryType},
	})
}

func (a *AuditLogger) LogTransfer(reference, fromAccount, toAccount string, amount int64, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "TRANSFER",
		Reference: reference,
		Amount:    amount,
		Status:    status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *AuditLogger) LogWebhook(eventID, eventType, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "WEBHOOK",
		Reference: eventID,
		Status:    status,
		Details:   map[string]string{"type": eventType},
	})
}

func (a *AuditLogger) LogError(reference, accountID string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		Reference: reference,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event Event) {
	data, _ := json.Marshal(event)
	a.out.Printf("AUDIT: %s", string(data))
}
