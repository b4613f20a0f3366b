package models

import "time"

// Send outcomes recorded in the audit log
const (
	SendAccepted = "sent"
	SendRejected = "rejected"
	SendFailed   = "failed"
)

// SendRecord is one outbound attempt that reached the trust checks
type SendRecord struct {
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	Caller     string    `json:"caller,omitempty"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
}

// SignalRecord is one read that tripped the injection detector
type SignalRecord struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Folder  string    `json:"folder"`
	EmailID string    `json:"email_id"`
	Signals []string  `json:"signals"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
}
