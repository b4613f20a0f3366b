package models

// Folder represents a mailbox folder. IMAPName is the raw modified UTF-7
// name the server uses.
type Folder struct {
	Name     string `json:"name"`
	IMAPName string `json:"imap_name"`
}

// EmailSummary is one search hit
type EmailSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
}

// Email represents a sanitized email message. Its content is untrusted
// input and is flagged as such for the caller.
type Email struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	From             string       `json:"from"`
	To               string       `json:"to"`
	Date             string       `json:"date"`
	BodyText         string       `json:"body_text"`
	BodyHTML         string       `json:"body_html"`
	Attachments      []Attachment `json:"attachments"`
	URLs             []string     `json:"urls"`
	Truncated        bool         `json:"truncated"`
	UntrustedContent bool         `json:"untrusted_content"`
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// SendResult confirms an accepted submission
type SendResult struct {
	Status  string  `json:"status"`
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	Cc      *string `json:"cc"`
	Bcc     *string `json:"bcc"`
}

// DownloadResult describes an attachment written to disk
type DownloadResult struct {
	Status      string `json:"status"`
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}

// MoveResult confirms a move between folders
type MoveResult struct {
	Status     string `json:"status"`
	EmailID    string `json:"email_id"`
	FromFolder string `json:"from_folder"`
	ToFolder   string `json:"to_folder"`
}

// Delete statuses
const (
	DeleteMovedToTrash = "moved_to_trash"
	DeletePermanent    = "deleted_permanently"
)

// DeleteResult reports which delete path was taken
type DeleteResult struct {
	Status  string `json:"status"`
	EmailID string `json:"email_id"`
	Folder  string `json:"folder"`
}
