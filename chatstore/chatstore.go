// Package chatstore persists chat messages together with the structured
// data of the files attached to them. An attachment is the JSON form of a
// parsed document: file name, format and payload.
package chatstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/docparse/docparse"
	"github.com/hazyhaar/docparse/idgen"
	"github.com/hazyhaar/docparse/value"
)

// Schema creates the message and attachment tables. Attachments are
// removed with their message.
const Schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
    id        TEXT PRIMARY KEY,
    role      TEXT NOT NULL CHECK(role IN ('user', 'assistant', 'system')),
    content   TEXT NOT NULL,
    timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_ts ON chat_messages(timestamp, id);

CREATE TABLE IF NOT EXISTS file_attachments (
    id              TEXT PRIMARY KEY,
    chat_message_id TEXT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
    file_name       TEXT NOT NULL,
    file_type       TEXT NOT NULL,
    shape           TEXT NOT NULL DEFAULT '',
    data            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_attachments_msg ON file_attachments(chat_message_id);
`

// ErrNotFound is returned when a message id does not exist.
var ErrNotFound = errors.New("chatstore: message not found")

// Roles accepted by the messages table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one chat message and its attachments.
type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Timestamp   int64        `json:"timestamp"` // unix milliseconds
	Attachments []Attachment `json:"attachments"`
}

// Attachment is the stored form of a parsed file.
type Attachment struct {
	ID       string          `json:"id"`
	FileName string          `json:"file_name"`
	FileType docparse.Format `json:"file_type"`
	Shape    docparse.Shape  `json:"shape,omitempty"`
	Data     value.Value     `json:"data"`
}

// AttachmentFrom builds an attachment from a parsed document.
func AttachmentFrom(doc *docparse.Document) Attachment {
	return Attachment{
		FileName: doc.FileName(),
		FileType: doc.Shape().Format(),
		Shape:    doc.Shape(),
		Data:     doc.Payload(),
	}
}

// Store reads and writes messages in a SQLite database opened with
// foreign keys enabled (dbopen.Open does this).
type Store struct {
	DB    *sql.DB
	MsgID idgen.Generator
	AttID idgen.Generator
}

// New applies Schema and returns a Store with "msg_"/"att_" UUIDv7 ids.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("chatstore: DB is required")
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("chatstore schema: %w", err)
	}
	return &Store{
		DB:    db,
		MsgID: idgen.Prefixed("msg_", idgen.Default),
		AttID: idgen.Prefixed("att_", idgen.Default),
	}, nil
}

func validRole(role string) error {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	}
	return fmt.Errorf("chatstore: invalid role %q (want user, assistant or system)", role)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
