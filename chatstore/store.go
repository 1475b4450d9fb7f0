package chatstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/docparse"
	"github.com/hazyhaar/docparse/value"
)

// CreateMessage inserts m and its attachments in one transaction. Empty
// ID and zero Timestamp are filled in; m is updated in place.
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	if err := validRole(m.Role); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = s.MsgID()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}

	payloads := make([][]byte, len(m.Attachments))
	for i, a := range m.Attachments {
		data, err := a.Data.MarshalJSON()
		if err != nil {
			return fmt.Errorf("chatstore: encode attachment %s: %w", a.FileName, err)
		}
		payloads[i] = data
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
			m.ID, m.Role, m.Content, m.Timestamp); err != nil {
			return fmt.Errorf("chatstore: insert message: %w", err)
		}
		for i := range m.Attachments {
			a := &m.Attachments[i]
			if a.ID == "" {
				a.ID = s.AttID()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO file_attachments (id, chat_message_id, file_name, file_type, shape, data)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				a.ID, m.ID, a.FileName, string(a.FileType), string(a.Shape), string(payloads[i])); err != nil {
				return fmt.Errorf("chatstore: insert attachment %s: %w", a.FileName, err)
			}
		}
		return nil
	})
}

// GetMessage returns the message with its attachments, or ErrNotFound.
func (s *Store) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, role, content, timestamp FROM chat_messages WHERE id = ?`, id).
		Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatstore: get message: %w", err)
	}
	msgs := []*Message{&m}
	if err := s.loadAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the most recent messages in chronological order.
// limit <= 0 returns every message.
func (s *Store) ListMessages(ctx context.Context, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, role, content, timestamp FROM (
			SELECT id, role, content, timestamp FROM chat_messages
			ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("chatstore: list messages: %w", err)
	}
	defer rows.Close()

	msgs := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("chatstore: scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatstore: rows: %w", err)
	}
	if err := s.loadAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateMessage replaces the content of a message; attachments are kept.
func (s *Store) UpdateMessage(ctx context.Context, id, content string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE chat_messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("chatstore: update message: %w", err)
	}
	return requireRow(res)
}

// DeleteMessage removes a message and, by cascade, its attachments.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("chatstore: delete message: %w", err)
	}
	return requireRow(res)
}

// ClearMessages removes every message and attachment and returns how many
// messages were deleted.
func (s *Store) ClearMessages(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_messages`)
	if err != nil {
		return 0, fmt.Errorf("chatstore: clear messages: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// attachmentChunk bounds the number of ids per IN (...) query.
const attachmentChunk = 500

func (s *Store) loadAttachments(ctx context.Context, msgs []*Message) error {
	byID := make(map[string]*Message, len(msgs))
	for _, m := range msgs {
		m.Attachments = []Attachment{}
		byID[m.ID] = m
	}
	for start := 0; start < len(msgs); start += attachmentChunk {
		chunk := msgs[start:min(start+attachmentChunk, len(msgs))]
		args := make([]any, len(chunk))
		for i, m := range chunk {
			args[i] = m.ID
		}
		if err := s.scanAttachments(ctx, byID, args); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) scanAttachments(ctx context.Context, byID map[string]*Message, ids []any) error {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, chat_message_id, file_name, file_type, shape, data FROM file_attachments
		 WHERE chat_message_id IN (`+placeholders(len(ids))+`) ORDER BY rowid`, ids...)
	if err != nil {
		return fmt.Errorf("chatstore: load attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Attachment
		var msgID, fileType, shape, data string
		if err := rows.Scan(&a.ID, &msgID, &a.FileName, &fileType, &shape, &data); err != nil {
			return fmt.Errorf("chatstore: scan attachment: %w", err)
		}
		a.FileType = docparse.Format(fileType)
		a.Shape = docparse.Shape(shape)
		if a.Data, err = value.Parse([]byte(data)); err != nil {
			return fmt.Errorf("chatstore: decode attachment %s: %w", a.ID, err)
		}
		if m := byID[msgID]; m != nil {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return rows.Err()
}

// CreateWithFile parses path (if non-empty) through pipe and stores the
// result as the message's single attachment. A parse failure stores nothing.
func (s *Store) CreateWithFile(ctx context.Context, pipe *docparse.Pipeline, role, content, path, password string) (*Message, error) {
	m := &Message{Role: role, Content: content}
	if path != "" {
		doc, err := pipe.WithPassword(password).Parse(ctx, path)
		if err != nil {
			return nil, err
		}
		m.Attachments = []Attachment{AttachmentFrom(doc)}
	}
	if err := s.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
