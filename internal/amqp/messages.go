package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// ChatMessage is one line a user typed, as delivered by the chat gateway.
type ChatMessage struct {
	UserID int64     `json:"user_id"`
	ChatID int64     `json:"chat_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

func NewChatMessage(userID, chatID int64, text string) *ChatMessage {
	return &ChatMessage{
		UserID: userID,
		ChatID: chatID,
		Text:   text,
		SentAt: time.Now(),
	}
}

func (m *ChatMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChatMessageFromJSON(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 || msg.ChatID == 0 {
		return nil, fmt.Errorf("chat message without user or chat id")
	}
	return &msg, nil
}

// Document is a file attached to a reply. Content travels base64-encoded.
type Document struct {
	FileName string `json:"filename"`
	Caption  string `json:"caption,omitempty"`
	Content  []byte `json:"content"`
}

// ReplyMessage is what the bot asks the chat gateway to send. Text is
// already escaped for ParseMode.
type ReplyMessage struct {
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text,omitempty"`
	ParseMode string    `json:"parse_mode,omitempty"`
	Document  *Document `json:"document,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ReplyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReplyMessageFromJSON(data []byte) (*ReplyMessage, error) {
	var msg ReplyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LedgerEventMessage carries a full movement so the consumer never has to
// read the ledger database.
type LedgerEventMessage struct {
	Action      string    `json:"action"`
	MovementID  int64     `json:"movement_id"`
	UserID      int64     `json:"user_id"`
	Kind        string    `json:"kind"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEventMessage{
		Action:      string(ev.Action),
		MovementID:  ev.Movement.ID,
		UserID:      ev.Movement.UserID,
		Kind:        storage.KindLabel(ev.Movement.Kind),
		Category:    ev.Movement.Category,
		AmountCents: ev.Movement.Amount.Cents,
		Date:        ev.Movement.Date.String(),
		Timestamp:   ts,
	}
}

// ToEvent converts the message back into a validated ledger event.
func (m *LedgerEventMessage) ToEvent() (core.LedgerEvent, error) {
	kind, err := storage.ParseKindLabel(m.Kind)
	if err != nil {
		return core.LedgerEvent{}, err
	}
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.LedgerEvent{}, fmt.Errorf("parse date: %w", err)
	}

	ev := core.LedgerEvent{
		Action: core.Action(m.Action),
		Movement: core.Movement{
			ID:       m.MovementID,
			UserID:   m.UserID,
			Kind:     kind,
			Category: m.Category,
			Amount:   core.Money{Cents: m.AmountCents},
			Date:     date,
		},
		At: m.Timestamp,
	}
	if err := ev.Validate(); err != nil {
		return core.LedgerEvent{}, err
	}
	return ev, nil
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
