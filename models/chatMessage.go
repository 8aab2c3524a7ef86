package models

import "time"

// ChatMessage is one message of a two-party conversation, ordered for
// display by Timestamp ascending.
type ChatMessage struct {
	ID          int       `json:"id"`
	SenderId    string    `json:"senderId"`
	RecipientId string    `json:"recipientId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
}
