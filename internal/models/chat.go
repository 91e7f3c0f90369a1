package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of an AI chat transcript.
type ChatMessage struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ChatHistory is a chat session document stored in MongoDB.
type ChatHistory struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title" json:"title"`
	Messages  []ChatMessage      `bson:"messages" json:"messages"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ChatSessionSummary lists a session without its transcript.
type ChatSessionSummary struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Title        string             `bson:"title" json:"title"`
	MessageCount int                `bson:"message_count" json:"message_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// ChatRequest is a user's message to the assistant.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,len=24,hexadecimal"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// ChatReply is returned after the assistant answers.
type ChatReply struct {
	SessionID string      `json:"session_id"`
	Title     string      `json:"title"`
	Reply     ChatMessage `json:"reply"`
}
