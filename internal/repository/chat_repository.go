package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

// ChatRepository stores AI chat transcripts in MongoDB. Every lookup is
// scoped to the owning user so foreign sessions behave as missing.
type ChatRepository struct {
	c *mongo.Collection
}

// NewChatRepository binds the repository to the chat_histories collection.
func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{c: db.Collection("chat_histories")}
}

// EnsureIndexes creates the indexes used by session listings.
func (r *ChatRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_chat_user_updated"),
		},
	}
	_, err := r.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new session document.
func (r *ChatRepository) Create(ctx context.Context, history *models.ChatHistory) error {
	if history.ID.IsZero() {
		history.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if history.CreatedAt.IsZero() {
		history.CreatedAt = now
	}
	if history.UpdatedAt.IsZero() {
		history.UpdatedAt = now
	}
	if history.Messages == nil {
		history.Messages = []models.ChatMessage{}
	}
	_, err := r.c.InsertOne(ctx, history)
	return err
}

// FindForUser returns the session when it belongs to userID, or mongo.ErrNoDocuments.
func (r *ChatRepository) FindForUser(ctx context.Context, id primitive.ObjectID, userID string) (*models.ChatHistory, error) {
	var history models.ChatHistory
	err := r.c.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&history)
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// AppendMessages pushes messages onto a session and bumps updated_at.
// It returns mongo.ErrNoDocuments when the session is not the user's.
func (r *ChatRepository) AppendMessages(ctx context.Context, id primitive.ObjectID, userID string, messages ...models.ChatMessage) error {
	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": messages}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListForUser returns session summaries, most recently active first.
func (r *ChatRepository) ListForUser(ctx context.Context, userID string, limit int64) ([]models.ChatSessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "updated_at", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{
			"title":         1,
			"created_at":    1,
			"updated_at":    1,
			"message_count": bson.M{"$size": "$messages"},
		}}},
	}
	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	summaries := []models.ChatSessionSummary{}
	if err := cur.All(ctx, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteForUser removes a session and reports whether it existed for userID.
func (r *ChatRepository) DeleteForUser(ctx context.Context, id primitive.ObjectID, userID string) (bool, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
