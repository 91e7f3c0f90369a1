package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

func TestChatRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns id", func(mt *mtest.T) {
		repo := &ChatRepository{c: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		history := &models.ChatHistory{UserID: "u1", Title: "Photosynthesis"}
		require.NoError(mt, repo.Create(context.Background(), history))
		assert.False(mt, history.ID.IsZero())
		assert.NotNil(mt, history.Messages)
	})

	mt.Run("find for user decodes document", func(mt *mtest.T) {
		repo := &ChatRepository{c: mt.Coll}
		id := primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "user_id", Value: "u1"},
			{Key: "title", Value: "Algebra"},
			{Key: "messages", Value: bson.A{bson.D{{Key: "role", Value: "user"}, {Key: "content", Value: "hi"}}}},
		}))

		history, err := repo.FindForUser(context.Background(), id, "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "Algebra", history.Title)
		require.Len(mt, history.Messages, 1)
		assert.Equal(mt, "hi", history.Messages[0].Content)
	})

	mt.Run("find foreign session is missing", func(mt *mtest.T) {
		repo := &ChatRepository{c: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindForUser(context.Background(), primitive.NewObjectID(), "intruder")
		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})

	mt.Run("append to unknown session", func(mt *mtest.T) {
		repo := &ChatRepository{c: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.AppendMessages(context.Background(), primitive.NewObjectID(), "u1", models.ChatMessage{Role: models.ChatRoleUser, Content: "hello", CreatedAt: time.Now()})
		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})

	mt.Run("delete reports removal", func(mt *mtest.T) {
		repo := &ChatRepository{c: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		deleted, err := repo.DeleteForUser(context.Background(), primitive.NewObjectID(), "u1")
		require.NoError(mt, err)
		assert.True(mt, deleted)
	})
}
