package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReadStateRepository struct {
	col *mongo.Collection
}

func NewReadStateRepository(db *mongo.Database) *ReadStateRepository {
	return &ReadStateRepository{col: db.Collection("read_states")}
}

func (r *ReadStateRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Upsert moves the (conversation, user) cursor forward; the unique index on
// the pair keeps one document per reader.
func (r *ReadStateRepository) Upsert(
	ctx context.Context,
	conversationID primitive.ObjectID,
	userID int64,
	messageID primitive.ObjectID,
	readAt time.Time,
) error {
	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	update := bson.M{"$set": bson.M{
		"last_read_message_id": messageID,
		"last_read_at":         readAt,
	}}

	_, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
