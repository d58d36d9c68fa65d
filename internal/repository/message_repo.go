package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/factorx-007/Practicas-Backend-sub001/internal/models"
)

// MessageFilter pages one conversation's history. Messages only sort by
// creation time.
type MessageFilter struct {
	ConversationID primitive.ObjectID
	DateFrom       *time.Time
	DateTo         *time.Time
	Kind           models.MessageKind
	AuthorID       int64
	Search         string
	Descending     bool
	Offset         int64
	Limit          int64
}

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("messages")}
}

func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *MessageRepository) Insert(ctx context.Context, message *models.Message) (*models.Message, error) {
	now := time.Now().UTC()
	message.CreatedAt = now
	message.UpdatedAt = now

	result, err := r.col.InsertOne(ctx, message)
	if err != nil {
		return nil, err
	}
	message.ID = result.InsertedID.(primitive.ObjectID)
	return message, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var message models.Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&message); err != nil {
		return nil, err
	}
	return &message, nil
}

// GetByIDs batches reply-reference resolution for a page; deleted targets are
// simply absent.
func (r *MessageRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Message, error) {
	if len(ids) == 0 {
		return []models.Message{}, nil
	}

	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0, len(ids))
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepository) List(ctx context.Context, filter MessageFilter) ([]models.Message, int64, error) {
	query := bson.M{"conversation_id": filter.ConversationID}

	if filter.DateFrom != nil || filter.DateTo != nil {
		createdAt := bson.M{}
		if filter.DateFrom != nil {
			createdAt["$gte"] = *filter.DateFrom
		}
		if filter.DateTo != nil {
			createdAt["$lte"] = *filter.DateTo
		}
		query["created_at"] = createdAt
	}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.AuthorID != 0 {
		query["author_id"] = filter.AuthorID
	}
	if filter.Search != "" {
		query["content"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	direction := 1
	if filter.Descending {
		direction = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(filter.Offset).
		SetLimit(filter.Limit)

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// UpdateContent edits a message in place, conditioned on authorship so a
// non-author edit surfaces as mongo.ErrNoDocuments.
func (r *MessageRepository) UpdateContent(
	ctx context.Context,
	id primitive.ObjectID,
	authorID int64,
	content string,
) (*models.Message, error) {
	now := time.Now().UTC()
	filter := bson.M{"_id": id, "author_id": authorID}
	update := bson.M{"$set": bson.M{
		"content":    content,
		"edited":     true,
		"edited_at":  now,
		"updated_at": now,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var message models.Message
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id primitive.ObjectID, authorID int64) error {
	result, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "author_id": authorID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MessageRepository) SetStatus(
	ctx context.Context,
	id primitive.ObjectID,
	status models.MessageStatus,
) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
	return err
}

// SetReaction replaces any prior reaction from the same user. Two atomic
// steps: pull the user's entry, then push the new one.
func (r *MessageRepository) SetReaction(
	ctx context.Context,
	id primitive.ObjectID,
	reaction models.Reaction,
) (*models.Message, error) {
	if _, err := r.col.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user_id": reaction.UserID}},
	}); err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"reactions": reaction},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	var message models.Message
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&message); err != nil {
		return nil, err
	}
	return &message, nil
}

// RemoveReaction is a no-op when the user had none.
func (r *MessageRepository) RemoveReaction(
	ctx context.Context,
	id primitive.ObjectID,
	userID int64,
) (*models.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$pull": bson.M{"reactions": bson.M{"user_id": userID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	var message models.Message
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) CountAll(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *MessageRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
}
