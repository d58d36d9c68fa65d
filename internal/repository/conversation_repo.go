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

const (
	ConversationOrderLastMessage = "last_message"
	ConversationOrderCreatedAt   = "created_at"
	ConversationOrderUpdatedAt   = "updated_at"
)

// ConversationFilter narrows and pages a participant's conversation listing.
// Active is a tri-state: nil means "active only", the default view.
type ConversationFilter struct {
	Participant int64
	Kind        models.ConversationKind
	Search      string
	Active      *bool
	OrderBy     string
	Descending  bool
	Offset      int64
	Limit       int64
}

// ConversationPatch carries the partial-update fields; nil means untouched.
type ConversationPatch struct {
	Name                 *string
	Description          *string
	NotificationsEnabled *bool
	OnlyAdminsCanPost    *bool
}

func (p ConversationPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil &&
		p.NotificationsEnabled == nil && p.OnlyAdminsCanPost == nil
}

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection("conversations")}
}

func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "active", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "active", Value: 1}}},
		{Keys: bson.D{{Key: "last_message.timestamp", Value: -1}}},
	})
	return err
}

func (r *ConversationRepository) Insert(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error) {
	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	result, err := r.col.InsertOne(ctx, conversation)
	if err != nil {
		return nil, err
	}
	conversation.ID = result.InsertedID.(primitive.ObjectID)
	return conversation, nil
}

// FindActivePrivate locates the active private conversation for an unordered
// participant pair, if one exists.
func (r *ConversationRepository) FindActivePrivate(ctx context.Context, a, b int64) (*models.Conversation, error) {
	filter := bson.M{
		"kind":         models.ConversationPrivate,
		"active":       true,
		"participants": bson.M{"$all": []int64{a, b}, "$size": 2},
	}

	var conversation models.Conversation
	if err := r.col.FindOne(ctx, filter).Decode(&conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// GetActiveForParticipant returns mongo.ErrNoDocuments both when the
// conversation is missing and when the caller is not a participant, so the
// service cannot tell the two apart either.
func (r *ConversationRepository) GetActiveForParticipant(
	ctx context.Context,
	id primitive.ObjectID,
	userID int64,
) (*models.Conversation, error) {
	filter := bson.M{
		"_id":          id,
		"active":       true,
		"participants": userID,
	}

	var conversation models.Conversation
	if err := r.col.FindOne(ctx, filter).Decode(&conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) List(
	ctx context.Context,
	filter ConversationFilter,
) ([]models.Conversation, int64, error) {
	query := bson.M{"participants": filter.Participant}

	if filter.Active != nil {
		query["active"] = *filter.Active
	} else {
		query["active"] = true
	}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	direction := 1
	if filter.Descending {
		direction = -1
	}
	orderKey := "last_message.timestamp"
	switch filter.OrderBy {
	case ConversationOrderCreatedAt:
		orderKey = "created_at"
	case ConversationOrderUpdatedAt:
		orderKey = "updated_at"
	}

	// ObjectIds grow with insertion, which gives the stable tie-break.
	opts := options.Find().
		SetSort(bson.D{{Key: orderKey, Value: direction}, {Key: "_id", Value: 1}}).
		SetSkip(filter.Offset).
		SetLimit(filter.Limit)

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	conversations := make([]models.Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *ConversationRepository) ApplyPatch(
	ctx context.Context,
	id primitive.ObjectID,
	patch ConversationPatch,
) (*models.Conversation, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.NotificationsEnabled != nil {
		set["config.notifications_enabled"] = *patch.NotificationsEnabled
	}
	if patch.OnlyAdminsCanPost != nil {
		set["config.only_admins_can_post"] = *patch.OnlyAdminsCanPost
	}

	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (r *ConversationRepository) AddParticipant(
	ctx context.Context,
	id primitive.ObjectID,
	userID int64,
) (*models.Conversation, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{"participants": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *ConversationRepository) RemoveParticipant(
	ctx context.Context,
	id primitive.ObjectID,
	userID int64,
) (*models.Conversation, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"participants": userID, "admins": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *ConversationRepository) SetLastMessage(
	ctx context.Context,
	id primitive.ObjectID,
	last models.LastMessage,
) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"last_message": last,
			"updated_at":   time.Now().UTC(),
		},
	})
	return err
}

func (r *ConversationRepository) CountAll(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *ConversationRepository) CountActive(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"active": true})
}

func (r *ConversationRepository) findOneAndUpdate(
	ctx context.Context,
	filter bson.M,
	update bson.M,
) (*models.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conversation models.Conversation
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}
