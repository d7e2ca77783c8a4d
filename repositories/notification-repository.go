package repositories

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection("notifications")}
}

func (r *NotificationRepository) InsertMany(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(notifications))
	for i := range notifications {
		if notifications[i].ID.IsZero() {
			notifications[i].ID = primitive.NewObjectID()
		}
		docs = append(docs, notifications[i])
	}
	_, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert notifications: %v", err)
	}
	return nil
}

func (r *NotificationRepository) FindByRecipient(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %v", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %v", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipient primitive.ObjectID) (models.Notification, error) {
	filter := bson.M{"_id": id, "user": recipient}
	update := bson.M{"$set": bson.M{"read": true}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var notification models.Notification
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&notification)
	return notification, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	filter := bson.M{"user": recipient, "read": false}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %v", err)
	}
	return result.ModifiedCount, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipient primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user": recipient})
	if err != nil {
		return 0, fmt.Errorf("failed to delete notification: %v", err)
	}
	return result.DeletedCount, nil
}

func (r *NotificationRepository) MarkReadForUserTask(ctx context.Context, userID, taskID primitive.ObjectID) error {
	filter := bson.M{"user": userID, "task": taskID}
	_, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %v", err)
	}
	return nil
}

func (r *NotificationRepository) DeleteForUserTask(ctx context.Context, userID, taskID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"user": userID, "task": taskID})
	if err != nil {
		return fmt.Errorf("failed to delete notifications: %v", err)
	}
	return nil
}

func (r *NotificationRepository) DeleteForTask(ctx context.Context, taskID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"task": taskID})
	if err != nil {
		return fmt.Errorf("failed to delete notifications: %v", err)
	}
	return nil
}

func (r *NotificationRepository) HasWithMessagePrefix(ctx context.Context, userID primitive.ObjectID, prefix string) (bool, error) {
	filter := bson.M{
		"user":    userID,
		"message": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count notifications: %v", err)
	}
	return count > 0, nil
}
