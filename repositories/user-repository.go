package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique email and username indexes.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %v", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to insert user: %v", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	return user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	return user, err
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	return user, err
}

func (r *UserRepository) FindByOTP(ctx context.Context, otp string) (models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"otp": otp}).Decode(&user)
	return user, err
}

func (r *UserRepository) FindVerified(ctx context.Context) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"isVerified": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}

func (r *UserRepository) FindManyByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}

func (r *UserRepository) FindManyByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"username": bson.M{"$in": usernames}})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}

func (r *UserRepository) FindByInvitationToken(ctx context.Context, token string) (models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"invitations.token": token}).Decode(&user)
	return user, err
}

func (r *UserRepository) UpdateAccount(ctx context.Context, user models.User) error {
	update := bson.M{"$set": bson.M{
		"username":   user.Username,
		"firstname":  user.Firstname,
		"lastname":   user.Lastname,
		"avatar":     user.Avatar,
		"avatarId":   user.AvatarID,
		"isVerified": user.IsVerified,
		"otp":        user.OTP,
		"isNewUser":  user.IsNewUser,
		"updatedAt":  user.UpdatedAt,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %v", err)
	}
	return nil
}

func (r *UserRepository) PushInvitation(ctx context.Context, userID primitive.ObjectID, inv models.Invitation) error {
	filter := bson.M{"_id": userID}
	update := bson.M{"$push": bson.M{"invitations": inv}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to push invitation: %v", err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetInvitationStatus flips the matching invitation only if it is still in
// the expected state; the modified count tells the caller whether this
// response won or a concurrent one already did.
func (r *UserRepository) SetInvitationStatus(ctx context.Context, userID, taskID primitive.ObjectID, from, to models.InvitationStatus) (int64, error) {
	filter := bson.M{
		"_id": userID,
		"invitations": bson.M{"$elemMatch": bson.M{
			"taskId": taskID,
			"status": from,
		}},
	}
	update := bson.M{"$set": bson.M{"invitations.$.status": to}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to update invitation status: %v", err)
	}
	return result.ModifiedCount, nil
}

func (r *UserRepository) AddAssignedTask(ctx context.Context, userID, taskID primitive.ObjectID) error {
	filter := bson.M{"_id": userID}
	update := bson.M{"$addToSet": bson.M{"assignedTasks": taskID}}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add assigned task: %v", err)
	}
	return nil
}

func (r *UserRepository) RetractTask(ctx context.Context, userIDs []primitive.ObjectID, taskID primitive.ObjectID) error {
	if len(userIDs) == 0 {
		return nil
	}
	filter := bson.M{"_id": bson.M{"$in": userIDs}}
	update := bson.M{"$pull": bson.M{
		"invitations":   bson.M{"taskId": taskID},
		"assignedTasks": taskID,
	}}
	_, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to retract task from users: %v", err)
	}
	return nil
}

func (r *UserRepository) RetractTaskFromAll(ctx context.Context, taskID primitive.ObjectID) error {
	update := bson.M{"$pull": bson.M{
		"invitations":   bson.M{"taskId": taskID},
		"assignedTasks": taskID,
	}}
	_, err := r.collection.UpdateMany(ctx, bson.M{}, update)
	if err != nil {
		return fmt.Errorf("failed to retract task from users: %v", err)
	}
	return nil
}
