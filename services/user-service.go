package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/rand"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

var otpRand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

// UserService covers registration, OTP verification, login and profile
// maintenance.
type UserService struct {
	users         UserRepository
	notifications NotificationRepository
	jwt           *JWTService
	mailer        Mailer
	files         FileStore
}

func NewUserService(users UserRepository, notifications NotificationRepository, jwt *JWTService, mailer Mailer, files FileStore) *UserService {
	return &UserService{
		users:         users,
		notifications: notifications,
		jwt:           jwt,
		mailer:        mailer,
		files:         files,
	}
}

const welcomePrefix = "Welcome to FocusFlow, "

// ValidatePassword enforces the registration password policy: at least 8
// characters with one lowercase letter, one uppercase letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return validationf("Password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, and one number.")
	}
	hasLower, hasUpper, hasDigit := false, false, false
	for _, char := range password {
		switch {
		case char >= 'a' && char <= 'z':
			hasLower = true
		case char >= 'A' && char <= 'Z':
			hasUpper = true
		case char >= '0' && char <= '9':
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		return validationf("Password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, and one number.")
	}
	return nil
}

func generateOTP() string {
	return fmt.Sprintf("%06d", otpRand.Intn(1000000))
}

// Register stores a new unverified user and mails the OTP.
func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	if username == "" || email == "" || password == "" {
		return models.User{}, validationf("Username, email and password are required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, validationf("Email Already Exists.")
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return models.User{}, validationf("Username Already Exists.")
	}

	if err := ValidatePassword(password); err != nil {
		return models.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, dependency("hash password", err)
	}

	now := time.Now()
	user := models.User{
		ID:            primitive.NewObjectID(),
		Username:      username,
		Email:         email,
		Password:      string(hashed),
		IsVerified:    false,
		OTP:           generateOTP(),
		AssignedTasks: []primitive.ObjectID{},
		Invitations:   []models.Invitation{},
		IsNewUser:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, dependency("save user", err)
	}

	if err := s.mailer.SendOTP(user.Email, user.Username, user.OTP); err != nil {
		return models.User{}, dependency("send OTP email", err)
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: Registered user '%s', OTP sent to %s", user.Username, user.Email)
	return user, nil
}

// VerifyOTP marks the holder of the code as verified and clears the code.
func (s *UserService) VerifyOTP(ctx context.Context, otp string) (models.User, error) {
	if otp == "" {
		return models.User{}, validationf("Invalid OTP")
	}
	user, err := s.users.FindByOTP(ctx, otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, validationf("Invalid OTP")
		}
		return models.User{}, dependency("look up OTP", err)
	}

	user.IsVerified = true
	user.OTP = ""
	user.UpdatedAt = time.Now()
	if err := s.users.UpdateAccount(ctx, user); err != nil {
		return models.User{}, dependency("activate user", err)
	}
	return user, nil
}

// ResendOTP issues and mails a fresh code for an unverified account.
func (s *UserService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &NotFoundError{Resource: "User"}
		}
		return dependency("look up user", err)
	}
	if user.IsVerified {
		return validationf("Account is already verified")
	}

	user.OTP = generateOTP()
	user.UpdatedAt = time.Now()
	if err := s.users.UpdateAccount(ctx, user); err != nil {
		return dependency("store OTP", err)
	}
	if err := s.mailer.SendOTP(user.Email, user.Username, user.OTP); err != nil {
		return dependency("send OTP email", err)
	}
	return nil
}

// Login verifies credentials and returns the user with a signed auth token.
func (s *UserService) Login(ctx context.Context, email, password string) (models.User, string, error) {
	if email == "" || password == "" {
		return models.User{}, "", validationf("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, "", &NotFoundError{Resource: "User"}
		}
		return models.User{}, "", dependency("look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return models.User{}, "", &AuthError{Message: "Invalid credentials"}
	}
	if !user.IsVerified {
		return models.User{}, "", &AuthError{Message: "User not verified"}
	}

	token, err := s.jwt.GenerateAuthToken(user.ID.Hex())
	if err != nil {
		return models.User{}, "", dependency("generate token", err)
	}
	return user, token, nil
}

// Me returns the current user. The first call for a brand-new account also
// drops a one-time welcome notification and clears the new-user flag.
func (s *UserService) Me(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, &NotFoundError{Resource: "User"}
		}
		return models.User{}, dependency("load user", err)
	}

	if user.IsNewUser {
		exists, err := s.notifications.HasWithMessagePrefix(ctx, user.ID, welcomePrefix)
		if err == nil && !exists {
			welcome := models.Notification{
				User:      user.ID,
				Actor:     user.ID,
				Message:   fmt.Sprintf("Welcome to FocusFlow, %s! We're excited to have you here. Explore your dashboard to get started.", user.Username),
				Read:      false,
				CreatedAt: time.Now(),
			}
			if err := s.notifications.InsertMany(ctx, []models.Notification{welcome}); err != nil {
				logging.Logger.Errorf("Event ID: WELCOME_NOTIFICATION_FAILED, Description: Failed to create welcome notification for '%s': %v", user.Username, err)
			}
		}

		user.IsNewUser = false
		user.UpdatedAt = time.Now()
		if err := s.users.UpdateAccount(ctx, user); err != nil {
			logging.Logger.Errorf("Event ID: NEW_USER_FLAG_UPDATE_FAILED, Description: Failed to clear new-user flag for '%s': %v", user.Username, err)
		}
	}

	return user, nil
}

// AllUsers lists every verified user.
func (s *UserService) AllUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.FindVerified(ctx)
	if err != nil {
		return nil, dependency("list users", err)
	}
	return users, nil
}

// AssignedUsers returns the distinct users assigned to tasks the caller is
// participating in.
func (s *UserService) AssignedUsers(ctx context.Context, tasks TaskRepository, userID primitive.ObjectID) ([]models.UserRef, error) {
	participating, err := tasks.FindParticipating(ctx, userID)
	if err != nil {
		return nil, dependency("load tasks", err)
	}

	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, task := range participating {
		for _, id := range task.AssignedTo {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	users, err := s.users.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, dependency("load users", err)
	}
	refs := make([]models.UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, u.Ref())
	}
	return refs, nil
}

// UpdateProfile changes username/name fields and optionally replaces the
// avatar. The old avatar is deleted from storage best-effort.
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, username, firstname, lastname string, avatar *FileUpload) (models.User, error) {
	if username == "" {
		return models.User{}, validationf("Username is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, &NotFoundError{Resource: "User"}
		}
		return models.User{}, dependency("load user", err)
	}

	if other, err := s.users.FindByUsername(ctx, username); err == nil && other.ID != user.ID {
		return models.User{}, validationf("Username already exists")
	}

	user.Username = username
	user.Firstname = firstname
	user.Lastname = lastname

	if avatar != nil {
		if models.AttachmentTypeFromMIME(avatar.ContentType) != models.AttachmentImage {
			return models.User{}, validationf("Only image files are allowed for avatars")
		}
		url, publicID, err := s.files.Upload(ctx, avatar.Name, avatar.ContentType, avatar.Data)
		if err != nil {
			return models.User{}, dependency("upload avatar", err)
		}
		if user.AvatarID != "" {
			if err := s.files.Delete(ctx, user.AvatarID); err != nil {
				logging.Logger.Errorf("Event ID: AVATAR_DELETE_FAILED, Description: Failed to delete old avatar '%s': %v", user.AvatarID, err)
			}
		}
		user.Avatar = url
		user.AvatarID = publicID
	}

	user.UpdatedAt = time.Now()
	if err := s.users.UpdateAccount(ctx, user); err != nil {
		return models.User{}, dependency("update user", err)
	}

	profileNote := models.Notification{
		User:      user.ID,
		Actor:     user.ID,
		Message:   fmt.Sprintf("Your profile has been updated successfully, %s!", user.Username),
		Read:      false,
		CreatedAt: time.Now(),
	}
	if err := s.notifications.InsertMany(ctx, []models.Notification{profileNote}); err != nil {
		logging.Logger.Errorf("Event ID: PROFILE_NOTIFICATION_FAILED, Description: Failed to create profile-update notification for '%s': %v", user.Username, err)
	}

	return user, nil
}
