package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

type fakeUserRepo struct {
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *fakeUserRepo) add(user models.User) models.User {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	copied := user
	r.users[user.ID] = &copied
	return user
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	if user, ok := r.users[id]; ok {
		return *user, nil
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return *user, nil
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return *user, nil
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindByOTP(_ context.Context, otp string) (models.User, error) {
	for _, user := range r.users {
		if user.OTP == otp && otp != "" {
			return *user, nil
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindVerified(_ context.Context) ([]models.User, error) {
	var verified []models.User
	for _, user := range r.users {
		if user.IsVerified {
			verified = append(verified, *user)
		}
	}
	return verified, nil
}

func (r *fakeUserRepo) FindManyByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var found []models.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			found = append(found, *user)
		}
	}
	return found, nil
}

func (r *fakeUserRepo) FindManyByUsernames(_ context.Context, usernames []string) ([]models.User, error) {
	wanted := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		wanted[u] = true
	}
	var found []models.User
	for _, user := range r.users {
		if wanted[user.Username] {
			found = append(found, *user)
		}
	}
	return found, nil
}

func (r *fakeUserRepo) FindByInvitationToken(_ context.Context, token string) (models.User, error) {
	for _, user := range r.users {
		for _, inv := range user.Invitations {
			if inv.Token == token && token != "" {
				return *user, nil
			}
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) UpdateAccount(_ context.Context, user models.User) error {
	stored, ok := r.users[user.ID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	stored.Username = user.Username
	stored.Firstname = user.Firstname
	stored.Lastname = user.Lastname
	stored.Avatar = user.Avatar
	stored.AvatarID = user.AvatarID
	stored.IsVerified = user.IsVerified
	stored.OTP = user.OTP
	stored.IsNewUser = user.IsNewUser
	stored.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *fakeUserRepo) PushInvitation(_ context.Context, userID primitive.ObjectID, inv models.Invitation) error {
	user, ok := r.users[userID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	user.Invitations = append(user.Invitations, inv)
	return nil
}

func (r *fakeUserRepo) SetInvitationStatus(_ context.Context, userID, taskID primitive.ObjectID, from, to models.InvitationStatus) (int64, error) {
	user, ok := r.users[userID]
	if !ok {
		return 0, nil
	}
	for i := range user.Invitations {
		if user.Invitations[i].TaskID == taskID && user.Invitations[i].Status == from {
			user.Invitations[i].Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeUserRepo) AddAssignedTask(_ context.Context, userID, taskID primitive.ObjectID) error {
	user, ok := r.users[userID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	for _, id := range user.AssignedTasks {
		if id == taskID {
			return nil
		}
	}
	user.AssignedTasks = append(user.AssignedTasks, taskID)
	return nil
}

func (r *fakeUserRepo) RetractTask(_ context.Context, userIDs []primitive.ObjectID, taskID primitive.ObjectID) error {
	for _, id := range userIDs {
		user, ok := r.users[id]
		if !ok {
			continue
		}
		r.retract(user, taskID)
	}
	return nil
}

func (r *fakeUserRepo) RetractTaskFromAll(_ context.Context, taskID primitive.ObjectID) error {
	for _, user := range r.users {
		r.retract(user, taskID)
	}
	return nil
}

func (r *fakeUserRepo) retract(user *models.User, taskID primitive.ObjectID) {
	invitations := user.Invitations[:0]
	for _, inv := range user.Invitations {
		if inv.TaskID != taskID {
			invitations = append(invitations, inv)
		}
	}
	user.Invitations = invitations

	assigned := user.AssignedTasks[:0]
	for _, id := range user.AssignedTasks {
		if id != taskID {
			assigned = append(assigned, id)
		}
	}
	user.AssignedTasks = assigned
}

type fakeTaskRepo struct {
	tasks map[primitive.ObjectID]models.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[primitive.ObjectID]models.Task)}
}

func (r *fakeTaskRepo) Insert(_ context.Context, task *models.Task) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.Task, error) {
	if task, ok := r.tasks[id]; ok {
		return task, nil
	}
	return models.Task{}, mongo.ErrNoDocuments
}

func (r *fakeTaskRepo) FindVisible(_ context.Context, owner primitive.ObjectID, assigned []primitive.ObjectID) ([]models.Task, error) {
	accepted := make(map[primitive.ObjectID]bool, len(assigned))
	for _, id := range assigned {
		accepted[id] = true
	}
	var visible []models.Task
	for _, task := range r.tasks {
		if task.Owner == owner || accepted[task.ID] {
			visible = append(visible, task)
		}
	}
	return visible, nil
}

func (r *fakeTaskRepo) FindParticipating(_ context.Context, userID primitive.ObjectID) ([]models.Task, error) {
	var tasks []models.Task
	for _, task := range r.tasks {
		if task.IsParticipant(userID) {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task models.Task) error {
	if _, ok := r.tasks[task.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	delete(r.tasks, id)
	return nil
}

type fakeNotificationRepo struct {
	notifications []models.Notification
	insertErr     error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) InsertMany(_ context.Context, notifications []models.Notification) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, n := range notifications {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		r.notifications = append(r.notifications, n)
	}
	return nil
}

func (r *fakeNotificationRepo) FindByRecipient(_ context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	var found []models.Notification
	for _, n := range r.notifications {
		if n.User == userID {
			found = append(found, n)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	return found, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, recipient primitive.ObjectID) (models.Notification, error) {
	for i := range r.notifications {
		if r.notifications[i].ID == id && r.notifications[i].User == recipient {
			r.notifications[i].Read = true
			return r.notifications[i], nil
		}
	}
	return models.Notification{}, mongo.ErrNoDocuments
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	var modified int64
	for i := range r.notifications {
		if r.notifications[i].User == recipient && !r.notifications[i].Read {
			r.notifications[i].Read = true
			modified++
		}
	}
	return modified, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id, recipient primitive.ObjectID) (int64, error) {
	for i := range r.notifications {
		if r.notifications[i].ID == id && r.notifications[i].User == recipient {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeNotificationRepo) MarkReadForUserTask(_ context.Context, userID, taskID primitive.ObjectID) error {
	for i := range r.notifications {
		if r.notifications[i].User == userID && r.notifications[i].Task == taskID {
			r.notifications[i].Read = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) DeleteForUserTask(_ context.Context, userID, taskID primitive.ObjectID) error {
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if !(n.User == userID && n.Task == taskID) {
			kept = append(kept, n)
		}
	}
	r.notifications = kept
	return nil
}

func (r *fakeNotificationRepo) DeleteForTask(_ context.Context, taskID primitive.ObjectID) error {
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if n.Task != taskID {
			kept = append(kept, n)
		}
	}
	r.notifications = kept
	return nil
}

func (r *fakeNotificationRepo) HasWithMessagePrefix(_ context.Context, userID primitive.ObjectID, prefix string) (bool, error) {
	for _, n := range r.notifications {
		if n.User == userID && strings.HasPrefix(n.Message, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) forUserTask(userID, taskID primitive.ObjectID) []models.Notification {
	var found []models.Notification
	for _, n := range r.notifications {
		if n.User == userID && n.Task == taskID {
			found = append(found, n)
		}
	}
	return found
}

type sentMail struct {
	to      string
	subject string
	link    string
}

type fakeMailer struct {
	otps        []sentMail
	invitations []sentMail
	failWith    error
}

func (m *fakeMailer) SendOTP(to, username, otp string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.otps = append(m.otps, sentMail{to: to, subject: username + "/" + otp})
	return nil
}

func (m *fakeMailer) SendInvitation(to, taskTitle, joinLink string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.invitations = append(m.invitations, sentMail{to: to, subject: taskTitle, link: joinLink})
	return nil
}

type fakeFileStore struct {
	uploads  []string
	deletes  []string
	contents map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{contents: make(map[string][]byte)}
}

func (f *fakeFileStore) Upload(_ context.Context, filename, _ string, data io.Reader) (string, string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", "", err
	}
	url := "https://files.test/" + filename
	f.uploads = append(f.uploads, filename)
	f.contents[url] = body
	return url, "pid-" + filename, nil
}

func (f *fakeFileStore) Delete(_ context.Context, publicID string) error {
	f.deletes = append(f.deletes, publicID)
	return nil
}

func (f *fakeFileStore) Fetch(_ context.Context, url string) (io.ReadCloser, string, int64, error) {
	body, ok := f.contents[url]
	if !ok {
		return nil, "", 0, fmt.Errorf("no file at %s", url)
	}
	return io.NopCloser(bytes.NewReader(body)), "application/octet-stream", int64(len(body)), nil
}

// testEnv bundles the full service graph over in-memory fakes.
type testEnv struct {
	users         *fakeUserRepo
	tasks         *fakeTaskRepo
	notifications *fakeNotificationRepo
	mailer        *fakeMailer
	files         *fakeFileStore

	notificationSvc *NotificationService
	invitationSvc   *InvitationService
	taskSvc         *TaskService
	commentSvc      *CommentService
	userSvc         *UserService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:         newFakeUserRepo(),
		tasks:         newFakeTaskRepo(),
		notifications: newFakeNotificationRepo(),
		mailer:        &fakeMailer{},
		files:         newFakeFileStore(),
	}
	env.notificationSvc = NewNotificationService(env.notifications, env.tasks, env.users)
	env.invitationSvc = NewInvitationService(env.users, env.tasks, env.notificationSvc, env.notifications, env.mailer, "https://focusflow.test")
	env.taskSvc = NewTaskService(env.tasks, env.users, env.notificationSvc, env.notifications, env.invitationSvc, env.files)
	env.commentSvc = NewCommentService(env.tasks, env.taskSvc, env.notificationSvc, NewMentionResolver(env.users))
	env.userSvc = NewUserService(env.users, env.notifications, NewJWTService("test-secret"), env.mailer, env.files)
	return env
}

func (env *testEnv) user(username, email string) models.User {
	return env.users.add(models.User{
		ID:         primitive.NewObjectID(),
		Username:   username,
		Email:      email,
		IsVerified: true,
	})
}

func (env *testEnv) task(owner models.User, title string) models.Task {
	task := models.Task{
		ID:         primitive.NewObjectID(),
		Title:      title,
		Status:     models.StatusPending,
		Priority:   models.PriorityLow,
		Owner:      owner.ID,
		AssignedTo: []primitive.ObjectID{},
	}
	env.tasks.tasks[task.ID] = task
	return task
}
