package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/irfandhamhudi/APi-FocusFlow/handlers"
	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/middleware"
	"github.com/irfandhamhudi/APi-FocusFlow/repositories"
	"github.com/irfandhamhudi/APi-FocusFlow/services"
	"github.com/irfandhamhudi/APi-FocusFlow/storage"
	"github.com/irfandhamhudi/APi-FocusFlow/utils"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", os.Getenv("CORS_ORIGIN"))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting FocusFlow backend...")
	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_ERROR, Description: Error loading .env file: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)

	userRepo := repositories.NewUserRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: Failed to create indexes: %v", err)
	}

	httpClient := utils.NewHTTPClient()
	storageBreaker := newBreaker("storage-cb")
	mailBreaker := newBreaker("mail-cb")

	fileStore := storage.NewHTTPFileStore(os.Getenv("STORAGE_SERVICE_URL"), httpClient, storageBreaker)
	mailer := utils.NewSMTPMailer(mailBreaker)

	jwtService := services.NewJWTService(os.Getenv("JWT_SECRET"))
	notificationService := services.NewNotificationService(notificationRepo, taskRepo, userRepo)
	invitationService := services.NewInvitationService(userRepo, taskRepo, notificationService, notificationRepo, mailer, os.Getenv("APP_BASE_URL"))
	userService := services.NewUserService(userRepo, notificationRepo, jwtService, mailer, fileStore)
	taskService := services.NewTaskService(taskRepo, userRepo, notificationService, notificationRepo, invitationService, fileStore)
	mentionResolver := services.NewMentionResolver(userRepo)
	commentService := services.NewCommentService(taskRepo, taskService, notificationService, mentionResolver)

	authHandler := handlers.NewAuthHandler(userService, taskRepo)
	taskHandler := handlers.NewTaskHandler(taskService, invitationService, fileStore)
	commentHandler := handlers.NewCommentHandler(commentService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	authRequired := middleware.JWTAuthMiddleware(jwtService, userRepo)

	r := mux.NewRouter()

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	auth.HandleFunc("/verify-otp", authHandler.VerifyOTP).Methods(http.MethodPost)
	auth.HandleFunc("/resend-otp", authHandler.ResendOTP).Methods(http.MethodPost)
	auth.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	auth.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	authProtected := r.PathPrefix("/auth").Subrouter()
	authProtected.Use(authRequired)
	authProtected.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	authProtected.HandleFunc("/users", authHandler.AllUsers).Methods(http.MethodGet)
	authProtected.HandleFunc("/assigned-users", authHandler.AssignedUsers).Methods(http.MethodGet)
	authProtected.HandleFunc("/update", authHandler.UpdateProfile).Methods(http.MethodPut)

	tasks := r.PathPrefix("/tasks").Subrouter()
	tasks.Use(authRequired)
	tasks.HandleFunc("/recent-activity", taskHandler.RecentActivity).Methods(http.MethodGet)
	tasks.HandleFunc("/download/{taskId}/{fileName}", taskHandler.DownloadFile).Methods(http.MethodGet)
	tasks.HandleFunc("/join/{token}", taskHandler.JoinByToken).Methods(http.MethodGet)
	tasks.HandleFunc("/invitations/accept/{taskId}", taskHandler.AcceptInvitation).Methods(http.MethodPost)
	tasks.HandleFunc("/invitations/decline/{taskId}", taskHandler.DeclineInvitation).Methods(http.MethodPost)
	tasks.HandleFunc("", taskHandler.CreateTask).Methods(http.MethodPost)
	tasks.HandleFunc("", taskHandler.GetTasks).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}", taskHandler.GetTaskByID).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}", taskHandler.UpdateTask).Methods(http.MethodPatch)
	tasks.HandleFunc("/{id}", taskHandler.DeleteTask).Methods(http.MethodDelete)
	tasks.HandleFunc("/{id}/comments", commentHandler.AddComment).Methods(http.MethodPost)
	tasks.HandleFunc("/{id}/comments/{commentId}", commentHandler.EditComment).Methods(http.MethodPatch)
	tasks.HandleFunc("/{id}/comments/{commentId}", commentHandler.DeleteComment).Methods(http.MethodDelete)
	tasks.HandleFunc("/{id}/comments/{commentId}/replies", commentHandler.AddReply).Methods(http.MethodPost)
	tasks.HandleFunc("/{id}/comments/{commentId}/replies/{replyId}", commentHandler.EditReply).Methods(http.MethodPatch)
	tasks.HandleFunc("/{id}/comments/{commentId}/replies/{replyId}", commentHandler.DeleteReply).Methods(http.MethodDelete)

	notifications := r.PathPrefix("/notifications").Subrouter()
	notifications.Use(authRequired)
	notifications.HandleFunc("", notificationHandler.List).Methods(http.MethodGet)
	notifications.HandleFunc("", notificationHandler.Create).Methods(http.MethodPost)
	notifications.HandleFunc("/mark-all", notificationHandler.MarkAllRead).Methods(http.MethodPut)
	notifications.HandleFunc("/{id}", notificationHandler.MarkRead).Methods(http.MethodPatch)
	notifications.HandleFunc("/{id}", notificationHandler.Delete).Methods(http.MethodDelete)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      enableCORS(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Logger.Infof("Event ID: SERVER_LISTENING, Description: Server listening on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Logger.Fatalf("Event ID: SERVER_FAILED, Description: Server stopped: %v", err)
	}
}
