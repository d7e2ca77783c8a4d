package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/irfandhamhudi/APi-FocusFlow/middleware"
	"github.com/irfandhamhudi/APi-FocusFlow/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}

	views, err := h.notifications.List(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}

	var body struct {
		User    string `json:"user"`
		Task    string `json:"task"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	notification, err := h.notifications.Create(r.Context(), actor, services.CreateNotificationInput{
		User:    body.User,
		Task:    body.Task,
		Message: body.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, notification)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}
	notificationID, err := pathObjectID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	notification, err := h.notifications.MarkRead(r.Context(), actor.ID, notificationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notification)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}

	modified, err := h.notifications.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if modified == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No unread notifications to mark"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%d notifications marked as read", modified),
	})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}
	notificationID, err := pathObjectID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if err := h.notifications.Delete(r.Context(), actor.ID, notificationID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification permanently deleted"})
}
