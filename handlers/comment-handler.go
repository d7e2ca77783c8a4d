package handlers

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/irfandhamhudi/APi-FocusFlow/middleware"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
	"github.com/irfandhamhudi/APi-FocusFlow/services"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type commentBody struct {
	Comment string `json:"comment"`
}

func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(actor models.User, taskID primitive.ObjectID) (models.TaskView, error) {
		body, err := decodeComment(r)
		if err != nil {
			return models.TaskView{}, err
		}
		return h.comments.AddComment(r.Context(), actor, taskID, body.Comment)
	})
}

func (h *CommentHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(actor models.User, taskID primitive.ObjectID) (models.TaskView, error) {
		commentID, err := pathObjectID(r, "commentId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid comment ID"}
		}
		body, err := decodeComment(r)
		if err != nil {
			return models.TaskView{}, err
		}
		return h.comments.EditComment(r.Context(), actor, taskID, commentID, body.Comment)
	})
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(actor models.User, taskID primitive.ObjectID) (models.TaskView, error) {
		commentID, err := pathObjectID(r, "commentId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid comment ID"}
		}
		return h.comments.DeleteComment(r.Context(), actor, taskID, commentID)
	})
}

func (h *CommentHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(actor models.User, taskID primitive.ObjectID) (models.TaskView, error) {
		commentID, err := pathObjectID(r, "commentId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid comment ID"}
		}
		body, err := decodeComment(r)
		if err != nil {
			return models.TaskView{}, err
		}
		return h.comments.AddReply(r.Context(), actor, taskID, commentID, body.Comment)
	})
}

func (h *CommentHandler) EditReply(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(actor models.User, taskID primitive.ObjectID) (models.TaskView, error) {
		commentID, err := pathObjectID(r, "commentId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid comment ID"}
		}
		replyID, err := pathObjectID(r, "replyId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid reply ID"}
		}
		body, err := decodeComment(r)
		if err != nil {
			return models.TaskView{}, err
		}
		return h.comments.EditReply(r.Context(), actor, taskID, commentID, replyID, body.Comment)
	})
}

func (h *CommentHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(actor models.User, taskID primitive.ObjectID) (models.TaskView, error) {
		commentID, err := pathObjectID(r, "commentId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid comment ID"}
		}
		replyID, err := pathObjectID(r, "replyId")
		if err != nil {
			return models.TaskView{}, &services.ValidationError{Message: "Invalid reply ID"}
		}
		return h.comments.DeleteReply(r.Context(), actor, taskID, commentID, replyID)
	})
}

func (h *CommentHandler) run(w http.ResponseWriter, r *http.Request, op func(models.User, primitive.ObjectID) (models.TaskView, error)) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}
	taskID, err := pathObjectID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	view, err := op(actor, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func decodeComment(r *http.Request) (commentBody, error) {
	var body commentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return commentBody{}, &services.ValidationError{Message: "Invalid request body"}
	}
	return body, nil
}
