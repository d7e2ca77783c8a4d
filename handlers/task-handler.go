package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/irfandhamhudi/APi-FocusFlow/middleware"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
	"github.com/irfandhamhudi/APi-FocusFlow/services"
)

const (
	maxAttachmentCount = 10
	maxAttachmentSize  = 5 << 20
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

type TaskHandler struct {
	tasks       *services.TaskService
	invitations *services.InvitationService
	files       services.FileStore
}

func NewTaskHandler(tasks *services.TaskService, invitations *services.InvitationService, files services.FileStore) *TaskHandler {
	return &TaskHandler{tasks: tasks, invitations: invitations, files: files}
}

// taskResponse is a populated task plus the invite warnings from the request.
type taskResponse struct {
	models.TaskView
	InvalidEmails []string `json:"invalidEmails,omitempty"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	in := services.CreateTaskInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Status:      models.TaskStatus(r.FormValue("status")),
		Priority:    models.TaskPriority(r.FormValue("priority")),
	}

	if tags := r.FormValue("tags"); tags != "" {
		if err := json.Unmarshal([]byte(tags), &in.Tags); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid tags format")
			return
		}
	}
	if assignedTo := r.FormValue("assignedTo"); assignedTo != "" {
		if err := json.Unmarshal([]byte(assignedTo), &in.AssignedTo); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid assignedTo format")
			return
		}
	}
	if subtask := r.FormValue("subtask"); subtask != "" {
		if err := json.Unmarshal([]byte(subtask), &in.Subtask); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid subtask format")
			return
		}
	}
	var err error
	if in.StartDate, err = parseDate(r.FormValue("startDate")); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid startDate format")
		return
	}
	if in.DueDate, err = parseDate(r.FormValue("dueDate")); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid dueDate format")
		return
	}

	attachments, err := h.uploadAttachments(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in.Attachments = attachments

	view, outcome, err := h.tasks.CreateTask(r.Context(), actor, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, taskResponse{TaskView: view, InvalidEmails: outcome.InvalidEmails})
}

func (h *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}

	views, err := h.tasks.GetTasks(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
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

	view, err := h.tasks.GetTaskByID(r.Context(), actor, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	var in services.UpdateTaskInput
	if title, set := formValue(r, "title"); set {
		in.Title = &title
	}
	if description, set := formValue(r, "description"); set {
		in.Description = &description
	}
	if status, set := formValue(r, "status"); set && status != "" {
		s := models.TaskStatus(status)
		in.Status = &s
	}
	if priority, set := formValue(r, "priority"); set && priority != "" {
		p := models.TaskPriority(priority)
		in.Priority = &p
	}
	if tags, set := formValue(r, "tags"); set && tags != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(tags), &parsed); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid tags format")
			return
		}
		in.Tags = &parsed
	}
	if startDate, set := formValue(r, "startDate"); set && startDate != "" {
		if in.StartDate, err = parseDate(startDate); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid startDate format")
			return
		}
	}
	if dueDate, set := formValue(r, "dueDate"); set && dueDate != "" {
		if in.DueDate, err = parseDate(dueDate); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid dueDate format")
			return
		}
	}
	if assignedTo, set := formValue(r, "assignedTo"); set {
		in.AssignedToSet = true
		if assignedTo != "" {
			if err := json.Unmarshal([]byte(assignedTo), &in.AssignedTo); err != nil {
				writeMessage(w, http.StatusBadRequest, "Invalid assignedTo format")
				return
			}
		}
		in.AssignedToOperation = r.FormValue("assignedToOperation")
	}
	if subtask, set := formValue(r, "subtask"); set && subtask != "" {
		var parsed []models.Subtask
		if err := json.Unmarshal([]byte(subtask), &parsed); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid subtask format")
			return
		}
		in.SubtaskSet = true
		in.Subtask = &parsed
	}
	in.AttachmentOperation = r.FormValue("attachmentOperation")

	attachments, err := h.uploadAttachments(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in.Attachments = attachments

	view, outcome, err := h.tasks.UpdateTask(r.Context(), actor, taskID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{TaskView: view, InvalidEmails: outcome.InvalidEmails})
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
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

	if err := h.tasks.DeleteTask(r.Context(), actor, taskID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func (h *TaskHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}
	taskID, err := pathObjectID(r, "taskId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.invitations.Accept(r.Context(), actor, taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.tasks.PopulateTask(r.Context(), task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}
	taskID, err := pathObjectID(r, "taskId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if _, err := h.invitations.Decline(r.Context(), actor, taskID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invitation declined successfully"})
}

func (h *TaskHandler) JoinByToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid token")
		return
	}

	task, _, err := h.invitations.JoinByToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.tasks.PopulateTask(r.Context(), task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	feed, err := h.tasks.RecentActivity(r.Context(), actor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *TaskHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token provided, unauthorized")
		return
	}
	vars := mux.Vars(r)
	taskID, err := primitive.ObjectIDFromHex(vars["taskId"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid task ID")
		return
	}
	fileName := vars["fileName"]

	body, contentType, length, err := h.tasks.DownloadFile(r.Context(), actor, taskID, fileName)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	}
	io.Copy(w, body)
}

// uploadAttachments validates and stores the "attachment" multipart files,
// returning the attachment records to embed in the task.
func (h *TaskHandler) uploadAttachments(r *http.Request) ([]models.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File["attachment"]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > maxAttachmentCount {
		return nil, &services.ValidationError{Message: fmt.Sprintf("Maximum %d files allowed", maxAttachmentCount)}
	}

	var attachments []models.Attachment
	for _, header := range files {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			return nil, &services.ValidationError{Message: fmt.Sprintf("File type %s is not allowed", ext)}
		}
		if header.Size > maxAttachmentSize {
			return nil, &services.ValidationError{Message: fmt.Sprintf("File %s exceeds the 5MB limit", header.Filename)}
		}

		file, err := header.Open()
		if err != nil {
			return nil, &services.ValidationError{Message: "Failed to read uploaded file"}
		}

		contentType := header.Header.Get("Content-Type")
		url, publicID, err := h.files.Upload(r.Context(), header.Filename, contentType, file)
		file.Close()
		if err != nil {
			return nil, &services.DependencyError{Op: "upload attachment", Err: err}
		}

		attachments = append(attachments, models.Attachment{
			ID:           primitive.NewObjectID(),
			URL:          url,
			OriginalName: header.Filename,
			PublicID:     publicID,
			Type:         models.AttachmentTypeFromMIME(contentType),
			Size:         math.Round(float64(header.Size)/(1024*1024)*100) / 100,
			UploadedAt:   time.Now(),
		})
	}
	return attachments, nil
}

func pathObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)[name])
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", raw)
}

func formValue(r *http.Request, name string) (string, bool) {
	if r.MultipartForm != nil {
		if values, ok := r.MultipartForm.Value[name]; ok && len(values) > 0 {
			return values[0], true
		}
		return "", false
	}
	values, ok := r.Form[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
