package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// taskStatusResponse is the polling contract shared by every async
// feature. Result is non-null only for completed runs, error only for
// failed ones.
type taskStatusResponse struct {
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Ready     bool            `json:"ready"`
	Result    json.RawMessage `json:"result"`
	Error     *string         `json:"error"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

func (a *App) TaskStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	taskID := chi.URLParam(r, "id")

	run, err := a.Runs.GetByID(r.Context(), taskID)
	if err != nil {
		a.domainError(w, err, "task not found")
		return
	}
	if run.UserID != "" && run.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "task not found")
		return
	}

	resp := taskStatusResponse{
		TaskID: run.ID,
		Status: string(run.Status),
		Ready:  run.Ready(),
		Result: json.RawMessage("null"),
	}
	if len(run.Result) > 0 {
		resp.Result = json.RawMessage(run.Result)
	}
	if run.Error != "" {
		msg := run.Error
		resp.Error = &msg
		resp.ErrorKind = string(run.ErrorKind)
	}
	a.json(w, http.StatusOK, resp)
}
