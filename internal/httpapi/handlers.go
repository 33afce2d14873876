package httpapi

import (
	"net/http"

	"taskbot/internal/envelope"
	"taskbot/internal/service"
)

func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context(), currentUser(r).ID, r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.List("Tasks retrieved", tasks))
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tasks.GetTask(r.Context(), currentUser(r).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Task retrieved", t))
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req service.TaskInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Tasks created over REST are never AI managed, whatever the body says.
	t, err := s.tasks.CreateTask(r.Context(), currentUser(r), req, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope.OK("Task created", t))
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req service.TaskInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.tasks.UpdateTask(r.Context(), currentUser(r).ID, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Task updated", t))
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tasks.DeleteTask(r.Context(), currentUser(r).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Task deleted", nil))
}

type statusRequest struct {
	Status string `json:"status"`
}

type bulkStatusResponse struct {
	Status  string `json:"status"`
	Updated int64  `json:"updated"`
}

func (s *Server) handleTasksSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.tasks.SetAllTaskStatus(r.Context(), currentUser(r).ID, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("All tasks updated", bulkStatusResponse{Status: req.Status, Updated: n}))
}
