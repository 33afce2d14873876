package httpapi

import (
	"net/http"

	"taskbot/internal/envelope"
	"taskbot/internal/service"
)

// parentID returns the {taskId} of nested routes and 0 on the flat
// /subtask routes.
func parentID(r *http.Request) (int64, error) {
	if r.PathValue("taskId") == "" {
		return 0, nil
	}
	return pathID(r, "taskId")
}

func subtaskIDs(r *http.Request) (taskID, id int64, err error) {
	if taskID, err = parentID(r); err != nil {
		return 0, 0, err
	}
	if id, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	return taskID, id, nil
}

var subtaskListMessages = map[string]string{
	"":            "Subtasks retrieved",
	"completed":   "Completed subtasks retrieved",
	"pending":     "Pending subtasks retrieved",
	"in_progress": "In-progress subtasks retrieved",
}

// handleSubtasksList lists a task's subtasks. A non-empty status fixes the
// filter; otherwise ?status= is honored.
func (s *Server) handleSubtasksList(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := pathID(r, "taskId")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter := status
		if filter == "" {
			filter = r.URL.Query().Get("status")
		}

		subs, err := s.tasks.ListSubtasks(r.Context(), currentUser(r).ID, taskID, filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope.List(subtaskListMessages[status], subs))
	}
}

func (s *Server) handleSubtaskCreate(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req service.TaskInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.tasks.CreateSubtask(r.Context(), currentUser(r), taskID, req, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope.OK("Subtask created", st))
}

func (s *Server) handleSubtaskGet(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := subtaskIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.tasks.GetSubtask(r.Context(), currentUser(r).ID, taskID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Subtask retrieved", st))
}

func (s *Server) handleSubtaskUpdate(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := subtaskIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req service.TaskInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.tasks.UpdateSubtask(r.Context(), currentUser(r).ID, taskID, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Subtask updated", st))
}

func (s *Server) handleSubtaskSetStatus(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := subtaskIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.tasks.SetSubtaskStatus(r.Context(), currentUser(r).ID, taskID, id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Subtask status updated", st))
}

func (s *Server) handleSubtaskDelete(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := subtaskIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tasks.DeleteSubtask(r.Context(), currentUser(r).ID, taskID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.OK("Subtask deleted", nil))
}
