package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

// userLoc is the location dates without an offset are read in.
func (h *Handler) userLoc(user *model.User) *time.Location {
	if user != nil && user.Timezone != "" {
		if loc, err := service.LocationFromTZ(user.Timezone); err == nil {
			return loc
		}
	}
	return h.loc
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeList(w, newTodoViews(todos, h.now()), len(todos))
}

func (h *Handler) getTodo(w http.ResponseWriter, r *http.Request) {
	todo, err := h.todos.Get(r.Context(), userFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newTodoView(*todo, h.now()))
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var req todoRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	input, err := req.createInput(h.userLoc(user))
	if err != nil {
		fail(w, r, err)
		return
	}
	todo, err := h.todos.Create(r.Context(), user, input)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, newTodoView(*todo, h.now()))
}

func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var req todoRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	patch, err := req.patch(h.userLoc(user))
	if err != nil {
		fail(w, r, err)
		return
	}
	todo, err := h.todos.Update(r.Context(), user, r.PathValue("id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newTodoView(*todo, h.now()))
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := h.todos.Delete(r.Context(), userFrom(r.Context()), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "todo deleted")
}

type toggleView struct {
	Success bool      `json:"success"`
	Data    todoView  `json:"data"`
	Next    *todoView `json:"next,omitempty"`
}

func (h *Handler) toggleTodo(w http.ResponseWriter, r *http.Request) {
	todo, next, err := h.todos.Toggle(r.Context(), userFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	now := h.now()
	resp := toggleView{Success: true, Data: newTodoView(*todo, now)}
	if next != nil {
		view := newTodoView(*next, now)
		resp.Next = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) setChecklistItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "checklist index must be a number")
		return
	}
	var req checklistRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.Completed == nil {
		writeMessage(w, http.StatusBadRequest, "completed is required")
		return
	}
	todo, err := h.todos.SetChecklistItem(r.Context(), userFrom(r.Context()), r.PathValue("id"), index, *req.Completed)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newTodoView(*todo, h.now()))
}

func (h *Handler) occurrences(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultOccurrences
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = n
	}
	dates, err := h.todos.Occurrences(r.Context(), userFrom(r.Context()), r.PathValue("id"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeList(w, dates, len(dates))
}
