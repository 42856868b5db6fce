package httpapi

import (
	"net/http"
	"time"

	"todo-planner/internal/service"
)

// Options wires the API to its services.
type Options struct {
	Auth        *service.AuthService
	Todos       *service.TodoService
	CORSOrigins []string
	// Location is used for dates sent without an offset when the user has no timezone.
	Location *time.Location
	Limits   Limits
}

type Handler struct {
	mux     *http.ServeMux
	handler http.Handler
	auth    *service.AuthService
	todos   *service.TodoService
	loc     *time.Location
	now     func() time.Time

	apiLimiter      *ipLimiter
	loginLimiter    *ipLimiter
	registerLimiter *ipLimiter
}

func New(opts Options) *Handler {
	limits := opts.Limits.withDefaults()
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	h := &Handler{
		mux:             http.NewServeMux(),
		auth:            opts.Auth,
		todos:           opts.Todos,
		loc:             loc,
		now:             time.Now,
		apiLimiter:      newIPLimiter("api", limits.API, "too many requests, try again later"),
		loginLimiter:    newIPLimiter("login", limits.Login, "too many login attempts, try again later"),
		registerLimiter: newIPLimiter("register", limits.Register, "too many sign-up attempts, try again later"),
	}
	h.routes()

	var root http.Handler = h.mux
	root = corsHandler(opts.CORSOrigins)(root)
	root = recoverer(root)
	root = accessLog(root)
	root = requestID(root)
	h.handler = root
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /healthz", h.health)

	api := func(pattern string, fn http.HandlerFunc) {
		h.mux.Handle(pattern, h.apiLimiter.wrap(fn))
	}
	api("POST /api/auth/register", h.registerLimiter.wrap(http.HandlerFunc(h.register)).ServeHTTP)
	api("POST /api/auth/login", h.loginLimiter.wrap(http.HandlerFunc(h.login)).ServeHTTP)
	api("GET /api/auth/me", h.requireUser(h.me))
	api("PATCH /api/auth/me", h.requireUser(h.updateMe))
	api("POST /api/auth/telegram/link", h.requireUser(h.createLinkCode))
	api("DELETE /api/auth/telegram/link", h.requireUser(h.unlinkTelegram))

	api("GET /api/todos", h.requireUser(h.listTodos))
	api("POST /api/todos", h.requireUser(h.createTodo))
	api("GET /api/todos/{id}", h.requireUser(h.getTodo))
	api("PUT /api/todos/{id}", h.requireUser(h.updateTodo))
	api("DELETE /api/todos/{id}", h.requireUser(h.deleteTodo))
	api("PATCH /api/todos/{id}/toggle", h.requireUser(h.toggleTodo))
	api("PATCH /api/todos/{id}/checklist/{index}", h.requireUser(h.setChecklistItem))
	api("GET /api/todos/{id}/occurrences", h.requireUser(h.occurrences))

	h.mux.HandleFunc("/", h.notFound)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, "the requested resource was not found")
}
