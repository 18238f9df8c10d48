package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"tasksync/internal/errors"
	"tasksync/internal/service"
)

// FakeStore is an HTTP task store backed by a FakeService.
// It speaks the same JSON API as the real store.
type FakeStore struct {
	*httptest.Server
	Service *FakeService

	mu       sync.Mutex
	requests []*http.Request
}

// NewFakeStoreServer starts a FakeStore. Callers must Close it.
func NewFakeStoreServer() *FakeStore {
	fs := &FakeStore{Service: NewFakeService()}

	r := mux.NewRouter()
	r.Use(fs.record)
	r.HandleFunc("/health", fs.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/test", fs.ping).Methods(http.MethodGet)
	api.HandleFunc("/tasks", fs.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", fs.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}", fs.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}", fs.updateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id:[0-9]+}", fs.deleteTask).Methods(http.MethodDelete)

	fs.Server = httptest.NewServer(r)
	return fs
}

// Requests returns a copy of the requests received so far.
func (fs *FakeStore) Requests() []*http.Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]*http.Request, len(fs.requests))
	copy(out, fs.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (fs *FakeStore) LastRequest() *http.Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) == 0 {
		return nil
	}
	return fs.requests[len(fs.requests)-1]
}

func (fs *FakeStore) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.requests = append(fs.requests, r.Clone(r.Context()))
		fs.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (fs *FakeStore) health(w http.ResponseWriter, r *http.Request) {
	h, err := fs.Service.CheckHealth(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (fs *FakeStore) ping(w http.ResponseWriter, r *http.Request) {
	p, err := fs.Service.Ping(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (fs *FakeStore) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := fs.Service.ListTasks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (fs *FakeStore) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := fs.Service.GetTask(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (fs *FakeStore) createTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON body"})
		return
	}
	t, err := fs.Service.CreateTask(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (fs *FakeStore) updateTask(w http.ResponseWriter, r *http.Request) {
	var patch service.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON body"})
		return
	}
	t, err := fs.Service.UpdateTask(r.Context(), pathID(r), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (fs *FakeStore) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := fs.Service.DeleteTask(r.Context(), pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// writeError maps a service error to the store's {"detail": ...} error body.
func writeError(w http.ResponseWriter, err error) {
	var remote *errors.RemoteError
	switch {
	case errors.As(err, &remote):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(remote.StatusCode)
		_, _ = w.Write([]byte(remote.Body))
	case errors.Is(err, errors.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": errors.UserMessage(err)})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
