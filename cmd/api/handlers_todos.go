package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"taskgate/pkg/activity"
	"taskgate/pkg/auth"
	"taskgate/pkg/httpx"
	"taskgate/pkg/stream"
	"taskgate/pkg/todo"
)

// requireIdentity reads the identity the guard attached. The guard rejects
// unauthenticated requests before handlers run, so a miss here is a wiring
// bug, answered with the same 401 the guard would give.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.Message(w, http.StatusUnauthorized, "Login required")
		return auth.Identity{}, false
	}
	return id, true
}

// storeDB fetches the lazy store handle, answering 503 when it cannot be
// built.
func (s *Server) storeDB(w http.ResponseWriter, r *http.Request) (apiDB, bool) {
	db, err := s.Deps.DB(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "Database not available")
		return nil, false
	}
	return db, true
}

// parseTodoID collapses malformed ids into the same not-found answer as a
// missing row, so the response never distinguishes the two.
func parseTodoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Message(w, http.StatusNotFound, "Not found or unauthorized")
		return 0, false
	}
	return id, true
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	svc := &todo.Service{DB: db}
	todos, err := svc.List(r.Context(), id.UserID)
	if err != nil {
		internalError(w, "list todos", err)
		return
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	httpx.WriteJSON(w, http.StatusOK, todos)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var in todo.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	startAt, endAt, err := in.Validate()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	svc := &todo.Service{DB: db}
	created, err := svc.Create(r.Context(), id.UserID, in, startAt, endAt)
	if err != nil {
		internalError(w, "create todo", err)
		return
	}
	s.recordMutation(r.Context(), db, id.UserID, "todo.created", created)
	httpx.Success(w, http.StatusCreated, created)
}

func (s *Server) handleReplaceTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	todoID, ok := parseTodoID(w, r)
	if !ok {
		return
	}
	var in todo.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	startAt, endAt, err := in.Validate()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	svc := &todo.Service{DB: db}
	updated, err := svc.Replace(r.Context(), id.UserID, todoID, in, startAt, endAt)
	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			httpx.Message(w, http.StatusNotFound, "Not found or unauthorized")
			return
		}
		internalError(w, "replace todo", err)
		return
	}
	s.recordMutation(r.Context(), db, id.UserID, "todo.updated", updated)
	httpx.Success(w, http.StatusOK, updated)
}

func (s *Server) handlePatchTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	todoID, ok := parseTodoID(w, r)
	if !ok {
		return
	}
	var p todo.PatchInput
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	svc := &todo.Service{DB: db}
	updated, err := svc.Patch(r.Context(), id.UserID, todoID, p)
	if err != nil {
		switch {
		case errors.Is(err, todo.ErrNotFound):
			httpx.Message(w, http.StatusNotFound, "Not found or unauthorized")
		case errors.Is(err, todo.ErrEmptyPatch):
			httpx.Error(w, http.StatusBadRequest, err.Error())
		default:
			var ve *todo.ValidationError
			if errors.As(err, &ve) {
				httpx.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			internalError(w, "patch todo", err)
		}
		return
	}
	s.recordMutation(r.Context(), db, id.UserID, "todo.updated", updated)
	httpx.Success(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	todoID, ok := parseTodoID(w, r)
	if !ok {
		return
	}
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	svc := &todo.Service{DB: db}
	if err := svc.Delete(r.Context(), id.UserID, todoID); err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			httpx.Message(w, http.StatusNotFound, "Not found or unauthorized")
			return
		}
		internalError(w, "delete todo", err)
		return
	}
	s.recordMutation(r.Context(), db, id.UserID, "todo.deleted", map[string]int64{"id": todoID})
	httpx.Message(w, http.StatusOK, "Deleted successfully")
}

// recordMutation fans a successful write out to the activity log, the
// in-process stream hub and the optional event bus. Failures here are
// logged, never surfaced; the write already committed.
func (s *Server) recordMutation(ctx context.Context, db apiDB, userID, action string, payload any) {
	var todoID int64
	switch v := payload.(type) {
	case todo.Todo:
		todoID = v.ID
	case map[string]int64:
		todoID = v["id"]
	}
	if err := (&activity.Logger{DB: db}).Record(ctx, userID, action, todoID); err != nil {
		log.Printf("api: record activity: %v", err)
	}
	if s.Events != nil {
		s.Events.Publish(userID, stream.NewEvent(action, payload))
	}
	if s.Bus != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Bus.Publish(pubCtx, userID, action, payload); err != nil {
			log.Printf("api: publish event: %v", err)
		}
	}
}

// handleStreamTodos upgrades to a websocket and pushes this owner's
// mutation events until the client goes away.
func (s *Server) handleStreamTodos(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.WSAllowedOrigins,
	})
	if err != nil {
		log.Printf("api: websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ch := s.Events.Subscribe(id.UserID, 16)
	defer s.Events.Unsubscribe(id.UserID, ch)

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, stream.NewEvent("stream.ready", nil)); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case evt, open := <-ch:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("api: %s: %v", op, err)
	httpx.Error(w, http.StatusInternalServerError, "internal error")
}
