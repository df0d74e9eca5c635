package main

import "net/http"

// Trimmed by hand; regenerate when the surface changes.
const openAPIDoc = `{
  "openapi": "3.1.0",
  "info": {"title": "taskgate", "version": "1.0.0"},
  "paths": {
    "/health": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
    "/auth/sign-up": {"post": {"summary": "Register and start a session", "responses": {"201": {"description": "Created"}, "409": {"description": "Email already registered"}}}},
    "/auth/sign-in": {"post": {"summary": "Start a session", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}}},
    "/auth/sign-out": {"post": {"summary": "End the current session", "responses": {"200": {"description": "OK"}}}},
    "/auth/session": {"get": {"summary": "Introspect the current session", "responses": {"200": {"description": "OK"}, "401": {"description": "No session"}}}},
    "/todos": {
      "get": {"summary": "List the caller's todos", "responses": {"200": {"description": "OK"}, "401": {"description": "Login required"}, "503": {"description": "Database not available"}}},
      "post": {"summary": "Create a todo", "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid input"}}}
    },
    "/todos/{id}": {
      "put": {"summary": "Replace a todo", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found or unauthorized"}}},
      "patch": {"summary": "Partially update a todo", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found or unauthorized"}}},
      "delete": {"summary": "Delete a todo", "responses": {"200": {"description": "Deleted"}, "404": {"description": "Not found or unauthorized"}}}
    },
    "/todos/stream": {"get": {"summary": "WebSocket stream of the caller's todo events"}},
    "/admin/user-count": {"get": {"summary": "Total registered users", "responses": {"200": {"description": "OK"}, "403": {"description": "Admin only"}}}},
    "/admin/activity": {"get": {"summary": "Recent mutation activity", "responses": {"200": {"description": "OK"}, "403": {"description": "Admin only"}}}},
    "/admin/metrics": {"get": {"summary": "Per-endpoint request stats", "responses": {"200": {"description": "OK"}, "403": {"description": "Admin only"}}}}
  }
}`

const docsPage = `<!doctype html>
<html>
<head><title>taskgate API</title></head>
<body>
<h1>taskgate API</h1>
<p>The machine-readable description lives at <a href="/openapi">/openapi</a>.</p>
<p>All /todos and /admin endpoints require a session; obtain one via POST /auth/sign-in.</p>
</body>
</html>`

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(openAPIDoc))
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsPage))
}
