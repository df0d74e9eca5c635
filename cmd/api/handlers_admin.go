package main

import (
	"net/http"
	"strconv"

	"taskgate/pkg/activity"
	"taskgate/pkg/httpx"
)

func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	var total int64
	if err := db.QueryRow(r.Context(), `SELECT count(*) FROM users`).Scan(&total); err != nil {
		internalError(w, "count users", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"totalUsers": total})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	db, ok := s.storeDB(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpx.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := (&activity.Logger{DB: db}).Recent(r.Context(), limit)
	if err != nil {
		internalError(w, "load activity", err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.Metrics.Snapshot())
}
