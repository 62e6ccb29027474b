package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type accessLogEntry struct {
	Timestamp     string `json:"ts"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	Route         string `json:"route,omitempty"`
	Status        int    `json:"status"`
	Bytes         int    `json:"bytes"`
	DurationMS    int64  `json:"duration_ms"`
	RequestID     string `json:"request_id,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	Industry      string `json:"industry,omitempty"`
	Segment       string `json:"segment,omitempty"`
	KnowledgeType string `json:"knowledge_type,omitempty"`
	RemoteAddr    string `json:"remote_addr,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
}

// AccessLog emits one JSON line per HTTP request through the standard logger.
// Probe routes are skipped.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		if route == "/health" || route == "/metrics" {
			return
		}

		q := r.URL.Query()
		payload, err := json.Marshal(accessLogEntry{
			Timestamp:     start.UTC().Format(time.RFC3339Nano),
			Method:        r.Method,
			Path:          r.URL.Path,
			Route:         route,
			Status:        rec.status(),
			Bytes:         rec.bytes,
			DurationMS:    time.Since(start).Milliseconds(),
			RequestID:     GetRequestID(r.Context()),
			ClientID:      GetClientID(r.Context()),
			Industry:      industryParam(r),
			Segment:       q.Get("segment"),
			KnowledgeType: q.Get("type"),
			RemoteAddr:    clientIP(r),
			UserAgent:     r.UserAgent(),
		})
		if err != nil {
			log.Printf("access_log_marshal_error: %v", err)
			return
		}
		log.Println(string(payload))
	})
}
