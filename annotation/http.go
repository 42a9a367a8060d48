package annotation

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// i18nMiddleware adds the appropriate localizer to the request context
func i18nMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		localizer := GetLocalizerFromRequest(r)
		ctx := WithLocalizer(r.Context(), localizer)
		handler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HTTPLogger(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initialTime := time.Now()
		wr := NewStatusCodeRecorderResponseWriter(w)
		handler.ServeHTTP(wr, r)
		log.Printf("http: time:%dms %d %s %s", time.Since(initialTime)/time.Millisecond, wr.Status, r.Method, r.URL.String())
	})
}

type StatusCodeRecorderResponseWriter struct {
	http.ResponseWriter
	Status int
}

func (r *StatusCodeRecorderResponseWriter) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func NewStatusCodeRecorderResponseWriter(w http.ResponseWriter) *StatusCodeRecorderResponseWriter {
	return &StatusCodeRecorderResponseWriter{ResponseWriter: w, Status: 200}
}

// apiResponse is the envelope of every /api/ answer. Failures the store
// reports still come back with 200 and Success false.
type apiResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Annotations any    `json:"annotations,omitempty"`
	NextImage   string `json:"next_image,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: while encoding response: %s", err)
	}
}

func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, apiResponse{Success: false, Message: message})
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Printf("error: http: %s", err)
	writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: http.StatusText(http.StatusInternalServerError)})
}
