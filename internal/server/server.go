// Package server exposes the record service as a small JSON API so a
// browser front end can drive the same history as the CLI.
//
// Responses use the envelope the spreadsheet endpoint uses:
// {"success": bool, "message": string, "data": any}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/taxilian/envlog/internal/history"
	"github.com/taxilian/envlog/internal/model"
	"github.com/taxilian/envlog/internal/records"
	"github.com/taxilian/envlog/internal/remote"
)

// DefaultAddr is the listen address used by `envlog serve`.
const DefaultAddr = ":8765"

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Options configures the handler.
type Options struct {
	AllowedOrigins []string // defaults to any origin
	Logger         *log.Logger
}

type handler struct {
	svc    *records.Service
	logger *log.Logger
}

// New returns the API handler with CORS and request logging applied.
func New(svc *records.Service, opts Options) http.Handler {
	h := &handler{svc: svc, logger: opts.Logger}
	if h.logger == nil {
		h.logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/records", h.handleList)
	mux.HandleFunc("POST /api/records", h.handleCreate)
	mux.HandleFunc("PUT /api/records/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/records/{id}", h.handleDelete)
	mux.HandleFunc("POST /api/undo", h.handleUndo)
	mux.HandleFunc("POST /api/redo", h.handleRedo)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/dashboard", h.handleDashboard)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return corsHandler.Handler(h.logging(mux))
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Serving API on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// statusWriter captures the HTTP status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.logger.Printf("[HTTP] %s %s %d %s from %s", r.Method, r.URL.Path, sw.statusCode, time.Since(start), r.RemoteAddr)
	})
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: recs})
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	created, err := h.svc.Add(r.Context(), rec)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{Success: true, Message: "Registro creado", Data: created})
}

func (h *handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	rec.ID = id
	updated, err := h.svc.Edit(r.Context(), rec)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Registro actualizado", Data: updated})
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Registro eliminado", Data: deleted})
}

func (h *handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	change, err := h.svc.Undo(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Cambio deshecho", Data: change})
}

func (h *handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	change, err := h.svc.Redo(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Cambio rehecho", Data: change})
}

type historyPayload struct {
	Undo    []model.ChangeRecord `json:"undo"`
	Redo    []model.ChangeRecord `json:"redo"`
	CanUndo bool                 `json:"canUndo"`
	CanRedo bool                 `json:"canRedo"`
}

func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	m := h.svc.History()
	writeJSON(w, http.StatusOK, response{Success: true, Data: historyPayload{
		Undo:    m.History(),
		Redo:    m.Undone(),
		CanUndo: m.CanUndo(),
		CanRedo: m.CanRedo(),
	}})
}

func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: dash})
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (model.Record, bool) {
	defer r.Body.Close()
	var rec model.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: fmt.Sprintf("invalid payload: %v", err)})
		return model.Record{}, false
	}
	return rec, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, response{Message: fmt.Sprintf("invalid id %q", r.PathValue("id"))})
		return 0, false
	}
	return id, true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var apiErr *remote.APIError
	var rce *history.RemoteCallError
	switch {
	case errors.Is(err, history.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, history.ErrEmptyHistory):
		return http.StatusConflict
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrMissingID), errors.Is(err, records.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.As(err, &rce):
		if rce.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		// The endpoint understood the request and refused it.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("request failed: %v", err)
	}
	writeJSON(w, status, response{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
