package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taxilian/envlog/internal/history"
	"github.com/taxilian/envlog/internal/model"
	"github.com/taxilian/envlog/internal/records"
	"github.com/taxilian/envlog/internal/remote"
	"github.com/taxilian/envlog/internal/remote/remotetest"
)

type memKV map[string]string

func (m memKV) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memKV) Set(key, value string) error {
	m[key] = value
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupServer(t *testing.T, existing ...model.Record) (*httptest.Server, *remotetest.Sheet, *records.Service) {
	t.Helper()
	sheet := remotetest.NewSheet(existing...)
	svc := records.New(sheet, history.New(sheet, memKV{}), nil)
	srv := httptest.NewServer(New(svc, Options{Logger: log.New(io.Discard, "", 0)}))
	t.Cleanup(srv.Close)
	return srv, sheet, svc
}

func do(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.StatusCode, env
}

func sample(id int, temp float64) model.Record {
	return model.Record{
		ID: id, Date: "2025-03-10", Time: "08:00", Shift: model.ShiftMorning, Day: 10,
		Temperature: temp, Humidity: 55, Person: "Ana",
	}
}

func TestListRecords(t *testing.T) {
	srv, _, _ := setupServer(t, sample(1, 20), sample(2, 21))

	status, env := do(t, http.MethodGet, srv.URL+"/api/records", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("expected success, got %d %+v", status, env)
	}
	var recs []model.Record
	if err := json.Unmarshal(env.Data, &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[1].Temperature != 21 {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestListRecords_EmptyIsArray(t *testing.T) {
	srv, _, _ := setupServer(t)
	_, env := do(t, http.MethodGet, srv.URL+"/api/records", nil)
	if string(env.Data) != "[]" {
		t.Errorf("expected empty array, got %s", env.Data)
	}
}

func TestCreateUndoRedo(t *testing.T) {
	srv, sheet, _ := setupServer(t)

	status, env := do(t, http.MethodPost, srv.URL+"/api/records", sample(0, 19))
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", status, env)
	}
	var created model.Record
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	status, env = do(t, http.MethodPost, srv.URL+"/api/undo", nil)
	if status != http.StatusOK {
		t.Fatalf("undo: expected 200, got %d %+v", status, env)
	}
	if _, ok := sheet.Row(created.ID); ok {
		t.Error("expected record deleted by undo")
	}

	status, env = do(t, http.MethodGet, srv.URL+"/api/history", nil)
	if status != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", status)
	}
	var hist struct {
		Undo    []model.ChangeRecord `json:"undo"`
		Redo    []model.ChangeRecord `json:"redo"`
		CanUndo bool                 `json:"canUndo"`
		CanRedo bool                 `json:"canRedo"`
	}
	if err := json.Unmarshal(env.Data, &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Undo) != 0 || len(hist.Redo) != 1 || hist.CanUndo || !hist.CanRedo {
		t.Errorf("unexpected history payload: %+v", hist)
	}

	status, _ = do(t, http.MethodPost, srv.URL+"/api/redo", nil)
	if status != http.StatusOK {
		t.Fatalf("redo: expected 200, got %d", status)
	}
	if len(sheet.Rows()) != 1 {
		t.Errorf("expected record recreated, got %+v", sheet.Rows())
	}
}

func TestUpdateAndDelete(t *testing.T) {
	srv, sheet, svc := setupServer(t, sample(5, 20))

	status, env := do(t, http.MethodPut, srv.URL+"/api/records/5", sample(0, 26))
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d %+v", status, env)
	}
	if row, _ := sheet.Row(5); row.Temperature != 26 {
		t.Errorf("expected temperature 26, got %.1f", row.Temperature)
	}
	if h := svc.History().History(); len(h) != 1 || h[0].Before == nil || h[0].Before.Temperature != 20 {
		t.Errorf("expected update with pre-image, got %+v", h)
	}

	status, _ = do(t, http.MethodDelete, srv.URL+"/api/records/5", nil)
	if status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if _, ok := sheet.Row(5); ok {
		t.Error("expected record deleted")
	}
}

func TestErrorStatuses(t *testing.T) {
	srv, _, _ := setupServer(t, sample(1, 20))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"undo empty", http.MethodPost, "/api/undo", nil, http.StatusConflict},
		{"redo empty", http.MethodPost, "/api/redo", nil, http.StatusConflict},
		{"bad id", http.MethodDelete, "/api/records/abc", nil, http.StatusBadRequest},
		{"unknown id", http.MethodDelete, "/api/records/99", nil, http.StatusNotFound},
		{"invalid record", http.MethodPost, "/api/records", model.Record{Date: "x"}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/records", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, tt.method, srv.URL+tt.path, tt.body)
			if status != tt.want {
				t.Errorf("expected %d, got %d (%s)", tt.want, status, env.Message)
			}
			if env.Success || env.Message == "" {
				t.Errorf("expected failure envelope with message, got %+v", env)
			}
		})
	}
}

func TestUndoWhileBusy(t *testing.T) {
	srv, sheet, svc := setupServer(t)
	if _, err := svc.Add(context.Background(), sample(0, 19)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Add(context.Background(), sample(0, 20)); err != nil {
		t.Fatal(err)
	}

	block := make(chan struct{})
	sheet.SetBlock(block)
	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/api/undo", "application/json", nil)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	// Wait until the first undo has moved its entry.
	deadline := time.Now().Add(2 * time.Second)
	for !svc.History().CanRedo() {
		if time.Now().After(deadline) {
			t.Fatal("first undo never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	status, env := do(t, http.MethodPost, srv.URL+"/api/undo", nil)
	if status != http.StatusConflict || !strings.Contains(env.Message, "in progress") {
		t.Errorf("expected 409 busy, got %d %q", status, env.Message)
	}

	close(block)
	if got := <-first; got != http.StatusOK {
		t.Errorf("expected first undo to succeed, got %d", got)
	}
}

func TestRemoteFailureStatus(t *testing.T) {
	srv, sheet, _ := setupServer(t)
	sheet.SetErr(&remote.APIError{Action: "getData", Message: "Hoja no encontrada"})

	status, env := do(t, http.MethodGet, srv.URL+"/api/records", nil)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", status)
	}
	if !strings.Contains(env.Message, "Hoja no encontrada") {
		t.Errorf("expected endpoint message, got %q", env.Message)
	}

	sheet.SetErr(errors.New("connection refused"))
	status, _ = do(t, http.MethodGet, srv.URL+"/api/dashboard", nil)
	if status != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", status)
	}
}

func TestDashboard(t *testing.T) {
	srv, sheet, _ := setupServer(t)
	sheet.SetDashboard(model.Dashboard{TempAvg: 21.5, TotalRecords: 12})

	status, env := do(t, http.MethodGet, srv.URL+"/api/dashboard", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var dash model.Dashboard
	if err := json.Unmarshal(env.Data, &dash); err != nil {
		t.Fatal(err)
	}
	if dash.TempAvg != 21.5 || dash.TotalRecords != 12 {
		t.Errorf("unexpected dashboard %+v", dash)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := setupServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/records/1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodDelete) {
		t.Errorf("expected DELETE to be allowed, got %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	rce := &history.RemoteCallError{Op: "undo", Err: context.DeadlineExceeded}
	if got := statusFor(rce); got != http.StatusGatewayTimeout {
		t.Errorf("timeout: expected 504, got %d", got)
	}
	rce = &history.RemoteCallError{Op: "undo", Err: errors.New("boom")}
	if got := statusFor(rce); got != http.StatusBadGateway {
		t.Errorf("remote call: expected 502, got %d", got)
	}
	if got := statusFor(history.ErrBusy); got != http.StatusConflict {
		t.Errorf("busy: expected 409, got %d", got)
	}
}
