package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/homehub/devicehub/pkg/sentinel"
)

type fakeDispatcher struct {
	sendCommandResult string
	sendCommandErr    error
	lastDeviceID      string
	lastCommand       string

	unsolicitedResult string
	unsolicitedErr    error

	macroResult string
	macroErr    error
	lastMacro   string

	devices []string

	toggled     bool
	toggleCalls int
}

func (f *fakeDispatcher) SendCommand(_ context.Context, deviceID, command string) (string, error) {
	f.lastDeviceID, f.lastCommand = deviceID, command
	return f.sendCommandResult, f.sendCommandErr
}

func (f *fakeDispatcher) GetUnsolicited(_ context.Context, deviceID string) (string, error) {
	f.lastDeviceID = deviceID
	return f.unsolicitedResult, f.unsolicitedErr
}

func (f *fakeDispatcher) RunMacro(_ context.Context, name string) (string, error) {
	f.lastMacro = name
	return f.macroResult, f.macroErr
}

func (f *fakeDispatcher) ListDevices() []string { return f.devices }

func (f *fakeDispatcher) ToggleDisabled() bool {
	f.toggleCalls++
	f.toggled = !f.toggled
	return f.toggled
}

func TestHandleListDevices(t *testing.T) {
	d := &fakeDispatcher{devices: []string{"avr4300", "epson5030ub"}}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodGet, "/listDevices", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(got) != 2 || got[0] != "avr4300" {
		t.Errorf("devices = %v", got)
	}
}

func TestHandleSendCommandSuccess(t *testing.T) {
	d := &fakeDispatcher{sendCommandResult: "answer-to-POWER_ON"}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/epson5030ub/sendCommand?command=POWER_ON", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "answer-to-POWER_ON" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if d.lastDeviceID != "epson5030ub" || d.lastCommand != "POWER_ON" {
		t.Errorf("dispatcher called with (%q, %q)", d.lastDeviceID, d.lastCommand)
	}
}

func TestHandleSendCommandNoDeviceFoundIs500(t *testing.T) {
	d := &fakeDispatcher{sendCommandResult: string(sentinel.NoDeviceFound)}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/missing/sendCommand?command=X", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != string(sentinel.NoDeviceFound) {
		t.Errorf("body = %q, want NO_DEVICE_FOUND", rec.Body.String())
	}
}

func TestHandleSendCommandTimeoutIs200(t *testing.T) {
	d := &fakeDispatcher{sendCommandResult: string(sentinel.Timeout)}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/avr4300/sendCommand?command=X", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (TIMEOUT is delivered in-band)", rec.Code)
	}
	if rec.Body.String() != string(sentinel.Timeout) {
		t.Errorf("body = %q, want TIMEOUT", rec.Body.String())
	}
}

func TestHandleSendCommandMissingCommandParam(t *testing.T) {
	d := &fakeDispatcher{}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/avr4300/sendCommand", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleGetUnsolicited(t *testing.T) {
	d := &fakeDispatcher{unsolicitedResult: "SCENE_CHANGED"}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodGet, "/lutrongrx3000/getUnsolicited", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "SCENE_CHANGED" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleMacroSuccess(t *testing.T) {
	d := &fakeDispatcher{macroResult: string(sentinel.Success)}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/macro?macroName=movie_night", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != string(sentinel.Success) {
		t.Errorf("body = %q, want SUCCESS", rec.Body.String())
	}
	if d.lastMacro != "movie_night" {
		t.Errorf("lastMacro = %q, want movie_night", d.lastMacro)
	}
}

func TestHandleMacroFailureIs500(t *testing.T) {
	d := &fakeDispatcher{macroResult: string(sentinel.NoDeviceFound)}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/macro?macroName=evening", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleMacroMissingName(t *testing.T) {
	d := &fakeDispatcher{}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodPost, "/macro", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleToggleStatus(t *testing.T) {
	d := &fakeDispatcher{}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodGet, "/toggleStatus", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if d.toggleCalls != 1 {
		t.Errorf("toggleCalls = %d, want 1", d.toggleCalls)
	}
}

func TestHandleUnknownDeviceActionIs404(t *testing.T) {
	d := &fakeDispatcher{}
	s := NewServer(Config{Addr: ":0"}, d)

	req := httptest.NewRequest(http.MethodGet, "/avr4300/somethingElse", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
