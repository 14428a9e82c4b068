package devicesession

import (
	"context"
	"net"
	"testing"
	"time"
)

func newTestSession(t *testing.T, registry *Registry) (*Session, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	s := New(serverConn, registry, nil, nil, nil)
	go s.Serve(context.Background())
	t.Cleanup(func() { clientConn.Close() })
	return s, clientConn
}

func announce(t *testing.T, clientConn net.Conn, deviceID string) {
	t.Helper()
	if _, err := clientConn.Write([]byte(deviceID + "\r")); err != nil {
		t.Fatalf("failed to write device id: %v", err)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry(nil)
	s, clientConn := newTestSession(t, registry)
	defer clientConn.Close()

	announce(t, clientConn, "epson5030ub")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if registry.IsRegistered("epson5030ub") {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if !registry.IsRegistered("epson5030ub") {
		t.Fatal("device never registered")
	}
	got, ok := registry.Get("epson5030ub")
	if !ok || got != s {
		t.Errorf("Get returned (%v, %v), want (%v, true)", got, ok, s)
	}
}

func TestRegistryRejectsDuplicateAndKeepsIncumbent(t *testing.T) {
	registry := NewRegistry(nil)
	incumbent, incumbentConn := newTestSession(t, registry)
	defer incumbentConn.Close()
	announce(t, incumbentConn, "lutrongrx3000")
	waitForRegistration(t, registry, "lutrongrx3000")

	_, dupConn := newTestSession(t, registry)
	defer dupConn.Close()
	announce(t, dupConn, "lutrongrx3000")

	time.Sleep(50 * time.Millisecond)

	got, ok := registry.Get("lutrongrx3000")
	if !ok || got != incumbent {
		t.Errorf("incumbent was replaced: got (%v, %v)", got, ok)
	}
}

func TestRegistryUnregisterIsNoopForUnknownID(t *testing.T) {
	registry := NewRegistry(nil)
	s, clientConn := newTestSession(t, registry)
	defer clientConn.Close()

	// Never announced: DeviceID() is "". Unregistering must not panic.
	registry.Unregister(s)
}

func TestRegistryIDsIsSorted(t *testing.T) {
	registry := NewRegistry(nil)
	for _, id := range []string{"zigbeehub", "avr4300", "epson5030ub"} {
		_, conn := newTestSession(t, registry)
		defer conn.Close()
		announce(t, conn, id)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(registry.IDs()) < 3 {
		time.Sleep(time.Millisecond)
	}

	got := registry.IDs()
	want := []string{"avr4300", "epson5030ub", "zigbeehub"}
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func waitForRegistration(t *testing.T, registry *Registry, id string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if registry.IsRegistered(id) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("device %q never registered", id)
}
