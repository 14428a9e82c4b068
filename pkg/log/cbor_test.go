package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Category:     CategoryLine,
		DeviceID:     "epson5030ub",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.DeviceID != original.DeviceID {
		t.Errorf("DeviceID: got %q, want %q", decoded.DeviceID, original.DeviceID)
	}
}

func TestLineEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Category:     CategoryLine,
		Line: &LineEvent{
			Data:        []byte("answer"),
			Truncated:   false,
			Unsolicited: true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Line == nil {
		t.Fatal("Line is nil")
	}
	if string(decoded.Line.Data) != string(original.Line.Data) {
		t.Errorf("Line.Data: got %v, want %v", decoded.Line.Data, original.Line.Data)
	}
	if decoded.Line.Unsolicited != original.Line.Unsolicited {
		t.Errorf("Line.Unsolicited: got %v, want %v", decoded.Line.Unsolicited, original.Line.Unsolicited)
	}
}

func TestStateEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Category:  CategoryState,
		DeviceID:  "epson5030ub",
		State: &StateEvent{
			Entity:   "session",
			OldState: "",
			NewState: "registered",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.State == nil {
		t.Fatal("State is nil")
	}
	if decoded.State.Entity != original.State.Entity {
		t.Errorf("State.Entity: got %q, want %q", decoded.State.Entity, original.State.Entity)
	}
	if decoded.State.NewState != original.State.NewState {
		t.Errorf("State.NewState: got %q, want %q", decoded.State.NewState, original.State.NewState)
	}
}

func TestMacroStepEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Category:  CategoryMacroStep,
		MacroStep: &MacroStepEvent{
			MacroID:        "goodnight",
			Index:          1,
			Device:         "DELAY",
			Command:        "3",
			ShortCircuited: false,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.MacroStep == nil {
		t.Fatal("MacroStep is nil")
	}
	if decoded.MacroStep.MacroID != original.MacroStep.MacroID {
		t.Errorf("MacroStep.MacroID: got %q, want %q", decoded.MacroStep.MacroID, original.MacroStep.MacroID)
	}
	if decoded.MacroStep.Index != original.MacroStep.Index {
		t.Errorf("MacroStep.Index: got %d, want %d", decoded.MacroStep.Index, original.MacroStep.Index)
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Category:  CategoryError,
		Error: &ErrorEvent{
			Context: "process_line",
			Message: "invalid checksum received",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil")
	}
	if decoded.Error.Message != original.Error.Message {
		t.Errorf("Error.Message: got %q, want %q", decoded.Error.Message, original.Error.Message)
	}
}

func TestEventSequenceEncodesMultipleEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), Category: CategoryLine, Direction: DirectionOut, Line: &LineEvent{Data: []byte("test1")}},
		{Timestamp: time.Now(), Category: CategoryLine, Direction: DirectionIn, Line: &LineEvent{Data: []byte("answer")}},
	}

	var encoded [][]byte
	for _, e := range events {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		encoded = append(encoded, data)
	}

	for i, data := range encoded {
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		if string(decoded.Line.Data) != string(events[i].Line.Data) {
			t.Errorf("event %d: Line.Data mismatch", i)
		}
	}
}
