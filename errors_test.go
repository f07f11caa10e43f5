package imap

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestWireTraceKeepsLast25Lines(t *testing.T) {
	s, _ := newTestSession()

	for i := 1; i <= 30; i++ {
		deliver(t, s, fmt.Sprintf("* OK noise %d", i))
	}

	// Force a record to snapshot the trace.
	_, err := s.AwaitLogin(context.Background(), time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout")
	}
	rec := s.LastError()
	if rec == nil {
		t.Fatal("expected an error record")
	}

	trace := rec.Trace()
	if len(trace) != wireTraceSize {
		t.Fatalf("trace has %d lines, want %d", len(trace), wireTraceSize)
	}
	for i, line := range trace {
		want := fmt.Sprintf("* OK noise %d", i+6)
		if line != want {
			t.Fatalf("trace[%d] = %q, want %q", i, line, want)
		}
	}
}

func TestTraceSnapshotIsImmutable(t *testing.T) {
	s, _ := newTestSession()

	deliver(t, s, "* OK first", "* OK second")
	_, _ = s.AwaitLogin(context.Background(), time.Millisecond)
	rec := s.LastError()
	if rec == nil {
		t.Fatal("expected an error record")
	}

	before := make([]string, len(rec.Trace()))
	copy(before, rec.Trace())

	deliver(t, s, "* OK third", "* OK fourth")

	if !reflect.DeepEqual(rec.Trace(), before) {
		t.Errorf("snapshot mutated: %v != %v", rec.Trace(), before)
	}
}

func TestErrorTrailIsLIFO(t *testing.T) {
	s, _ := newTestSession()
	login(t, s)

	deliver(t, s, "* 1 RECENT", "* 2 RECENT")

	first := s.LastError()
	second := s.LastError()
	if first == nil || second == nil {
		t.Fatal("expected two error records")
	}
	if !strings.Contains(first.Message(), "* 2 RECENT") {
		t.Errorf("most recent record first, got %q", first.Message())
	}
	if !strings.Contains(second.Message(), "* 1 RECENT") {
		t.Errorf("older record second, got %q", second.Message())
	}
	if s.LastError() != nil {
		t.Error("trail should be drained")
	}
}

func TestWireErrorAccessors(t *testing.T) {
	rec := &WireError{
		message: "boom",
		trace:   []string{"abcd"},
	}

	if rec.Message() != "boom" || rec.Error() != "boom" {
		t.Errorf("Message/Error = %q/%q", rec.Message(), rec.Error())
	}
	if rec.Expected() != "" {
		t.Errorf("Expected() = %q, want empty for no completion", rec.Expected())
	}
	if s := rec.String(); !strings.Contains(s, "1 trace lines") || !strings.Contains(s, "4 B") {
		t.Errorf("String() = %q", s)
	}

	withCompletion := &WireError{
		completion: &scriptedCompletion{resolveOn: ". OK LIST completed"},
		message:    "quirk",
	}
	if got := withCompletion.Expected(); got != "completion for . OK LIST completed" {
		t.Errorf("Expected() = %q", got)
	}
}
