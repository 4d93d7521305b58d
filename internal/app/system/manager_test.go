package system

import (
	"context"
	"fmt"
	"testing"
)

type recordedService struct {
	name   string
	failOn string // "start" or "stop"
	events *[]string
}

func (s *recordedService) Name() string { return s.name }

func (s *recordedService) Start(context.Context) error {
	if s.failOn == "start" {
		return fmt.Errorf("%s refused to start", s.name)
	}
	*s.events = append(*s.events, "start:"+s.name)
	return nil
}

func (s *recordedService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	if s.failOn == "stop" {
		return fmt.Errorf("%s refused to stop", s.name)
	}
	return nil
}

func TestManager_StartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordedService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewManager()
	m.Register(&recordedService{name: "a", events: &events}) //nolint:errcheck
	m.Register(&recordedService{name: "b", failOn: "start", events: &events})
	m.Register(&recordedService{name: "c", events: &events})

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}

	want := []string{"start:a", "stop:a"}
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestManager_RejectsDuplicateNames(t *testing.T) {
	var events []string
	m := NewManager()
	if err := m.Register(&recordedService{name: "a", events: &events}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&recordedService{name: "a", events: &events}); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
}

func TestManager_StopErrorDoesNotHaltOthers(t *testing.T) {
	var events []string
	m := NewManager()
	m.Register(&recordedService{name: "a", events: &events})             //nolint:errcheck
	m.Register(&recordedService{name: "b", failOn: "stop", events: &events})

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err == nil {
		t.Fatalf("expected stop error")
	}
	// a is still stopped after b fails.
	if events[len(events)-1] != "stop:a" {
		t.Fatalf("events = %v", events)
	}
}
