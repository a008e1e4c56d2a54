package system

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name      string
	startErr  error
	stopErr   error
	startedAt int
	stoppedAt int
	counter   *int
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	*f.counter++
	f.startedAt = *f.counter
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	*f.counter++
	f.stoppedAt = *f.counter
	return f.stopErr
}

func TestManagerStartsInOrderAndStopsInReverse(t *testing.T) {
	counter := 0
	a := &fakeService{name: "a", counter: &counter}
	b := &fakeService{name: "b", counter: &counter}
	c := &fakeService{name: "c", counter: &counter}

	m := NewManager()
	for _, s := range []*fakeService{a, b, c} {
		if err := m.Register(s); err != nil {
			t.Fatalf("register %s: %v", s.name, err)
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !(a.startedAt < b.startedAt && b.startedAt < c.startedAt) {
		t.Fatalf("expected start order a<b<c, got %d %d %d", a.startedAt, b.startedAt, c.startedAt)
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !(c.stoppedAt < b.stoppedAt && b.stoppedAt < a.stoppedAt) {
		t.Fatalf("expected stop order c<b<a, got %d %d %d", c.stoppedAt, b.stoppedAt, a.stoppedAt)
	}
}

func TestManagerUnwindsOnStartFailure(t *testing.T) {
	counter := 0
	a := &fakeService{name: "a", counter: &counter}
	b := &fakeService{name: "b", counter: &counter, startErr: errors.New("boom")}
	c := &fakeService{name: "c", counter: &counter}

	m := NewManager()
	_ = m.Register(a)
	_ = m.Register(b)
	_ = m.Register(c)

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if c.startedAt != 0 {
		t.Fatalf("expected c never started, got counter %d", c.startedAt)
	}
	if a.stoppedAt == 0 {
		t.Fatalf("expected a to be stopped after b failed to start")
	}
}

func TestManagerRejectsRegistrationAfterStart(t *testing.T) {
	counter := 0
	m := NewManager()
	_ = m.Register(&fakeService{name: "a", counter: &counter})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(&fakeService{name: "late", counter: &counter}); err == nil {
		t.Fatal("expected registration after start to fail")
	}
}

func TestManagerStopCollectsFirstError(t *testing.T) {
	counter := 0
	a := &fakeService{name: "a", counter: &counter, stopErr: errors.New("a failed")}
	b := &fakeService{name: "b", counter: &counter, stopErr: errors.New("b failed")}

	m := NewManager()
	_ = m.Register(a)
	_ = m.Register(b)
	_ = m.Start(context.Background())

	err := m.Stop(context.Background())
	if err == nil {
		t.Fatal("expected stop error")
	}
	// b stops first (reverse order) so its error should be reported first.
	if got := err.Error(); got != "stop b: b failed" {
		t.Fatalf("expected first stop error from b, got %q", got)
	}
}
