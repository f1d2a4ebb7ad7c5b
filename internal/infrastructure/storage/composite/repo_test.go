package composite

import (
	"context"
	"errors"
	"testing"

	"frmon/internal/application/port"
)

type stubRepo struct {
	saved  int
	err    error
	closed bool
}

func (s *stubRepo) SaveReport(context.Context, port.Report) error {
	s.saved++
	return s.err
}

func (s *stubRepo) Close() error {
	s.closed = true
	return nil
}

func TestCompositeFirstError(t *testing.T) {
	first := errors.New("redis down")
	a := &stubRepo{err: first}
	b := &stubRepo{err: errors.New("disk full")}
	c := &stubRepo{}
	repo := New(a, nil, b, c)

	if repo.Len() != 3 {
		t.Fatalf("expected nil repo filtered, got %d", repo.Len())
	}
	err := repo.SaveReport(context.Background(), port.Report{Kind: port.ReportAlert})
	if !errors.Is(err, first) {
		t.Errorf("expected first error, got %v", err)
	}
	if a.saved != 1 || b.saved != 1 || c.saved != 1 {
		t.Errorf("every repo must receive the report: %d %d %d", a.saved, b.saved, c.saved)
	}

	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("expected all repos closed")
	}
}
