package service

import (
	"context"
	"testing"
)

func TestSupervisor_NewBuildCancelsPrevious(t *testing.T) {
	var s buildSupervisor

	first, done1 := s.begin(context.Background())
	defer done1()
	if first.Err() != nil {
		t.Fatal("fresh build context should be live")
	}

	second, done2 := s.begin(context.Background())
	defer done2()

	select {
	case <-first.Done():
	default:
		t.Error("starting a new build must cancel the previous one")
	}
	if second.Err() != nil {
		t.Error("newest build context should stay live")
	}
}

func TestSupervisor_DoneReleasesSlot(t *testing.T) {
	var s buildSupervisor

	ctx, done := s.begin(context.Background())
	done()

	select {
	case <-ctx.Done():
	default:
		t.Error("done should cancel the build's own context")
	}

	// A later build is unaffected by the finished one.
	next, doneNext := s.begin(context.Background())
	defer doneNext()
	if next.Err() != nil {
		t.Error("next build context should be live")
	}
}

func TestSupervisor_ParentCancelPropagates(t *testing.T) {
	var s buildSupervisor

	parent, cancel := context.WithCancel(context.Background())
	ctx, done := s.begin(parent)
	defer done()

	cancel()
	select {
	case <-ctx.Done():
	default:
		t.Error("parent cancellation must reach the build context")
	}
}
