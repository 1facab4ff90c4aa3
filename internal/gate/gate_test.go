package gate

import (
	"sync"
	"testing"
)

func TestGate_AdmitUpToCeiling(t *testing.T) {
	g := New(3)

	for i := 0; i < 3; i++ {
		if !g.Admit() {
			t.Fatalf("admit %d: expected true", i)
		}
	}
	if g.Admit() {
		t.Error("expected admit to fail at ceiling")
	}
	if g.Active() != 3 {
		t.Errorf("expected 3 active, got %d", g.Active())
	}

	g.Release()
	if !g.Admit() {
		t.Error("expected admit to succeed after release")
	}
}

func TestGate_ReleaseNeverNegative(t *testing.T) {
	g := New(2)
	g.Release()
	g.Release()
	if g.Active() != 0 {
		t.Errorf("expected 0 active, got %d", g.Active())
	}
	if !g.Admit() {
		t.Error("expected admit to succeed on empty gate")
	}
}

func TestGate_Concurrent(t *testing.T) {
	const ceiling = 10
	g := New(ceiling)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if g.Admit() {
					if a := g.Active(); a > ceiling {
						t.Errorf("active %d exceeds ceiling %d", a, ceiling)
					}
					g.Release()
				}
			}
		}()
	}
	wg.Wait()

	if g.Active() != 0 {
		t.Errorf("expected 0 active after all releases, got %d", g.Active())
	}
}
