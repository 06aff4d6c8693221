package reactor

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPostRunsOnLoop(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	done := make(chan struct{})
	r.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted closure never ran")
	}
}

func TestAfterFuncFiresOnce(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	var n int
	var mu sync.Mutex
	done := make(chan struct{})
	r.AfterFunc(10*time.Millisecond, func() {
		mu.Lock()
		n++
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
}

func TestTickerFuncRepeats(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	count := make(chan struct{}, 10)
	timer := r.TickerFunc(5*time.Millisecond, 5*time.Millisecond, func() {
		select {
		case count <- struct{}{}:
		default:
		}
	})
	defer timer.Stop()

	got := 0
	timeout := time.After(time.Second)
	for got < 3 {
		select {
		case <-count:
			got++
		case <-timeout:
			t.Fatalf("only saw %d ticks before timeout", got)
		}
	}
}

func TestTimerStopPreventsFiring(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	fired := make(chan struct{}, 1)
	timer := r.AfterFunc(30*time.Millisecond, func() {
		fired <- struct{}{}
	})
	timer.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer fired anyway")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAddPrepareRunsEachIteration(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	calls := make(chan struct{}, 100)
	remove := r.AddPrepare(func() {
		select {
		case calls <- struct{}{}:
		default:
		}
	})
	defer remove()

	// Nudge the loop around a few times via Post, each iteration should
	// run the prepare pass first. The first Post may be handled by an
	// iteration whose prepare pass ran before AddPrepare, so three Posts
	// guarantee at least two prepare calls.
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		r.Post(func() { close(done) })
		<-done
	}

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("prepare callback ran %d times, want at least 2", i)
		}
	}
}
