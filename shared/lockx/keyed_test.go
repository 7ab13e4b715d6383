package lockx

import (
	"context"
	"sync"
	"testing"
)

func TestLocalKeyedSerializes(t *testing.T) {
	locker := NewLocalKeyed()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "badge:7")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			counter++
			_ = release(context.Background())
		}()
	}
	wg.Wait()
	if counter != 20 {
		t.Fatalf("expected 20 increments, got %d", counter)
	}
}

func TestLocalKeyedIndependentKeys(t *testing.T) {
	locker := NewLocalKeyed()
	releaseA, err := locker.Acquire(context.Background(), "subject:1")
	if err != nil {
		t.Fatalf("acquire a failed: %v", err)
	}
	releaseB, err := locker.Acquire(context.Background(), "subject:2")
	if err != nil {
		t.Fatalf("acquire b failed: %v", err)
	}
	_ = releaseB(context.Background())
	_ = releaseA(context.Background())
}
