package keymutex

import (
	"sync"
	"testing"
)

func TestDoSerializesSameKey(t *testing.T) {
	m := New(0)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do("trip:abc", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("counter=%d, want 100", counter)
	}
}

func TestDoPropagatesError(t *testing.T) {
	m := New(4)
	wantErr := errSentinel{}
	if err := m.Do("k", func() error { return wantErr }); err != wantErr {
		t.Fatalf("Do returned %v, want sentinel", err)
	}
	// The stripe must be released after an error.
	done := make(chan struct{})
	go func() {
		m.Lock("k")
		m.Unlock("k")
		close(done)
	}()
	<-done
}

type errSentinel struct{}

func (errSentinel) Error() string { return "sentinel" }
