package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsActionsInOrder(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	var mu sync.Mutex
	var got []int
	done := make(chan bool)

	for i := 0; i < 100; i++ {
		i := i
		q.Enqueue("s1", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				done <- true
			}
		})
	}

	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueSessionsDoNotBlockEachOther(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	release := make(chan bool)
	otherRan := make(chan bool, 1)

	q.Enqueue("slow", func() {
		<-release
	})
	q.Enqueue("fast", func() {
		otherRan <- true
	})

	select {
	case <-otherRan:
	case <-time.After(2 * time.Second):
		t.Fatal("independent session was blocked")
	}
	close(release)
}

func TestQueueSurvivesPanic(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	ran := make(chan bool, 1)

	q.Enqueue("s1", func() {
		panic("boom")
	})
	q.Enqueue("s1", func() {
		ran <- true
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("panic poisoned the chain")
	}
}

func TestQueueReleasesIdleChains(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	done := make(chan bool)
	q.Enqueue("s1", func() {
		done <- true
	})
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		q.mu.Lock()
		n := len(q.chains)
		q.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("drained chain was not released")
}
