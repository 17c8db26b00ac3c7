package organize

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrioritizedMutexExcludesReadersAndWriters(t *testing.T) {
	m := NewPrioritizedMutex()
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestPrioritizedMutexWriterNotStarvedByReaders(t *testing.T) {
	m := NewPrioritizedMutex()
	m.RLock()

	writerDone := make(chan struct{})
	go func() {
		m.Lock()
		close(writerDone)
		m.Unlock()
	}()

	// Give the writer a chance to register itself as waiting.
	time.Sleep(10 * time.Millisecond)

	blockedReader := make(chan struct{})
	go func() {
		m.RLock()
		close(blockedReader)
		m.RUnlock()
	}()

	select {
	case <-blockedReader:
		t.Fatal("reader arriving after a waiting writer should not acquire the lock first")
	case <-time.After(20 * time.Millisecond):
	}

	m.RUnlock()

	select {
	case <-writerDone:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired the lock")
	}
	<-blockedReader
}
