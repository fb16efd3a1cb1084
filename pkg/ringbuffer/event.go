package ringbuffer

import (
	"sync"
)

// event is a binary semaphore.
type event struct {
	mutex sync.Mutex
	cond  *sync.Cond
	value bool
}

func newEvent() *event {
	e := &event{}
	e.cond = sync.NewCond(&e.mutex)
	return e
}

func (e *event) signal() {
	e.mutex.Lock()
	e.value = true
	e.mutex.Unlock()

	e.cond.Broadcast()
}

func (e *event) wait() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for !e.value {
		e.cond.Wait()
	}

	e.value = false
}
