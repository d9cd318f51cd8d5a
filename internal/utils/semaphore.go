package utils

// Semaphore bounds concurrent access to a resource (e.g. the number of
// simultaneously dialed peer connections) via a buffered channel.
type Semaphore chan struct{}

func NewSemaphore(capacity int) Semaphore {
	return make(chan struct{}, capacity)
}

func (s Semaphore) Acquire() {
	s <- struct{}{}
}

func (s Semaphore) Release() {
	<-s
}
