package serialmux

import "sync"

// subscriber is one consumer of the chunk stream.
//
// A regular subscriber owns an unbounded FIFO drained into an unbuffered
// channel by its own goroutine, so broadcast never waits on a slow reader
// and no chunk is lost or reordered. A lossy subscriber is a plain buffered
// channel that refuses chunks while full.
type subscriber struct {
	ch    chan []byte
	lossy bool

	mu    sync.Mutex
	queue [][]byte
	wake  chan struct{}
	done  chan struct{}
}

func newSubscriber(lossy bool) *subscriber {
	if lossy {
		return &subscriber{ch: make(chan []byte, subscriberBuffer), lossy: true}
	}
	sub := &subscriber{
		ch:   make(chan []byte),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go sub.pump()
	return sub
}

// offer hands chunk to the subscriber. It reports false only when a lossy
// subscriber had no room for it. Callers serialize offer and close.
func (sub *subscriber) offer(chunk []byte) bool {
	if sub.lossy {
		select {
		case sub.ch <- chunk:
			return true
		default:
			return false
		}
	}

	sub.mu.Lock()
	sub.queue = append(sub.queue, chunk)
	sub.mu.Unlock()
	select {
	case sub.wake <- struct{}{}:
	default:
	}
	return true
}

// backlog is the number of chunks waiting to be received.
func (sub *subscriber) backlog() int {
	if sub.lossy {
		return len(sub.ch)
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return len(sub.queue)
}

// close ends the subscription. The channel is closed once the pump notices,
// which may be after close returns.
func (sub *subscriber) close() {
	if sub.lossy {
		close(sub.ch)
		return
	}
	close(sub.done)
}

func (sub *subscriber) pump() {
	defer close(sub.ch)
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			sub.queue = nil
			sub.mu.Unlock()
			select {
			case <-sub.wake:
				continue
			case <-sub.done:
				return
			}
		}
		chunk := sub.queue[0]
		sub.queue[0] = nil
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.ch <- chunk:
		case <-sub.done:
			return
		}
	}
}
