package sfx

// Unbounded is a growable-queue channel pair: sends on In never block
// on how fast (or slow) the reader draining Out is. Grounded on the
// original's mpsc::UnboundedSender<SfxRequest> — spec.md §5 requires
// the C2->C5 link to be unbounded specifically so a sub-gift burst
// can never back up into, and stall, the chat command path.
type Unbounded struct {
	in  chan Request
	out chan Request
}

// NewUnbounded starts the backing pump goroutine and returns the queue.
func NewUnbounded() *Unbounded {
	u := &Unbounded{
		in:  make(chan Request),
		out: make(chan Request),
	}
	go u.pump()
	return u
}

// In is the send side. The pump goroutine is always ready to accept a
// value off In regardless of Out's consumer, so a send here is never
// gated by dispatcher processing speed.
func (u *Unbounded) In() chan<- Request { return u.in }

// Out is the receive side the dispatcher's Run loop drains.
func (u *Unbounded) Out() <-chan Request { return u.out }

// Close stops accepting new sends; the pump drains whatever is already
// queued out through Out, then closes Out.
func (u *Unbounded) Close() { close(u.in) }

func (u *Unbounded) pump() {
	var queue []Request
	for {
		if len(queue) == 0 {
			v, ok := <-u.in
			if !ok {
				close(u.out)
				return
			}
			queue = append(queue, v)
			continue
		}

		select {
		case v, ok := <-u.in:
			if !ok {
				for _, q := range queue {
					u.out <- q
				}
				close(u.out)
				return
			}
			queue = append(queue, v)
		case u.out <- queue[0]:
			queue = queue[1:]
		}
	}
}
