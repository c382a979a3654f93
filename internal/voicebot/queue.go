package voicebot

// frameQueue buffers encoded PCM frames captured before the transport is
// ready. Frames are drained in FIFO order exactly once, at the moment
// readiness is detected; capture never blocks on it. Owned by the
// controller loop, so no locking.
type frameQueue struct {
	frames [][]byte
}

func (q *frameQueue) push(frame []byte) {
	q.frames = append(q.frames, frame)
}

func (q *frameQueue) len() int {
	return len(q.frames)
}

// drain hands every buffered frame to send in order, stopping on the
// first send error. The queue is emptied either way; a frame that could
// not be sent is dropped, not retried out of order.
func (q *frameQueue) drain(send func([]byte) error) error {
	frames := q.frames
	q.frames = nil
	for _, f := range frames {
		if err := send(f); err != nil {
			return err
		}
	}
	return nil
}
