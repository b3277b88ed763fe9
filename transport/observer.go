package transport

// Observer receives transport activity for logging and metrics. All methods
// are called on the transport's processing context and must not block.
type Observer interface {
	BytesRead(n int)
	BytesWritten(n int)
	MessageReceived(size int)
	MessageQueued(size, pendingBytes int)
	StreamEnded()
	Failed(err *Error)
}

type nopObserver struct{}

func (nopObserver) BytesRead(int)          {}
func (nopObserver) BytesWritten(int)       {}
func (nopObserver) MessageReceived(int)    {}
func (nopObserver) MessageQueued(int, int) {}
func (nopObserver) StreamEnded()           {}
func (nopObserver) Failed(*Error)          {}
