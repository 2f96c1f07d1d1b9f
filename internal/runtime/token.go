package runtime

import "sync/atomic"

// Status is the lifecycle state an ExecutionToken moves through.
type Status int32

const (
	Idle Status = iota
	Executing
	RequestedShutdown
	UnexpectedShutdown
	ResourceShutdown
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Executing:
		return "Executing"
	case RequestedShutdown:
		return "RequestedShutdown"
	case UnexpectedShutdown:
		return "UnexpectedShutdown"
	case ResourceShutdown:
		return "ResourceShutdown"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ExecutionToken is the atomic status gate the core loop checks every tick
// and every shutdown-triggering caller races to flip: Executing ->
// RequestedShutdown (graceful; the path Stop and Destroy take),
// UnexpectedShutdown, or ResourceShutdown. A CompareAndSwap-guarded state machine
// enforces that only one terminal status wins when more than one caller
// races to request shutdown.
type ExecutionToken struct {
	status atomic.Int32
}

// Status returns the token's current state. The zero value is Idle, so a
// freshly constructed Service reports Idle before its first Start.
func (t *ExecutionToken) Status() Status {
	return Status(t.status.Load())
}

// start transitions Idle or Stopped into Executing, starting a fresh
// generation. It reports false if the token is already Executing or mid
// shutdown drain -- this is what lets a Service be started again after a
// clean stop.
func (t *ExecutionToken) start() bool {
	for {
		cur := Status(t.status.Load())
		if cur != Idle && cur != Stopped {
			return false
		}
		if t.status.CompareAndSwap(int32(cur), int32(Executing)) {
			return true
		}
	}
}

// requestShutdown flips Executing -> RequestedShutdown, the graceful path a
// caller's Stop takes.
func (t *ExecutionToken) requestShutdown() bool {
	return t.status.CompareAndSwap(int32(Executing), int32(RequestedShutdown))
}

// shutdownUnexpected flips Executing -> UnexpectedShutdown. No runtime path
// calls it; only the token tests exercise it.
func (t *ExecutionToken) shutdownUnexpected() bool {
	return t.status.CompareAndSwap(int32(Executing), int32(UnexpectedShutdown))
}

// shutdownForResource flips Executing -> ResourceShutdown. Service.Destroy
// does not use it: Destroy stops a running service through Stop, which
// takes requestShutdown.
func (t *ExecutionToken) shutdownForResource() bool {
	return t.status.CompareAndSwap(int32(Executing), int32(ResourceShutdown))
}

// IsShuttingDown reports whether any shutdown kind has taken effect.
func (t *ExecutionToken) IsShuttingDown() bool {
	switch t.Status() {
	case RequestedShutdown, UnexpectedShutdown, ResourceShutdown:
		return true
	default:
		return false
	}
}

// markStopped finalizes a drained shutdown. Only the core loop calls this,
// after it has fully drained -- it is what makes the token eligible for a
// later start() again.
func (t *ExecutionToken) markStopped() {
	t.status.Store(int32(Stopped))
}
