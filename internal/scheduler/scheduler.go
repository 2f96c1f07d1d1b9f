// Package scheduler implements the core's cooperative, single-threaded task
// graph. Every subsystem registers one Delegate, declares its
// dependencies on other delegates, and the Scheduler topologically orders
// them so a tick always runs producers before their consumers.
package scheduler

import (
	"sync"
	"time"
)

// DelegateID is a subsystem's typed registration key. Subsystems export a
// constant of this type (e.g. cipher.DelegateID, tracking.DelegateID) so
// Depends can reference another subsystem without importing its concrete
// type.
type DelegateID string

// uninitializedPriority is the sentinel every delegate starts at, and the
// value Initialize leaves everything at if it detects a cycle.
const uninitializedPriority = 0

// OnExecute runs one scheduling tick's worth of work for a delegate and
// returns how many pending tasks it completed, so the scheduler can
// decrement the delegate's counter accordingly.
type OnExecute func() int

type Delegate struct {
	id        DelegateID
	onExecute OnExecute

	mu        sync.Mutex
	dependsOn []DelegateID
	pending   int64
	priority  int

	sched *Scheduler
}

// Depends declares direct dependencies: a dependent always runs after its
// dependencies in the same tick, once the dependency graph has been
// resolved by Initialize.
func (d *Delegate) Depends(ids ...DelegateID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dependsOn = append(d.dependsOn, ids...)
}

// OnTaskAvailable marks n additional tasks pending for this delegate and
// wakes any goroutine blocked in Scheduler.AwaitTask.
func (d *Delegate) OnTaskAvailable(n int) {
	if n <= 0 {
		n = 1
	}
	d.mu.Lock()
	d.pending += int64(n)
	d.mu.Unlock()
	d.sched.signal(int64(n))
}

// AvailableTasks returns the delegate's current pending-task count.
func (d *Delegate) AvailableTasks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.pending)
}

func (d *Delegate) takePending() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Delegate) complete(n int64) {
	if n <= 0 {
		return
	}
	d.mu.Lock()
	d.pending -= n
	if d.pending < 0 {
		d.pending = 0
	}
	d.mu.Unlock()
}

// Scheduler holds every registered Delegate and the priority order computed
// by Initialize.
type Scheduler struct {
	mu        sync.Mutex
	delegates map[DelegateID]*Delegate
	order     []DelegateID // registration order, used for the reverse tie-break
	ordered   []*Delegate  // priority-sorted after Initialize
	ready     bool

	cond      *sync.Cond
	available int64 // global sentinel: sum of signals not yet observed
}

func New() *Scheduler {
	s := &Scheduler{delegates: make(map[DelegateID]*Delegate)}
	s.cond = sync.NewCond(&sync.Mutex{})
	return s
}

// Register adds a new delegate. Re-registering an id already present
// replaces its callback but keeps its declared dependencies, so a subsystem
// recreated across a runtime restart can re-register without the scheduler
// losing the rest of the graph.
func (s *Scheduler) Register(id DelegateID, onExecute OnExecute) *Delegate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.delegates[id]; ok {
		existing.onExecute = onExecute
		return existing
	}

	d := &Delegate{id: id, onExecute: onExecute, sched: s}
	s.delegates[id] = d
	s.order = append(s.order, id)
	s.ready = false
	return d
}

func (s *Scheduler) signal(n int64) {
	s.cond.L.Lock()
	s.available += n
	s.cond.L.Unlock()
	s.cond.Broadcast()
}

// Initialize resolves the dependency graph, detects cycles, and assigns
// priorities. It is idempotent and safe to call again after Register adds
// delegates or after a runtime restart -- it always recomputes from
// scratch, so no priority state from a prior Initialize leaks into a new
// graph.
func (s *Scheduler) Initialize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.delegates {
		d.mu.Lock()
		d.priority = uninitializedPriority
		d.mu.Unlock()
	}

	assigned := make(map[DelegateID]bool, len(s.delegates))
	next := 1
	remaining := len(s.delegates)

	for remaining > 0 {
		progressed := false
		// Scan in reverse registration order: the most recently registered
		// ready delegate is assigned the next priority. This is what makes
		// siblings that become ready simultaneously (e.g. two delegates
		// that both depend only on an already-assigned one) come out in
		// reverse-registration order rather than arbitrary map order.
		for i := len(s.order) - 1; i >= 0; i-- {
			id := s.order[i]
			if assigned[id] {
				continue
			}
			d := s.delegates[id]
			if !s.depsSatisfied(d, assigned) {
				continue
			}
			d.mu.Lock()
			d.priority = next
			d.mu.Unlock()
			assigned[id] = true
			next++
			remaining--
			progressed = true
			break
		}
		if !progressed {
			// Cycle: no remaining delegate has all its dependencies
			// assigned. Leave every priority at the sentinel and fail.
			for _, d := range s.delegates {
				d.mu.Lock()
				d.priority = uninitializedPriority
				d.mu.Unlock()
			}
			s.ready = false
			return false
		}
	}

	ordered := make([]*Delegate, 0, len(s.delegates))
	for _, id := range s.order {
		ordered = append(ordered, s.delegates[id])
	}
	// Ascending priority order IS dependency order: a delegate's
	// dependencies were necessarily assigned (lower) priorities before it.
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].priority < ordered[i].priority {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	s.ordered = ordered
	s.ready = true
	return true
}

func (s *Scheduler) depsSatisfied(d *Delegate, assigned map[DelegateID]bool) bool {
	d.mu.Lock()
	deps := append([]DelegateID(nil), d.dependsOn...)
	d.mu.Unlock()
	for _, dep := range deps {
		if !assigned[dep] {
			return false
		}
	}
	return true
}

// Priority returns a delegate's assigned priority, or 0 if Initialize has
// not run (or failed) since it was registered.
func (d *Delegate) Priority() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.priority
}

// Execute runs one tick: every delegate with pending work, in priority
// order, exactly once. It returns the total number of tasks completed
// across all delegates this tick.
func (s *Scheduler) Execute() int {
	s.mu.Lock()
	ordered := s.ordered
	s.mu.Unlock()

	total := 0
	for _, d := range ordered {
		pending := d.takePending()
		if pending <= 0 {
			continue
		}
		completed := d.onExecute()
		if completed < 0 {
			completed = 0
		}
		d.complete(int64(completed))
		total += completed
		s.drain(int64(completed))
	}
	return total
}

func (s *Scheduler) drain(n int64) {
	if n <= 0 {
		return
	}
	s.cond.L.Lock()
	s.available -= n
	if s.available < 0 {
		s.available = 0
	}
	s.cond.L.Unlock()
}

// AwaitTask blocks the calling (core) thread until some delegate has
// signaled available work, or timeout elapses. It returns true if work is
// available, false on timeout.
func (s *Scheduler) AwaitTask(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	s.cond.L.Lock()
	defer s.cond.L.Unlock()

	for s.available <= 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.available > 0
		}
		timer := time.AfterFunc(remaining, s.cond.Broadcast)
		s.cond.Wait()
		timer.Stop()
	}
	return true
}
