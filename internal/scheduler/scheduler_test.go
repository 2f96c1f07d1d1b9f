package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityAssignmentOrdersDependenciesFirst(t *testing.T) {
	s := New()

	var ran []string
	record := func(name string) OnExecute {
		return func() int {
			ran = append(ran, name)
			return 1
		}
	}

	indep := s.Register("Indep", record("Indep"))
	alpha := s.Register("Alpha", record("Alpha"))
	beta := s.Register("Beta", record("Beta"))
	gamma := s.Register("Gamma", record("Gamma"))

	alpha.Depends("Indep")
	beta.Depends("Alpha")
	gamma.Depends("Indep")

	require.True(t, s.Initialize(), "Initialize() should succeed for an acyclic graph")

	assert.Equal(t, 1, indep.Priority())
	assert.Equal(t, 2, gamma.Priority())
	assert.Equal(t, 3, alpha.Priority())
	assert.Equal(t, 4, beta.Priority())

	indep.OnTaskAvailable(1)
	alpha.OnTaskAvailable(1)
	beta.OnTaskAvailable(1)
	gamma.OnTaskAvailable(1)

	require.Equal(t, 4, s.Execute())
	assert.Equal(t, []string{"Indep", "Gamma", "Alpha", "Beta"}, ran)
}

func TestInitializeDetectsCycles(t *testing.T) {
	s := New()
	a := s.Register("A", func() int { return 0 })
	b := s.Register("B", func() int { return 0 })
	a.Depends("B")
	b.Depends("A")

	require.False(t, s.Initialize(), "Initialize() should fail for a cyclic graph")
	assert.Equal(t, 0, a.Priority())
	assert.Equal(t, 0, b.Priority())
}

func TestExecuteOnlyRunsDelegatesWithPendingWork(t *testing.T) {
	s := New()
	calls := 0
	d := s.Register("Solo", func() int { calls++; return 0 })
	_ = d
	require.True(t, s.Initialize())

	assert.Equal(t, 0, s.Execute(), "Execute() should report 0 with no pending tasks")
	assert.Equal(t, 0, calls, "onExecute should not have run")
}

func TestAwaitTaskWakesOnSignal(t *testing.T) {
	s := New()
	d := s.Register("D", func() int { return 1 })
	require.True(t, s.Initialize())

	done := make(chan bool, 1)
	go func() {
		done <- s.AwaitTask(time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	d.OnTaskAvailable(1)

	select {
	case ok := <-done:
		assert.True(t, ok, "AwaitTask should return true after a signal")
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitTask did not wake up after OnTaskAvailable")
	}
}

func TestAwaitTaskTimesOutWithNoWork(t *testing.T) {
	s := New()
	s.Register("D", func() int { return 0 })
	require.True(t, s.Initialize())

	assert.False(t, s.AwaitTask(20*time.Millisecond), "AwaitTask() should return false with no signaled work")
}
