package runtime

import "testing"

func TestExecutionTokenStartFromIdle(t *testing.T) {
	var tok ExecutionToken
	if tok.Status() != Idle {
		t.Fatalf("expected zero value Idle, got %v", tok.Status())
	}
	if !tok.start() {
		t.Fatalf("expected start from Idle to succeed")
	}
	if tok.Status() != Executing {
		t.Fatalf("expected Executing, got %v", tok.Status())
	}
}

func TestExecutionTokenStartTwiceFails(t *testing.T) {
	var tok ExecutionToken
	if !tok.start() {
		t.Fatalf("first start should succeed")
	}
	if tok.start() {
		t.Fatalf("second start while Executing should fail")
	}
}

func TestExecutionTokenRestartAfterStop(t *testing.T) {
	var tok ExecutionToken
	tok.start()
	if !tok.requestShutdown() {
		t.Fatalf("requestShutdown from Executing should succeed")
	}
	tok.markStopped()
	if tok.Status() != Stopped {
		t.Fatalf("expected Stopped, got %v", tok.Status())
	}
	if !tok.start() {
		t.Fatalf("expected restart from Stopped to succeed")
	}
	if tok.Status() != Executing {
		t.Fatalf("expected Executing after restart, got %v", tok.Status())
	}
}

func TestExecutionTokenOnlyOneShutdownKindWins(t *testing.T) {
	var tok ExecutionToken
	tok.start()
	if !tok.requestShutdown() {
		t.Fatalf("requestShutdown should win the race")
	}
	if tok.shutdownUnexpected() {
		t.Fatalf("shutdownUnexpected should not win once RequestedShutdown is set")
	}
	if tok.shutdownForResource() {
		t.Fatalf("shutdownForResource should not win once RequestedShutdown is set")
	}
	if tok.Status() != RequestedShutdown {
		t.Fatalf("expected RequestedShutdown to stick, got %v", tok.Status())
	}
}

func TestExecutionTokenIsShuttingDown(t *testing.T) {
	var tok ExecutionToken
	if tok.IsShuttingDown() {
		t.Fatalf("a fresh token should not report shutting down")
	}
	tok.start()
	if tok.IsShuttingDown() {
		t.Fatalf("an executing token should not report shutting down")
	}
	tok.requestShutdown()
	if !tok.IsShuttingDown() {
		t.Fatalf("a token past requestShutdown should report shutting down")
	}
}
