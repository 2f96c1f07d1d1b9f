package tracking

import (
	"testing"
	"time"
)

func TestPushAndFulfillSinglePeer(t *testing.T) {
	ready := 0
	svc := NewService(func() { ready++ })

	key, err := svc.Push("requestor-a", []byte("pack-1"), []string{"peer-1"})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if ready == 0 {
		t.Fatalf("expected a scheduler signal on push")
	}

	status := svc.PushResponse(key, "peer-1", []byte("response-1"))
	if status != Fulfilled {
		t.Fatalf("expected Fulfilled, got %v", status)
	}

	done := svc.ProcessFulfilledRequests()
	if len(done) != 1 {
		t.Fatalf("expected 1 fulfilled request, got %d", len(done))
	}
	if done[0].Requestor != "requestor-a" {
		t.Fatalf("requestor mismatch: %q", done[0].Requestor)
	}
	if len(done[0].Aggregates) != 1 || done[0].Aggregates[0].Identifier != "peer-1" {
		t.Fatalf("unexpected aggregates: %+v", done[0].Aggregates)
	}

	if status := svc.PushResponse(key, "peer-1", nil); status != Unexpected {
		t.Fatalf("expected Unexpected after removal, got %v", status)
	}
}

func TestPushResponseUnexpectedPeer(t *testing.T) {
	svc := NewService(nil)
	key, _ := svc.Push("requestor-a", []byte("pack"), []string{"peer-1"})

	if status := svc.PushResponse(key, "peer-stranger", nil); status != Unexpected {
		t.Fatalf("expected Unexpected for an unknown peer, got %v", status)
	}
}

func TestClusterRequestPartialFulfillmentWaitsForDeadline(t *testing.T) {
	svc := NewService(nil)
	clock := time.Now()
	svc.now = func() time.Time { return clock }

	key, err := svc.Push("requestor-a", []byte("pack"), []string{"peer-1", "peer-2"})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if status := svc.PushResponse(key, "peer-1", []byte("partial")); status != Success {
		t.Fatalf("expected Success on partial response, got %v", status)
	}
	if done := svc.ProcessFulfilledRequests(); len(done) != 0 {
		t.Fatalf("expected no fulfilled requests before the deadline, got %d", len(done))
	}

	clock = clock.Add(2 * defaultDeadline)
	done := svc.ProcessFulfilledRequests()
	if len(done) != 1 {
		t.Fatalf("expected the tracker to close out on expiry, got %d", len(done))
	}
	if len(done[0].Aggregates) != 2 {
		t.Fatalf("expected an aggregate entry for every expected peer, including the non-responder, got %d", len(done[0].Aggregates))
	}
	var gotEmpty, gotPartial bool
	for _, a := range done[0].Aggregates {
		switch a.Identifier {
		case "peer-1":
			if string(a.Pack) != "partial" {
				t.Fatalf("expected peer-1's response pack to survive, got %q", a.Pack)
			}
			gotPartial = true
		case "peer-2":
			if len(a.Pack) != 0 {
				t.Fatalf("expected peer-2's pack to be empty (never responded), got %q", a.Pack)
			}
			gotEmpty = true
		}
	}
	if !gotEmpty || !gotPartial {
		t.Fatalf("expected both peer-1 and peer-2 represented in the aggregate, got %+v", done[0].Aggregates)
	}

	if status := svc.PushResponse(key, "peer-2", []byte("late")); status != Unexpected {
		t.Fatalf("expected Unexpected for a response after the tracker closed, got %v", status)
	}
}

func TestPushResponseAfterDeadlineReturnsExpired(t *testing.T) {
	svc := NewService(nil)
	clock := time.Now()
	svc.now = func() time.Time { return clock }

	key, _ := svc.Push("requestor-a", []byte("pack"), []string{"peer-1"})
	clock = clock.Add(2 * defaultDeadline)

	if status := svc.PushResponse(key, "peer-1", nil); status != Expired {
		t.Fatalf("expected Expired, got %v", status)
	}
}
