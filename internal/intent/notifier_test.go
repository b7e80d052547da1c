package intent

import (
	"testing"
	"time"
)

func TestNotifier_WatchAndNotify(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	ch1, cancel1 := n.Watch("tok")
	ch2, cancel2 := n.Watch("tok")
	defer cancel1()
	defer cancel2()

	it := &Intent{Token: "tok", UserID: "u1"}
	n.Notify("tok", it)

	for i, ch := range []<-chan *Intent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.UserID != "u1" {
				t.Fatalf("watcher %d saw %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("watcher %d never notified", i)
		}
	}
}

func TestNotifier_CancelUnsubscribes(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	ch, cancel := n.Watch("tok")
	cancel()

	n.Notify("tok", &Intent{Token: "tok"})

	select {
	case <-ch:
		t.Fatal("cancelled watcher received a notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifier_NotifyWithoutWatchers(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	// Must not panic or block.
	n.Notify("nobody", &Intent{Token: "nobody"})
}

func TestNotifier_WatchersClearedAfterNotify(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	ch, cancel := n.Watch("tok")
	defer cancel()

	n.Notify("tok", &Intent{Token: "tok"})
	<-ch

	// A second notify finds no watchers; the channel got exactly one.
	n.Notify("tok", &Intent{Token: "tok", UserID: "late"})
	select {
	case it := <-ch:
		t.Fatalf("received a second notification: %+v", it)
	case <-time.After(50 * time.Millisecond):
	}
}
