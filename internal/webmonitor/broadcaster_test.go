package webmonitor

import (
	"bytes"
	"testing"
)

func TestBroadcasterFanout(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Close()

	id1, ch1 := fb.Subscribe()
	id2, ch2 := fb.Subscribe()
	defer fb.Unsubscribe(id1)
	defer fb.Unsubscribe(id2)

	frame := []byte("jpeg-frame")
	fb.Publish(frame)

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case got := <-ch:
			if !bytes.Equal(got, frame) {
				t.Fatalf("client %d received wrong frame", i)
			}
		default:
			t.Fatalf("client %d received nothing", i)
		}
	}
}

func TestBroadcasterReplaysLatestToNewSubscriber(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Close()

	fb.Publish([]byte("first"))

	id, ch := fb.Subscribe()
	defer fb.Unsubscribe(id)

	select {
	case got := <-ch:
		if string(got) != "first" {
			t.Fatalf("expected replay of latest frame, got %q", got)
		}
	default:
		t.Fatal("new subscriber did not receive the latest frame")
	}
}

func TestBroadcasterDropsWhenClientIsSlow(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Close()

	id, ch := fb.Subscribe()
	defer fb.Unsubscribe(id)

	// Channel buffer is 2; further publishes must not block.
	fb.Publish([]byte("a"))
	fb.Publish([]byte("b"))
	fb.Publish([]byte("c"))
	fb.Publish([]byte("d"))

	if got := string(<-ch); got != "a" {
		t.Fatalf("expected oldest buffered frame, got %q", got)
	}
	if got := string(<-ch); got != "b" {
		t.Fatalf("expected second buffered frame, got %q", got)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected overflow frames to be dropped, got %q", extra)
	default:
	}
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Close()

	id, ch := fb.Subscribe()
	fb.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if fb.ClientCount() != 0 {
		t.Fatalf("expected zero clients, got %d", fb.ClientCount())
	}

	// Publishing with no clients is a no-op, not a panic.
	fb.Publish([]byte("orphan"))
}
