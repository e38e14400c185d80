package dispatch

import (
	"testing"

	"github.com/gorilla/websocket"
)

func TestReconnectSurvivesStaleReaderTeardown(t *testing.T) {
	r := NewWSRegistry()
	old := r.Add("d1", &websocket.Conn{})
	fresh := r.Add("d1", &websocket.Conn{})

	// the dead connection's reader fires after the driver reconnected
	r.Remove("d1", old)
	if r.sessions["d1"] != fresh {
		t.Fatal("stale remove must not drop the live session")
	}

	r.Remove("d1", fresh)
	if _, ok := r.sessions["d1"]; ok {
		t.Fatal("owning remove must drop the session")
	}
}
