package wsserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ericforgy/gowebsocket/ws"
	"github.com/ericforgy/gowebsocket/wsconn"
)

func TestServerEchoesMessages(t *testing.T) {
	srv := &Server{
		Handler: func(conn *wsconn.Conn) {
			for {
				msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if err := conn.WriteMessage(msg.Kind, msg.Data); err != nil {
					return
				}
			}
		},
	}

	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := wsconn.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if resp.StatusCode != 101 {
		t.Fatalf("status = %d; want 101", resp.StatusCode)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	if err := conn.WriteMessage(wsconn.Text, []byte("echo me")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg.Data) != "echo me" {
		t.Errorf("echoed = %q; want %q", msg.Data, "echo me")
	}
}

func TestServerRejectsNonUpgradeRequest(t *testing.T) {
	srv := &Server{Handler: func(*wsconn.Conn) {}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("status = %d; want 400", resp.StatusCode)
	}
}
