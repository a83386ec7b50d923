package oob

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sauerbraten-ng/q2pro-ng/internal/authtoken"
	"github.com/sauerbraten-ng/q2pro-ng/internal/config"
)

type fakeHandler struct {
	status StatusReport
	execFn func(string) (string, error)
}

func (f *fakeHandler) Status() StatusReport { return f.status }

func (f *fakeHandler) Execute(cmd string) (string, error) {
	return f.execFn(cmd)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStatusRequestRequiresValidToken(t *testing.T) {
	issuer := authtoken.NewIssuer([]byte("secret"), time.Minute)
	handler := &fakeHandler{status: StatusReport{Hostname: "test server", Map: "q2dm1"}}
	srv := NewServer(issuer, handler, config.NewLogger("oob", nil))

	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dial(t, ts.URL)

	if err := conn.WriteJSON(request{Type: "status", Token: "garbage"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.OK {
		t.Fatal("expected an invalid token to be rejected")
	}
}

func TestStatusRequestReturnsReport(t *testing.T) {
	issuer := authtoken.NewIssuer([]byte("secret"), time.Minute)
	handler := &fakeHandler{status: StatusReport{Hostname: "test server", Map: "q2dm1", Framenum: 42}}
	srv := NewServer(issuer, handler, config.NewLogger("oob", nil))

	ts := httptest.NewServer(srv)
	defer ts.Close()

	tok, err := issuer.Mint("admin")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	conn := dial(t, ts.URL)
	if err := conn.WriteJSON(request{Type: "status", Token: tok}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !resp.OK || resp.Status == nil {
		t.Fatalf("expected a successful status response, got %+v", resp)
	}
	if resp.Status.Hostname != "test server" || resp.Status.Framenum != 42 {
		t.Fatalf("unexpected status payload: %+v", resp.Status)
	}
}

func TestExecRequestDispatchesCommand(t *testing.T) {
	issuer := authtoken.NewIssuer([]byte("secret"), time.Minute)
	handler := &fakeHandler{
		execFn: func(cmd string) (string, error) { return "ran: " + cmd, nil },
	}
	srv := NewServer(issuer, handler, config.NewLogger("oob", nil))

	ts := httptest.NewServer(srv)
	defer ts.Close()

	tok, _ := issuer.Mint("admin")
	conn := dial(t, ts.URL)
	if err := conn.WriteJSON(request{Type: "exec", Token: tok, Command: "map q2dm3"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !resp.OK || resp.Output != "ran: map q2dm3" {
		t.Fatalf("unexpected exec response: %+v", resp)
	}
}

func TestUnknownRequestTypeIsRejected(t *testing.T) {
	issuer := authtoken.NewIssuer([]byte("secret"), time.Minute)
	handler := &fakeHandler{}
	srv := NewServer(issuer, handler, config.NewLogger("oob", nil))

	ts := httptest.NewServer(srv)
	defer ts.Close()

	tok, _ := issuer.Mint("admin")
	conn := dial(t, ts.URL)
	if err := conn.WriteJSON(request{Type: "bogus", Token: tok}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.OK {
		t.Fatal("expected an unknown request type to be rejected")
	}
}
