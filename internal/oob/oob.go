// Package oob re-expresses the original's out-of-band status/rcon
// command path (SV_FlushRedirect's RD_PACKET/RD_CLIENT redirect modes
// in original_source/src/server/send.c) as a JWT-authenticated
// websocket admin channel, rather than a cleartext UDP command with a
// shared plaintext password.
package oob

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sauerbraten-ng/q2pro-ng/internal/authtoken"
	"github.com/sauerbraten-ng/q2pro-ng/internal/config"
)

// ClientStatus summarizes one connected client for a status report,
// pulled from the frame package's per-client bookkeeping.
type ClientStatus struct {
	ClientNum int    `json:"client_num"`
	Name      string `json:"name"`
	Rate      uint32 `json:"rate"`
	Suppress  int    `json:"suppress_count"`
}

// StatusReport mirrors the original's "status" rcon command output.
type StatusReport struct {
	Hostname string         `json:"hostname"`
	Map      string         `json:"map"`
	Framenum uint32         `json:"framenum"`
	Clients  []ClientStatus `json:"clients"`
}

// CommandHandler is implemented by the running server: Status reports
// current state, Execute runs an rcon-equivalent console command and
// returns its text output (mirroring Cmd_ExecuteString's redirected
// output capture).
type CommandHandler interface {
	Status() StatusReport
	Execute(command string) (string, error)
}

// request is one inbound admin-channel message.
type request struct {
	Type    string `json:"type"` // "status" | "exec"
	Token   string `json:"token"`
	Command string `json:"command,omitempty"`
}

// response is the reply to a request, or an asynchronously pushed
// telemetry update.
type response struct {
	Type   string        `json:"type"`
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Status *StatusReport `json:"status,omitempty"`
	Output string        `json:"output,omitempty"`
}

// Server is the websocket admin endpoint. Each connection is
// independently authenticated per message: a stale or revoked token
// fails the very next command without needing a server-side session
// table.
type Server struct {
	issuer   *authtoken.Issuer
	handler  CommandHandler
	log      *config.Logger
	upgrader websocket.Upgrader
}

// NewServer returns a Server validating tokens with issuer and
// dispatching commands to handler.
func NewServer(issuer *authtoken.Issuer, handler CommandHandler, log *config.Logger) *Server {
	return &Server{
		issuer:  issuer,
		handler: handler,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP upgrades the connection and serves requests until the
// client disconnects or sends a malformed frame.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("admin channel upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Printf("admin channel read error: %v", err)
			}
			return
		}

		resp := s.handle(req)
		if err := conn.WriteJSON(resp); err != nil {
			s.log.Printf("admin channel write error: %v", err)
			return
		}
	}
}

func (s *Server) handle(req request) response {
	if _, err := s.issuer.Validate(req.Token); err != nil {
		return response{Type: req.Type, OK: false, Error: fmt.Sprintf("unauthorized: %v", err)}
	}

	switch req.Type {
	case "status":
		st := s.handler.Status()
		return response{Type: "status", OK: true, Status: &st}

	case "exec":
		out, err := s.handler.Execute(req.Command)
		if err != nil {
			return response{Type: "exec", OK: false, Error: err.Error()}
		}
		return response{Type: "exec", OK: true, Output: out}

	default:
		return response{Type: req.Type, OK: false, Error: "unknown request type"}
	}
}
