// Package ipc is the control socket of the daemon. Each connection carries
// one JSON command and gets one JSON reply.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocketPath = "/tmp/pcodcare.sock"

type Command string

const (
	CmdStart  Command = "start"
	CmdStop   Command = "stop"
	CmdToggle Command = "toggle"
	CmdClear  Command = "clear"
	CmdAsk    Command = "ask" // capture one utterance, ending on silence
)

// connTimeout covers an ask: a full capture plus transcription.
const connTimeout = 2 * time.Minute

var ErrUnknownCommand = errors.New("unknown command")

func ParseCommand(s string) (Command, error) {
	switch c := Command(s); c {
	case CmdStart, CmdStop, CmdToggle, CmdClear, CmdAsk:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

type ControlMessage struct {
	Cmd Command `json:"cmd"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Handler func(ctx context.Context, msg ControlMessage) error

type Server struct {
	path    string
	ln      net.Listener
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartServer listens on path, replacing a stale socket file, and serves
// commands in the background until Close.
func StartServer(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		path:    path,
		ln:      ln,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return s, nil
}

func (s *Server) Path() string { return s.path }

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Failed to accept control connection", "err", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		writeReply(conn, err)
		return
	}

	err := s.dispatch(msg)
	if err != nil {
		log.Warn("Control command failed", "cmd", msg.Cmd, "err", err)
	}
	writeReply(conn, err)
}

func (s *Server) dispatch(msg ControlMessage) error {
	if _, err := ParseCommand(string(msg.Cmd)); err != nil {
		return err
	}
	return s.handler(s.ctx, msg)
}

func writeReply(conn net.Conn, err error) {
	r := Reply{OK: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	json.NewEncoder(conn).Encode(r)
}

// Close stops accepting, cancels running handlers and removes the socket.
func (s *Server) Close() error {
	s.cancel()
	err := s.ln.Close()
	s.wg.Wait()
	os.Remove(s.path)
	return err
}

// SendCommand delivers cmd to the daemon at path and returns its verdict.
func SendCommand(path string, cmd Command) error {
	if path == "" {
		path = DefaultSocketPath
	}

	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var r Reply
	if err := json.NewDecoder(conn).Decode(&r); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !r.OK {
		return errors.New(r.Error)
	}
	return nil
}
