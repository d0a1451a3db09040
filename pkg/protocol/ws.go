package protocol

import (
	"encoding/json"
	"errors"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// MaxFrame bounds an incoming frame; audio clips are the largest.
const MaxFrame = 8 << 20

var ErrConnClosed = errors.New("connection closed")

type IncomeKind uint

const (
	ConnClose IncomeKind = iota
	ReadFailure
	ReadText
	ReadBinary
)

type Income struct {
	Kind IncomeKind
	Msg  []byte
	Err  error
}

// Conn owns a websocket: reads happen on the caller's goroutine, writes are
// queued and flushed by a single pump goroutine.
type Conn struct {
	conn *ws.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	pumpDone  chan struct{}
}

func NewConn(conn *ws.Conn) *Conn {
	c := &Conn{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}

	conn.SetReadLimit(MaxFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	return c
}

// Send queues msg. A client that stops reading is dropped rather than
// allowed to block the conversation.
func (c *Conn) Send(msg ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		log.Warn("Send buffer full, dropping client")
		c.Close()
		return ErrConnClosed
	}
}

func (c *Conn) Read() Income {
	kind, msg, err := c.conn.ReadMessage()
	if err != nil {
		if IsClosed(err) {
			return Income{Kind: ConnClose, Err: err}
		}
		return Income{Kind: ReadFailure, Err: err}
	}

	if kind == ws.BinaryMessage {
		return Income{Kind: ReadBinary, Msg: msg}
	}

	log.Debug("Read ws", "msg", string(msg))
	return Income{Kind: ReadText, Msg: msg}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.pumpDone)
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, payload); err != nil {
				log.Debug("Write ws failed", "err", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			c.conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Close stops the write pump after it flushed queued messages, then closes
// the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		go func() {
			<-c.pumpDone
			c.conn.Close()
		}()
	})
}

func IsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure,
		ws.CloseNoStatusReceived)
}
