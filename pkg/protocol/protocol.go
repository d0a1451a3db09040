// Package protocol is the JSON wire format spoken between the chat widget
// and the daemon over a websocket.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client → server message types.
const (
	TypeInput  = "input"
	TypeSubmit = "submit"
	TypeVoice  = "voice"
	TypeReset  = "reset"
	TypeSearch = "search"
	TypeToggle = "toggle"
)

// Server → client message types.
const (
	TypeState   = "state"
	TypeAppend  = "append"
	TypePending = "pending"
	TypeNotice  = "notice"
	TypeSpeak   = "speak"
	TypeFAQ     = "faq"
	TypeError   = "error"
)

var ErrUnknownType = errors.New("unknown message type")

type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Parse decodes one text frame from the widget.
func Parse(data []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("decode: %w", err)
	}

	switch m.Type {
	case TypeInput, TypeSubmit, TypeVoice, TypeReset, TypeSearch, TypeToggle:
		return m, nil
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// Message is one chat turn as the widget renders it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Chat struct {
	Timeline   []Message `json:"timeline"`
	Pending    bool      `json:"pending"`
	Input      string    `json:"input"`
	SearchTerm string    `json:"searchTerm"`
}

type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// FAQView is what the widget renders in its FAQ panel.
type FAQView struct {
	Term     string   `json:"term"`
	Entries  []Entry  `json:"entries"`
	Expanded []string `json:"expanded"`
}

type State struct {
	Session string  `json:"session"`
	Voice   bool    `json:"voice"`
	Clips   bool    `json:"clips"`
	Chat    Chat    `json:"chat"`
	FAQ     FAQView `json:"faq"`
}

type ServerMessage struct {
	Type    string   `json:"type"`
	Index   *int     `json:"index,omitempty"`
	Message *Message `json:"message,omitempty"`
	Pending *bool    `json:"pending,omitempty"`
	Text    *string  `json:"text,omitempty"`
	State   *State   `json:"state,omitempty"`
	FAQ     *FAQView `json:"faq,omitempty"`
}

func StateMessage(s State) ServerMessage {
	return ServerMessage{Type: TypeState, State: &s}
}

func FAQMessage(v FAQView) ServerMessage {
	return ServerMessage{Type: TypeFAQ, FAQ: &v}
}

// AppendMessage announces the turn at index, always the last of the timeline.
func AppendMessage(index int, m Message) ServerMessage {
	return ServerMessage{Type: TypeAppend, Index: &index, Message: &m}
}

func PendingMessage(pending bool) ServerMessage {
	return ServerMessage{Type: TypePending, Pending: &pending}
}

func NoticeMessage(text string) ServerMessage {
	return ServerMessage{Type: TypeNotice, Text: &text}
}

func InputMessage(text string) ServerMessage {
	return ServerMessage{Type: TypeInput, Text: &text}
}

func SpeakMessage(text string) ServerMessage {
	return ServerMessage{Type: TypeSpeak, Text: &text}
}

func ErrorMessage(err error) ServerMessage {
	text := err.Error()
	return ServerMessage{Type: TypeError, Text: &text}
}
