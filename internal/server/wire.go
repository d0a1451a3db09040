package server

import (
	"pcodcare/internal/conversation"
	"pcodcare/internal/faq"
	"pcodcare/pkg/protocol"
)

func eventMessage(ev conversation.Event) protocol.ServerMessage {
	switch ev.Kind {
	case conversation.EventAppend:
		return protocol.AppendMessage(ev.Index, wireMessage(ev.Message))
	case conversation.EventPending:
		return protocol.PendingMessage(ev.Pending)
	case conversation.EventNotice:
		return protocol.NoticeMessage(ev.Text)
	default:
		return protocol.InputMessage(ev.Text)
	}
}

func wireMessage(m conversation.Message) protocol.Message {
	return protocol.Message{Role: string(m.Role), Content: m.Content}
}

func wireChat(s conversation.SessionState) protocol.Chat {
	timeline := make([]protocol.Message, len(s.Timeline))
	for i, m := range s.Timeline {
		timeline[i] = wireMessage(m)
	}
	return protocol.Chat{
		Timeline:   timeline,
		Pending:    s.Pending,
		Input:      s.Input,
		SearchTerm: s.SearchTerm,
	}
}

func wireEntries(entries []faq.Entry) []protocol.Entry {
	out := make([]protocol.Entry, len(entries))
	for i, e := range entries {
		out[i] = protocol.Entry{Question: e.Question, Answer: e.Answer, Category: e.Category}
	}
	return out
}
