package conversation

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the timeline. Turns are never edited once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Origin records how a submission entered the conversation.
type Origin int

const (
	OriginTyped Origin = iota
	OriginVoice
)

func (o Origin) String() string {
	switch o {
	case OriginTyped:
		return "typed"
	case OriginVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// SessionState is a snapshot of everything one conversation owns.
type SessionState struct {
	Timeline   []Message `json:"timeline"`
	Pending    bool      `json:"pending"`
	Input      string    `json:"input"`
	SearchTerm string    `json:"searchTerm"`
}

type EventKind int

const (
	// EventAppend carries a new turn; Index is always the last position.
	EventAppend EventKind = iota
	EventPending
	// EventNotice is a transient notification for the user.
	EventNotice
	EventInput
)

type Event struct {
	Kind    EventKind
	Index   int
	Message Message
	Pending bool
	Text    string
}
