package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse([]byte(`{"type":"submit","text":"What is PCOD?"}`))
	require.NoError(t, err)
	assert.Equal(t, ClientMessage{Type: TypeSubmit, Text: "What is PCOD?"}, m)

	m, err = Parse([]byte(`{"type":"reset"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeReset, m.Type)
}

func TestParseRejects(t *testing.T) {
	_, err := Parse([]byte(`{"type":"launch"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func encode(t *testing.T, m ServerMessage) string {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func TestTimelineMessages(t *testing.T) {
	cases := []struct {
		msg  ServerMessage
		want string
	}{
		{
			AppendMessage(0, Message{Role: "assistant", Content: "Hi"}),
			`{"type":"append","index":0,"message":{"role":"assistant","content":"Hi"}}`,
		},
		{PendingMessage(false), `{"type":"pending","pending":false}`},
		{NoticeMessage("Failed"), `{"type":"notice","text":"Failed"}`},
		{InputMessage(""), `{"type":"input","text":""}`},
	}

	for _, tc := range cases {
		assert.JSONEq(t, tc.want, encode(t, tc.msg))
	}
}

func TestStateShape(t *testing.T) {
	st := State{
		Session: "s1",
		Chat:    Chat{Timeline: []Message{{Role: "assistant", Content: "Hello"}}},
		FAQ:     FAQView{Entries: []Entry{{Question: "Q", Answer: "A", Category: "C"}}, Expanded: []string{}},
	}
	assert.JSONEq(t, `{"type":"state","state":{
		"session":"s1","voice":false,"clips":false,
		"chat":{"timeline":[{"role":"assistant","content":"Hello"}],"pending":false,"input":"","searchTerm":""},
		"faq":{"term":"","entries":[{"question":"Q","answer":"A","category":"C"}],"expanded":[]}}}`,
		encode(t, StateMessage(st)))
}

func TestHelperMessages(t *testing.T) {
	assert.JSONEq(t, `{"type":"speak","text":"hello"}`, encode(t, SpeakMessage("hello")))
	assert.JSONEq(t, `{"type":"error","text":"busy"}`, encode(t, ErrorMessage(errors.New("busy"))))

	fv := FAQView{Term: "diet", Expanded: []string{}}
	assert.JSONEq(t, `{"type":"faq","faq":{"term":"diet","entries":null,"expanded":[]}}`, encode(t, FAQMessage(fv)))
}
