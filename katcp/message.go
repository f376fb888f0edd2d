package katcp

import "strings"

// MessageType identifies the category of a KATCP message.
type MessageType int

const (
	// RequestMsgType identifies a request message ("?name").
	RequestMsgType MessageType = iota + 1
	// ReplyMsgType identifies a reply message ("!name").
	ReplyMsgType
	// InformMsgType identifies an inform message ("#name").
	InformMsgType
)

// Reply status codes carried in the first argument of a reply message.
const (
	// StatusOK indicates the request succeeded.
	StatusOK = "ok"
	// StatusFail indicates the device could not perform the request.
	StatusFail = "fail"
	// StatusInvalid indicates the request was malformed or unknown.
	StatusInvalid = "invalid"
)

// Message represents a single KATCP message: a request, reply, or inform.
//
// Message encapsulates the components of a KATCP message:
//   - typ: The message category (request, reply, or inform).
//   - name: The message name, identifying the device operation.
//   - args: The ordered string arguments. For replies, the first argument
//     carries the status code.
type Message struct {
	typ  MessageType
	name string
	args []string
}

// NewRequest creates a new request Message with the specified name and arguments.
func NewRequest(name string, args ...string) *Message {
	return &Message{typ: RequestMsgType, name: name, args: args}
}

// NewReply creates a new reply Message with the specified name and arguments.
//
// The first argument should carry the status code; see StatusOK, StatusFail
// and StatusInvalid.
func NewReply(name string, args ...string) *Message {
	return &Message{typ: ReplyMsgType, name: name, args: args}
}

// NewInform creates a new inform Message with the specified name and arguments.
func NewInform(name string, args ...string) *Message {
	return &Message{typ: InformMsgType, name: name, args: args}
}

// Type returns the message category.
func (msg *Message) Type() MessageType { return msg.typ }

// Name returns the message name.
func (msg *Message) Name() string { return msg.name }

// Arguments returns the ordered message arguments.
//
// The returned slice is owned by the message; callers that need to retain or
// mutate it should Copy the message first.
func (msg *Message) Arguments() []string { return msg.args }

// Status returns the reply status code, the first argument of the message.
// It returns an empty string if the message has no arguments.
func (msg *Message) Status() string {
	if len(msg.args) == 0 {
		return ""
	}
	return msg.args[0]
}

// OK reports whether the message carries the "ok" status code.
func (msg *Message) OK() bool { return msg.Status() == StatusOK }

// Copy returns a deep copy of the message.
func (msg *Message) Copy() *Message {
	cp := &Message{typ: msg.typ, name: msg.name}
	if msg.args != nil {
		cp.args = make([]string, len(msg.args))
		copy(cp.args, msg.args)
	}
	return cp
}

// String renders the message in the conventional "?name", "!name" or "#name"
// form with space-separated arguments.
//
// The rendering is for logs and diagnostics only; it performs no argument
// escaping and is not a wire encoding.
func (msg *Message) String() string {
	var sigil string
	switch msg.typ {
	case RequestMsgType:
		sigil = "?"
	case ReplyMsgType:
		sigil = "!"
	case InformMsgType:
		sigil = "#"
	default:
		sigil = "<invalid>"
	}

	if len(msg.args) == 0 {
		return sigil + msg.name
	}

	return sigil + msg.name + " " + strings.Join(msg.args, " ")
}
