package natsclient

import (
	"context"
	stderrors "errors"
)

// ErrNoReply is returned by Msg.Respond when the sender did not ask for a reply
var ErrNoReply = stderrors.New("message has no reply subject")

// Msg is a message delivered to a subscription handler.
type Msg struct {
	Subject string
	Reply   string
	Data    []byte

	respond func([]byte) error
}

// NewMsg builds a Msg whose Respond publishes through respond.
// Transports other than Client use it to deliver messages to handlers.
func NewMsg(subject, reply string, data []byte, respond func([]byte) error) *Msg {
	return &Msg{Subject: subject, Reply: reply, Data: data, respond: respond}
}

// Respond replies to a request message.
func (m *Msg) Respond(data []byte) error {
	if m.Reply == "" || m.respond == nil {
		return ErrNoReply
	}
	return m.respond(data)
}

// MsgHandler processes one message. The context carries a per-message deadline.
type MsgHandler func(ctx context.Context, msg *Msg)

// Subscription is an active interest in a subject.
type Subscription interface {
	Unsubscribe() error
}
