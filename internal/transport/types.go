package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID            int
	ChatID        int64
	FromID        int64
	FromUsername  string
	FromFirstName string
	FromLastName  string
	Text          string
	IsPrivate     bool
	ReplyTo       *MessageRef
}

type Callback struct {
	ID        string
	ChatID    int64
	FromID    int64
	MessageID int
	Data      string
}

// MessageRef identifies an existing message so it can be forwarded, copied,
// or edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard button. Exactly one of URL or Data should be
// set: URL buttons open a link, Data buttons fire a callback update. Only URL
// buttons are ever persisted (broadcast buttons), so Data stays out of JSON.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
	Data  string `json:"-"`
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       [][]Button
}

// Client is the platform-neutral chat transport. The Telegram implementation
// lives in transport/telegram; everything above it talks to this interface.
type Client interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID, text string) error

	// Forward re-sends an existing message with a "forwarded from" header.
	Forward(ctx context.Context, chatID int64, ref MessageRef) error
	// Copy re-sends an existing message without attribution, optionally
	// attaching inline URL buttons (buttons cannot ride on a forward).
	Copy(ctx context.Context, chatID int64, ref MessageRef, buttons []Button) error

	// CheckMembership reports whether userID currently belongs to groupID.
	CheckMembership(ctx context.Context, groupID, userID int64) (bool, error)
}
