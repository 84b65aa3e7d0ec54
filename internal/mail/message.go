package mail

import "context"

// Purpose selects the template a message is rendered with.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Message is a queued e-mail job. Context feeds the template.
type Message struct {
	To      string            `json:"to"`
	Subject string            `json:"subject,omitempty"`
	Purpose Purpose           `json:"purpose"`
	Context map[string]string `json:"context,omitempty"`
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Outbox accepts messages for asynchronous delivery.
type Outbox interface {
	Enqueue(ctx context.Context, msg Message) error
}
