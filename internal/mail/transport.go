package mail

import "context"

// Attachment is an inline file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email to a single recipient. The dispatcher fans a
// delivery out into one Message per recipient so failures stay isolated.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Transport sends email. Implementations must be safe for concurrent use; the
// worker pool sends from multiple goroutines.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}
