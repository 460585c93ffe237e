package messaging

import "context"

// Param is one named template parameter.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is one templated message to a single recipient.
type Message struct {
	// Recipient is the normalized number including the dialing prefix, digits only.
	Recipient     string
	TemplateName  string
	BroadcastName string
	Params        []Param
}

// Response is the decoded provider response body.
type Response map[string]any

// Sender delivers templated messages through the messaging provider.
type Sender interface {
	Send(ctx context.Context, m Message) (Response, error)
}
