package dto

// IngestRequest is the generic normalized payload accepted on /ingest.
type IngestRequest struct {
	Channel            string         `json:"channel"`
	CustomerIdentifier string         `json:"customer_identifier"`
	CustomerName       string         `json:"customer_name,omitempty"`
	MessageContent     string         `json:"message_content"`
	ExternalID         string         `json:"external_id,omitempty"`
	TicketID           string         `json:"ticket_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// EmailInboundRequest is the payload posted by the inbound-email bridge.
type EmailInboundRequest struct {
	From      string `json:"from"`
	FromName  string `json:"from_name,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
	MessageID string `json:"message_id,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}

// SMSInboundRequest mirrors the Twilio-style webhook form fields.
type SMSInboundRequest struct {
	From       string `json:"From" form:"From"`
	Body       string `json:"Body" form:"Body"`
	MessageSid string `json:"MessageSid" form:"MessageSid"`
}

// SMSStatusRequest mirrors the Twilio-style delivery status callback.
type SMSStatusRequest struct {
	MessageSid    string `json:"MessageSid" form:"MessageSid"`
	MessageStatus string `json:"MessageStatus" form:"MessageStatus"`
}

// SlackInboundRequest is the Slack Events API envelope subset we consume.
type SlackInboundRequest struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	Event     SlackInnerEvent `json:"event"`
}

// SlackInnerEvent is the message event inside the envelope.
type SlackInnerEvent struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Channel  string `json:"channel"`
	BotID    string `json:"bot_id,omitempty"`
}

// WidgetInboundRequest is the embedded chat widget payload.
type WidgetInboundRequest struct {
	VisitorID string `json:"visitor_id"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message"`
	TicketID  string `json:"ticket_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// MergeCustomersRequest is the operator action correcting duplicate
// identities.
type MergeCustomersRequest struct {
	PrimaryID   string `json:"primary_id"`
	SecondaryID string `json:"secondary_id"`
}
