package domain

// ChannelType identifies the medium a message arrived through or is sent over.
type ChannelType string

const (
	ChannelDashboard ChannelType = "dashboard"
	ChannelPortal    ChannelType = "portal"
	ChannelWidget    ChannelType = "widget"
	ChannelEmail     ChannelType = "email"
	ChannelAPI       ChannelType = "api"
	ChannelSMS       ChannelType = "sms"
	ChannelSlack     ChannelType = "slack"
)

// SupportedChannels lists every channel the ingest pipeline accepts.
var SupportedChannels = []ChannelType{
	ChannelDashboard,
	ChannelPortal,
	ChannelWidget,
	ChannelEmail,
	ChannelAPI,
	ChannelSMS,
	ChannelSlack,
}

// IsValidChannel reports whether the given channel is supported.
func IsValidChannel(channel ChannelType) bool {
	for _, candidate := range SupportedChannels {
		if candidate == channel {
			return true
		}
	}
	return false
}

// MetadataIDKey returns the customer metadata key that stores the
// channel-scoped external identity, e.g. "sms_id" or "slack_id".
func (c ChannelType) MetadataIDKey() string {
	return string(c) + "_id"
}
