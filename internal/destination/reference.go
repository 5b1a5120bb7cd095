// Package destination converts the live conversation handle a request
// arrives with into a durable, flat representation and back.
//
// Only the serialized form outlives the request that created a reminder:
// Encode runs at creation time, Decode at dispatch time, and nothing is
// shared between the two.
package destination

// ChannelAccount identifies a user or a bot on a channel.
type ChannelAccount struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ConversationAccount identifies the conversation a message belongs to.
type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

// Activity is the inbound message activity a reminder request arrives with.
// It is the live handle: valid for the duration of one request only.
type Activity struct {
	Type         string              `json:"type,omitempty"`
	ID           string              `json:"id,omitempty"`
	ChannelID    string              `json:"channelId"`
	ServiceURL   string              `json:"serviceUrl"`
	Locale       string              `json:"locale,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	Text         string              `json:"text,omitempty"`
}

// Reference is everything a transport needs to post into a conversation
// later, without the original request.
type Reference struct {
	ActivityID   string
	User         ChannelAccount
	Bot          ChannelAccount
	Conversation ConversationAccount
	ChannelID    string
	Locale       string
	ServiceURL   string
}

// ConversationReference extracts the reference for the conversation a is
// part of. The sender becomes the user and the recipient the bot, since a
// proactive message flows the other way.
func (a *Activity) ConversationReference() Reference {
	return Reference{
		ActivityID:   a.ID,
		User:         a.From,
		Bot:          a.Recipient,
		Conversation: a.Conversation,
		ChannelID:    a.ChannelID,
		Locale:       a.Locale,
		ServiceURL:   a.ServiceURL,
	}
}
