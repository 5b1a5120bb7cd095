package destination

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

// FormatVersion tags every encoded reference so foreign JSON objects are
// rejected instead of being mistaken for an empty reference.
const FormatVersion = "1"

// Flat keys of the encoded form.
const (
	keyVersion          = "v"
	keyActivityID       = "activityId"
	keyUserID           = "user.id"
	keyUserName         = "user.name"
	keyUserAADObjectID  = "user.aadObjectId"
	keyUserRole         = "user.role"
	keyBotID            = "bot.id"
	keyBotName          = "bot.name"
	keyBotAADObjectID   = "bot.aadObjectId"
	keyBotRole          = "bot.role"
	keyConversationID   = "conversation.id"
	keyConversationName = "conversation.name"
	keyConversationType = "conversation.conversationType"
	keyIsGroup          = "conversation.isGroup"
	keyTenantID         = "conversation.tenantId"
	keyChannelID        = "channelId"
	keyLocale           = "locale"
	keyServiceURL       = "serviceUrl"
)

// Encode serializes the conversation a belongs to. The result is a flat JSON
// object of string values with sorted keys, so equal references always
// encode to equal bytes.
func Encode(a *Activity) ([]byte, error) {
	if a == nil {
		return nil, &domain.EncodingError{Err: errors.New("nil activity")}
	}
	return EncodeReference(a.ConversationReference())
}

// EncodeReference serializes ref in the same flat form as Encode.
func EncodeReference(ref Reference) ([]byte, error) {
	if err := validate(ref); err != nil {
		return nil, &domain.EncodingError{Err: err}
	}

	flat := map[string]string{keyVersion: FormatVersion}
	put := func(k, v string) {
		if v != "" {
			flat[k] = v
		}
	}
	put(keyActivityID, ref.ActivityID)
	put(keyUserID, ref.User.ID)
	put(keyUserName, ref.User.Name)
	put(keyUserAADObjectID, ref.User.AADObjectID)
	put(keyUserRole, ref.User.Role)
	put(keyBotID, ref.Bot.ID)
	put(keyBotName, ref.Bot.Name)
	put(keyBotAADObjectID, ref.Bot.AADObjectID)
	put(keyBotRole, ref.Bot.Role)
	put(keyConversationID, ref.Conversation.ID)
	put(keyConversationName, ref.Conversation.Name)
	put(keyConversationType, ref.Conversation.ConversationType)
	if ref.Conversation.IsGroup {
		put(keyIsGroup, "true")
	}
	put(keyTenantID, ref.Conversation.TenantID)
	put(keyChannelID, ref.ChannelID)
	put(keyLocale, ref.Locale)
	put(keyServiceURL, ref.ServiceURL)

	b, err := json.Marshal(flat)
	if err != nil {
		return nil, &domain.EncodingError{Err: err}
	}
	return b, nil
}

// Decode rebuilds a Reference from bytes produced by Encode. Anything else
// (truncated JSON, nested objects, unknown versions, missing routing fields)
// fails with a *domain.DecodingError.
func Decode(b []byte) (Reference, error) {
	var flat map[string]string
	if err := json.Unmarshal(b, &flat); err != nil {
		return Reference{}, &domain.DecodingError{Err: err}
	}
	if flat == nil {
		return Reference{}, &domain.DecodingError{Err: errors.New("not a JSON object")}
	}
	if v := flat[keyVersion]; v != FormatVersion {
		return Reference{}, &domain.DecodingError{Err: fmt.Errorf("unsupported format version %q", v)}
	}

	ref := Reference{
		ActivityID: flat[keyActivityID],
		User: ChannelAccount{
			ID:          flat[keyUserID],
			Name:        flat[keyUserName],
			AADObjectID: flat[keyUserAADObjectID],
			Role:        flat[keyUserRole],
		},
		Bot: ChannelAccount{
			ID:          flat[keyBotID],
			Name:        flat[keyBotName],
			AADObjectID: flat[keyBotAADObjectID],
			Role:        flat[keyBotRole],
		},
		Conversation: ConversationAccount{
			ID:               flat[keyConversationID],
			Name:             flat[keyConversationName],
			ConversationType: flat[keyConversationType],
			TenantID:         flat[keyTenantID],
		},
		ChannelID:  flat[keyChannelID],
		Locale:     flat[keyLocale],
		ServiceURL: flat[keyServiceURL],
	}
	if s, ok := flat[keyIsGroup]; ok {
		isGroup, err := strconv.ParseBool(s)
		if err != nil {
			return Reference{}, &domain.DecodingError{Err: fmt.Errorf("%s: %w", keyIsGroup, err)}
		}
		ref.Conversation.IsGroup = isGroup
	}

	if err := validate(ref); err != nil {
		return Reference{}, &domain.DecodingError{Err: err}
	}
	return ref, nil
}

// validate checks the fields every transport needs to route a message.
func validate(ref Reference) error {
	if ref.Conversation.ID == "" || ref.ChannelID == "" || ref.ServiceURL == "" {
		return domain.ErrInvalidDestination
	}
	u, err := url.Parse(ref.ServiceURL)
	if err != nil {
		return fmt.Errorf("service url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("service url %q is not absolute", ref.ServiceURL)
	}
	return nil
}
