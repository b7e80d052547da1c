// Package update defines the Telegram Bot API update payload and its
// classification into exactly one update type. It is shared between the
// dispatch pipeline and the bot module.
package update

import "encoding/json"

// Known update types, in classification priority order.
const (
	TypeMessage                 = "message"
	TypeEditedMessage           = "edited_message"
	TypeChannelPost             = "channel_post"
	TypeEditedChannelPost       = "edited_channel_post"
	TypeBusinessConnection      = "business_connection"
	TypeBusinessMessage         = "business_message"
	TypeEditedBusinessMessage   = "edited_business_message"
	TypeDeletedBusinessMessages = "deleted_business_messages"
	TypeMessageReaction         = "message_reaction"
	TypeMessageReactionCount    = "message_reaction_count"
	TypeInlineQuery             = "inline_query"
	TypeChosenInlineResult      = "chosen_inline_result"
	TypeCallbackQuery           = "callback_query"
	TypeShippingQuery           = "shipping_query"
	TypePreCheckoutQuery        = "pre_checkout_query"
	TypePoll                    = "poll"
	TypePollAnswer              = "poll_answer"
	TypeMyChatMember            = "my_chat_member"
	TypeChatMember              = "chat_member"
	TypeChatJoinRequest         = "chat_join_request"
	TypeChatBoost               = "chat_boost"
	TypeRemovedChatBoost        = "removed_chat_boost"
)

// Update represents an incoming update from the Telegram Bot API.
// Exactly one of the optional fields is set per update; Type reports
// which one, following a fixed priority order.
type Update struct {
	UpdateID                int64              `json:"update_id"`
	Message                 *Message           `json:"message,omitempty"`
	EditedMessage           *Message           `json:"edited_message,omitempty"`
	ChannelPost             *Message           `json:"channel_post,omitempty"`
	EditedChannelPost       *Message           `json:"edited_channel_post,omitempty"`
	BusinessConnection      json.RawMessage    `json:"business_connection,omitempty"`
	BusinessMessage         *Message           `json:"business_message,omitempty"`
	EditedBusinessMessage   *Message           `json:"edited_business_message,omitempty"`
	DeletedBusinessMessages json.RawMessage    `json:"deleted_business_messages,omitempty"`
	MessageReaction         json.RawMessage    `json:"message_reaction,omitempty"`
	MessageReactionCount    json.RawMessage    `json:"message_reaction_count,omitempty"`
	InlineQuery             *InlineQuery       `json:"inline_query,omitempty"`
	ChosenInlineResult      json.RawMessage    `json:"chosen_inline_result,omitempty"`
	CallbackQuery           *CallbackQuery     `json:"callback_query,omitempty"`
	ShippingQuery           json.RawMessage    `json:"shipping_query,omitempty"`
	PreCheckoutQuery        json.RawMessage    `json:"pre_checkout_query,omitempty"`
	Poll                    *Poll              `json:"poll,omitempty"`
	PollAnswer              *PollAnswer        `json:"poll_answer,omitempty"`
	MyChatMember            *ChatMemberUpdated `json:"my_chat_member,omitempty"`
	ChatMember              *ChatMemberUpdated `json:"chat_member,omitempty"`
	ChatJoinRequest         *ChatJoinRequest   `json:"chat_join_request,omitempty"`
	ChatBoost               json.RawMessage    `json:"chat_boost,omitempty"`
	RemovedChatBoost        json.RawMessage    `json:"removed_chat_boost,omitempty"`
}

// Type returns the update's type, or "" for an unknown shape.
// When Telegram introduces new update kinds this returns ""; callers
// must treat that as non-fatal.
func (u *Update) Type() string {
	switch {
	case u.Message != nil:
		return TypeMessage
	case u.EditedMessage != nil:
		return TypeEditedMessage
	case u.ChannelPost != nil:
		return TypeChannelPost
	case u.EditedChannelPost != nil:
		return TypeEditedChannelPost
	case u.BusinessConnection != nil:
		return TypeBusinessConnection
	case u.BusinessMessage != nil:
		return TypeBusinessMessage
	case u.EditedBusinessMessage != nil:
		return TypeEditedBusinessMessage
	case u.DeletedBusinessMessages != nil:
		return TypeDeletedBusinessMessages
	case u.MessageReaction != nil:
		return TypeMessageReaction
	case u.MessageReactionCount != nil:
		return TypeMessageReactionCount
	case u.InlineQuery != nil:
		return TypeInlineQuery
	case u.ChosenInlineResult != nil:
		return TypeChosenInlineResult
	case u.CallbackQuery != nil:
		return TypeCallbackQuery
	case u.ShippingQuery != nil:
		return TypeShippingQuery
	case u.PreCheckoutQuery != nil:
		return TypePreCheckoutQuery
	case u.Poll != nil:
		return TypePoll
	case u.PollAnswer != nil:
		return TypePollAnswer
	case u.MyChatMember != nil:
		return TypeMyChatMember
	case u.ChatMember != nil:
		return TypeChatMember
	case u.ChatJoinRequest != nil:
		return TypeChatJoinRequest
	case u.ChatBoost != nil:
		return TypeChatBoost
	case u.RemovedChatBoost != nil:
		return TypeRemovedChatBoost
	}
	return ""
}

// ChatID recovers a chat id usable for a reply, if the update carries one.
func (u *Update) ChatID() (int64, bool) {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID, true
	case u.EditedMessage != nil:
		return u.EditedMessage.Chat.ID, true
	case u.ChannelPost != nil:
		return u.ChannelPost.Chat.ID, true
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	case u.MyChatMember != nil:
		return u.MyChatMember.Chat.ID, true
	case u.ChatMember != nil:
		return u.ChatMember.Chat.ID, true
	case u.ChatJoinRequest != nil:
		return u.ChatJoinRequest.Chat.ID, true
	}
	return 0, false
}

// SenderID recovers the id of the user who originated the update, if any.
func (u *Update) SenderID() (int64, bool) {
	var from *User
	switch {
	case u.Message != nil:
		from = u.Message.From
	case u.EditedMessage != nil:
		from = u.EditedMessage.From
	case u.CallbackQuery != nil:
		from = &u.CallbackQuery.From
	case u.InlineQuery != nil:
		from = &u.InlineQuery.From
	case u.MyChatMember != nil:
		from = &u.MyChatMember.From
	case u.ChatMember != nil:
		from = &u.ChatMember.From
	case u.ChatJoinRequest != nil:
		from = &u.ChatJoinRequest.From
	}
	if from == nil {
		return 0, false
	}
	return from.ID, true
}

// Message represents a Telegram message.
type Message struct {
	MessageID       int64           `json:"message_id"`
	From            *User           `json:"from,omitempty"`
	Chat            Chat            `json:"chat"`
	Date            int64           `json:"date"`
	Text            string          `json:"text,omitempty"`
	Entities        []MessageEntity `json:"entities,omitempty"`
	Caption         string          `json:"caption,omitempty"`
	ReplyToMessage  *Message        `json:"reply_to_message,omitempty"`
	MessageThreadID int64           `json:"message_thread_id,omitempty"`
	Contact         *Contact        `json:"contact,omitempty"`
	WebAppData      *WebAppData     `json:"web_app_data,omitempty"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// User represents a Telegram user or bot.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// MessageEntity represents a special entity in a text message.
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"`
	User   *User  `json:"user,omitempty"`
}

// Contact represents a shared phone contact.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	UserID      int64  `json:"user_id,omitempty"`
}

// WebAppData holds data sent from a Mini App back to the bot.
type WebAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}

// CallbackQuery represents an incoming callback query from an inline button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// InlineQuery represents an incoming inline query.
type InlineQuery struct {
	ID     string `json:"id"`
	From   User   `json:"from"`
	Query  string `json:"query"`
	Offset string `json:"offset"`
}

// Poll contains information about a poll.
type Poll struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	IsClosed bool   `json:"is_closed"`
}

// PollAnswer represents an answer of a user in a non-anonymous poll.
type PollAnswer struct {
	PollID    string `json:"poll_id"`
	User      *User  `json:"user,omitempty"`
	OptionIDs []int  `json:"option_ids"`
	VoterChat *Chat  `json:"voter_chat,omitempty"`
}

// ChatMemberUpdated represents changes in the status of a chat member.
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	Date          int64      `json:"date"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// ChatMember holds a user's membership status in a chat.
type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// ChatJoinRequest represents a join request sent to a chat.
type ChatJoinRequest struct {
	Chat       Chat   `json:"chat"`
	From       User   `json:"from"`
	UserChatID int64  `json:"user_chat_id"`
	Date       int64  `json:"date"`
	InviteLink string `json:"invite_link,omitempty"`
}
