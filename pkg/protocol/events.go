// Package protocol defines the wire events exchanged with clients. Every
// payload is a JSON object with a mandatory "type" tag; the set of tags is
// closed and unknown tags are rejected at the boundary.
package protocol

import "encoding/json"

// Client -> server event types.
const (
	EventJoinGroup          = "JOIN_GROUP"
	EventSendGroupMessage   = "SEND_GROUP_MESSAGE"
	EventSendPrivateMessage = "SEND_PRIVATE_MESSAGE"
	EventTyping             = "TYPING"
)

// Server -> client event types.
const (
	EventConnectionEstablished = "CONNECTION_ESTABLISHED"
	EventHistoricalMessages    = "HISTORICAL_MESSAGES"
	EventCachedGroupMessages   = "CACHED_GROUP_MESSAGES"
	EventGroupMessage          = "GROUP_MESSAGE"
	EventPrivateMessage        = "PRIVATE_MESSAGE"
	EventUserJoined            = "USER_JOINED"
	EventUserOnline            = "USER_ONLINE"
	EventUserOffline           = "USER_OFFLINE"
	EventError                 = "ERROR"
)

// ClientEvent is the closed union of events a client may send.
type ClientEvent interface {
	clientEvent()
}

type JoinGroup struct {
	GroupID string `json:"groupId"`
}

type SendGroupMessage struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

type SendPrivateMessage struct {
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
}

type Typing struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

func (JoinGroup) clientEvent()          {}
func (SendGroupMessage) clientEvent()   {}
func (SendPrivateMessage) clientEvent() {}
func (Typing) clientEvent()             {}

// Server events carry their own type tag so they marshal directly to the
// wire format.

type ConnectionEstablishedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

func NewConnectionEstablished(userID string) ConnectionEstablishedEvent {
	return ConnectionEstablishedEvent{Type: EventConnectionEstablished, UserID: userID}
}

type HistoricalMessagesEvent struct {
	Type     string            `json:"type"`
	Messages []json.RawMessage `json:"messages"`
}

func NewHistoricalMessages(messages []json.RawMessage) HistoricalMessagesEvent {
	if messages == nil {
		messages = []json.RawMessage{}
	}
	return HistoricalMessagesEvent{Type: EventHistoricalMessages, Messages: messages}
}

type CachedGroupMessagesEvent struct {
	Type     string            `json:"type"`
	GroupID  string            `json:"groupId"`
	Messages []json.RawMessage `json:"messages"`
}

func NewCachedGroupMessages(groupID string, messages []json.RawMessage) CachedGroupMessagesEvent {
	return CachedGroupMessagesEvent{Type: EventCachedGroupMessages, GroupID: groupID, Messages: messages}
}

type GroupMessageEvent struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message"`
	SenderID string          `json:"senderId"`
}

func NewGroupMessage(message json.RawMessage, senderID string) GroupMessageEvent {
	return GroupMessageEvent{Type: EventGroupMessage, Message: message, SenderID: senderID}
}

type PrivateMessageEvent struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message"`
	SenderID string          `json:"senderId"`
}

func NewPrivateMessage(message json.RawMessage, senderID string) PrivateMessageEvent {
	return PrivateMessageEvent{Type: EventPrivateMessage, Message: message, SenderID: senderID}
}

type UserJoinedEvent struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

func NewUserJoined(userID, groupID string) UserJoinedEvent {
	return UserJoinedEvent{Type: EventUserJoined, UserID: userID, GroupID: groupID}
}

// PresenceEvent announces a user coming online or going offline.
type PresenceEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

func NewUserOnline(userID string) PresenceEvent {
	return PresenceEvent{Type: EventUserOnline, UserID: userID}
}

func NewUserOffline(userID string) PresenceEvent {
	return PresenceEvent{Type: EventUserOffline, UserID: userID}
}

type TypingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

func NewTyping(userID string, isTyping bool) TypingEvent {
	return TypingEvent{Type: EventTyping, UserID: userID, IsTyping: isTyping}
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}
