package bot

import (
	"encoding/json"
	"fmt"
)

const (
	KindJoin     = "join"
	KindFollow   = "follow"
	KindMessage  = "message"
	KindPostback = "postback"
)

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

// ChatID is the key group settings are stored under: the group or room, or
// the user in a one-to-one chat.
func (s Source) ChatID() string {
	switch {
	case s.GroupID != "":
		return s.GroupID
	case s.RoomID != "":
		return s.RoomID
	default:
		return s.UserID
	}
}

func (s Source) IsGroup() bool { return s.GroupID != "" }

type Event interface {
	Kind() string
	Source() Source
	ReplyToken() string
}

type base struct {
	source     Source
	replyToken string
}

func (b base) Source() Source     { return b.source }
func (b base) ReplyToken() string { return b.replyToken }

type JoinEvent struct{ base }

func (JoinEvent) Kind() string { return KindJoin }

type FollowEvent struct{ base }

func (FollowEvent) Kind() string { return KindFollow }

type MessageEvent struct {
	base
	MessageID   string
	MessageType string
	Text        string
}

func (MessageEvent) Kind() string { return KindMessage }

type PostbackEvent struct {
	base
	Data string
}

func (PostbackEvent) Kind() string { return KindPostback }

// UnknownEvent carries any event type the bot does not act on.
type UnknownEvent struct {
	base
	Type string
}

func (e UnknownEvent) Kind() string { return e.Type }

type rawEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     Source `json:"source"`
	Message    *struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Postback *struct {
		Data string `json:"data"`
	} `json:"postback"`
}

type webhookBody struct {
	Destination string     `json:"destination"`
	Events      []rawEvent `json:"events"`
}

// ParseEvents decodes a webhook body into typed events.
func ParseEvents(body []byte) ([]Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}

	events := make([]Event, 0, len(wb.Events))
	for _, raw := range wb.Events {
		b := base{source: raw.Source, replyToken: raw.ReplyToken}
		switch raw.Type {
		case KindJoin:
			events = append(events, JoinEvent{b})
		case KindFollow:
			events = append(events, FollowEvent{b})
		case KindMessage:
			ev := MessageEvent{base: b}
			if raw.Message != nil {
				ev.MessageID = raw.Message.ID
				ev.MessageType = raw.Message.Type
				ev.Text = raw.Message.Text
			}
			events = append(events, ev)
		case KindPostback:
			ev := PostbackEvent{base: b}
			if raw.Postback != nil {
				ev.Data = raw.Postback.Data
			}
			events = append(events, ev)
		default:
			events = append(events, UnknownEvent{base: b, Type: raw.Type})
		}
	}
	return events, nil
}
