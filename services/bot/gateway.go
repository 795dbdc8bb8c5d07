package bot

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"fanfan-translator/pkg/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultAPIBaseURL = "https://api.line.me"

	// The Messaging API accepts at most five messages per reply.
	maxReplyMessages = 5
)

type Message struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	AltText  string `json:"altText,omitempty"`
	Contents any    `json:"contents,omitempty"`
}

func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

func FlexMessage(altText string, contents any) Message {
	return Message{Type: "flex", AltText: altText, Contents: contents}
}

type Gateway interface {
	Reply(ctx context.Context, replyToken string, messages ...Message) error
	LeaveGroup(ctx context.Context, groupID string) error
}

type lineGateway struct {
	client *resty.Client
}

// NewGateway talks to the LINE Messaging API. Without an access token it
// returns a gateway that only logs.
func NewGateway(baseURL, accessToken string) Gateway {
	if accessToken == "" {
		zap.L().Warn("[LINE] channel access token not configured, replies are disabled")
		return noopGateway{}
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &lineGateway{client: client}
}

func NewGatewayFromConfig(cfg *config.Config) Gateway {
	return NewGateway(cfg.Line.APIBaseURL, cfg.Line.ChannelAccessToken)
}

func (g *lineGateway) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	if replyToken == "" || len(messages) == 0 {
		return nil
	}
	if len(messages) > maxReplyMessages {
		messages = messages[:maxReplyMessages]
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"replyToken": replyToken,
			"messages":   messages,
		}).
		Post("/v2/bot/message/reply")
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("reply rejected: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (g *lineGateway) LeaveGroup(ctx context.Context, groupID string) error {
	resp, err := g.client.R().
		SetContext(ctx).
		Post("/v2/bot/group/" + url.PathEscape(groupID) + "/leave")
	if err != nil {
		return fmt.Errorf("failed to leave group: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("leave group rejected: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

type noopGateway struct{}

func (noopGateway) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	zap.L().Debug("[LINE] reply skipped", zap.Int("messages", len(messages)))
	return nil
}

func (noopGateway) LeaveGroup(ctx context.Context, groupID string) error {
	zap.L().Info("[LINE] leave skipped", zap.String("group_id", groupID))
	return nil
}
