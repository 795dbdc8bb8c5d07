package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/language"

	"github.com/stretchr/testify/require"
)

func TestGatewayReply(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "token")
	require.NoError(t, g.Reply(context.Background(), "rt", TextMessage("hi")))

	require.Equal(t, "/v2/bot/message/reply", gotPath)
	require.Equal(t, "Bearer token", gotAuth)
	require.Equal(t, "rt", gotBody["replyToken"])
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 1)
	require.Equal(t, map[string]any{"type": "text", "text": "hi"}, msgs[0])
}

func TestGatewayReplyCapsMessages(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []Message `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		count = len(body.Messages)
	}))
	defer srv.Close()

	msgs := make([]Message, 7)
	for i := range msgs {
		msgs[i] = TextMessage("x")
	}
	require.NoError(t, NewGateway(srv.URL, "token").Reply(context.Background(), "rt", msgs...))
	require.Equal(t, maxReplyMessages, count)
}

func TestGatewayLeaveGroup(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/v2/bot/group/missing/leave" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "token")
	require.NoError(t, g.LeaveGroup(context.Background(), "C123"))
	require.Equal(t, "/v2/bot/group/C123/leave", gotPath)

	require.Error(t, g.LeaveGroup(context.Background(), "missing"))
}

func TestGatewayWithoutTokenIsNoop(t *testing.T) {
	g := NewGateway("http://127.0.0.1:1", "")
	require.IsType(t, noopGateway{}, g)
	require.NoError(t, g.Reply(context.Background(), "rt", TextMessage("hi")))
	require.NoError(t, g.LeaveGroup(context.Background(), "G1"))
}

type countingSource struct {
	calls int
	langs []string
}

func (c *countingSource) GetLanguages(ctx context.Context, groupID string) []string {
	c.calls++
	return c.langs
}

func TestMenuMarksSelectedAndCaches(t *testing.T) {
	table, err := language.NewTable(config.DefaultLanguageTable)
	require.NoError(t, err)
	src := &countingSource{langs: []string{"en"}}
	m := NewMenu(src, table, nil)
	ctx := context.Background()

	msg := m.Render(ctx, "G1")
	require.Equal(t, "flex", msg.Type)

	b, err := json.Marshal(msg)
	require.NoError(t, err)
	require.Contains(t, string(b), `"label":"✅ 🇺🇸 英文"`)
	require.Contains(t, string(b), `"label":"🇯🇵 日文"`)
	require.Contains(t, string(b), `"data":"reset"`)

	m.Render(ctx, "G1")
	require.Equal(t, 1, src.calls)

	m.Invalidate("G1")
	m.Render(ctx, "G1")
	require.Equal(t, 2, src.calls)

	require.NoError(t, m.ForgetGroup(ctx, "G1"))
	m.Render(ctx, "G1")
	require.Equal(t, 3, src.calls)
}
