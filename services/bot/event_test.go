package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleBody = `{
  "destination": "Ubot",
  "events": [
    {"type": "join", "replyToken": "r1", "source": {"type": "group", "groupId": "G1"}},
    {"type": "follow", "replyToken": "r2", "source": {"type": "user", "userId": "U1"}},
    {"type": "message", "replyToken": "r3", "source": {"type": "group", "groupId": "G1", "userId": "U1"},
     "message": {"id": "m1", "type": "text", "text": "你好"}},
    {"type": "postback", "replyToken": "r4", "source": {"type": "group", "groupId": "G1", "userId": "U1"},
     "postback": {"data": "lang:en"}},
    {"type": "unsend", "source": {"type": "group", "groupId": "G1", "userId": "U1"}}
  ]
}`

func TestParseEvents(t *testing.T) {
	events, err := ParseEvents([]byte(sampleBody))
	require.NoError(t, err)
	require.Len(t, events, 5)

	join, ok := events[0].(JoinEvent)
	require.True(t, ok)
	require.Equal(t, "r1", join.ReplyToken())
	require.Equal(t, "G1", join.Source().ChatID())

	follow, ok := events[1].(FollowEvent)
	require.True(t, ok)
	require.Equal(t, "U1", follow.Source().ChatID())
	require.False(t, follow.Source().IsGroup())

	msg, ok := events[2].(MessageEvent)
	require.True(t, ok)
	require.Equal(t, "text", msg.MessageType)
	require.Equal(t, "你好", msg.Text)

	pb, ok := events[3].(PostbackEvent)
	require.True(t, ok)
	require.Equal(t, "lang:en", pb.Data)

	unknown, ok := events[4].(UnknownEvent)
	require.True(t, ok)
	require.Equal(t, "unsend", unknown.Kind())
}

func TestParseEventsRejectsGarbage(t *testing.T) {
	_, err := ParseEvents([]byte("not json"))
	require.Error(t, err)
}

func TestSourceChatIDPrefersGroupThenRoom(t *testing.T) {
	require.Equal(t, "G", Source{GroupID: "G", RoomID: "R", UserID: "U"}.ChatID())
	require.Equal(t, "R", Source{RoomID: "R", UserID: "U"}.ChatID())
	require.Equal(t, "U", Source{UserID: "U"}.ChatID())
}

func TestVerifySignature(t *testing.T) {
	body := []byte(sampleBody)
	sig := Sign("secret", body)

	require.True(t, VerifySignature("secret", body, sig))
	require.False(t, VerifySignature("other", body, sig))
	require.False(t, VerifySignature("secret", append(body, ' '), sig))
	require.False(t, VerifySignature("", body, Sign("", body)))
	require.False(t, VerifySignature("secret", body, ""))
}
