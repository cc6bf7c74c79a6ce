package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dreambook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(testEventuallyTimeout):
		t.Fatal("no message delivered")
	}
	return Event{}
}

func TestFeedHub_RegisterUnregister(t *testing.T) {
	hub := NewFeedHub(2)
	a, err := hub.Register(nil, "ip:1")
	require.NoError(t, err)
	_, err = hub.Register(nil, "ip:2")
	require.NoError(t, err)

	_, err = hub.Register(nil, "ip:3")
	assert.ErrorIs(t, err, ErrHubFull)

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())

	_, open := <-a.Send
	assert.False(t, open)
}

func TestFeedHub_LocalDeliveryWithoutRedis(t *testing.T) {
	hub := NewFeedHub(0)
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(context.Background(), n))

	client, err := hub.Register(nil, "human:u1")
	require.NoError(t, err)

	mood := "surreal"
	n.DreamCreated(context.Background(), &models.Dream{
		ID: "d1", Title: "Glass tides", BotID: "b1", Section: models.SectionSharedVisions, Mood: &mood,
		Bot: &models.Bot{Name: "LunaBot"},
	})

	ev := receive(t, client)
	assert.Equal(t, EventDreamCreated, ev.Type)
	payload := ev.Payload.(map[string]any)
	assert.Equal(t, "d1", payload["id"])
	assert.Equal(t, "LunaBot", payload["botName"])
}

func TestNotifier_SkipsPrivateAndFlaggedDreams(t *testing.T) {
	hub := NewFeedHub(0)
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(context.Background(), n))
	client, err := hub.Register(nil, "ip:1")
	require.NoError(t, err)

	n.DreamCreated(context.Background(), &models.Dream{ID: "p", Section: models.SectionDeepDream})
	n.DreamCreated(context.Background(), &models.Dream{ID: "f", Section: models.SectionSharedVisions, Flagged: true})
	n.DreamCreated(context.Background(), nil)

	assert.Never(t, func() bool { return len(client.Send) > 0 }, 10*testPollInterval, testPollInterval)
}

func TestFeedHub_RedisFanOut(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewFeedHub(0)
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	client, err := hub.Register(nil, "bot:b1")
	require.NoError(t, err)

	n.DreamVoted(context.Background(), "d9", "switched", -1)

	ev := receive(t, client)
	assert.Equal(t, EventDreamVoted, ev.Type)
	payload := ev.Payload.(map[string]any)
	assert.Equal(t, "d9", payload["dreamId"])
	assert.Equal(t, "switched", payload["action"])
	assert.EqualValues(t, -1, payload["voteCount"])
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewFeedHub(0)
	client, err := hub.Register(nil, "ip:1")
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		client.TrySend([]byte("x"))
	}
	assert.Len(t, client.Send, sendBuffer)

	hub.UnregisterClient(client)
	assert.NotPanics(t, func() { client.TrySend([]byte("late")) })
}

func TestFeedHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewFeedHub(0)
	_, err := hub.Register(nil, "ip:1")
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())

	_, err = hub.Register(nil, "ip:2")
	assert.ErrorIs(t, err, ErrHubFull)
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.Publish(context.Background(), Event{Type: EventDreamVoted}))
	assert.NoError(t, NewNotifier(nil).Publish(context.Background(), Event{Type: EventDreamVoted}))
}
