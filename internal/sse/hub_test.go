package sse

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

func newTestHub(t *testing.T) *SSEHub {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	return NewSSEHub(log)
}

func TestBroadcastReachesSubscribedClient(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())
	channel := ArticleChannel(uuid.New())
	hub.AddChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArticleProgress, Data: "hello"})

	select {
	case msg := <-client.Outbound:
		if msg.Channel != channel || msg.Event != SSEEventArticleProgress {
			t.Fatalf("unexpected message: %+v", msg)
		}
	default:
		t.Fatalf("subscribed client should receive the broadcast")
	}
}

func TestBroadcastSkipsOtherChannels(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, ArticleChannel(uuid.New()))

	hub.Broadcast(SSEMessage{Channel: ArticleChannel(uuid.New()), Event: SSEEventArticleProgress})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("client should not receive messages for other channels, got %+v", msg)
	default:
	}
}

func TestRemoveChannelStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())
	channel := KeywordResearchChannel(uuid.New())
	hub.AddChannel(client, channel)
	hub.RemoveChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventResearchProgress})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unsubscribed client should not receive messages, got %+v", msg)
	default:
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())
	channel := ArticleChannel(uuid.New())
	hub.AddChannel(client, channel)

	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArticleProgress})
	}
	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("overflow should be dropped, buffer holds %d", len(client.Outbound))
	}
}

func TestRemoveClientClearsAllSubscriptions(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())
	a := ArticleChannel(uuid.New())
	b := KeywordResearchChannel(uuid.New())
	hub.AddChannel(client, a)
	hub.AddChannel(client, b)

	hub.RemoveClient(client)

	hub.Broadcast(SSEMessage{Channel: a})
	hub.Broadcast(SSEMessage{Channel: b})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("removed client should not receive messages, got %+v", msg)
	default:
	}
}
