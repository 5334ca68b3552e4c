package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// subscribe runs bus.Subscribe in the background and returns the frames it
// sees.
func subscribe(t *testing.T, bus Bus) <-chan Frame {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan Frame, 64)
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, func(f Frame) { frames <- f })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("subscriber did not stop")
		}
	})
	return frames
}

// publishUntilSeen republishes f until a frame from its node arrives, since
// the subscription is confirmed asynchronously.
func publishUntilSeen(t *testing.T, bus Bus, frames <-chan Frame, f Frame, before func()) Frame {
	t.Helper()
	for i := 0; i < 50; i++ {
		if before != nil {
			before()
		}
		require.NoError(t, bus.Publish(context.Background(), f))
		select {
		case got := <-frames:
			return got
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("frame never arrived")
	return Frame{}
}

func TestRedisBus_RoundTrip(t *testing.T) {
	client := newRedis(t)
	bus := NewRedisBus(client, "carebridge:test", zerolog.Nop())
	frames := subscribe(t, bus)

	want := Frame{Node: "a", Topics: []string{"user:1", "conversation:1_2"}, Payload: json.RawMessage(`{"event":"new_message"}`)}
	got := publishUntilSeen(t, bus, frames, want, nil)
	require.Equal(t, want.Node, got.Node)
	require.Equal(t, want.Topics, got.Topics)
	require.JSONEq(t, string(want.Payload), string(got.Payload))
}

func TestRedisBus_SkipsMalformedFrames(t *testing.T) {
	client := newRedis(t)
	bus := NewRedisBus(client, "carebridge:test", zerolog.Nop())
	frames := subscribe(t, bus)

	garbage := func() {
		require.NoError(t, client.Publish(context.Background(), "carebridge:test", "not json").Err())
	}
	got := publishUntilSeen(t, bus, frames, Frame{Node: "b", Payload: json.RawMessage(`{}`)}, garbage)
	require.Equal(t, "b", got.Node)
}

func TestRedisBus_SubscribeStopsOnCancel(t *testing.T) {
	client := newRedis(t)
	bus := NewRedisBus(client, "carebridge:test", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Subscribe(ctx, func(Frame) {}) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return")
	}
}

// reader pumps a client connection into a channel so a test can wait with
// a timeout without breaking the connection.
func reader(conn *gorillaws.Conn) <-chan Envelope {
	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(raw, &env) == nil {
				out <- env
			}
		}
	}()
	return out
}

func TestRouter_RelaysAcrossNodes(t *testing.T) {
	client := newRedis(t)
	w := newWorld(t)
	a := w.startNode(t, NewRedisBus(client, "carebridge:relay", zerolog.Nop()), "node-a")
	b := w.startNode(t, NewRedisBus(client, "carebridge:relay", zerolog.Nop()), "node-b")

	p := w.dial(t, a, w.patient.ID, party.Patient)
	d := w.dial(t, b, w.doctor.ID, party.Doctor)
	write(t, d, EventJoinConversation, joinPayload{PartnerID: w.patient.ID.String(), PartnerType: "Patient"})
	expect(t, d, EventConversationJoined)
	events := reader(d)

	// Typing until node b's subscription is live.
	live := false
	for i := 0; i < 50 && !live; i++ {
		write(t, p, EventTypingStart, partnerPayload{PartnerID: w.doctor.ID.String()})
		select {
		case env := <-events:
			require.Equal(t, EventUserTyping, env.Event)
			live = true
		case <-time.After(50 * time.Millisecond):
		}
	}
	require.True(t, live, "relay never became live")

	write(t, p, EventSendMessage, sendPayload{ReceiverID: w.doctor.ID.String(), ReceiverType: "Doctor", Content: "across nodes"})
	sent := decodeMessage(t, expect(t, p, EventMessageSent))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-events:
			require.True(t, ok, "connection closed")
			if env.Event == EventUserTyping {
				continue
			}
			require.Equal(t, EventNewMessage, env.Event)
			require.Equal(t, sent.ID, decodeMessage(t, env).ID)
			require.GreaterOrEqual(t, testutil.ToFloat64(b.metrics.BusFrames.WithLabelValues("in")), 2.0)
			require.GreaterOrEqual(t, testutil.ToFloat64(a.metrics.BusFrames.WithLabelValues("out")), 2.0)
			return
		case <-deadline:
			t.Fatal("new_message never relayed")
		}
	}
}
