// Package realtime terminates live client connections. It authenticates the
// handshake, gates joins and sends on the association graph, drives the
// message delivery states and fans events out to rooms and personal channels.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/bhavishy2801/CareBridge/internal/domain/chat"
	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
	"github.com/bhavishy2801/CareBridge/internal/platform/metrics"
	"github.com/bhavishy2801/CareBridge/internal/platform/presence"
	"github.com/bhavishy2801/CareBridge/internal/platform/websocket"
)

// Peers resolves who should hear about a user going offline.
type Peers interface {
	PeersOf(ctx context.Context, id uuid.UUID, kind party.Kind) ([]uuid.UUID, error)
}

type Config struct {
	SendBuffer   int
	StoreTimeout time.Duration
	Conn         websocket.Options
	Origins      []string
	// Node identifies this process on the bus. Defaults to a random id.
	Node string
}

type Deps struct {
	Hub      *websocket.Hub
	Presence *presence.Registry
	Chat     *chat.Service
	Peers    Peers
	Verifier auth.TokenVerifier
	Bus      Bus
	Metrics  *metrics.Metrics
}

type Router struct {
	hub      *websocket.Hub
	presence *presence.Registry
	chat     *chat.Service
	peers    Peers
	verifier auth.TokenVerifier
	bus      Bus
	relaying bool
	metrics  *metrics.Metrics
	upgrader *gorillaws.Upgrader
	cfg      Config
	base     context.Context
	logger   zerolog.Logger

	mu      sync.Mutex
	conns   map[presence.Ref]*gorillaws.Conn
	closing bool
	serving sync.WaitGroup
}

// NewRouter builds a router. Store calls made on behalf of connections
// derive from base, never from the connection, so a disconnect does not
// cancel an append in flight.
func NewRouter(base context.Context, d Deps, cfg Config, logger zerolog.Logger) *Router {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.Conn.PingInterval <= 0 {
		cfg.Conn = websocket.DefaultOptions()
	}
	if cfg.Node == "" {
		cfg.Node = uuid.NewString()
	}
	bus := d.Bus
	if bus == nil {
		bus = NopBus{}
	}
	_, nop := bus.(NopBus)
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Router{
		hub:      d.Hub,
		presence: d.Presence,
		chat:     d.Chat,
		peers:    d.Peers,
		verifier: d.Verifier,
		bus:      bus,
		relaying: !nop,
		metrics:  m,
		upgrader: websocket.NewUpgrader(cfg.Origins),
		cfg:      cfg,
		base:     base,
		logger:   logger.With().Str("component", "realtime").Str("node", cfg.Node).Logger(),
		conns:    make(map[presence.Ref]*gorillaws.Conn),
	}
}

func (rt *Router) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(rt.base, rt.cfg.StoreTimeout)
}

// Handle authenticates the handshake and, on success, upgrades and serves the
// connection until it closes. Authentication failures answer 401 without
// upgrading.
func (rt *Router) Handle(c echo.Context) error {
	tok := auth.TokenFromRequest(c.Request())
	if tok == "" {
		return apperr.HTTPError(apperr.Unauthenticated("No token provided"))
	}
	me, err := rt.verifier.Parse(tok)
	if err != nil {
		return apperr.HTTPError(err)
	}

	ws, err := rt.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		rt.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	rt.serve(ws, me)
	return nil
}

// track records a connection. It reports false once CloseAll has started.
func (rt *Router) track(ref presence.Ref, ws *gorillaws.Conn) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closing {
		return false
	}
	rt.conns[ref] = ws
	rt.serving.Add(1)
	return true
}

func (rt *Router) untrack(ref presence.Ref) {
	rt.mu.Lock()
	delete(rt.conns, ref)
	rt.mu.Unlock()
	rt.serving.Done()
}

// evict closes the connection behind ref. Its handler runs the normal
// disconnect path, which leaves the newer presence entry alone.
func (rt *Router) evict(ref presence.Ref) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if ws, ok := rt.conns[ref]; ok {
		_ = ws.Close()
	}
}

// CloseAll closes every live connection, refuses new ones and waits until
// every connection handler, disconnect path included, has returned.
func (rt *Router) CloseAll() {
	rt.mu.Lock()
	rt.closing = true
	for _, ws := range rt.conns {
		_ = ws.Close()
	}
	rt.mu.Unlock()
	rt.serving.Wait()
}

func (rt *Router) serve(ws *gorillaws.Conn, me auth.Identity) {
	client := websocket.NewClient(uuid.NewString(), rt.cfg.SendBuffer)
	s := &session{
		rt:     rt,
		client: client,
		me:     me,
		log: rt.logger.With().
			Str("user_id", me.ID.String()).
			Str("user_type", me.Kind.String()).
			Str("conn_id", client.ID).
			Logger(),
	}

	ref := presence.Ref(client.ID)
	if !rt.track(ref, ws) {
		_ = ws.Close()
		return
	}
	defer rt.untrack(ref)

	rt.hub.Register(client, userTopic(me.ID))
	// One live connection per user: the one replaced is closed.
	if prev, replaced := rt.presence.Connect(me.ID, ref, me.Kind); replaced {
		s.log.Debug().Str("replaced_conn_id", string(prev.Ref)).Msg("presence entry replaced")
		rt.evict(prev.Ref)
	}
	rt.metrics.Connections.Inc()
	rt.metrics.OnlineUsers.Set(float64(rt.presence.Count()))
	s.log.Info().Msg("realtime connected")

	s.markReachable()
	rt.hub.Serve(ws, client, rt.cfg.Conn, s.handle)
	rt.disconnect(s)
}

func (rt *Router) disconnect(s *session) {
	rt.metrics.Connections.Dec()
	released := rt.presence.Release(s.me.ID, presence.Ref(s.client.ID))
	rt.metrics.OnlineUsers.Set(float64(rt.presence.Count()))
	s.log.Info().Bool("released", released).Msg("realtime disconnected")
	if !released {
		// A newer connection owns the presence entry.
		return
	}

	ctx, cancel := rt.storeCtx()
	defer cancel()
	peers, err := rt.peers.PeersOf(ctx, s.me.ID, s.me.Kind)
	if err != nil {
		s.log.Error().Err(err).Msg("resolve peers for offline notice")
		return
	}
	if len(peers) == 0 {
		return
	}
	topics := lo.Map(peers, func(id uuid.UUID, _ int) string { return userTopic(id) })
	rt.fanout(ctx, topics, EventUserOffline, userRef{UserID: s.me.ID}, nil)
}

// fanout delivers an event to local subscribers of topics, except one
// connection, and relays it to other processes.
func (rt *Router) fanout(ctx context.Context, topics []string, event string, data any, except *websocket.Client) {
	frame, err := encode(event, data)
	if err != nil {
		rt.logger.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	rt.hub.BroadcastTopics(topics, frame, except)
	if !rt.relaying {
		return
	}
	if err := rt.bus.Publish(ctx, Frame{Node: rt.cfg.Node, Topics: topics, Payload: frame}); err != nil {
		rt.logger.Warn().Err(err).Str("event", event).Msg("bus publish failed")
		return
	}
	rt.metrics.BusFrames.WithLabelValues("out").Inc()
}

// Run relays frames published by other processes to local connections until
// ctx is done.
func (rt *Router) Run(ctx context.Context) error {
	return rt.bus.Subscribe(ctx, func(f Frame) {
		if f.Node == rt.cfg.Node {
			return
		}
		rt.metrics.BusFrames.WithLabelValues("in").Inc()
		rt.hub.BroadcastTopics(f.Topics, f.Payload, nil)
	})
}

func (rt *Router) deliver(ctx context.Context, m *chat.Message, except *websocket.Client) {
	rt.metrics.MessagesStored.WithLabelValues(string(m.Status)).Inc()
	topics := []string{userTopic(m.ReceiverID), roomTopic(m.ConversationID)}
	rt.fanout(ctx, topics, EventNewMessage, newMessage{Message: m}, except)
}

// NotifyMessage pushes a message stored through the REST surface to live
// connections of its receiver and room.
func (rt *Router) NotifyMessage(ctx context.Context, m *chat.Message) {
	rt.deliver(ctx, m, nil)
}

// NotifyRead tells partnerID that readerID caught up on the conversation.
func (rt *Router) NotifyRead(ctx context.Context, conversationID string, readerID, partnerID uuid.UUID) {
	rt.fanout(ctx, []string{userTopic(partnerID)}, EventMessagesMarkedRead,
		messagesMarkedRead{ConversationID: conversationID, ReadBy: readerID}, nil)
}
