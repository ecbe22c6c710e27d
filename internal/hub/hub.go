package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bataille/internal/app"
	"bataille/internal/domain"
	"bataille/internal/ports"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Feed message types.
const (
	MessageEvent = "event"
	MessageState = "state"
)

// FeedMessage is what feed subscribers receive, JSON encoded.
type FeedMessage struct {
	Type string        `json:"type"`
	Kind app.EventKind `json:"kind,omitempty"`
	Data any           `json:"data"`
}

// Hub runs every live match of the standalone server in its own Room.
type Hub struct {
	svc    *app.Service
	repo   ports.MatchRepository
	broker Broker
	clock  app.Clock
	log    logrus.FieldLogger
	newID  func() string

	mu    sync.Mutex
	rooms map[string]*Room
}

type Option func(*Hub)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c app.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

func WithIDs(newID func() string) Option {
	return func(h *Hub) { h.newID = newID }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Hub) { h.log = log }
}

func New(svc *app.Service, repo ports.MatchRepository, broker Broker, opts ...Option) *Hub {
	h := &Hub{
		svc:    svc,
		repo:   repo,
		broker: broker,
		clock:  app.SystemClock{},
		log:    logrus.StandardLogger(),
		newID:  func() string { return ulid.Make().String() },
		rooms:  make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateGame deals a new match, stores it and starts its room.
func (h *Hub) CreateGame(ctx context.Context, mode domain.Mode, creatorID, opponentID string) (*domain.Match, error) {
	m, events, err := h.svc.CreateGame(h.newID(), mode, creatorID, opponentID, h.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := h.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: %w", app.ErrCommitFailed, err)
	}

	h.adopt(m)
	h.publish(ctx, m, events)
	m = m.ViewFor(creatorID)
	h.log.WithFields(logrus.Fields{
		"game_id": m.ID,
		"mode":    m.Mode,
		"player1": m.Player1.UserID,
		"player2": m.Player2.UserID,
	}).Info("game created")
	return m, nil
}

func (h *Hub) LockCard(ctx context.Context, gameID, userID string) (*domain.Match, error) {
	return viewFor(userID)(h.do(ctx, gameID, func(m *domain.Match, now time.Time) ([]app.Event, error) {
		return h.svc.LockCard(m, userID, now)
	}))
}

func (h *Hub) UseSpecial(ctx context.Context, gameID, userID string, kind domain.Special) (*domain.Match, error) {
	return viewFor(userID)(h.do(ctx, gameID, func(m *domain.Match, now time.Time) ([]app.Event, error) {
		return h.svc.UseSpecial(m, userID, kind, now)
	}))
}

func (h *Hub) Surrender(ctx context.Context, gameID, userID string) (*domain.Match, error) {
	return viewFor(userID)(h.do(ctx, gameID, func(m *domain.Match, now time.Time) ([]app.Event, error) {
		return h.svc.Surrender(m, userID, now)
	}))
}

// Snapshot returns the current state of a game the caller takes part in.
func (h *Hub) Snapshot(ctx context.Context, gameID, userID string) (*domain.Match, error) {
	if userID == "" {
		return nil, app.ErrUnauthenticated
	}
	m, err := h.repo.Load(ctx, gameID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, app.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, app.ErrNotParticipant
	}
	return m.ViewFor(userID), nil
}

// viewFor filters a hub result down to what userID may see.
func viewFor(userID string) func(*domain.Match, error) (*domain.Match, error) {
	return func(m *domain.Match, err error) (*domain.Match, error) {
		if m != nil {
			m = m.ViewFor(userID)
		}
		return m, err
	}
}

// Subscribe opens the live feed of a game for one of its players. The returned
// cancel func must be called once the reader is done.
func (h *Hub) Subscribe(ctx context.Context, gameID, userID string) (<-chan []byte, func(), error) {
	if _, err := h.Snapshot(ctx, gameID, userID); err != nil {
		return nil, nil, err
	}
	sub := h.broker.Subscribe(ctx, gameTopic(gameID), playerTopic(gameID, userID))
	return sub.Channel, func() { h.broker.Unsubscribe(context.Background(), sub) }, nil
}

// Resume starts a room for every unfinished match the repository still holds, so the
// watchdog and match clocks keep running across restarts. Repositories that cannot list
// their live matches resume nothing.
func (h *Hub) Resume(ctx context.Context) (int, error) {
	lister, ok := h.repo.(ports.LiveMatchLister)
	if !ok {
		return 0, nil
	}
	ids, err := lister.ListLive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list live matches: %w", err)
	}
	resumed := 0
	for _, id := range ids {
		m, err := h.repo.Load(ctx, id)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			return resumed, err
		}
		if m.Phase == domain.PhaseGameOver {
			continue
		}
		h.adopt(m)
		resumed++
	}
	return resumed, nil
}

// Run drives the inactivity watchdog and match clocks until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Sweep(ctx)
		case <-ctx.Done():
			h.Close()
			return
		}
	}
}

// Sweep supervises every live match once.
func (h *Hub) Sweep(ctx context.Context) {
	for _, room := range h.liveRooms() {
		if _, err := room.submit(ctx, h.svc.Supervise); err != nil && !errors.Is(err, errRoomClosed) {
			h.log.WithField("game_id", room.id).WithError(err).Warn("supervision failed")
		}
	}
}

// Live returns the number of running rooms.
func (h *Hub) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close stops every room. Finished or not, matches stay in the repository.
func (h *Hub) Close() {
	for _, room := range h.liveRooms() {
		h.removeRoom(room)
		room.close()
	}
}

// do routes op to the room of gameID. Matches that are stored but have no room
// (after a restart) are adopted; finished ones only report why the intent is refused.
func (h *Hub) do(ctx context.Context, gameID string, op app.Op) (*domain.Match, error) {
	for {
		room, ok := h.room(gameID)
		if ok {
			m, err := room.submit(ctx, op)
			if errors.Is(err, errRoomClosed) {
				continue
			}
			return m, err
		}

		m, err := h.repo.Load(ctx, gameID)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, app.ErrGameNotFound
		}
		if err != nil {
			return nil, err
		}
		if m.Phase != domain.PhaseGameOver {
			h.adopt(m)
			continue
		}
		if _, err := op(m.Clone(), h.clock.Now()); err != nil {
			return nil, err
		}
		return nil, app.ErrGameOver
	}
}

func (h *Hub) adopt(m *domain.Match) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[m.ID]; ok {
		return
	}
	room := newRoom(h, m)
	h.rooms[m.ID] = room
	go room.run()
}

func (h *Hub) room(id string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	return room, ok
}

func (h *Hub) liveRooms() []*Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (h *Hub) removeRoom(room *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room.id] == room {
		delete(h.rooms, room.id)
	}
}

// publish fans events out to the game topic, or to the recipients' private topics,
// followed by the new snapshot of each seat.
func (h *Hub) publish(ctx context.Context, m *domain.Match, events []app.Event) {
	for _, ev := range events {
		data, err := json.Marshal(FeedMessage{Type: MessageEvent, Kind: ev.Kind, Data: ev.Payload})
		if err != nil {
			h.log.WithError(err).Error("failed to encode event")
			continue
		}
		topics := []string{gameTopic(m.ID)}
		if len(ev.Recipients) > 0 {
			topics = topics[:0]
			for _, uid := range ev.Recipients {
				topics = append(topics, playerTopic(m.ID, uid))
			}
		}
		for _, topic := range topics {
			if err := h.broker.Publish(ctx, topic, data); err != nil {
				h.log.WithField("topic", topic).WithError(err).Warn("publish failed")
			}
		}
		h.log.WithFields(logrus.Fields{"game_id": m.ID, "event": ev.Kind}).Debug("event published")
	}

	// Each seat gets its own snapshot so pending specials stay private.
	for _, seat := range m.Seats() {
		data, err := json.Marshal(FeedMessage{Type: MessageState, Data: m.ViewFor(seat.UserID)})
		if err != nil {
			h.log.WithError(err).Error("failed to encode state")
			return
		}
		if err := h.broker.Publish(ctx, playerTopic(m.ID, seat.UserID), data); err != nil {
			h.log.WithError(err).Warn("publish failed")
		}
	}
}
