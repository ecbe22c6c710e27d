package hub

import (
	"context"
	"errors"
	"sync"

	"bataille/internal/app"
	"bataille/internal/domain"
)

var errRoomClosed = errors.New("room closed")

type request struct {
	ctx   context.Context
	op    app.Op
	reply chan result
}

type result struct {
	match *domain.Match
	err   error
}

// Room owns one live match. Its goroutine is the only writer of the match, so
// intents and supervision ticks for the same game are applied one at a time.
type Room struct {
	id       string
	hub      *Hub
	match    *domain.Match
	requests chan request
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newRoom(h *Hub, m *domain.Match) *Room {
	return &Room{
		id:       m.ID,
		hub:      h,
		match:    m,
		requests: make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (room *Room) run() {
	defer close(room.done)
	for {
		select {
		case req := <-room.requests:
			res := room.apply(req)
			req.reply <- res
			if room.match.Phase == domain.PhaseGameOver {
				room.hub.removeRoom(room)
				return
			}
		case <-room.stop:
			return
		}
	}
}

func (room *Room) apply(req request) result {
	ctx := context.WithoutCancel(req.ctx)
	next, events, err := app.Commit(ctx, room.hub.repo, room.match, room.hub.clock.Now(), req.op)
	if errors.Is(err, app.ErrCommitFailed) {
		room.hub.log.WithField("game_id", room.id).WithError(err).Error("commit failed")
	}
	room.match = next
	if len(events) == 0 {
		// Rejected or idle: nothing was committed, so there is no new state to report.
		return result{err: err}
	}
	room.hub.publish(ctx, next, events)
	return result{match: next.Clone(), err: err}
}

// submit hands op to the room goroutine and waits for the outcome.
func (room *Room) submit(ctx context.Context, op app.Op) (*domain.Match, error) {
	reply := make(chan result, 1)
	select {
	case room.requests <- request{ctx: ctx, op: op, reply: reply}:
	case <-room.done:
		return nil, errRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res := <-reply
	return res.match, res.err
}

func (room *Room) close() {
	room.stopOnce.Do(func() { close(room.stop) })
	<-room.done
}
