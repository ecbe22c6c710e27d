package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bataille/internal/app"
	"bataille/internal/bot"
	"bataille/internal/config"
	"bataille/internal/domain"
	"bataille/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Game        *domain.Match               `json:"-"` // Last committed match snapshot
	App         *app.Service                `json:"-"`
	Store       ports.MatchRepository       `json:"-"`
	Presences   map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	Tick        int64                       `json:"tick"`
	EndedAtTick int64                       `json:"ended_at_tick"` // -1 while the match is running
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return newMatchHandler(), nil
}

type matchHandler struct {
	clock    app.Clock
	newStore func(nk runtime.NakamaModule) ports.MatchRepository
}

func newMatchHandler() *matchHandler {
	return &matchHandler{
		clock: app.SystemClock{},
		newStore: func(nk runtime.NakamaModule) ports.MatchRepository {
			return NewNakamaMatchStore(nk)
		},
	}
}

// signalRequest is the intent the RPC layer forwards to the match loop through MatchSignal.
type signalRequest struct {
	Intent  string `json:"intent"`
	UserID  string `json:"user_id"`
	Special string `json:"special,omitempty"`
}

type signalResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type specialMessage struct {
	Special string `json:"specialType"`
}

type errorMessage struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MatchInit deals the game from the create_game params and stores the first snapshot.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing bataille match.")

	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load game config: %v", err)
	}
	rules, err := config.CurrentRules()
	if err != nil {
		logger.Warn("MatchInit: Invalid game config, using defaults: %v", err)
		rules = domain.DefaultRules()
	}
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		rules = config.ApplyEnv(rules, config.MapLookup(env))
	}
	if err := rules.Validate(); err != nil {
		logger.Warn("MatchInit: Invalid env overrides, using defaults: %v", err)
		rules = domain.DefaultRules()
	}

	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	mode, _ := params[paramMode].(string)
	creator, _ := params[paramCreator].(string)
	opponent, _ := params[paramOpponent].(string)

	svc := app.NewService(rules, nil)
	game, _, err := svc.CreateGame(matchID, domain.Mode(mode), creator, opponent, mh.clock.Now())
	if err != nil {
		logger.Error("MatchInit: Failed to create game: %v", err)
		return nil, 0, ""
	}

	store := mh.newStore(nk)
	if err := store.Create(ctx, game); err != nil {
		logger.Error("MatchInit: Failed to store game %s: %v", matchID, err)
		return nil, 0, ""
	}

	label, err := buildLabel(game)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	state := &MatchState{
		Game:        game,
		App:         svc,
		Store:       store,
		Presences:   make(map[string]runtime.Presence),
		EndedAtTick: -1,
	}
	logger.Info("MatchInit: Game %s created (%s) for %s vs %s", matchID, game.Mode, game.Player1.UserID, game.Player2.UserID)
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	if !matchState.Game.IsParticipant(presence.GetUserId()) {
		return state, false, "not a participant"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: Invalid match state type")
		return state
	}
	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		logger.Info("MatchJoin: User %s joined game %s", p.GetUserId(), matchState.Game.ID)
	}
	mh.sendMatchState(matchState, dispatcher, logger, presences)
	return matchState
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: Invalid match state type")
		return state
	}
	// Leaving is not surrendering; the inactivity watchdog handles absent players.
	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())
		logger.Info("MatchLeave: User %s left game %s", p.GetUserId(), matchState.Game.ID)
	}
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLoop: Invalid match state type")
		return nil
	}
	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	if err := mh.apply(ctx, matchState, dispatcher, logger, matchState.App.Supervise); err != nil {
		logger.Warn("MatchLoop: Supervision of game %s failed: %v", matchState.Game.ID, err)
	}

	if matchState.EndedAtTick >= 0 && tick-matchState.EndedAtTick >= terminateGraceTicks {
		logger.Info("MatchLoop: Game %s is over, terminating match.", matchState.Game.ID)
		return nil
	}
	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	userID := msg.GetUserId()

	var op app.Op
	switch msg.GetOpCode() {
	case OpLockCard:
		op = lockOp(state.App, userID)
	case OpUseSpecial:
		var req specialMessage
		if err := json.Unmarshal(msg.GetData(), &req); err != nil {
			logger.Warn("handleMessage: Bad special request from %s: %v", userID, err)
			mh.sendError(state, dispatcher, logger, userID, domain.ErrInvalidSpecial)
			return
		}
		op = specialOp(state.App, userID, req.Special)
	case OpSurrender:
		op = surrenderOp(state.App, userID)
	default:
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	if err := mh.apply(ctx, state, dispatcher, logger, op); err != nil {
		logger.Warn("handleMessage: User %s intent %d rejected: %v", userID, msg.GetOpCode(), err)
		mh.sendError(state, dispatcher, logger, userID, err)
	}
}

// MatchSignal runs an RPC intent inside the match loop and reports the outcome to the caller.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchSignal: Invalid match state type")
		return state, ""
	}

	var req signalRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		logger.Warn("MatchSignal: Malformed signal: %v", err)
		return matchState, encodeSignal(runtime.NewError("malformed signal", codeInvalidArgument))
	}

	var op app.Op
	switch req.Intent {
	case RpcLockCard:
		op = lockOp(matchState.App, req.UserID)
	case RpcUseSpecial:
		op = specialOp(matchState.App, req.UserID, req.Special)
	case RpcSurrender:
		op = surrenderOp(matchState.App, req.UserID)
	default:
		return matchState, encodeSignal(runtime.NewError("unknown intent", codeInvalidArgument))
	}

	err := mh.apply(ctx, matchState, dispatcher, logger, op)
	if err != nil {
		logger.Debug("MatchSignal: %s by %s rejected: %v", req.Intent, req.UserID, err)
		return matchState, encodeSignal(toRuntimeError(err))
	}
	return matchState, encodeSignal(nil)
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated, grace %d seconds", graceSeconds)
	return state
}

// apply commits op against the match snapshot and publishes the resulting events.
func (mh *matchHandler) apply(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, op app.Op) error {
	next, events, err := app.Commit(ctx, state.Store, state.Game, mh.clock.Now(), op)
	if errors.Is(err, app.ErrCommitFailed) {
		logger.Error("apply: Game %s: %v", state.Game.ID, err)
		return err
	}
	if len(events) == 0 {
		return err
	}

	state.Game = next
	if next.Phase == domain.PhaseGameOver && state.EndedAtTick < 0 {
		state.EndedAtTick = state.Tick
	}
	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.sendMatchState(state, dispatcher, logger, nil)
	mh.updateLabel(state, dispatcher, logger)
	return err
}

func lockOp(svc *app.Service, userID string) app.Op {
	return func(m *domain.Match, now time.Time) ([]app.Event, error) {
		return svc.LockCard(m, userID, now)
	}
}

func specialOp(svc *app.Service, userID, special string) app.Op {
	return func(m *domain.Match, now time.Time) ([]app.Event, error) {
		return svc.UseSpecial(m, userID, domain.Special(special), now)
	}
}

func surrenderOp(svc *app.Service, userID string) app.Op {
	return func(m *domain.Match, now time.Time) ([]app.Event, error) {
		return svc.Surrender(m, userID, now)
	}
}

var eventOpCodes = map[app.EventKind]int64{
	app.EventGameCreated:     OpGameCreated,
	app.EventSpecialSelected: OpSpecialSelected,
	app.EventCardLocked:      OpCardLocked,
	app.EventRoundResolved:   OpRoundResolved,
	app.EventChargesUnlocked: OpChargesUnlocked,
	app.EventKraken:          OpKraken,
	app.EventPlayerTimedOut:  OpPlayerTimedOut,
	app.EventGameEnded:       OpGameEnded,
}

// broadcastEvent dispatches an app event to its recipients, or to everyone when it has none.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	opCode, ok := eventOpCodes[ev.Kind]
	if !ok {
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}
	bytes, err := json.Marshal(ev.Payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// Private events never fall back to a broadcast.
		if len(recipients) == 0 {
			return
		}
	}
	if err := dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast event %v: %v", ev.Kind, err)
	}
}

// sendMatchState sends each presence its view of the match, or every connected player when presences is nil.
func (mh *matchHandler) sendMatchState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, presences []runtime.Presence) {
	if presences == nil {
		for _, p := range state.Presences {
			presences = append(presences, p)
		}
	}
	for _, p := range presences {
		bytes, err := json.Marshal(state.Game.ViewFor(p.GetUserId()))
		if err != nil {
			logger.Error("Failed to marshal match state: %v", err)
			return
		}
		if err := dispatcher.BroadcastMessage(OpMatchState, bytes, []runtime.Presence{p}, nil, true); err != nil {
			logger.Error("Failed to send match state to %s: %v", p.GetUserId(), err)
		}
	}
}

// sendError sends a game error to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, cause error) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	rtErr := toRuntimeError(cause)
	bytes, err := json.Marshal(errorMessage{
		Code:    rtErr.Code,
		Kind:    app.KindOf(cause).String(),
		Message: rtErr.Message,
	})
	if err != nil {
		logger.Error("Failed to marshal game error: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpGameError, bytes, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Error("Failed to send game error: %v", err)
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := buildLabel(state.Game)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

// buildLabel renders the searchable match label.
func buildLabel(m *domain.Match) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		"mode":    string(m.Mode),
		"phase":   string(m.Phase),
		"round":   m.RoundCount,
		"player1": m.Player1.UserID,
		"player2": m.Player2.UserID,
		"bot":     m.Player2.IsBot || bot.IsBot(m.Player2.UserID),
	})
	if err != nil {
		return "", err
	}
	bytes, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func encodeSignal(rtErr *runtime.Error) string {
	resp := signalResponse{Success: rtErr == nil}
	if rtErr != nil {
		resp.Code = rtErr.Code
		resp.Message = rtErr.Message
	}
	bytes, _ := json.Marshal(resp)
	return string(bytes)
}
