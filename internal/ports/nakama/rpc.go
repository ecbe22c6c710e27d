package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"bataille/internal/app"
	"bataille/internal/domain"
	"bataille/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// matchGateway is the part of runtime.NakamaModule the RPCs need to reach match handlers.
type matchGateway interface {
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
	MatchSignal(ctx context.Context, id string, data string) (string, error)
	MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize, maxSize *int, query string) ([]*api.Match, error)
}

type createGameRequest struct {
	Mode       string `json:"mode"`
	OpponentID string `json:"opponentId"`
}

type createGameResponse struct {
	GameID string `json:"gameId"`
}

type intentRequest struct {
	GameID      string `json:"gameId"`
	SpecialType string `json:"specialType,omitempty"`
}

type intentResponse struct {
	Success bool `json:"success"`
}

// GameSummary is one entry of the list_games response.
type GameSummary struct {
	GameID string `json:"gameId"`
	Label  string `json:"label"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := []struct {
		id string
		fn func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error)
	}{
		{RpcCreateGame, rpcCreateGame},
		{RpcLockCard, intentRPC(RpcLockCard)},
		{RpcUseSpecial, intentRPC(RpcUseSpecial)},
		{RpcSurrender, intentRPC(RpcSurrender)},
		{RpcListGames, rpcListGames},
	}
	for _, rpc := range rpcs {
		if err := initializer.RegisterRpc(rpc.id, rpc.fn); err != nil {
			return err
		}
	}
	return nil
}

func rpcCreateGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return createGame(ctx, logger, nk, payload)
}

func intentRPC(intent string) func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		return sendIntent(ctx, logger, nk, NewNakamaMatchStore(nk), intent, payload)
	}
}

func rpcListGames(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return listGames(ctx, logger, nk)
}

// createGame validates the request and starts an authoritative match that deals the game.
func createGame(ctx context.Context, logger runtime.Logger, gw matchGateway, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", toRuntimeError(app.ErrUnauthenticated)
	}

	var req createGameRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		return "", toRuntimeError(err)
	}
	if req.OpponentID == userID {
		return "", toRuntimeError(app.ErrInvalidOpponent)
	}

	matchID, err := gw.MatchCreate(ctx, MatchNameBataille, map[string]interface{}{
		paramMode:     string(mode),
		paramCreator:  userID,
		paramOpponent: req.OpponentID,
	})
	if err != nil {
		logger.Error("createGame [User:%s]: Failed to create match: %v", userID, err)
		return "", runtime.NewError("failed to create game", codeInternal)
	}

	logger.Info("createGame [User:%s]: Created %s game %s", userID, mode, matchID)
	b, _ := json.Marshal(createGameResponse{GameID: matchID})
	return string(b), nil
}

// sendIntent forwards an intent to the match loop so it is applied by the match's single writer.
func sendIntent(ctx context.Context, logger runtime.Logger, gw matchGateway, store ports.MatchRepository, intent, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", toRuntimeError(app.ErrUnauthenticated)
	}

	var req intentRequest
	if err := decodePayload(payload, &req); err != nil || req.GameID == "" {
		return "", runtime.NewError("gameId is required", codeInvalidArgument)
	}
	if intent == RpcUseSpecial {
		if _, err := domain.ParseSpecial(req.SpecialType); err != nil || req.SpecialType == "" {
			return "", toRuntimeError(domain.ErrInvalidSpecial)
		}
	}

	data, err := json.Marshal(signalRequest{Intent: intent, UserID: userID, Special: req.SpecialType})
	if err != nil {
		return "", runtime.NewError("failed to encode intent", codeInternal)
	}
	result, err := gw.MatchSignal(ctx, req.GameID, string(data))
	if err != nil {
		// No handler: the match either never existed or finished and was archived.
		return "", toRuntimeError(closedGameError(ctx, store, req.GameID, userID))
	}

	var resp signalResponse
	if err := json.Unmarshal([]byte(result), &resp); err != nil {
		logger.Error("sendIntent [User:%s]: Bad signal response from %s: %v", userID, req.GameID, err)
		return "", runtime.NewError("internal error", codeInternal)
	}
	if !resp.Success {
		return "", runtime.NewError(resp.Message, resp.Code)
	}

	b, _ := json.Marshal(intentResponse{Success: true})
	return string(b), nil
}

func closedGameError(ctx context.Context, store ports.MatchRepository, gameID, userID string) error {
	m, err := store.Load(ctx, gameID)
	if err != nil || m.Phase != domain.PhaseGameOver {
		return app.ErrGameNotFound
	}
	if !m.IsParticipant(userID) {
		return app.ErrNotParticipant
	}
	return app.ErrGameOver
}

// listGames returns the caller's running matches.
func listGames(ctx context.Context, logger runtime.Logger, gw matchGateway) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", toRuntimeError(app.ErrUnauthenticated)
	}

	query := fmt.Sprintf("label.player1:%q label.player2:%q", userID, userID)
	matches, err := gw.MatchList(ctx, 20, true, "", nil, nil, query)
	if err != nil {
		logger.Error("listGames [User:%s]: Failed to list matches: %v", userID, err)
		return "", runtime.NewError("failed to list games", codeInternal)
	}

	games := make([]GameSummary, 0, len(matches))
	for _, m := range matches {
		games = append(games, GameSummary{GameID: m.GetMatchId(), Label: m.GetLabel().GetValue()})
	}
	b, _ := json.Marshal(games)
	return string(b), nil
}

func decodePayload(payload string, v interface{}) error {
	if payload == "" {
		payload = "{}"
	}
	return json.Unmarshal([]byte(payload), v)
}
