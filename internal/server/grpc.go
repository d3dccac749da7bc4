package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/thraizz/crowd-server-go/internal/game"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const sourceGRPC = "grpc"

// gameServer implements CrowdGameServer on top of the engine.
type gameServer struct {
	engine        *game.Engine
	logger        *zap.Logger
	serverVersion string
}

// NewGameServer creates the game service.
func NewGameServer(engine *game.Engine, serverVersion string, logger *zap.Logger) CrowdGameServer {
	return &gameServer{
		engine:        engine,
		logger:        logger,
		serverVersion: serverVersion,
	}
}

func requireGameID(req *structpb.Struct) (string, error) {
	gameID := stringField(req, "game_id")
	if gameID == "" {
		return "", status.Error(codes.InvalidArgument, "game_id is required")
	}
	return gameID, nil
}

// StartGame creates a session. Request: {game_id?}. Response: {success, game_id}.
func (s *gameServer) StartGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := s.engine.StartGame(stringField(req, "game_id"))
	if err != nil {
		s.logger.Warn("start game failed", zap.Error(err))
		return failure(err.Error()), nil
	}
	return success(map[string]interface{}{
		"game_id":        gameID,
		"server_version": s.serverVersion,
	})
}

// GetGameView returns the view of a game. Request: {game_id, viewer?}.
func (s *gameServer) GetGameView(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requireGameID(req)
	if err != nil {
		return nil, err
	}

	viewer := side.Player
	if name := stringField(req, "viewer"); name != "" {
		parsed, ok := side.Parse(name)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown viewer %q", name)
		}
		viewer = parsed
	}

	view, err := s.engine.GetGameView(gameID, viewer)
	if err != nil {
		return failure(err.Error()), nil
	}

	value, err := toValue(view)
	if err != nil {
		s.logger.Error("failed to encode game view", zap.String("game_id", gameID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode game view")
	}
	out, err := success(nil)
	if err != nil {
		return nil, err
	}
	out.Fields["view"] = value
	return out, nil
}

// PlayCard queues a play for the human side. Request: {game_id, hand_index}.
func (s *gameServer) PlayCard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requireGameID(req)
	if err != nil {
		return nil, err
	}
	handIndex, present, err := intField(req, "hand_index")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !present {
		return nil, status.Error(codes.InvalidArgument, "hand_index is required")
	}

	if err := s.engine.PlayCard(gameID, side.Player, handIndex, sourceGRPC); err != nil {
		s.logger.Debug("play card refused",
			zap.String("game_id", gameID),
			zap.Int("hand_index", handIndex),
			zap.Error(err),
		)
		return failure(err.Error()), nil
	}
	return success(map[string]interface{}{"queued": true})
}

// Pass queues a pass for the human side. Request: {game_id}.
func (s *gameServer) Pass(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requireGameID(req)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Pass(gameID, side.Player, sourceGRPC); err != nil {
		return failure(err.Error()), nil
	}
	return success(map[string]interface{}{"queued": true})
}

// EndGame finishes a game and returns its summary. Admin only.
func (s *gameServer) EndGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requireGameID(req)
	if err != nil {
		return nil, err
	}
	summary, err := s.engine.EndGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			return failure("game not found"), nil
		}
		return failure(err.Error()), nil
	}
	return success(map[string]interface{}{"summary": summaryFields(summary)})
}

// ListGames lists running games. Admin only.
func (s *gameServer) ListGames(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	infos := s.engine.ListGames()
	games := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		games = append(games, map[string]interface{}{
			"game_id":    info.GameID,
			"status":     info.Status,
			"phase":      info.Phase,
			"active":     info.Active,
			"turn":       info.Turn,
			"ticks":      float64(info.Ticks),
			"recording":  info.Recording,
			"started_at": info.StartedAt.UTC().Format(time.RFC3339),
		})
	}
	return success(map[string]interface{}{"games": games})
}

func summaryFields(summary *game.Summary) map[string]interface{} {
	perSide := func(values [len(side.All)]int) map[string]interface{} {
		out := make(map[string]interface{}, len(side.All))
		for _, sd := range side.All {
			out[strings.ToLower(sd.String())] = values[sd]
		}
		return out
	}
	return map[string]interface{}{
		"game_id":     summary.GameID,
		"turns":       summary.Turns,
		"ticks":       float64(summary.Ticks),
		"phase":       summary.Phase,
		"active":      summary.Active,
		"crowd":       perSide(summary.Crowd),
		"hand":        perSide(summary.HandSize),
		"battlefield": perSide(summary.Battlefield),
		"deck":        perSide(summary.DeckSize),
		"replay_path": summary.ReplayPath,
		"started_at":  summary.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":    summary.EndedAt.UTC().Format(time.RFC3339),
	}
}
