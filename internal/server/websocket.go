package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/contrib/websocket"

	"instantwin/internal/game"
	"instantwin/internal/logger"
)

const WS_ANONYMOUS = "anonymous"

// wsRequest is a client message. Start reuses the HTTP body fields.
type wsRequest struct {
	Type    string `json:"type"`
	Game    string `json:"game"`
	RoundID string `json:"round_id"`
	StartRequest
	Kind      string `json:"kind"`
	Cell      int    `json:"cell"`
	Direction int    `json:"direction"`
}

// openRounds collects the player's unfinished rounds for the initial_state
// greeting.
func (s *FiberServer) openRounds(ctx context.Context, playerID string) []game.RoundView {
	if playerID == WS_ANONYMOUS {
		return nil
	}
	var views []game.RoundView
	for _, t := range s.games.Games().Types() {
		r, err := s.games.Active(ctx, playerID, t)
		if err != nil {
			continue
		}
		views = append(views, r.View(s.games.Now()))
	}
	return views
}

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", WS_ANONYMOUS)
	ctx := context.Background()

	s.log.Debug("ws connected", "player", userID)
	client := s.gameHub.RegisterClient(conn, userID, s.openRounds(ctx, userID))
	if client == nil {
		return
	}
	defer s.gameHub.UnregisterClient(client)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("ws read ended", "player", userID, logger.Err(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		switch req.Type {
		case "ping":
			client.Send(game.WSMessage{Type: "pong"})

		case "start":
			if userID == WS_ANONYMOUS {
				client.Send(game.WSMessage{Type: "error", Data: "user_id is required to play"})
				continue
			}
			r, err := s.games.Start(ctx, userID, game.GameType(req.Game), req.Bet())
			s.wsRound(client, r, err)

		case "action":
			if userID == WS_ANONYMOUS {
				client.Send(game.WSMessage{Type: "error", Data: "user_id is required to play"})
				continue
			}
			r, err := s.games.Act(ctx, userID, req.RoundID, game.Action{
				Kind:      req.Kind,
				Cell:      req.Cell,
				Direction: req.Direction,
			})
			s.wsRound(client, r, err)
		}
	}
}

func (s *FiberServer) wsRound(client *game.Client, r *game.Round, err error) {
	if err != nil && (r == nil || !errors.Is(err, game.ErrLedgerWrite)) {
		_, msg := publicError(err)
		client.Send(game.WSMessage{Type: "error", Data: msg})
		return
	}
	client.Send(game.WSMessage{Type: "round", Data: r.View(s.games.Now())})
}
