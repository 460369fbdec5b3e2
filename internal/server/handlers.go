package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"instantwin/internal/game"
	"instantwin/internal/logger"
	"instantwin/internal/settings"
)

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// publicError maps engine errors onto an HTTP status and a message safe to
// show players. Unexpected errors collapse into a generic failure.
func publicError(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrInvalidParameters):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, game.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired, game.ErrInsufficientFunds.Error()
	case errors.Is(err, game.ErrUnknownGame), errors.Is(err, game.ErrRoundNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, game.ErrRoundInProgress):
		return fiber.StatusConflict, game.ErrRoundInProgress.Error()
	case errors.Is(err, game.ErrRoundSettled):
		return fiber.StatusConflict, game.ErrRoundSettled.Error()
	case errors.Is(err, game.ErrGameDisabled):
		return fiber.StatusForbidden, game.ErrGameDisabled.Error()
	case errors.Is(err, game.ErrLedgerWrite):
		// the outcome is final; the settlement is retried in the background
		return fiber.StatusAccepted, game.ErrLedgerWrite.Error()
	case errors.Is(err, game.ErrConfiguration):
		return fiber.StatusServiceUnavailable, game.ErrConfiguration.Error()
	}
	return fiber.StatusInternalServerError, "internal error"
}

func (s *FiberServer) gameError(c *fiber.Ctx, err error, round *game.Round) error {
	status, msg := publicError(err)
	if status >= fiber.StatusInternalServerError || status == fiber.StatusAccepted {
		s.log.Error("request failed", "path", c.Path(), logger.Err(err))
	}

	body := fiber.Map{"success": false, "error": msg}
	if round != nil {
		body["round"] = round.View(s.games.Now())
	}
	return c.Status(status).JSON(body)
}

func (s *FiberServer) roundResponse(c *fiber.Ctx, r *game.Round) error {
	return c.JSON(fiber.Map{
		"success": true,
		"round":   r.View(s.games.Now()),
	})
}

// parse decodes and validates a request body. On failure it returns the
// message to send back with a 400.
func (s *FiberServer) parse(c *fiber.Ctx, out any) (string, bool) {
	if err := c.BodyParser(out); err != nil {
		return "Invalid request body", false
	}
	if err := s.validate.Struct(out); err != nil {
		return validationMessage(err), false
	}
	return "", true
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	clients := 0
	if s.gameHub != nil {
		clients = s.gameHub.GetClientCount()
	}
	health := fiber.Map{
		"game": fiber.Map{
			"status":            "running",
			"games":             s.games.Games().Types(),
			"connected_clients": clients,
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	} else {
		health["database"] = fiber.Map{"status": "disabled"}
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	} else {
		health["cache"] = fiber.Map{"status": "disabled"}
	}
	return c.JSON(health)
}

func (s *FiberServer) listGamesHandler(c *fiber.Ctx) error {
	out := make([]fiber.Map, 0)
	for _, t := range s.games.Games().Types() {
		snap, err := s.settings.Snapshot(c.UserContext(), string(t))
		if err != nil {
			return s.gameError(c, err, nil)
		}
		out = append(out, fiber.Map{
			"game":      t,
			"enabled":   snap.Enabled,
			"intensity": snap.Intensity,
		})
	}
	return c.JSON(fiber.Map{"success": true, "games": out})
}

// Rounds

func (s *FiberServer) startRoundHandler(c *fiber.Ctx) error {
	var req StartRequest
	if msg, ok := s.parse(c, &req); !ok {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	r, err := s.games.Start(c.UserContext(), req.PlayerID, game.GameType(c.Params("game")), req.Bet())
	if err != nil {
		return s.gameError(c, err, r)
	}
	return s.roundResponse(c, r)
}

func (s *FiberServer) activeRoundHandler(c *fiber.Ctx) error {
	playerID := c.Query("player_id")
	if playerID == "" {
		return fail(c, fiber.StatusBadRequest, "player_id is required")
	}

	r, err := s.games.Active(c.UserContext(), playerID, game.GameType(c.Params("game")))
	if err != nil {
		return s.gameError(c, err, r)
	}
	return s.roundResponse(c, r)
}

func (s *FiberServer) getRoundHandler(c *fiber.Ctx) error {
	playerID := c.Query("player_id")
	if playerID == "" {
		return fail(c, fiber.StatusBadRequest, "player_id is required")
	}

	r, err := s.games.Get(c.UserContext(), playerID, c.Params("roundId"))
	if err != nil {
		return s.gameError(c, err, r)
	}
	return s.roundResponse(c, r)
}

func (s *FiberServer) actionHandler(c *fiber.Ctx) error {
	var req ActionRequest
	if msg, ok := s.parse(c, &req); !ok {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	r, err := s.games.Act(c.UserContext(), req.PlayerID, c.Params("roundId"), req.Action())
	if err != nil {
		return s.gameError(c, err, r)
	}
	return s.roundResponse(c, r)
}

// Fairness

func (s *FiberServer) commitmentHandler(c *fiber.Ctx) error {
	commitment, err := s.games.Commitment(c.UserContext(), c.Params("playerId"), game.GameType(c.Params("game")))
	if err != nil {
		return s.gameError(c, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "commitment": commitment})
}

func (s *FiberServer) rotateHandler(c *fiber.Ctx) error {
	var req RotateRequest
	if len(c.Body()) > 0 {
		if msg, ok := s.parse(c, &req); !ok {
			return fail(c, fiber.StatusBadRequest, msg)
		}
	}

	reveal, next, err := s.games.Rotate(c.UserContext(), c.Params("playerId"), game.GameType(c.Params("game")), req.ClientSeed)
	if err != nil {
		return s.gameError(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"revealed":   reveal,
		"commitment": next,
	})
}

func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	var req VerifyRequest
	if msg, ok := s.parse(c, &req); !ok {
		return fail(c, fiber.StatusBadRequest, msg)
	}

	v, err := s.games.Verify(c.UserContext(), req.RoundID, req.ServerSeed)
	if err != nil {
		return s.gameError(c, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "verification": v})
}

// Players

func (s *FiberServer) getBalanceHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")

	balance, err := s.games.Balance(c.UserContext(), playerID)
	if err != nil {
		return s.gameError(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"player_id": playerID,
		"balance":   balance.StringFixed(2),
	})
}

// setBalanceHandler overrides a balance. It is only mounted outside production.
func (s *FiberServer) setBalanceHandler(c *fiber.Ctx) error {
	if !s.adminBalance {
		return fail(c, fiber.StatusForbidden, "balance override is disabled")
	}
	playerID := c.Params("playerId")

	var body BalanceRequest
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if body.Balance.IsNegative() || !body.Balance.Shift(2).IsInteger() {
		return fail(c, fiber.StatusBadRequest, "balance must be a non-negative amount in cents")
	}

	if err := s.wallet.Set(c.UserContext(), playerID, body.Balance); err != nil {
		s.log.Error("set balance", "player", playerID, logger.Err(err))
		return fail(c, fiber.StatusInternalServerError, "Failed to set balance")
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"player_id": playerID,
		"balance":   body.Balance.StringFixed(2),
		"message":   "Balance updated successfully",
	})
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	limit := HISTORY_LIMIT
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return fail(c, fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, HISTORY_LIMIT)
	}

	history, err := s.games.History(c.UserContext(), c.Params("playerId"), limit)
	if err != nil {
		return s.gameError(c, err, nil)
	}
	return c.JSON(fiber.Map{"success": true, "settlements": history})
}

// Admin

func (s *FiberServer) updateGameSettingsHandler(c *fiber.Ctx) error {
	gameType := game.GameType(c.Params("game"))
	if _, ok := s.games.Games().GetEngine(gameType); !ok {
		return fail(c, fiber.StatusNotFound, game.ErrUnknownGame.Error())
	}

	writer, ok := s.settings.(settings.Writer)
	if !ok {
		return fail(c, fiber.StatusConflict, settings.ErrReadOnly.Error())
	}

	var req GameSettingsRequest
	if msg, ok := s.parse(c, &req); !ok {
		return fail(c, fiber.StatusBadRequest, msg)
	}
	if req.Intensity == nil && req.Enabled == nil {
		return fail(c, fiber.StatusBadRequest, "nothing to update")
	}

	ctx := c.UserContext()
	if req.Intensity != nil {
		if err := writer.SetIntensity(ctx, string(gameType), *req.Intensity); err != nil {
			return s.settingsError(c, err)
		}
	}
	if req.Enabled != nil {
		if err := writer.SetEnabled(ctx, string(gameType), *req.Enabled); err != nil {
			return s.settingsError(c, err)
		}
	}

	snap, err := s.settings.Snapshot(ctx, string(gameType))
	if err != nil {
		return s.settingsError(c, err)
	}
	s.log.Info("game settings updated", "game", gameType, "intensity", snap.Intensity, "enabled", snap.Enabled)
	return c.JSON(fiber.Map{"success": true, "game": gameType, "settings": snap})
}

func (s *FiberServer) settingsError(c *fiber.Ctx, err error) error {
	if errors.Is(err, settings.ErrReadOnly) {
		return fail(c, fiber.StatusConflict, err.Error())
	}
	s.log.Error("update game settings", logger.Err(err))
	return fail(c, fiber.StatusInternalServerError, "Failed to update settings")
}
