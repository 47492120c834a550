package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-focuspet/pkg/companion"
	"github.com/teslashibe/go-focuspet/pkg/mood"
	"github.com/teslashibe/go-focuspet/pkg/stats"
)

const (
	defaultDays = 7
	maxDays     = 365

	stopTimeout = 5 * time.Second
)

// StatsResponse combines the live machine counters with today's records.
type StatsResponse struct {
	Focus        mood.Stats       `json:"focus"`
	DistractedMs int64            `json:"distracted_ms"`
	Today        stats.DailyStats `json:"today"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "ok",
		"vision_active": s.pet.IsVisionActive(),
	})
}

func (s *Server) handlePet(c *fiber.Ctx) error {
	return c.JSON(s.pet.PetState())
}

func (s *Server) handleFocus(c *fiber.Ctx) error {
	return c.JSON(s.pet.FocusState())
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	today, err := s.pet.TodayStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(StatsResponse{
		Focus:        s.pet.FocusStats(),
		DistractedMs: s.pet.DistractedTime().Milliseconds(),
		Today:        today,
	})
}

func (s *Server) handleResetStats(c *fiber.Ctx) error {
	if err := s.pet.ResetStats(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.pet.FocusStats())
}

func (s *Server) handleDailyStats(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultDays)
	if days < 1 || days > maxDays {
		return fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 365")
	}

	recent, err := s.pet.RecentStats(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(recent)
}

func (s *Server) handleStartVision(c *fiber.Ctx) error {
	err := s.pet.StartVision(context.Background())
	if errors.Is(err, companion.ErrVisionRunning) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(s.pet.PetState())
}

func (s *Server) handleStopVision(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), stopTimeout)
	defer cancel()

	err := s.pet.StopVision(ctx)
	if errors.Is(err, companion.ErrVisionStopped) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(s.pet.PetState())
}

func (s *Server) handleGesture(c *fiber.Ctx) error {
	md, err := s.pet.TriggerGesture(c.UserContext(), c.Params("name"))
	if errors.Is(err, companion.ErrUnknownGesture) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"mood": md})
}
