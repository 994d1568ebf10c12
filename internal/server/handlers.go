package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/smileynet/benchdash/internal/report"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(s.store.Stats())
}

func (s *Server) listHardware(c *fiber.Ctx) error {
	return c.JSON(s.store.Hardware())
}

func (s *Server) listGitrefs(c *fiber.Ctx) error {
	hw, err := param(c, "hardware")
	if err != nil {
		return err
	}
	return c.JSON(s.store.Gitrefs(hw))
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	hw, err := param(c, "hardware")
	if err != nil {
		return err
	}
	ref, err := param(c, "gitref")
	if err != nil {
		return err
	}
	return c.JSON(s.store.Runs(hw, ref))
}

func (s *Server) listRunsForGitref(c *fiber.Ctx) error {
	ref, err := param(c, "gitref")
	if err != nil {
		return err
	}
	return c.JSON(s.store.RunsForGitref(ref))
}

func (s *Server) lightReport(c *fiber.Ctx) error {
	id, err := runID(c)
	if err != nil {
		return err
	}
	r, ok := s.store.Run(id)
	if !ok {
		return fmt.Errorf("benchmark %s: %w", id, ErrNotFound)
	}
	return c.JSON(r)
}

// fullReport serves the report file as stored, time series included.
func (s *Server) fullReport(c *fiber.Ctx) error {
	id, err := runID(c)
	if err != nil {
		return err
	}
	path, ok := s.store.Path(id)
	if !ok {
		return fmt.Errorf("benchmark %s: %w", id, ErrNotFound)
	}
	data, err := report.ReadFull(path)
	if err != nil {
		// The run was cached but its file vanished before the next reload.
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("benchmark %s report file: %w", id, ErrNotFound)
		}
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (s *Server) trend(c *fiber.Ctx) error {
	hw, err := param(c, "hardware")
	if err != nil {
		return err
	}
	sig, err := param(c, "params_identifier")
	if err != nil {
		return err
	}
	return c.JSON(s.store.Trend(sig, hw))
}

// param returns the unescaped value of a path parameter.
func param(c *fiber.Ctx, name string) (string, error) {
	v, err := url.PathUnescape(c.Params(name))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("malformed %s: %v", name, err))
	}
	return v, nil
}

func runID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Params("uuid")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q", ErrInvalidID, raw)
	}
	return id, nil
}
