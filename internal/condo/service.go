// Package condo manages the condo records that group goals, and resolves
// which agent fills each board role.
package condo

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// Store is the persistence surface the service needs.
type Store interface {
	Update(fn func(b *board.Board) error) error
	View(fn func(b *board.Board) error) error
	NewID(prefix string) string
}

// Service implements condo CRUD on top of the board store.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a condo service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "condo").Logger(),
	}
}

// UpdateFields are the caller-settable condo attributes. Nil fields are left
// unchanged.
type UpdateFields struct {
	Name        *string
	Description *string
	Color       *string
}

// Create adds a condo with the given name.
func (s *Service) Create(name, description, color string) (*board.Condo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("name", "is required")
	}

	var created *board.Condo
	err := s.store.Update(func(b *board.Board) error {
		for _, c := range b.Condos {
			if strings.EqualFold(c.Name, name) {
				return apperrors.NewValidation("name", "already in use")
			}
		}
		now := time.Now().UnixMilli()
		created = &board.Condo{
			ID:          s.store.NewID("condo"),
			Name:        name,
			Description: description,
			Color:       color,
			CreatedAtMs: now,
			UpdatedAtMs: now,
		}
		b.Condos = append(b.Condos, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("condo_id", created.ID).Str("name", name).Msg("condo created")
	return created, nil
}

// Update applies the non-nil fields to the condo.
func (s *Service) Update(id string, fields UpdateFields) (*board.Condo, error) {
	if fields.Name != nil && strings.TrimSpace(*fields.Name) == "" {
		return nil, apperrors.NewValidation("name", "cannot be empty")
	}

	var updated *board.Condo
	err := s.store.Update(func(b *board.Board) error {
		c := b.FindCondo(id)
		if c == nil {
			return apperrors.NewNotFound("condo", id)
		}
		if fields.Name != nil {
			name := strings.TrimSpace(*fields.Name)
			for _, other := range b.Condos {
				if other.ID != c.ID && strings.EqualFold(other.Name, name) {
					return apperrors.NewValidation("name", "already in use")
				}
			}
			c.Name = name
		}
		if fields.Description != nil {
			c.Description = *fields.Description
		}
		if fields.Color != nil {
			c.Color = *fields.Color
		}
		c.UpdatedAtMs = time.Now().UnixMilli()
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns all condos.
func (s *Service) List() ([]*board.Condo, error) {
	var out []*board.Condo
	err := s.store.View(func(b *board.Board) error {
		out = append(out, b.Condos...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one condo by id.
func (s *Service) Get(id string) (*board.Condo, error) {
	var out *board.Condo
	err := s.store.View(func(b *board.Board) error {
		out = b.FindCondo(id)
		if out == nil {
			return apperrors.NewNotFound("condo", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the condo. Goals bound to it are kept and detached, so a
// condo deletion never destroys work.
func (s *Service) Delete(id string) error {
	err := s.store.Update(func(b *board.Board) error {
		idx := -1
		for i, c := range b.Condos {
			if c.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.NewNotFound("condo", id)
		}
		b.Condos = append(b.Condos[:idx], b.Condos[idx+1:]...)

		for _, g := range b.Goals {
			if g.CondoID == id {
				g.CondoID = ""
				g.UpdatedAtMs = time.Now().UnixMilli()
			}
		}
		for key, condoID := range b.SessionCondos {
			if condoID == id {
				delete(b.SessionCondos, key)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("condo_id", id).Msg("condo deleted")
	return nil
}
