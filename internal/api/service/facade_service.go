package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"git.taler.net/nexus/internal/domain/facade"
)

type facadeService struct {
	facades facade.Repository
	logger  *slog.Logger
}

func NewFacadeService(facades facade.Repository, logger *slog.Logger) FacadeService {
	return &facadeService{facades: facades, logger: logger}
}

func (s *facadeService) Register(ctx context.Context, name, facadeType string, bankAccountID, bankConnectionID uuid.UUID, config json.RawMessage) (*facade.Facade, error) {
	f, err := facade.New(name, facadeType, bankAccountID, bankConnectionID, config)
	if err != nil {
		return nil, err
	}
	if err := s.facades.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *facadeService) List(ctx context.Context) ([]*facade.Facade, error) {
	return s.facades.List(ctx)
}
