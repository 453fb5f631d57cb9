package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirrorlab/codesync/internal/chunk"
	"github.com/mirrorlab/codesync/internal/embed"
	"github.com/mirrorlab/codesync/internal/seal"
	"github.com/mirrorlab/codesync/internal/server/index"
	"github.com/mirrorlab/codesync/internal/server/pipeline"
	"github.com/mirrorlab/codesync/internal/vector"
)

type Services struct {
	Index    *index.Service
	Pipeline *pipeline.Service
	Vector   vector.Index
	Searcher *vector.Searcher
}

func NewServices(ctx context.Context, config *Config, db *sqlx.DB) (*Services, error) {
	key, err := config.sealKey()
	if err != nil {
		return nil, err
	}
	sealer, err := seal.New(key)
	if err != nil {
		return nil, fmt.Errorf("init sealer: %w", err)
	}

	provider, err := embed.NewProvider(config.Embed)
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}

	vectorIdx, err := vector.NewIndex(ctx, config.Vector)
	if err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}

	pipelineSvc := pipeline.New(chunk.New(config.ChunkMaxBytes), provider, sealer, vectorIdx)

	store, err := index.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("init index store: %w", err)
	}
	indexSvc := index.NewService(store, pipelineSvc)

	return &Services{
		Index:    indexSvc,
		Pipeline: pipelineSvc,
		Vector:   vectorIdx,
		Searcher: vector.NewSearcher(vectorIdx, sealer),
	}, nil
}
