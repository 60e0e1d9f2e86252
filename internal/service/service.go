// Package service wires the pipeline stages to persistence and exposes the
// run lifecycle operations.
package service

import (
	"github.com/minhduc280903/molforge/config"
	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/metrics"
	"github.com/minhduc280903/molforge/internal/pipeline"
	store "github.com/minhduc280903/molforge/internal/repository"
	"github.com/minhduc280903/molforge/policy"
)

type Service struct {
	store        store.Store
	chemService  chem.StructureService
	config       *config.Config
	policyEngine *policy.Engine
	metrics      *metrics.Metrics

	planner   *pipeline.Planner
	generator *pipeline.Generator
	ranker    *pipeline.Ranker

	queue chan string
}

func New(st store.Store, svc chem.StructureService, rules []chem.Rule, cfg *config.Config, policyEngine *policy.Engine, m *metrics.Metrics) *Service {
	search := pipeline.NewMutationSearch(svc, rules, nil)
	return &Service{
		store:        st,
		chemService:  svc,
		config:       cfg,
		policyEngine: policyEngine,
		metrics:      m,
		planner:      pipeline.NewPlanner(svc),
		generator:    pipeline.NewGenerator(svc, search),
		ranker:       pipeline.NewRanker(),
		queue:        make(chan string, cfg.QueueSize),
	}
}
