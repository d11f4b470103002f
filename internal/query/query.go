// Package query reads customer journeys back out of the store and renders
// them as laid-out hand-off graphs.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/wjkennedy/cjm/internal/graph"
	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/layout"
	"github.com/wjkennedy/cjm/internal/store"
)

// Service answers journey queries against a store.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Service. A nil logger defaults to slog.Default().
func New(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// Journey returns the steps of customerID under version, ascending by
// timestamp. Steps with equal timestamps keep store order. A customer with
// no steps yields an empty slice and no error.
func (s *Service) Journey(ctx context.Context, customerID, version string) ([]journey.Step, error) {
	steps, err := s.store.StepsForCustomer(ctx, customerID, version)
	if err != nil {
		return nil, fmt.Errorf("journey %s@%s: %w", customerID, version, err)
	}
	if steps == nil {
		steps = []journey.Step{}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Timestamp.Before(steps[j].Timestamp)
	})
	return steps, nil
}

// Customers lists the distinct ids of customers that have at least one step.
func (s *Service) Customers(ctx context.Context) ([]string, error) {
	ids, err := s.store.CustomerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return ids, nil
}

// Map builds, lays out and serializes the hand-off graph of one journey.
func (s *Service) Map(ctx context.Context, customerID, version string, opts ...layout.Option) (layout.Render, error) {
	steps, err := s.Journey(ctx, customerID, version)
	if err != nil {
		return layout.Render{}, err
	}

	g := graph.Build(steps)
	render, err := layout.Serialize(g, layout.Spring(g, opts...))
	if err != nil {
		return layout.Render{}, fmt.Errorf("map %s@%s: %w", customerID, version, err)
	}

	s.logger.Debug("journey mapped",
		"customer_id", customerID,
		"version", version,
		"steps", len(steps),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"placeholders", g.PlaceholderCount())
	return render, nil
}

// Figure is Map followed by layout.NewFigure.
func (s *Service) Figure(ctx context.Context, customerID, version, title string, opts ...layout.Option) (layout.Figure, error) {
	render, err := s.Map(ctx, customerID, version, opts...)
	if err != nil {
		return layout.Figure{}, err
	}
	return layout.NewFigure(render, title), nil
}
