package repository

import "github.com/okian/blueprints/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSeed preloads blueprints at construction time. Duplicates are skipped.
func WithSeed(blueprints ...model.Blueprint) Option {
	return func(s *MemoryStore) {
		s.seed = append(s.seed, blueprints...)
	}
}

// DemoSeed returns the sample data the service ships with for local demos.
func DemoSeed() []model.Blueprint {
	return []model.Blueprint{
		{Author: "juan", Name: "plano-1", Points: []model.Point{}},
		{Author: "juan", Name: "plano-2", Points: []model.Point{{X: 50, Y: 50}, {X: 100, Y: 100}}},
		{Author: "maria", Name: "diseño-a", Points: []model.Point{{X: 10, Y: 10}}},
	}
}
