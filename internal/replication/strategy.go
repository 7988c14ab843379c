package replication

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"placement/internal/config"
	"placement/internal/placement"
	"placement/internal/ring"
	"placement/internal/storage"
)

// Strategy is one replication-strategy instance. It owns the placement cache
// of a keyspace and keeps its persisted copy in sync.
type Strategy struct {
	// mu serializes mutate+flush, so a flush always sees a settled cache.
	mu       sync.Mutex
	rf       int
	cache    *placement.Cache
	store    storage.Store
	eligible Eligible
	logger   *zap.Logger
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithEligible replaces the secondary replica eligibility predicate.
func WithEligible(e Eligible) Option {
	return func(s *Strategy) {
		s.eligible = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Strategy) {
		s.logger = logger
	}
}

// NewStrategy validates the configuration and loads the persisted cache.
// Only configuration errors are returned; a cache that cannot be loaded
// is logged and replaced by whatever could be read.
func NewStrategy(ctx context.Context, cfg config.Config, store storage.Store, opts ...Option) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Strategy{
		rf:       cfg.ReplicationFactor,
		store:    store,
		eligible: EvenLastOctet,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(zap.String("keyspace", cfg.Keyspace))

	cache, err := store.Load(ctx)
	if err != nil {
		s.logger.Error("cannot load placement cache, continuing with partial cache", zap.Error(err))
	}
	if cache == nil {
		cache = placement.NewCache()
	}
	s.cache = cache
	s.trimRecords()
	return s, nil
}

// trimRecords cuts loaded records down to the replication factor,
// which may have been lowered since they were persisted.
func (s *Strategy) trimRecords() {
	for _, e := range s.cache.Entries() {
		if len(e.Record) > s.rf {
			s.logger.Warn("trimming cached placement to replication factor",
				zap.Stringer("token", e.Token), zap.Int("replicas", len(e.Record)), zap.Int("rf", s.rf))
			s.cache.Put(e.Token, e.Record[:s.rf])
		}
	}
}

// ReplicationFactor returns the configured number of replicas.
func (s *Strategy) ReplicationFactor() int {
	return s.rf
}

// Entries returns a copy of every cached placement, sorted by token.
func (s *Strategy) Entries() []placement.Entry {
	return s.cache.Entries()
}

// CalculateNaturalEndpoints returns the replicas of the token on the ring.
//
// An empty ring yields an empty list and leaves the cache untouched.
// Otherwise the primary is recomputed, the cache updated and flushed.
// A flush error is returned together with the valid list: the in-memory
// decision stands regardless.
func (s *Strategy) CalculateNaturalEndpoints(ctx context.Context, token ring.Token, snap *ring.Snapshot) ([]ring.NodeID, error) {
	if snap.Empty() {
		return []ring.NodeID{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it := snap.Iterator(token)
	_, primary, _ := it.Next()

	if s.cache.SetPrimary(token, primary) {
		// Secondaries stay pinned even if they left the ring or now equal the primary.
		s.logger.Debug("placement cache hit", zap.Stringer("token", token), zap.Stringer("primary", primary))
	} else {
		endpoints := s.walk(it, primary)
		s.cache.Put(token, endpoints)
		s.logger.Debug("placement cache miss", zap.Stringer("token", token), zap.Int("replicas", len(endpoints)))
	}

	endpoints, _ := s.cache.Get(token)

	if err := s.store.Flush(ctx, s.cache.Entries()); err != nil {
		s.logger.Error("cannot persist placement cache", zap.Stringer("token", token), zap.Error(err))
		return endpoints, err
	}
	return endpoints, nil
}

// walk continues from the primary for at most one revolution,
// collecting distinct eligible nodes until the record is full.
func (s *Strategy) walk(it *ring.Iterator, primary ring.NodeID) placement.Record {
	endpoints := make(placement.Record, 0, s.rf)
	endpoints = append(endpoints, primary)

	for len(endpoints) < s.rf && it.HasNext() {
		_, node, _ := it.Next()
		if endpoints.Contains(node) || !s.eligible(node) {
			continue
		}
		endpoints = append(endpoints, node)
	}
	return endpoints
}

// GetReplicasForKey returns the replicas responsible for a raw key.
func (s *Strategy) GetReplicasForKey(ctx context.Context, view ring.View, key []byte) ([]ring.NodeID, error) {
	return s.CalculateNaturalEndpoints(ctx, ring.Partitioner{}.Token(key), view.Snapshot())
}
