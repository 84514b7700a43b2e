package contexts

import (
	"context"
	"fmt"

	"github.com/mahesh-hegde/explorer/app/memo"
)

// TrivialFunc decides whether a context is small enough to be inlined into a
// serialized plot instead of being persisted and referenced by hash.
type TrivialFunc func(c Context) bool

// DefaultTrivial treats the all-entities context and a single equality on an
// entity's id or label as trivial. Anything else is hashed.
func DefaultTrivial(c Context) bool {
	switch e := Normalize(c.Expr).(type) {
	case Literal:
		return e.Value
	case Compare:
		return e.Op == OpEq && (e.Var == FieldEntityID || e.Var == FieldEntityLabel)
	}
	return false
}

type ContextService struct {
	store     Store
	evaluator *Evaluator
	trivial   TrivialFunc

	memoOpts []memo.Option

	evaluate func(context.Context, Context) (EntitySet, error)
	persist  func(context.Context, Context) (string, error)
	fetch    func(context.Context, string) (Context, error)
}

type ServiceOption func(*ContextService)

func WithTrivialPredicate(f TrivialFunc) ServiceOption {
	return func(s *ContextService) {
		s.trivial = f
	}
}

// WithMemoOptions configures the memoizers behind Evaluate, Persist and
// FetchByHash.
func WithMemoOptions(opts ...memo.Option) ServiceOption {
	return func(s *ContextService) {
		s.memoOpts = append(s.memoOpts, opts...)
	}
}

// NewContextService builds the context engine. source may be nil for a
// service that only persists and fetches contexts.
func NewContextService(store Store, source MetadataSource, opts ...ServiceOption) *ContextService {
	s := &ContextService{
		store:     store,
		evaluator: NewEvaluator(source),
		trivial:   DefaultTrivial,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.evaluate = memo.Memoize("context_evaluate", s.evaluator.Evaluate, s.memoOpts...)
	s.persist = memo.Memoize("context_persist", s.store.PersistContext, s.memoOpts...)
	s.fetch = memo.Memoize("context_fetch", s.store.FetchContext, s.memoOpts...)
	return s
}

// Evaluate returns the entities selected by c.
func (s *ContextService) Evaluate(ctx context.Context, c Context) (EntitySet, error) {
	return s.evaluate(ctx, c)
}

// Persist stores c and returns its content hash. The negation flag is not
// stored, so c and Negate(c) share a hash.
func (s *ContextService) Persist(ctx context.Context, c Context) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	c.Negated = false
	c.Expr = Normalize(c.Expr)
	return s.persist(ctx, c)
}

// FetchByHash is the inverse of Persist.
func (s *ContextService) FetchByHash(ctx context.Context, hash string) (Context, error) {
	return s.fetch(ctx, hash)
}

func (s *ContextService) IsTrivial(c Context) bool {
	return s.trivial(c)
}

// ToDescriptor returns the compact form of c used in serialized plots.
func (s *ContextService) ToDescriptor(ctx context.Context, c Context) (Descriptor, error) {
	if s.IsTrivial(c) {
		return Descriptor{Context: &c}, nil
	}
	hash, err := s.Persist(ctx, c)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Hash: hash, Negated: c.Negated}, nil
}

// FromDescriptor restores the context a descriptor stands for.
func (s *ContextService) FromDescriptor(ctx context.Context, d Descriptor) (Context, error) {
	if d.Context != nil {
		return *d.Context, nil
	}
	if d.Hash == "" {
		return Context{}, fmt.Errorf("context descriptor has neither a context nor a hash")
	}
	c, err := s.FetchByHash(ctx, d.Hash)
	if err != nil {
		return Context{}, err
	}
	c.Negated = d.Negated
	return c, nil
}
