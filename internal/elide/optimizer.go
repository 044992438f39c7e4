package elide

import "context"

// Source is the loader an Optimizer falls back to.
type Source[K comparable, V any] interface {
	Name() string
	LoadThunk(ctx context.Context, key K) func() (V, error)
	LoadManyThunk(ctx context.Context, keys []K) func() ([]V, []error)
}

// Observer is told how many keys were answered without a lookup.
type Observer interface {
	ObserveElided(ctx context.Context, loader string, keys int)
}

// Optimizer answers a load from the key alone when the requested fields are
// all derivable, and defers to Source otherwise.
type Optimizer[K comparable, V any] struct {
	Source     Source[K, V]
	Derivable  FieldSet
	Synthesize func(key K) V
	Observer   Observer
}

// Elides reports whether requested can be served without a lookup.
func (o *Optimizer[K, V]) Elides(requested []string) bool {
	return o.Synthesize != nil && o.Derivable.Covers(requested)
}

// LoadThunk is Source.LoadThunk unless the key alone answers requested.
func (o *Optimizer[K, V]) LoadThunk(ctx context.Context, key K, requested []string) func() (V, error) {
	if o.Elides(requested) {
		o.observe(ctx, 1)
		v := o.Synthesize(key)
		return func() (V, error) { return v, nil }
	}
	return o.Source.LoadThunk(ctx, key)
}

// Load resolves one key, synthesizing it when possible.
func (o *Optimizer[K, V]) Load(ctx context.Context, key K, requested []string) (V, error) {
	return o.LoadThunk(ctx, key, requested)()
}

// LoadManyThunk checks requested once for the whole call: either every key is
// synthesized or every key goes to Source.
func (o *Optimizer[K, V]) LoadManyThunk(ctx context.Context, keys []K, requested []string) func() ([]V, []error) {
	if o.Elides(requested) {
		o.observe(ctx, len(keys))
		values := make([]V, len(keys))
		for i, k := range keys {
			values[i] = o.Synthesize(k)
		}
		return func() ([]V, []error) { return values, nil }
	}
	return o.Source.LoadManyThunk(ctx, keys)
}

// LoadMany resolves keys in order, synthesizing them when possible.
func (o *Optimizer[K, V]) LoadMany(ctx context.Context, keys []K, requested []string) ([]V, []error) {
	return o.LoadManyThunk(ctx, keys, requested)()
}

func (o *Optimizer[K, V]) observe(ctx context.Context, n int) {
	if o.Observer != nil && n > 0 {
		o.Observer.ObserveElided(ctx, o.Source.Name(), n)
	}
}
