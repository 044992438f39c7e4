// Package resolver serves the wiki replica as a read-only GraphQL schema.
// Field resolvers return thunks over the request's loaders, so sibling
// fields that need the same key-space share one statement.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/elide"
	"wiki-graphql/internal/loader"
	"wiki-graphql/internal/scalars"
	"wiki-graphql/internal/wikidb"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var errNoLoaders = errors.New("request has no loaders attached")

// Observer receives loader and elision events. Both halves are optional.
type Observer interface {
	loader.Observer
	elide.Observer
}

// Config configures a Resolver.
type Config struct {
	Loader       wikidb.Config
	DefaultLimit int
	MaxLimit     int
	Observer     Observer
	Logger       *slog.Logger
}

// Resolvable is one object type of the graph: its name and its fields.
type Resolvable interface {
	TypeName() string
	Description() string
	Fields(r *Resolver) graphql.Fields
}

var resolvables = []Resolvable{
	pageType{},
	externalLinkType{},
	revisionType{},
	userType{},
	userGroupType{},
	categoryType{},
	categoryCountsType{},
	logActionType{},
}

// Resolver builds the schema and the per-request loaders it reads from.
type Resolver struct {
	executor     dbexec.QueryExecutor
	loaderCfg    wikidb.Config
	defaultLimit int
	maxLimit     int
	observer     Observer
	logger       *slog.Logger

	types          map[string]*graphql.Object
	nonNegativeInt *graphql.Scalar
	timestamp      *graphql.Scalar
	jsonType       *graphql.Scalar
}

// NewResolver creates a resolver reading through executor.
func NewResolver(executor dbexec.QueryExecutor, cfg Config) *Resolver {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultListLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxListLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		executor:       executor,
		loaderCfg:      cfg.Loader,
		defaultLimit:   cfg.DefaultLimit,
		maxLimit:       cfg.MaxLimit,
		observer:       cfg.Observer,
		logger:         cfg.Logger,
		nonNegativeInt: scalars.NonNegativeInt(),
		timestamp:      scalars.Timestamp(),
		jsonType:       scalars.JSON(),
	}
}

// NewLoaders returns an empty set of loaders for one request.
func (r *Resolver) NewLoaders() *wikidb.Loaders {
	var obs loader.Observer
	if r.observer != nil {
		obs = r.observer
	}
	return wikidb.NewLoaders(r.executor, r.loaderCfg, obs, r.logger)
}

// WithLoaders attaches fresh loaders to ctx.
func (r *Resolver) WithLoaders(ctx context.Context) context.Context {
	return wikidb.NewContext(ctx, r.NewLoaders())
}

// BuildGraphQLSchema constructs the executable schema.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	r.types = make(map[string]*graphql.Object, len(resolvables))
	for _, res := range resolvables {
		r.types[res.TypeName()] = graphql.NewObject(graphql.ObjectConfig{
			Name:        res.TypeName(),
			Description: res.Description(),
			Fields: graphql.FieldsThunk(func() graphql.Fields {
				return res.Fields(r)
			}),
		})
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: r.queryFields(),
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func (r *Resolver) object(name string) *graphql.Object {
	obj, ok := r.types[name]
	if !ok {
		panic("resolver: unknown object type " + name)
	}
	return obj
}

func (r *Resolver) elideObserver() elide.Observer {
	if r.observer == nil {
		return nil
	}
	return r.observer
}

func (r *Resolver) observeElided(ctx context.Context, loaderName string, keys int) {
	if r.observer != nil {
		r.observer.ObserveElided(ctx, loaderName, keys)
	}
}

func loadersFrom(ctx context.Context) (*wikidb.Loaders, error) {
	l, ok := wikidb.FromContext(ctx)
	if !ok || l == nil {
		return nil, errNoLoaders
	}
	return l, nil
}
