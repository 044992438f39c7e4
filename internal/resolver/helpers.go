package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/elide"
	"wiki-graphql/internal/wiki"
	"wiki-graphql/internal/wikidb"
)

var (
	idFields       = elide.NewFieldSet("id")
	titleFields    = elide.NewFieldSet("namespace", "title")
	logPageFields  = elide.NewFieldSet("id", "namespace", "title")
	idNameFields   = elide.NewFieldSet("id", "name")
	actorIDFields  = elide.NewFieldSet("actorId")
	idActorIDField = elide.NewFieldSet("id", "actorId")
)

func (r *Resolver) limitArgs() graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"limit": &graphql.ArgumentConfig{
			Type:         r.nonNegativeInt,
			DefaultValue: r.defaultLimit,
			Description:  fmt.Sprintf("Maximum number of items to return (at most %d).", r.maxLimit),
		},
	}
}

func (r *Resolver) limit(p graphql.ResolveParams) int {
	n, ok := p.Args["limit"].(int)
	if !ok {
		return r.defaultLimit
	}
	if n > r.maxLimit {
		return r.maxLimit
	}
	return n
}

func (r *Resolver) pagesByID(l *wikidb.Loaders) *elide.Optimizer[int64, *wiki.Page] {
	return &elide.Optimizer[int64, *wiki.Page]{
		Source:    l.PagesByID,
		Derivable: idFields,
		Synthesize: func(id int64) *wiki.Page {
			return &wiki.Page{ID: id}
		},
		Observer: r.elideObserver(),
	}
}

func (r *Resolver) pagesByTitle(l *wikidb.Loaders) *elide.Optimizer[wiki.TitleKey, *wiki.Page] {
	return &elide.Optimizer[wiki.TitleKey, *wiki.Page]{
		Source:    l.PagesByTitle,
		Derivable: titleFields,
		Synthesize: func(k wiki.TitleKey) *wiki.Page {
			return &wiki.Page{Namespace: k.Namespace, Title: k.Name}
		},
		Observer: r.elideObserver(),
	}
}

func (r *Resolver) revisionsByID(l *wikidb.Loaders) *elide.Optimizer[int64, *wiki.Revision] {
	return &elide.Optimizer[int64, *wiki.Revision]{
		Source:    l.Revisions,
		Derivable: idFields,
		Synthesize: func(id int64) *wiki.Revision {
			return &wiki.Revision{ID: id}
		},
		Observer: r.elideObserver(),
	}
}

// valueThunk adapts a loader thunk to the shape graphql-go dethunks.
func valueThunk[V any](thunk func() (V, error)) func() (interface{}, error) {
	return func() (interface{}, error) {
		v, err := thunk()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// listThunk adapts a LoadMany thunk. Any failed key fails the whole list.
func listThunk[V any](thunk func() ([]V, []error)) func() (interface{}, error) {
	return func() (interface{}, error) {
		values, errs := thunk()
		if err := firstError(errs); err != nil {
			return nil, err
		}
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v
		}
		return out, nil
	}
}

func int64Args(v interface{}) []int64 {
	list, _ := v.([]interface{})
	out := make([]int64, 0, len(list))
	for _, item := range list {
		switch n := item.(type) {
		case int:
			out = append(out, int64(n))
		case int64:
			out = append(out, n)
		}
	}
	return out
}

func stringArgs(v interface{}) []string {
	list, _ := v.([]interface{})
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// nonZero returns nil for zero ids so they serialize as null.
func nonZero(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func nonEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
