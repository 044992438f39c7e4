package resolver

import (
	"errors"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"wiki-graphql/internal/wiki"
)

var (
	errPagesArgs = errors.New("ids or titles must be specified")
	errUsersArgs = errors.New("ids or names must be specified")
)

func (r *Resolver) queryFields() graphql.Fields {
	ids := graphql.NewList(graphql.NewNonNull(graphql.Int))
	strs := graphql.NewList(graphql.NewNonNull(graphql.String))

	return graphql.Fields{
		"pages": &graphql.Field{
			Type:        graphql.NewList(r.object("Page")),
			Description: "Pages by id or by title. Titles may carry a namespace prefix.",
			Args: graphql.FieldConfigArgument{
				"ids":    &graphql.ArgumentConfig{Type: ids},
				"titles": &graphql.ArgumentConfig{Type: strs},
			},
			Resolve: r.resolvePages,
		},
		"users": &graphql.Field{
			Type:        graphql.NewList(r.object("User")),
			Description: "Registered users by id or by name.",
			Args: graphql.FieldConfigArgument{
				"ids":   &graphql.ArgumentConfig{Type: ids},
				"names": &graphql.ArgumentConfig{Type: strs},
			},
			Resolve: r.resolveUsers,
		},
		"revisions": &graphql.Field{
			Type: graphql.NewList(r.object("Revision")),
			Args: graphql.FieldConfigArgument{
				"ids": &graphql.ArgumentConfig{Type: graphql.NewNonNull(ids)},
			},
			Resolve: r.resolveRevisions,
		},
		"categories": &graphql.Field{
			Type: graphql.NewList(r.object("Category")),
			Args: graphql.FieldConfigArgument{
				"names": &graphql.ArgumentConfig{Type: graphql.NewNonNull(strs)},
			},
			Resolve: r.resolveCategories,
		},
		"logActions": &graphql.Field{
			Type: graphql.NewList(r.object("LogAction")),
			Args: graphql.FieldConfigArgument{
				"ids": &graphql.ArgumentConfig{Type: graphql.NewNonNull(ids)},
			},
			Resolve: r.resolveLogActions,
		},
	}
}

func (r *Resolver) resolvePages(p graphql.ResolveParams) (interface{}, error) {
	l, err := loadersFrom(p.Context)
	if err != nil {
		return nil, err
	}
	ids := int64Args(p.Args["ids"])
	titles := stringArgs(p.Args["titles"])
	if len(ids) == 0 && len(titles) == 0 {
		return nil, errPagesArgs
	}

	ctx, span := startResolverSpan(p.Context, "graphql.query.pages",
		attribute.Int("graphql.query.ids", len(ids)),
		attribute.Int("graphql.query.titles", len(titles)),
	)

	byID := l.PagesByID.LoadManyThunk(ctx, ids)

	// Unparseable titles hold a nil slot so results stay aligned with input.
	keys := make([]wiki.TitleKey, 0, len(titles))
	slots := make([]int, len(titles))
	for i, text := range titles {
		key, err := wiki.ParseTitle(text)
		if err != nil {
			slots[i] = -1
			continue
		}
		slots[i] = len(keys)
		keys = append(keys, key)
	}
	byTitle := l.PagesByTitle.LoadManyThunk(ctx, keys)

	return tracedThunk(span, func() (interface{}, error) {
		pages, errs := byID()
		if err := firstError(errs); err != nil {
			return nil, err
		}
		titled, errs := byTitle()
		if err := firstError(errs); err != nil {
			return nil, err
		}

		out := make([]interface{}, 0, len(ids)+len(titles))
		for _, pg := range pages {
			out = append(out, pg)
		}
		for _, slot := range slots {
			if slot < 0 {
				out = append(out, nil)
				continue
			}
			out = append(out, titled[slot])
		}
		return out, nil
	}), nil
}

func (r *Resolver) resolveUsers(p graphql.ResolveParams) (interface{}, error) {
	l, err := loadersFrom(p.Context)
	if err != nil {
		return nil, err
	}
	ids := int64Args(p.Args["ids"])
	names := stringArgs(p.Args["names"])
	if len(ids) == 0 && len(names) == 0 {
		return nil, errUsersArgs
	}

	ctx, span := startResolverSpan(p.Context, "graphql.query.users",
		attribute.Int("graphql.query.ids", len(ids)),
		attribute.Int("graphql.query.names", len(names)),
	)

	for i, name := range names {
		names[i] = wiki.NormalizeUserName(name)
	}
	byID := l.UsersByID.LoadManyThunk(ctx, ids)
	byName := l.UsersByName.LoadManyThunk(ctx, names)

	return tracedThunk(span, func() (interface{}, error) {
		users, errs := byID()
		if err := firstError(errs); err != nil {
			return nil, err
		}
		named, errs := byName()
		if err := firstError(errs); err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(users)+len(named))
		for _, u := range users {
			out = append(out, u)
		}
		for _, u := range named {
			out = append(out, u)
		}
		return out, nil
	}), nil
}

func (r *Resolver) resolveRevisions(p graphql.ResolveParams) (interface{}, error) {
	l, err := loadersFrom(p.Context)
	if err != nil {
		return nil, err
	}
	ids := int64Args(p.Args["ids"])
	ctx, span := startResolverSpan(p.Context, "graphql.query.revisions",
		attribute.Int("graphql.query.ids", len(ids)),
	)
	return tracedThunk(span, listThunk(l.Revisions.LoadManyThunk(ctx, ids))), nil
}

func (r *Resolver) resolveCategories(p graphql.ResolveParams) (interface{}, error) {
	l, err := loadersFrom(p.Context)
	if err != nil {
		return nil, err
	}
	names := stringArgs(p.Args["names"])
	ctx, span := startResolverSpan(p.Context, "graphql.query.categories",
		attribute.Int("graphql.query.names", len(names)),
	)

	// Category rows are keyed by the bare title, so any prefix is dropped
	// and names outside the Category namespace get a nil slot.
	keys := make([]string, 0, len(names))
	slots := make([]int, len(names))
	for i, name := range names {
		key, err := wiki.ParseTitleIn(name, wiki.NSCategory)
		if err != nil || key.Namespace != wiki.NSCategory {
			slots[i] = -1
			continue
		}
		slots[i] = len(keys)
		keys = append(keys, key.Name)
	}
	thunk := l.Categories.LoadManyThunk(ctx, keys)

	return tracedThunk(span, func() (interface{}, error) {
		cats, errs := thunk()
		if err := firstError(errs); err != nil {
			return nil, err
		}
		out := make([]interface{}, len(slots))
		for i, slot := range slots {
			if slot >= 0 {
				out[i] = cats[slot]
			}
		}
		return out, nil
	}), nil
}

func (r *Resolver) resolveLogActions(p graphql.ResolveParams) (interface{}, error) {
	l, err := loadersFrom(p.Context)
	if err != nil {
		return nil, err
	}
	ids := int64Args(p.Args["ids"])
	ctx, span := startResolverSpan(p.Context, "graphql.query.log_actions",
		attribute.Int("graphql.query.ids", len(ids)),
	)
	return tracedThunk(span, listThunk(l.LogEvents.LoadManyThunk(ctx, ids))), nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
