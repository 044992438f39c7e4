package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/elide"
	"wiki-graphql/internal/wiki"
	"wiki-graphql/internal/wikidb"
)

type revisionType struct{}

func (revisionType) TypeName() string { return "Revision" }

func (revisionType) Description() string { return "A single edit of a page." }

func (revisionType) Fields(r *Resolver) graphql.Fields {
	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.Int,
			Resolve: revisionField(func(rev *wiki.Revision) interface{} {
				return rev.ID
			}),
		},
		"timestamp": &graphql.Field{
			Type: r.timestamp,
			Resolve: revisionField(func(rev *wiki.Revision) interface{} {
				return nonEmpty(rev.Timestamp)
			}),
		},
		"length": &graphql.Field{
			Type: graphql.Int,
			Resolve: revisionField(func(rev *wiki.Revision) interface{} {
				return rev.Len
			}),
		},
		"sha1": &graphql.Field{
			Type: graphql.String,
			Resolve: revisionField(func(rev *wiki.Revision) interface{} {
				return nonEmpty(rev.SHA1)
			}),
		},
		"isMinor": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: revisionField(func(rev *wiki.Revision) interface{} {
				return rev.MinorEdit
			}),
		},
		"parentId": &graphql.Field{
			Type: graphql.Int,
			Resolve: revisionField(func(rev *wiki.Revision) interface{} {
				return nonZero(rev.ParentID)
			}),
		},
		"summary": &graphql.Field{
			Type:        graphql.String,
			Description: "Edit summary.",
			Resolve: r.revisionLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, rev *wiki.Revision) (interface{}, error) {
				return valueThunk(l.Comments.LoadThunk(p.Context, rev.CommentID)), nil
			}),
		},
		"tags": &graphql.Field{
			Type: graphql.NewList(graphql.String),
			Resolve: r.revisionLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, rev *wiki.Revision) (interface{}, error) {
				return valueThunk(l.RevisionTagNames.LoadThunk(p.Context, rev.ID)), nil
			}),
		},
		"user": &graphql.Field{
			Type:        r.object("User"),
			Description: "The editor. IP editors have no id.",
			Resolve: r.revisionLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, rev *wiki.Revision) (interface{}, error) {
				return r.userByActor(p, l, rev.Actor, idNameFields), nil
			}),
		},
		"page": &graphql.Field{
			Type: r.object("Page"),
			Resolve: r.revisionLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, rev *wiki.Revision) (interface{}, error) {
				return valueThunk(r.pagesByID(l).LoadThunk(p.Context, rev.Page, elide.RequestedFields(p.Info))), nil
			}),
		},
	}
}

func sourceRevision(p graphql.ResolveParams) (*wiki.Revision, error) {
	rev, ok := p.Source.(*wiki.Revision)
	if !ok || rev == nil {
		return nil, fmt.Errorf("expected revision source, got %T", p.Source)
	}
	return rev, nil
}

func revisionField(fn func(rev *wiki.Revision) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		rev, err := sourceRevision(p)
		if err != nil {
			return nil, err
		}
		return fn(rev), nil
	}
}

func (r *Resolver) revisionLoad(fn func(graphql.ResolveParams, *wikidb.Loaders, *wiki.Revision) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		rev, err := sourceRevision(p)
		if err != nil {
			return nil, err
		}
		l, err := loadersFrom(p.Context)
		if err != nil {
			return nil, err
		}
		return fn(p, l, rev)
	}
}

// userByActor resolves the user behind an actor. When the selection fits in
// fromActor, the actor row alone answers it and the user table is skipped.
func (r *Resolver) userByActor(p graphql.ResolveParams, l *wikidb.Loaders, actorID int64, fromActor elide.FieldSet) func() (interface{}, error) {
	if fromActor.Covers(elide.RequestedFields(p.Info)) {
		r.observeElided(p.Context, l.UsersByActor.Name(), 1)
		thunk := l.Actors.LoadThunk(p.Context, actorID)
		return func() (interface{}, error) {
			actor, err := thunk()
			if err != nil || actor == nil {
				return nil, err
			}
			return &wiki.User{ID: actor.User, Name: actor.Name, ActorID: actor.ID}, nil
		}
	}
	return valueThunk(l.UsersByActor.LoadThunk(p.Context, actorID))
}
