package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/elide"
	"wiki-graphql/internal/wiki"
	"wiki-graphql/internal/wikidb"
)

type logActionType struct{}

func (logActionType) TypeName() string { return "LogAction" }

func (logActionType) Description() string { return "An entry of the public logs." }

func (logActionType) Fields(r *Resolver) graphql.Fields {
	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.Int,
			Resolve: logField(func(ev *wiki.LogEvent) interface{} {
				return ev.ID
			}),
		},
		"type": &graphql.Field{
			Type: graphql.String,
			Resolve: logField(func(ev *wiki.LogEvent) interface{} {
				return ev.Type
			}),
		},
		"action": &graphql.Field{
			Type: graphql.String,
			Resolve: logField(func(ev *wiki.LogEvent) interface{} {
				return ev.Action
			}),
		},
		"timestamp": &graphql.Field{
			Type: r.timestamp,
			Resolve: logField(func(ev *wiki.LogEvent) interface{} {
				return nonEmpty(ev.Timestamp)
			}),
		},
		"user": &graphql.Field{
			Type: r.object("User"),
			Resolve: r.logLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, ev *wiki.LogEvent) (interface{}, error) {
				if actorIDFields.Covers(elide.RequestedFields(p.Info)) {
					r.observeElided(p.Context, l.UsersByActor.Name(), 1)
					return &wiki.User{ActorID: ev.Actor}, nil
				}
				return r.userByActor(p, l, ev.Actor, idActorIDField), nil
			}),
		},
		"page": &graphql.Field{
			Type: r.object("Page"),
			Resolve: r.logLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, ev *wiki.LogEvent) (interface{}, error) {
				pages := &elide.Optimizer[int64, *wiki.Page]{
					Source:    l.PagesByID,
					Derivable: logPageFields,
					Synthesize: func(id int64) *wiki.Page {
						return &wiki.Page{ID: id, Namespace: ev.Namespace, Title: ev.Title}
					},
					Observer: r.elideObserver(),
				}
				return valueThunk(pages.LoadThunk(p.Context, ev.Page, elide.RequestedFields(p.Info))), nil
			}),
		},
		"comment": &graphql.Field{
			Type: graphql.String,
			Resolve: r.logLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, ev *wiki.LogEvent) (interface{}, error) {
				return valueThunk(l.Comments.LoadThunk(p.Context, ev.CommentID)), nil
			}),
		},
	}
}

func sourceLogEvent(p graphql.ResolveParams) (*wiki.LogEvent, error) {
	ev, ok := p.Source.(*wiki.LogEvent)
	if !ok || ev == nil {
		return nil, fmt.Errorf("expected log event source, got %T", p.Source)
	}
	return ev, nil
}

func logField(fn func(ev *wiki.LogEvent) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ev, err := sourceLogEvent(p)
		if err != nil {
			return nil, err
		}
		return fn(ev), nil
	}
}

func (r *Resolver) logLoad(fn func(graphql.ResolveParams, *wikidb.Loaders, *wiki.LogEvent) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ev, err := sourceLogEvent(p)
		if err != nil {
			return nil, err
		}
		l, err := loadersFrom(p.Context)
		if err != nil {
			return nil, err
		}
		return fn(p, l, ev)
	}
}
