package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/wiki"
)

type userType struct{}

func (userType) TypeName() string { return "User" }

func (userType) Description() string {
	return "A registered account, or an IP editor when id is null."
}

func (userType) Fields(r *Resolver) graphql.Fields {
	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.Int,
			Resolve: userField(func(u *wiki.User) interface{} {
				return nonZero(u.ID)
			}),
		},
		"actorId": &graphql.Field{
			Type: graphql.Int,
			Resolve: userField(func(u *wiki.User) interface{} {
				return nonZero(u.ActorID)
			}),
		},
		"name": &graphql.Field{
			Type: graphql.String,
			Resolve: userField(func(u *wiki.User) interface{} {
				return nonEmpty(u.Name)
			}),
		},
		"editcount": &graphql.Field{
			Type: graphql.Int,
			Resolve: userField(func(u *wiki.User) interface{} {
				if u.ID == 0 {
					return nil
				}
				return u.EditCount
			}),
		},
		"registration": &graphql.Field{
			Type: r.timestamp,
			Resolve: userField(func(u *wiki.User) interface{} {
				if u.Registration == nil || *u.Registration == "" {
					return nil
				}
				return *u.Registration
			}),
		},
		"groups": &graphql.Field{
			Type: graphql.NewList(r.object("UserGroup")),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				u, err := sourceUser(p)
				if err != nil {
					return nil, err
				}
				if u.ID == 0 {
					return []wiki.UserGroup{}, nil
				}
				l, err := loadersFrom(p.Context)
				if err != nil {
					return nil, err
				}
				return valueThunk(l.UserGroups.LoadThunk(p.Context, u.ID)), nil
			},
		},
		"userPage": &graphql.Field{
			Type: r.object("Page"),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				u, err := sourceUser(p)
				if err != nil {
					return nil, err
				}
				if u.Name == "" {
					return nil, nil
				}
				l, err := loadersFrom(p.Context)
				if err != nil {
					return nil, err
				}
				return valueThunk(l.PagesByTitle.LoadThunk(p.Context, wiki.NewTitleKey(wiki.NSUser, u.Name))), nil
			},
		},
	}
}

func sourceUser(p graphql.ResolveParams) (*wiki.User, error) {
	u, ok := p.Source.(*wiki.User)
	if !ok || u == nil {
		return nil, fmt.Errorf("expected user source, got %T", p.Source)
	}
	return u, nil
}

func userField(fn func(u *wiki.User) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		u, err := sourceUser(p)
		if err != nil {
			return nil, err
		}
		return fn(u), nil
	}
}

type userGroupType struct{}

func (userGroupType) TypeName() string { return "UserGroup" }

func (userGroupType) Description() string { return "Membership of a user in a group." }

func (userGroupType) Fields(r *Resolver) graphql.Fields {
	return graphql.Fields{
		"name": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				g, _ := p.Source.(wiki.UserGroup)
				return g.Group, nil
			},
		},
		"expiry": &graphql.Field{
			Type:        r.timestamp,
			Description: "When the membership ends. Null for permanent groups.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				g, _ := p.Source.(wiki.UserGroup)
				if g.Expiry == nil || *g.Expiry == "" {
					return nil, nil
				}
				return *g.Expiry, nil
			},
		},
	}
}
