package resolver

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/wiki"
)

type categoryType struct{}

func (categoryType) TypeName() string { return "Category" }

func (categoryType) Description() string { return "A category and its member counts." }

func (categoryType) Fields(r *Resolver) graphql.Fields {
	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.Int,
			Resolve: categoryField(func(c *wiki.Category) interface{} {
				return c.ID
			}),
		},
		"title": &graphql.Field{
			Type:        graphql.String,
			Description: "Category name without the namespace prefix.",
			Resolve: categoryField(func(c *wiki.Category) interface{} {
				return strings.ReplaceAll(c.Title, "_", " ")
			}),
		},
		"counts": &graphql.Field{
			Type: r.object("CategoryCounts"),
			Resolve: categoryField(func(c *wiki.Category) interface{} {
				return c.Counts()
			}),
		},
		"page": &graphql.Field{
			Type:        r.object("Page"),
			Description: "The category's description page, if it exists.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				c, err := sourceCategory(p)
				if err != nil {
					return nil, err
				}
				l, err := loadersFrom(p.Context)
				if err != nil {
					return nil, err
				}
				return valueThunk(l.PagesByTitle.LoadThunk(p.Context, wiki.NewTitleKey(wiki.NSCategory, c.Title))), nil
			},
		},
	}
}

func sourceCategory(p graphql.ResolveParams) (*wiki.Category, error) {
	c, ok := p.Source.(*wiki.Category)
	if !ok || c == nil {
		return nil, fmt.Errorf("expected category source, got %T", p.Source)
	}
	return c, nil
}

func categoryField(fn func(c *wiki.Category) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		c, err := sourceCategory(p)
		if err != nil {
			return nil, err
		}
		return fn(c), nil
	}
}

type categoryCountsType struct{}

func (categoryCountsType) TypeName() string { return "CategoryCounts" }

func (categoryCountsType) Description() string { return "Member counts of a category." }

func (categoryCountsType) Fields(*Resolver) graphql.Fields {
	count := func(get func(wiki.CategoryCounts) int64) *graphql.Field {
		return &graphql.Field{
			Type: graphql.Int,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				c, _ := p.Source.(wiki.CategoryCounts)
				return get(c), nil
			},
		}
	}
	return graphql.Fields{
		"total":   count(func(c wiki.CategoryCounts) int64 { return c.Total }),
		"pages":   count(func(c wiki.CategoryCounts) int64 { return c.Pages }),
		"subcats": count(func(c wiki.CategoryCounts) int64 { return c.Subcats }),
		"files":   count(func(c wiki.CategoryCounts) int64 { return c.Files }),
	}
}
