package resolver

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"wiki-graphql/internal/elide"
	"wiki-graphql/internal/wiki"
	"wiki-graphql/internal/wikidb"
)

type pageType struct{}

func (pageType) TypeName() string { return "Page" }

func (pageType) Description() string {
	return "A wiki page. Pages reached through links may not exist."
}

func (pageType) Fields(r *Resolver) graphql.Fields {
	page := r.object("Page")
	revision := r.object("Revision")
	pageList := graphql.NewList(page)

	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.Int,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return nonZero(pg.ID)
			}),
		},
		"title": &graphql.Field{
			Type:        graphql.String,
			Description: "Display title including the namespace prefix.",
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return pg.Key().Text()
			}),
		},
		"namespace": &graphql.Field{
			Type: graphql.Int,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return pg.Namespace
			}),
		},
		"isRedirect": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return pg.IsRedirect
			}),
		},
		"isNew": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return pg.IsNew
			}),
		},
		"length": &graphql.Field{
			Type: graphql.Int,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return pg.Len
			}),
		},
		"touched": &graphql.Field{
			Type: r.timestamp,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return nonEmpty(pg.Touched)
			}),
		},
		"contentModel": &graphql.Field{
			Type: graphql.String,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return nonEmpty(pg.ContentModel)
			}),
		},
		"language": &graphql.Field{
			Type: graphql.String,
			Resolve: pageField(func(pg *wiki.Page) interface{} {
				return nonEmpty(pg.Lang)
			}),
		},
		"description": &graphql.Field{
			Type:        graphql.String,
			Description: "Short description from page_props.",
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				return valueThunk(l.Descriptions.LoadThunk(p.Context, pg.ID)), nil
			}),
		},
		"categories": &graphql.Field{
			Type:    pageList,
			Args:    r.limitArgs(),
			Resolve: r.titleEdge((*wikidb.Loaders).CategoryLinks),
		},
		"templates": &graphql.Field{
			Type:    pageList,
			Args:    r.limitArgs(),
			Resolve: r.titleEdge((*wikidb.Loaders).TemplateLinks),
		},
		"links": &graphql.Field{
			Type:    pageList,
			Args:    r.limitArgs(),
			Resolve: r.titleEdge((*wikidb.Loaders).PageLinks),
		},
		"images": &graphql.Field{
			Type:    pageList,
			Args:    r.limitArgs(),
			Resolve: r.titleEdge((*wikidb.Loaders).ImageLinks),
		},
		"externalLinks": &graphql.Field{
			Type: graphql.NewList(r.object("ExternalLink")),
			Args: r.limitArgs(),
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				return l.ExternalLinks(p.Context, pg.ID, r.limit(p))
			}),
		},
		"langlinks": &graphql.Field{
			Type:        graphql.NewList(graphql.String),
			Description: "Interlanguage links as prefix:title.",
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				return l.LangLinks(p.Context, pg.ID)
			}),
		},
		"iwlinks": &graphql.Field{
			Type:        graphql.NewList(graphql.String),
			Description: "Interwiki links as prefix:title.",
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				return l.InterwikiLinks(p.Context, pg.ID)
			}),
		},
		"pageprops": &graphql.Field{
			Type: r.jsonType,
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				props, err := l.PageProps(p.Context, pg.ID)
				if err != nil {
					return nil, err
				}
				out := make(map[string]interface{}, len(props))
				for k, v := range props {
					out[k] = v
				}
				return out, nil
			}),
		},
		"backlinks": &graphql.Field{
			Type: pageList,
			Args: r.limitArgs(),
			Resolve: r.idEdge(func(ctx context.Context, l *wikidb.Loaders, pg *wiki.Page, n int) ([]int64, error) {
				return l.Backlinks(ctx, pg.Key(), n)
			}),
		},
		"transclusions": &graphql.Field{
			Type:        pageList,
			Args:        r.limitArgs(),
			Description: "Pages that transclude this page.",
			Resolve: r.idEdge(func(ctx context.Context, l *wikidb.Loaders, pg *wiki.Page, n int) ([]int64, error) {
				return l.Transclusions(ctx, pg.Key(), n)
			}),
		},
		"redirects": &graphql.Field{
			Type: pageList,
			Args: r.limitArgs(),
			Resolve: r.idEdge(func(ctx context.Context, l *wikidb.Loaders, pg *wiki.Page, n int) ([]int64, error) {
				return l.Redirects(ctx, pg.Key(), n)
			}),
		},
		"fileUsage": &graphql.Field{
			Type:        pageList,
			Args:        r.limitArgs(),
			Description: "Pages that embed this file. Empty outside the File namespace.",
			Resolve: r.idEdge(func(ctx context.Context, l *wikidb.Loaders, pg *wiki.Page, n int) ([]int64, error) {
				if pg.Namespace != wiki.NSFile {
					return nil, nil
				}
				return l.FileUsage(ctx, pg.Title, n)
			}),
		},
		"talkPage": &graphql.Field{
			Type: page,
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				talk, ok := pg.Key().Talk()
				if !ok {
					return nil, nil
				}
				return valueThunk(l.PagesByTitle.LoadThunk(p.Context, talk)), nil
			}),
		},
		"subjectPage": &graphql.Field{
			Type: page,
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				return valueThunk(l.PagesByTitle.LoadThunk(p.Context, pg.Key().Subject())), nil
			}),
		},
		"lastRevision": &graphql.Field{
			Type: revision,
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				if pg.Latest == 0 {
					return nil, nil
				}
				requested := elide.RequestedFields(p.Info)
				return valueThunk(r.revisionsByID(l).LoadThunk(p.Context, pg.Latest, requested)), nil
			}),
		},
		"revisions": &graphql.Field{
			Type:        graphql.NewList(revision),
			Args:        r.limitArgs(),
			Description: "Revisions of this page, newest first.",
			Resolve: r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
				revs, err := l.PageRevisions(p.Context, pg.ID, r.limit(p))
				if err != nil {
					return nil, err
				}
				out := make([]*wiki.Revision, len(revs))
				for i := range revs {
					out[i] = &revs[i]
				}
				return out, nil
			}),
		},
	}
}

func sourcePage(p graphql.ResolveParams) (*wiki.Page, error) {
	pg, ok := p.Source.(*wiki.Page)
	if !ok || pg == nil {
		return nil, fmt.Errorf("expected page source, got %T", p.Source)
	}
	return pg, nil
}

func pageField(fn func(pg *wiki.Page) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		pg, err := sourcePage(p)
		if err != nil {
			return nil, err
		}
		return fn(pg), nil
	}
}

type pageLoadFn func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error)

func (r *Resolver) pageLoad(fn pageLoadFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		pg, err := sourcePage(p)
		if err != nil {
			return nil, err
		}
		l, err := loadersFrom(p.Context)
		if err != nil {
			return nil, err
		}
		return fn(p, l, pg)
	}
}

// titleEdge runs a link query for the page and resolves the linked titles,
// skipping the page lookup when only namespace and title are selected.
func (r *Resolver) titleEdge(edge func(*wikidb.Loaders, context.Context, int64, int) ([]wiki.TitleKey, error)) graphql.FieldResolveFn {
	return r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
		keys, err := edge(l, p.Context, pg.ID, r.limit(p))
		if err != nil {
			return nil, err
		}
		return listThunk(r.pagesByTitle(l).LoadManyThunk(p.Context, keys, elide.RequestedFields(p.Info))), nil
	})
}

// idEdge is titleEdge for queries that return page ids.
func (r *Resolver) idEdge(edge func(context.Context, *wikidb.Loaders, *wiki.Page, int) ([]int64, error)) graphql.FieldResolveFn {
	return r.pageLoad(func(p graphql.ResolveParams, l *wikidb.Loaders, pg *wiki.Page) (interface{}, error) {
		ids, err := edge(p.Context, l, pg, r.limit(p))
		if err != nil {
			return nil, err
		}
		return listThunk(r.pagesByID(l).LoadManyThunk(p.Context, ids, elide.RequestedFields(p.Info))), nil
	})
}

type externalLinkType struct{}

func (externalLinkType) TypeName() string { return "ExternalLink" }

func (externalLinkType) Description() string {
	return "An external URL split into its reversed domain index and path."
}

func (externalLinkType) Fields(*Resolver) graphql.Fields {
	return graphql.Fields{
		"domainIndex": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				link, _ := p.Source.(wiki.ExternalLink)
				return link.DomainIndex, nil
			},
		},
		"path": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				link, _ := p.Source.(wiki.ExternalLink)
				return link.Path, nil
			},
		},
	}
}
