// Package wikidb binds the MediaWiki replica tables to request-scoped
// batching loaders.
package wikidb

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/loader"
	"wiki-graphql/internal/sqlutil"
	"wiki-graphql/internal/wiki"
)

// Config tunes the loaders built for each request.
type Config struct {
	Wait     time.Duration
	MaxBatch int
}

type deps struct {
	exec   dbexec.QueryExecutor
	logger *slog.Logger
}

// Loaders holds one loader per key-space. Build a new value per request so
// memoized results never leak between callers.
type Loaders struct {
	Descriptions *loader.Loader[int64, *string]
	UsersByID    *loader.Loader[int64, *wiki.User]
	UsersByName  *loader.Loader[string, *wiki.User]
	PagesByID    *loader.Loader[int64, *wiki.Page]
	PagesByTitle *loader.Loader[wiki.TitleKey, *wiki.Page]
	Revisions    *loader.Loader[int64, *wiki.Revision]
	Comments     *loader.Loader[int64, *string]
	Actors       *loader.Loader[int64, *wiki.Actor]
	UserGroups   *loader.Loader[int64, []wiki.UserGroup]
	RevisionTags *loader.Loader[int64, []int64]
	TagNames     *loader.Loader[int64, *string]
	Categories   *loader.Loader[string, *wiki.Category]
	LogEvents    *loader.Loader[int64, *wiki.LogEvent]

	// UsersByActor resolves actor ids to users through Actors and UsersByID.
	// IP actors become users with a zero id.
	UsersByActor *loader.Loader[int64, *wiki.User]
	// RevisionTagNames resolves revision ids to tag names through
	// RevisionTags and TagNames.
	RevisionTagNames *loader.Loader[int64, []string]

	deps *deps
}

var (
	pageColumns = []string{
		"page_id", "page_namespace", "page_title", "page_is_redirect", "page_is_new",
		"page_touched", "page_links_updated", "page_latest", "page_len",
		"page_content_model", "page_lang",
	}
	revisionColumns = []string{
		"rev_id", "rev_page", "rev_comment_id", "rev_actor", "rev_timestamp",
		"rev_minor_edit", "rev_deleted", "rev_len", "rev_parent_id", "rev_sha1",
	}
	userColumns = []string{
		"user_id", "user_name", "user_real_name", "user_registration", "user_editcount",
	}
	logColumns = []string{
		"log_id", "log_type", "log_action", "log_timestamp", "log_actor", "log_page",
		"log_namespace", "log_title", "log_comment_id", "log_params", "log_deleted",
	}
)

type descriptionRow struct {
	PageID int64  `mapstructure:"page_id"`
	Value  string `mapstructure:"pp_value"`
}

type commentRow struct {
	ID   int64  `mapstructure:"comment_id"`
	Text string `mapstructure:"comment_text"`
}

type changeTagRow struct {
	RevID int64 `mapstructure:"ct_rev_id"`
	TagID int64 `mapstructure:"ct_tag_id"`
}

type tagDefRow struct {
	ID   int64  `mapstructure:"ctd_id"`
	Name string `mapstructure:"ctd_name"`
}

// NewLoaders builds a fresh set of loaders on top of exec. obs may be nil.
func NewLoaders(exec dbexec.QueryExecutor, cfg Config, obs loader.Observer, logger *slog.Logger) *Loaders {
	if logger == nil {
		logger = slog.Default()
	}
	d := &deps{exec: exec, logger: logger}

	pages := table{name: "page", columns: pageColumns, key: "page_id"}
	users := table{name: "user", columns: userColumns, key: "user_id"}

	l := &Loaders{
		Descriptions: newLoader(cfg, obs, "descriptions", project(
			oneToOne(d, table{
				name:    "page",
				columns: []string{"page_id", "pp_value"},
				key:     "page_id",
				join:    "page_props ON page_id = pp_page",
				extra:   sq.Eq{"pp_propname": "wikibase-shortdesc"},
			}, func(r descriptionRow) int64 { return r.PageID }),
			func(r descriptionRow) string { return r.Value },
		)),
		UsersByID: newLoader(cfg, obs, "users_by_id",
			oneToOne(d, users, func(u wiki.User) int64 { return u.ID })),
		UsersByName: newLoader(cfg, obs, "users_by_name",
			oneToOne(d, table{name: "user", columns: userColumns, key: "user_name"},
				func(u wiki.User) string { return u.Name })),
		PagesByID: newLoader(cfg, obs, "pages_by_id",
			oneToOne(d, pages, func(p wiki.Page) int64 { return p.ID })),
		PagesByTitle: newLoader(cfg, obs, "pages_by_title", fetchPagesByTitle(d)),
		Revisions: newLoader(cfg, obs, "revisions",
			oneToOne(d, table{name: "revision", columns: revisionColumns, key: "rev_id"},
				func(r wiki.Revision) int64 { return r.ID })),
		Comments: newLoader(cfg, obs, "comments", project(
			oneToOne(d, table{name: "comment", columns: []string{"comment_id", "comment_text"}, key: "comment_id"},
				func(c commentRow) int64 { return c.ID }),
			func(c commentRow) string { return c.Text },
		)),
		Actors: newLoader(cfg, obs, "actors",
			oneToOne(d, table{name: "actor", columns: []string{"actor_id", "actor_user", "actor_name"}, key: "actor_id"},
				func(a wiki.Actor) int64 { return a.ID })),
		UserGroups: newLoader(cfg, obs, "user_groups",
			oneToMany(d, table{name: "user_groups", columns: []string{"ug_user", "ug_group", "ug_expiry"}, key: "ug_user"},
				func(g wiki.UserGroup) int64 { return g.User })),
		RevisionTags: newLoader(cfg, obs, "revision_tags", fetchRevisionTags(d)),
		TagNames: newLoader(cfg, obs, "tag_names", project(
			oneToOne(d, table{name: "change_tag_def", columns: []string{"ctd_id", "ctd_name"}, key: "ctd_id"},
				func(t tagDefRow) int64 { return t.ID }),
			func(t tagDefRow) string { return t.Name },
		)),
		Categories: newLoader(cfg, obs, "categories",
			oneToOne(d, table{name: "category", columns: []string{"cat_id", "cat_title", "cat_pages", "cat_subcats", "cat_files"}, key: "cat_title"},
				func(c wiki.Category) string { return c.Title })),
		LogEvents: newLoader(cfg, obs, "log_events",
			oneToOne(d, table{name: "logging", columns: logColumns, key: "log_id"},
				func(e wiki.LogEvent) int64 { return e.ID })),
		deps: d,
	}
	l.UsersByActor = newLoader(cfg, obs, "users_by_actor", l.fetchUsersByActor)
	l.RevisionTagNames = newLoader(cfg, obs, "revision_tag_names", l.fetchRevisionTagNames)
	return l
}

func newLoader[K comparable, V any](cfg Config, obs loader.Observer, name string, fetch loader.FetchFunc[K, V]) *loader.Loader[K, V] {
	return loader.New(loader.Config[K, V]{
		Name:     name,
		Fetch:    fetch,
		Wait:     cfg.Wait,
		MaxBatch: cfg.MaxBatch,
		Observer: obs,
	})
}

func fetchPagesByTitle(d *deps) loader.FetchFunc[wiki.TitleKey, *wiki.Page] {
	pages := table{name: "page", columns: pageColumns}
	return func(ctx context.Context, keys []wiki.TitleKey) ([]*wiki.Page, []error) {
		var all []wiki.Page
		for _, chunk := range sqlutil.Chunk(keys, MaxKeysPerStatement) {
			tuples := make([][]any, len(chunk))
			for i, k := range chunk {
				tuples[i] = []any{k.Namespace, k.Name}
			}
			cond, err := sqlutil.TupleIn([]string{"page_namespace", "page_title"}, tuples)
			if err != nil {
				return nil, []error{err}
			}
			query, args, err := pages.selectWhere(cond)
			if err != nil {
				return nil, []error{err}
			}
			rows, err := queryRows[wiki.Page](ctx, d.exec, d.logger, query, args)
			if err != nil {
				return nil, []error{err}
			}
			all = append(all, rows...)
		}
		return loader.Resort(keys, all, wiki.Page.Key), nil
	}
}

func fetchRevisionTags(d *deps) loader.FetchFunc[int64, []int64] {
	tags := oneToMany(d, table{name: "change_tag", columns: []string{"ct_rev_id", "ct_tag_id"}, key: "ct_rev_id"},
		func(r changeTagRow) int64 { return r.RevID })
	return func(ctx context.Context, keys []int64) ([][]int64, []error) {
		groups, errs := tags(ctx, keys)
		if groups == nil {
			return nil, errs
		}
		out := make([][]int64, len(groups))
		for i, g := range groups {
			ids := make([]int64, len(g))
			for j, row := range g {
				ids[j] = row.TagID
			}
			out[i] = ids
		}
		return out, nil
	}
}

func (l *Loaders) fetchUsersByActor(ctx context.Context, actorIDs []int64) ([]*wiki.User, []error) {
	actors, errs := l.Actors.LoadMany(ctx, actorIDs)
	if err := firstError(errs); err != nil {
		return nil, []error{err}
	}

	var userIDs []int64
	for _, a := range actors {
		if a != nil && !a.Anonymous() {
			userIDs = append(userIDs, a.User)
		}
	}
	users, errs := l.UsersByID.LoadMany(ctx, userIDs)
	if err := firstError(errs); err != nil {
		return nil, []error{err}
	}

	byID := make(map[int64]*wiki.User, len(users))
	for _, u := range users {
		if u != nil {
			byID[u.ID] = u
		}
	}

	out := make([]*wiki.User, len(actorIDs))
	for i, a := range actors {
		switch {
		case a == nil:
		case a.Anonymous():
			out[i] = &wiki.User{Name: a.Name, ActorID: a.ID}
		default:
			if u, ok := byID[a.User]; ok {
				withActor := *u
				withActor.ActorID = a.ID
				out[i] = &withActor
			}
		}
	}
	return out, nil
}

func (l *Loaders) fetchRevisionTagNames(ctx context.Context, revIDs []int64) ([][]string, []error) {
	tagIDs, errs := l.RevisionTags.LoadMany(ctx, revIDs)
	if err := firstError(errs); err != nil {
		return nil, []error{err}
	}

	seen := make(map[int64]struct{})
	var distinct []int64
	for _, ids := range tagIDs {
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				distinct = append(distinct, id)
			}
		}
	}
	names, errs := l.TagNames.LoadMany(ctx, distinct)
	if err := firstError(errs); err != nil {
		return nil, []error{err}
	}
	nameByID := make(map[int64]string, len(distinct))
	for i, id := range distinct {
		if names[i] != nil {
			nameByID[id] = *names[i]
		}
	}

	out := make([][]string, len(revIDs))
	for i, ids := range tagIDs {
		tags := make([]string, 0, len(ids))
		for _, id := range ids {
			if name, ok := nameByID[id]; ok {
				tags = append(tags, name)
			}
		}
		out[i] = tags
	}
	return out, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CacheStats sums memo hits and misses across every loader.
func (l *Loaders) CacheStats() (hits, misses int64) {
	for _, s := range l.statters() {
		h, m := s.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

type statter interface {
	Stats() (hits, misses int64)
}

func (l *Loaders) statters() []statter {
	return []statter{
		l.Descriptions, l.UsersByID, l.UsersByName, l.PagesByID, l.PagesByTitle,
		l.Revisions, l.Comments, l.Actors, l.UserGroups, l.RevisionTags,
		l.TagNames, l.Categories, l.LogEvents, l.UsersByActor, l.RevisionTagNames,
	}
}

type loadersKey struct{}

// NewContext returns ctx carrying l.
func NewContext(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey{}, l)
}

// FromContext returns the loaders stored by NewContext.
func FromContext(ctx context.Context) (*Loaders, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loadersKey{}).(*Loaders)
	return l, ok
}
