package wikidb

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"wiki-graphql/internal/sqlutil"
	"wiki-graphql/internal/wiki"
)

// The queries below walk a single page's edges. They are not batched: each
// returns keys that the caller resolves through the loaders.

type titleRow struct {
	Namespace int    `mapstructure:"ns"`
	Title     string `mapstructure:"title"`
}

type idRow struct {
	ID int64 `mapstructure:"id"`
}

type prefixedRow struct {
	Prefix string `mapstructure:"prefix"`
	Title  string `mapstructure:"title"`
}

type propRow struct {
	Name  string `mapstructure:"pp_propname"`
	Value string `mapstructure:"pp_value"`
}

func selectEdges[V any](ctx context.Context, l *Loaders, builder sq.SelectBuilder) ([]V, error) {
	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build edge query: %w", err)
	}
	return queryRows[V](ctx, l.deps.exec, l.deps.logger, query, args)
}

func titleKeys(rows []titleRow) []wiki.TitleKey {
	keys := make([]wiki.TitleKey, len(rows))
	for i, r := range rows {
		keys[i] = wiki.NewTitleKey(r.Namespace, r.Title)
	}
	return keys
}

func ids(rows []idRow) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func prefixed(rows []prefixedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Prefix + ":" + r.Title
	}
	return out
}

func limit(n int) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// CategoryLinks returns the categories pageID belongs to.
func (l *Loaders) CategoryLinks(ctx context.Context, pageID int64, n int) ([]wiki.TitleKey, error) {
	rows, err := selectEdges[titleRow](ctx, l, sq.
		Select(fmt.Sprintf("%d AS ns", wiki.NSCategory), "cl_to AS title").
		From("categorylinks").
		Where(sq.Eq{"cl_from": pageID}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return titleKeys(rows), nil
}

// TemplateLinks returns the pages pageID transcludes.
func (l *Loaders) TemplateLinks(ctx context.Context, pageID int64, n int) ([]wiki.TitleKey, error) {
	rows, err := selectEdges[titleRow](ctx, l, sq.
		Select("lt_namespace AS ns", "lt_title AS title").
		From("templatelinks").
		LeftJoin("linktarget ON lt_id = tl_target_id").
		Where(sq.Eq{"tl_from": pageID}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return titleKeys(rows), nil
}

// PageLinks returns the pages pageID links to.
func (l *Loaders) PageLinks(ctx context.Context, pageID int64, n int) ([]wiki.TitleKey, error) {
	rows, err := selectEdges[titleRow](ctx, l, sq.
		Select("pl_namespace AS ns", "pl_title AS title").
		From("pagelinks").
		Where(sq.Eq{"pl_from": pageID}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return titleKeys(rows), nil
}

// ImageLinks returns the files pageID embeds.
func (l *Loaders) ImageLinks(ctx context.Context, pageID int64, n int) ([]wiki.TitleKey, error) {
	rows, err := selectEdges[titleRow](ctx, l, sq.
		Select(fmt.Sprintf("%d AS ns", wiki.NSFile), "il_to AS title").
		From("imagelinks").
		Where(sq.Eq{"il_from": pageID}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return titleKeys(rows), nil
}

// ExternalLinks returns the external URLs on pageID.
func (l *Loaders) ExternalLinks(ctx context.Context, pageID int64, n int) ([]wiki.ExternalLink, error) {
	return selectEdges[wiki.ExternalLink](ctx, l, sq.
		Select("el_to_domain_index", "el_to_path").
		From("externallinks").
		Where(sq.Eq{"el_from": pageID}).
		Limit(limit(n)))
}

// LangLinks returns "lang:Title" for each interlanguage link.
func (l *Loaders) LangLinks(ctx context.Context, pageID int64) ([]string, error) {
	rows, err := selectEdges[prefixedRow](ctx, l, sq.
		Select("ll_lang AS prefix", "ll_title AS title").
		From("langlinks").
		Where(sq.Eq{"ll_from": pageID}))
	if err != nil {
		return nil, err
	}
	return prefixed(rows), nil
}

// InterwikiLinks returns "prefix:Title" for each interwiki link.
func (l *Loaders) InterwikiLinks(ctx context.Context, pageID int64) ([]string, error) {
	rows, err := selectEdges[prefixedRow](ctx, l, sq.
		Select("iwl_prefix AS prefix", "iwl_title AS title").
		From("iwlinks").
		Where(sq.Eq{"iwl_from": pageID}))
	if err != nil {
		return nil, err
	}
	return prefixed(rows), nil
}

// PageProps returns the page_props of pageID keyed by property name.
func (l *Loaders) PageProps(ctx context.Context, pageID int64) (map[string]string, error) {
	rows, err := selectEdges[propRow](ctx, l, sq.
		Select("pp_propname", "pp_value").
		From("page_props").
		Where(sq.Eq{"pp_page": pageID}))
	if err != nil {
		return nil, err
	}
	props := make(map[string]string, len(rows))
	for _, r := range rows {
		props[r.Name] = r.Value
	}
	return props, nil
}

// Backlinks returns the ids of pages linking to title.
func (l *Loaders) Backlinks(ctx context.Context, title wiki.TitleKey, n int) ([]int64, error) {
	rows, err := selectEdges[idRow](ctx, l, sq.
		Select("pl_from AS id").
		From("pagelinks").
		Where(sq.Eq{"pl_namespace": title.Namespace, "pl_title": title.Name}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return ids(rows), nil
}

// Transclusions returns the ids of pages transcluding title.
func (l *Loaders) Transclusions(ctx context.Context, title wiki.TitleKey, n int) ([]int64, error) {
	rows, err := selectEdges[idRow](ctx, l, sq.
		Select("tl_from AS id").
		From("templatelinks").
		Where(sq.Expr("tl_target_id = (SELECT lt_id FROM linktarget WHERE lt_namespace = ? AND lt_title = ?)",
			title.Namespace, title.Name)).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return ids(rows), nil
}

// Redirects returns the ids of pages redirecting to title.
func (l *Loaders) Redirects(ctx context.Context, title wiki.TitleKey, n int) ([]int64, error) {
	rows, err := selectEdges[idRow](ctx, l, sq.
		Select("rd_from AS id").
		From("redirect").
		Where(sq.Eq{"rd_namespace": title.Namespace, "rd_title": title.Name}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return ids(rows), nil
}

// FileUsage returns the ids of pages embedding the file named name.
func (l *Loaders) FileUsage(ctx context.Context, name string, n int) ([]int64, error) {
	rows, err := selectEdges[idRow](ctx, l, sq.
		Select("il_from AS id").
		From("imagelinks").
		Where(sq.Eq{"il_to": name}).
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	return ids(rows), nil
}

// PageRevisions returns the newest revisions of pageID. Each row also primes
// the Revisions loader.
func (l *Loaders) PageRevisions(ctx context.Context, pageID int64, n int) ([]wiki.Revision, error) {
	revs, err := selectEdges[wiki.Revision](ctx, l, sq.
		Select(sqlutil.QuoteIdentifiers(revisionColumns...)...).
		From("revision").
		Where(sq.Eq{"rev_page": pageID}).
		OrderBy("rev_timestamp DESC").
		Limit(limit(n)))
	if err != nil {
		return nil, err
	}
	for i := range revs {
		rev := revs[i]
		l.Revisions.Prime(rev.ID, &rev)
	}
	return revs, nil
}
