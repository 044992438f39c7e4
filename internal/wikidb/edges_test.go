package wikidb

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wiki-graphql/internal/wiki"
)

func TestCategoryLinks(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 14 AS ns, cl_to AS title FROM categorylinks WHERE cl_from = ? LIMIT 5")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"ns", "title"}).
			AddRow(int64(14), []byte("Living_people")).
			AddRow(int64(14), []byte("1970_births")))

	keys, err := l.CategoryLinks(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, []wiki.TitleKey{
		{Namespace: wiki.NSCategory, Name: "Living_people"},
		{Namespace: wiki.NSCategory, Name: "1970_births"},
	}, keys)
}

func TestTemplateLinks(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM templatelinks LEFT JOIN linktarget ON lt_id = tl_target_id WHERE tl_from = ? LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"ns", "title"}).AddRow(int64(10), []byte("Cite_web")))

	keys, err := l.TemplateLinks(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []wiki.TitleKey{{Namespace: wiki.NSTemplate, Name: "Cite_web"}}, keys)
}

func TestExternalLinks(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery("FROM externallinks WHERE el_from = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"el_to_domain_index", "el_to_path"}).
			AddRow([]byte("https://org.example."), []byte("/index.html")))

	links, err := l.ExternalLinks(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []wiki.ExternalLink{{DomainIndex: "https://org.example.", Path: "/index.html"}}, links)
}

func TestLangAndInterwikiLinks(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery("FROM langlinks").
		WillReturnRows(sqlmock.NewRows([]string{"prefix", "title"}).AddRow([]byte("de"), []byte("Physik")))
	mock.ExpectQuery("FROM iwlinks").
		WillReturnRows(sqlmock.NewRows([]string{"prefix", "title"}).AddRow([]byte("wikt"), []byte("physics")))

	langs, err := l.LangLinks(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"de:Physik"}, langs)

	iw, err := l.InterwikiLinks(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"wikt:physics"}, iw)
}

func TestPageProps(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery("FROM page_props WHERE pp_page = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"pp_propname", "pp_value"}).
			AddRow([]byte("wikibase_item"), []byte("Q413")).
			AddRow([]byte("wikibase-shortdesc"), []byte("Natural science")))

	props, err := l.PageProps(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"wikibase_item": "Q413", "wikibase-shortdesc": "Natural science"}, props)
}

func TestReverseEdges(t *testing.T) {
	l, mock := newTestLoaders(t)
	target := wiki.NewTitleKey(wiki.NSTemplate, "Cite web")

	mock.ExpectQuery(regexp.QuoteMeta("FROM pagelinks WHERE pl_namespace = ? AND pl_title = ? LIMIT 3")).
		WithArgs(10, "Cite_web").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tl_target_id = (SELECT lt_id FROM linktarget WHERE lt_namespace = ? AND lt_title = ?) LIMIT 3")).
		WithArgs(10, "Cite_web").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(6)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM redirect WHERE rd_namespace = ? AND rd_title = ? LIMIT 3")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM imagelinks WHERE il_to = ? LIMIT 3")).
		WithArgs("Example.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))

	ctx := context.Background()
	back, err := l.Backlinks(ctx, target, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, back)

	trans, err := l.Transclusions(ctx, target, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, trans)

	redirects, err := l.Redirects(ctx, target, 3)
	require.NoError(t, err)
	assert.Empty(t, redirects)

	usage, err := l.FileUsage(ctx, "Example.jpg", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, usage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageRevisionsPrimesRevisionLoader(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM revision WHERE rev_page = ? ORDER BY rev_timestamp DESC LIMIT 2")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(revisionColumns).
			AddRow(int64(20), int64(1), int64(3), int64(4), []byte("20240102000000"), int64(0), int64(0), int64(100), int64(19), []byte("b")).
			AddRow(int64(19), int64(1), int64(2), int64(4), []byte("20240101000000"), int64(1), int64(0), int64(90), int64(0), []byte("a")))

	ctx := context.Background()
	revs, err := l.PageRevisions(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, int64(20), revs[0].ID)

	rev, err := l.Revisions.Load(ctx, 19)
	require.NoError(t, err)
	assert.Equal(t, "20240101000000", rev.Timestamp)
	require.NoError(t, mock.ExpectationsWereMet())
}
