package wikidb

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/dbpool"
	"wiki-graphql/internal/wiki"
)

func newTestLoaders(t *testing.T) (*Loaders, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	pool := dbpool.New(db, dbpool.Config{MaxOpen: 2, IdleTimeout: time.Minute}, nil)
	t.Cleanup(func() {
		_ = pool.Shutdown(context.Background())
	})
	exec := dbexec.NewExecutor(pool, nil)
	return NewLoaders(exec, Config{}, nil, nil), mock
}

func pageRows() *sqlmock.Rows {
	return sqlmock.NewRows(pageColumns)
}

func addPage(rows *sqlmock.Rows, id int64, ns int64, title string) *sqlmock.Rows {
	return rows.AddRow(id, ns, []byte(title), int64(0), int64(0),
		[]byte("20240101000000"), []byte("20240101000000"), id*10, int64(1234),
		[]byte("wikitext"), nil)
}

func TestPagesByIDCoalescesIntoOneStatement(t *testing.T) {
	l, mock := newTestLoaders(t)
	ctx := context.Background()

	rows := pageRows()
	for id := int64(1); id <= 50; id += 2 {
		addPage(rows, id, 0, "Page_"+string(rune('A'+id%26)))
	}
	args := make([]driver.Value, 0, 50)
	for id := int64(1); id <= 50; id++ {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", 50), ",")
	mock.ExpectQuery(regexp.QuoteMeta("FROM `page` WHERE `page_id` IN (" + placeholders + ")")).
		WithArgs(args...).
		WillReturnRows(rows)

	thunks := make([]func() (*wiki.Page, error), 0, 50)
	for id := int64(1); id <= 50; id++ {
		thunks = append(thunks, l.PagesByID.LoadThunk(ctx, id))
	}
	for i, thunk := range thunks {
		page, err := thunk()
		require.NoError(t, err)
		id := int64(i + 1)
		if id%2 == 1 {
			require.NotNil(t, page, "page %d", id)
			assert.Equal(t, id, page.ID)
			assert.Equal(t, id*10, page.Latest)
		} else {
			assert.Nil(t, page, "page %d has no row", id)
		}
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPagesByTitleUsesTupleIn(t *testing.T) {
	l, mock := newTestLoaders(t)
	ctx := context.Background()

	rows := addPage(pageRows(), 7, wiki.NSCategory, "Physics")
	addPage(rows, 3, wiki.NSMain, "Main_Page")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (`page_namespace`, `page_title`) IN ((?,?), (?,?), (?,?))")).
		WithArgs(0, "Main_Page", 14, "Physics", 0, "Missing").
		WillReturnRows(rows)

	values, errs := l.PagesByTitle.LoadMany(ctx, []wiki.TitleKey{
		wiki.NewTitleKey(wiki.NSMain, "Main Page"),
		wiki.NewTitleKey(wiki.NSCategory, "Physics"),
		wiki.NewTitleKey(wiki.NSMain, "Missing"),
	})
	assert.Nil(t, errs)
	require.Len(t, values, 3)
	assert.Equal(t, int64(3), values[0].ID)
	assert.Equal(t, int64(7), values[1].ID)
	assert.Equal(t, "Physics", values[1].Title)
	assert.Nil(t, values[2])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptions(t *testing.T) {
	l, mock := newTestLoaders(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `page_id`, `pp_value` FROM `page` LEFT JOIN page_props ON page_id = pp_page WHERE pp_propname = ? AND `page_id` IN (?,?)")).
		WithArgs("wikibase-shortdesc", 1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"page_id", "pp_value"}).AddRow(int64(2), []byte("Branch of science")))

	values, errs := l.Descriptions.LoadMany(context.Background(), []int64{1, 2})
	assert.Nil(t, errs)
	assert.Nil(t, values[0])
	require.NotNil(t, values[1])
	assert.Equal(t, "Branch of science", *values[1])
}

func TestUserGroupsOneToMany(t *testing.T) {
	l, mock := newTestLoaders(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM `user_groups` WHERE `ug_user` IN (?,?)")).
		WillReturnRows(sqlmock.NewRows([]string{"ug_user", "ug_group", "ug_expiry"}).
			AddRow(int64(5), []byte("sysop"), nil).
			AddRow(int64(5), []byte("rollbacker"), []byte("20300101000000")))

	values, errs := l.UserGroups.LoadMany(context.Background(), []int64{5, 6})
	assert.Nil(t, errs)
	require.Len(t, values[0], 2)
	assert.Equal(t, "sysop", values[0][0].Group)
	assert.Nil(t, values[0][0].Expiry)
	require.NotNil(t, values[0][1].Expiry)
	assert.Equal(t, "20300101000000", *values[0][1].Expiry)
	assert.NotNil(t, values[1])
	assert.Empty(t, values[1])
}

func TestRevisionTagsAndNames(t *testing.T) {
	l, mock := newTestLoaders(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM `change_tag` WHERE `ct_rev_id` IN (?,?)")).
		WillReturnRows(sqlmock.NewRows([]string{"ct_rev_id", "ct_tag_id"}).
			AddRow(int64(100), int64(1)).
			AddRow(int64(100), int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM `change_tag_def` WHERE `ctd_id` IN (?,?)")).
		WillReturnRows(sqlmock.NewRows([]string{"ctd_id", "ctd_name"}).
			AddRow(int64(1), []byte("mobile edit")).
			AddRow(int64(4), []byte("visualeditor")))

	tags, errs := l.RevisionTags.LoadMany(ctx, []int64{100, 101})
	assert.Nil(t, errs)
	assert.Equal(t, []int64{1, 4}, tags[0])
	assert.Equal(t, []int64{}, tags[1])

	names, errs := l.TagNames.LoadMany(ctx, tags[0])
	assert.Nil(t, errs)
	assert.Equal(t, "mobile edit", *names[0])
	assert.Equal(t, "visualeditor", *names[1])
}

func TestBatchFailureFailsEveryKey(t *testing.T) {
	l, mock := newTestLoaders(t)

	mock.ExpectQuery("FROM `actor`").
		WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'enwiki_p.actor' doesn't exist"})

	_, errs := l.Actors.LoadMany(context.Background(), []int64{1, 2, 3})
	require.Len(t, errs, 3)
	for _, err := range errs {
		var qerr *dbexec.QueryError
		require.True(t, errors.As(err, &qerr))
		assert.Equal(t, 1146, qerr.Code)
	}
}

func TestLargeBatchesAreChunked(t *testing.T) {
	l, mock := newTestLoaders(t)

	mock.ExpectQuery("FROM `revision` WHERE `rev_id` IN").
		WillReturnRows(sqlmock.NewRows(revisionColumns))
	mock.ExpectQuery("FROM `revision` WHERE `rev_id` IN").
		WillReturnRows(sqlmock.NewRows(revisionColumns).
			AddRow(int64(1001), int64(1), int64(0), int64(2), []byte("20240101000000"), int64(1), int64(0), int64(10), int64(0), []byte("abc")))

	keys := make([]int64, MaxKeysPerStatement+1)
	for i := range keys {
		keys[i] = int64(i + 1)
	}
	values, errs := l.Revisions.LoadMany(context.Background(), keys)
	assert.Nil(t, errs)
	require.Len(t, values, len(keys))
	assert.Nil(t, values[0])
	require.NotNil(t, values[MaxKeysPerStatement])
	assert.True(t, values[MaxKeysPerStatement].MinorEdit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStats(t *testing.T) {
	l, mock := newTestLoaders(t)
	mock.ExpectQuery("FROM `comment`").
		WillReturnRows(sqlmock.NewRows([]string{"comment_id", "comment_text"}).AddRow(int64(9), []byte("fix typo")))

	ctx := context.Background()
	_, _ = l.Comments.LoadMany(ctx, []int64{9, 9})
	text, err := l.Comments.Load(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "fix typo", *text)

	hits, misses := l.CacheStats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestContextRoundTrip(t *testing.T) {
	l, _ := newTestLoaders(t)
	ctx := NewContext(context.Background(), l)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, l, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
