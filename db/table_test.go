package db

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardsql/connector"
	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/query"
	"github.com/ceyewan/shardsql/router"
	"github.com/ceyewan/shardsql/testkit"
	"github.com/ceyewan/shardsql/xerrors"
)

// recordingOpener 所有分片共用同一连接，并记录打开过的连接名
type recordingOpener struct {
	conn  connector.Connection
	mu    sync.Mutex
	names []string
}

func (o *recordingOpener) open(_ context.Context, cfg *connector.Config) (connector.Connection, error) {
	o.mu.Lock()
	o.names = append(o.names, cfg.Name)
	o.mu.Unlock()
	return o.conn, nil
}

func (o *recordingOpener) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.names) == 0 {
		return ""
	}
	return o.names[len(o.names)-1]
}

type fixture struct {
	db     *DB
	users  *Table
	mock   sqlmock.Sqlmock
	meter  *testkit.Meter
	opener *recordingOpener
}

func newMockFixture(t *testing.T) *fixture {
	t.Helper()
	conn, mock := testkit.NewMockConnection(t)
	opener := &recordingOpener{conn: conn}

	r, err := router.New(testkit.NewTopology(t), router.WithOpener(opener.open))
	require.NoError(t, err)

	meter := testkit.NewMeter()
	d, err := New(r, WithMeter(meter), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	users, err := d.Table("user", "user")
	require.NoError(t, err)
	return &fixture{db: d, users: users, mock: mock, meter: meter, opener: opener}
}

func TestSelect(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT `user_id`,`name`,`age` FROM `user_v2` WHERE `age` > ? LIMIT 10").
		WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "age"}).
			AddRow(int64(1), []byte("bob"), []byte("20")).
			AddRow(int64(2), []byte("amy"), []byte("31")))

	res, err := f.users.Select(ctx, Target{ShardKey: 1},
		[]string{"user_id", "name", "age[Int]"},
		query.M("age[>]", 18, "LIMIT", 10))
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Equal(t, query.Row{"user_id": int64(1), "name": "bob", "age": int64(20)}, res.First())
	assert.Equal(t, "amy", res.Rows[1]["name"])

	assert.Equal(t, float64(1), f.meter.Value(metrics.MetricQueriesTotal))
	assert.Equal(t, float64(1), f.meter.Value(metrics.MetricQueryDuration))
	assert.Equal(t, map[string]string{
		metrics.LabelOperation: "select",
		metrics.LabelGroup:     "user",
		metrics.LabelRole:      "reader",
		metrics.LabelOutcome:   metrics.OutcomeSuccess,
	}, f.meter.LastLabels(metrics.MetricQueriesTotal))
	assert.True(t, strings.HasSuffix(f.opener.last(), ":reader"))
}

func TestSelect_SingleColumn(t *testing.T) {
	f := newMockFixture(t)

	f.mock.ExpectQuery("SELECT `name` FROM `user_v2` WHERE `age` > ?").
		WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("a")).AddRow([]byte("b")))

	res, err := f.users.Select(context.Background(), Target{}, "name", query.M("age[>]", 18))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, res.Values)
	assert.Equal(t, "a", res.Value())
}

func TestGet_IgnoresLimit(t *testing.T) {
	f := newMockFixture(t)

	f.mock.ExpectQuery("SELECT `user_id`,`name` FROM `user_v2` WHERE `user_id` = ?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name"}).
			AddRow(int64(7), []byte("bob")).
			AddRow(int64(8), []byte("eve")))

	res, err := f.users.Get(context.Background(), Target{ShardKey: 7, PreferWriter: true},
		[]string{"user_id", "name"}, query.M("user_id", 7, "LIMIT", 5))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "bob", res.First()["name"])
	assert.True(t, strings.HasSuffix(f.opener.last(), ":writer"))
}

func TestHasAndCount(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT EXISTS(SELECT 1 FROM `user_v2` WHERE `name` = ?)").
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(int64(1)))
	f.mock.ExpectQuery("SELECT EXISTS(SELECT 1 FROM `user_v2` WHERE `name` = ?)").
		WithArgs("zed").
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow([]byte("0")))
	f.mock.ExpectQuery("SELECT COUNT(*) FROM `user_v2` WHERE `age` > ?").
		WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow([]byte("3")))

	ok, err := f.users.Has(ctx, Target{}, query.M("name", "bob"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.users.Has(ctx, Target{}, query.M("name", "zed"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := f.users.Count(ctx, Target{}, query.M("age[>]", 18))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "count", f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelOperation])
}

func TestInsertID(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()
	target := Target{ShardKey: 10}

	// 单行且给出主键
	f.mock.ExpectExec("INSERT INTO `user_v2` (`user_id`, `name`) VALUES (?, ?)").
		WithArgs(int64(10), "carol").
		WillReturnResult(sqlmock.NewResult(0, 1))
	id, err := f.users.InsertID(ctx, target, query.M("user_id", 10, "name", "carol"))
	require.NoError(t, err)
	assert.Equal(t, 10, id)
	assert.True(t, strings.HasSuffix(f.opener.last(), ":writer"))

	// 单行未给出主键
	f.mock.ExpectExec("INSERT INTO `user_v2` (`name`) VALUES (?)").
		WithArgs("dave").
		WillReturnResult(sqlmock.NewResult(42, 1))
	id, err = f.users.InsertID(ctx, target, query.M("name", "dave"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), f.users.ID())

	// 多行
	f.mock.ExpectExec("INSERT INTO `user_v2` (`name`) VALUES (?), (?)").
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(44, 2))
	id, err = f.users.InsertID(ctx, target, []query.Map{query.M("name", "a"), query.M("name", "b")})
	require.NoError(t, err)
	assert.Equal(t, int64(44), id)

	// 复合主键
	members, err := f.db.Table("member", "user", "group_id", "user_id")
	require.NoError(t, err)
	f.mock.ExpectExec("INSERT INTO `member_v2` (`group_id`, `user_id`, `role`) VALUES (?, ?, ?)").
		WithArgs(int64(1), int64(2), "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	id, err = members.InsertID(ctx, target, query.M("group_id", 1, "user_id", 2, "role", "admin"))
	require.NoError(t, err)
	assert.Equal(t, query.M("group_id", 1, "user_id", 2), id)
}

func TestInsert_EmptyData(t *testing.T) {
	f := newMockFixture(t)

	_, err := f.users.Insert(context.Background(), Target{}, query.M())
	assert.ErrorIs(t, err, query.ErrEmptyData)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
	assert.Equal(t, xerrors.CodeArgument, xerrors.GetCode(err))

	_, err = f.users.Update(context.Background(), Target{}, nil, query.M("user_id", 1))
	assert.ErrorIs(t, err, query.ErrEmptyData)
	assert.Equal(t, float64(0), f.meter.Value(metrics.MetricQueriesTotal))
}

func TestUpdateAndDelete(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectExec("UPDATE `user_v2` SET `name` = ?, `score` = `score` + 1 WHERE `user_id` = ?").
		WithArgs("bob", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res, err := f.users.Update(ctx, Target{ShardKey: 3}, query.M("name", "bob", "score[+]", 1), query.M("user_id", 3))
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	driverErr := errors.New("deadlock")
	f.mock.ExpectExec("DELETE FROM `user_v2` WHERE `user_id` = ?").
		WithArgs(int64(3)).
		WillReturnError(driverErr)
	_, err = f.users.Delete(ctx, Target{ShardKey: 3}, query.M("user_id", 3))
	assert.ErrorIs(t, err, driverErr)
	assert.ErrorIs(t, err, xerrors.ErrExecution)
	assert.Equal(t, metrics.OutcomeError, f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelOutcome])
	assert.Equal(t, "writer", f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelRole])
}

func TestRandAndReplace(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT `user_id`,`name` FROM `user_v2` WHERE `age` > ? ORDER BY RAND() LIMIT 2").
		WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name"}).AddRow(int64(4), []byte("eve")))
	res, err := f.users.Rand(ctx, Target{ShardKey: 1}, []string{"user_id", "name"},
		query.M("age[>]", 18, "ORDER", "user_id", "LIMIT", 2))
	require.NoError(t, err)
	assert.Equal(t, query.Row{"user_id": int64(4), "name": "eve"}, res.First())
	assert.Equal(t, "rand", f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelOperation])
	assert.True(t, strings.HasSuffix(f.opener.last(), ":reader"))

	f.mock.ExpectExec("UPDATE `user_v2` SET `name` = REPLACE(`name`, ?, ?) WHERE `user_id` = ?").
		WithArgs("bob", "rob", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = f.users.Replace(ctx, Target{ShardKey: 3}, query.M("name", query.M("bob", "rob")), query.M("user_id", 3))
	require.NoError(t, err)
	assert.Equal(t, "writer", f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelRole])
	assert.True(t, strings.HasSuffix(f.opener.last(), ":writer"))

	_, err = f.users.Replace(ctx, Target{}, query.M("name", "bob"), nil)
	assert.ErrorIs(t, err, query.ErrEmptyData)
	assert.Equal(t, xerrors.CodeArgument, xerrors.GetCode(err))
}

func TestFind(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT * FROM `user_v2` WHERE (`user_id` = ?)").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name"}).AddRow(int64(7), []byte("bob")))
	row, err := f.users.Find(ctx, Target{ShardKey: 7}, 7)
	require.NoError(t, err)
	assert.Equal(t, query.Row{"user_id": int64(7), "name": "bob"}, row)

	// 映射形式的 id
	f.mock.ExpectQuery("SELECT * FROM `user_v2` WHERE (`user_id` = ?)").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	row, err = f.users.Find(ctx, Target{ShardKey: 8}, query.M("user_id", 8))
	require.NoError(t, err)
	assert.Nil(t, row)

	// where 中已有 AND 时不追加主键条件
	f.mock.ExpectQuery("SELECT * FROM `user_v2` WHERE (`name` = ?)").
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(7)))
	row, err = f.users.Find(ctx, Target{ShardKey: 7}, 7, query.M("AND", query.M("name", "bob")))
	require.NoError(t, err)
	assert.Equal(t, int64(7), row["user_id"])
}

func TestFind_PrimaryKeyArity(t *testing.T) {
	f := newMockFixture(t)

	tests := []struct {
		name string
		id   any
	}{
		{name: "too many ids", id: []any{1, 2}},
		{name: "map with two keys", id: query.M("user_id", 1, "name", "bob")},
		{name: "empty list", id: []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Find(context.Background(), Target{}, tt.id)
			assert.ErrorIs(t, err, ErrPrimaryKeyArity)
			assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
			assert.Equal(t, xerrors.CodeArgument, xerrors.GetCode(err))
		})
	}
	assert.Empty(t, f.opener.last())
}

func TestFindForUpdate(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT * FROM `user_v2` WHERE (`user_id` = ?) FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score"}).AddRow(int64(5), int64(10)))
	f.mock.ExpectExec("UPDATE `user_v2` SET `score` = ? WHERE `user_id` = ?").
		WithArgs(int64(11), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	err := f.users.Transaction(ctx, 5, func(ctx context.Context) error {
		row, err := f.users.FindForUpdate(ctx, 5, 5)
		if err != nil {
			return err
		}
		score := row["score"].(int64)
		_, err = f.users.Update(ctx, Target{ShardKey: 5}, query.M("score", score+1), query.M("user_id", 5))
		return err
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.opener.last(), ":writer"))
}

func TestTransaction_Rollback(t *testing.T) {
	f := newMockFixture(t)
	boom := errors.New("boom")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	err := f.users.Transaction(context.Background(), 1, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	assert.Panics(t, func() {
		_ = f.users.Transaction(context.Background(), 1, func(ctx context.Context) error {
			panic("oops")
		})
	})
}

func TestDebug(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	res, err := f.users.Debug().Select(ctx, Target{}, []string{"user_id"}, query.M("age[>]", 18))
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Contains(t, f.users.Last(), "SELECT `user_id` FROM `user_v2` WHERE `age` > 18")
	assert.Equal(t, metrics.OutcomeDryRun, f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelOutcome])

	// 一次性
	f.mock.ExpectExec("DELETE FROM `user_v2` WHERE `user_id` = ?").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = f.users.Delete(ctx, Target{}, query.M("user_id", 1))
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSuccess, f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelOutcome])
}

func TestQueryAndExec(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT `name` FROM `user_v2` WHERE `user_id` = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("bob")))
	rows, err := f.users.Query(ctx, Target{ShardKey: 1}, "SELECT <name> FROM <user_v2> WHERE <user_id> = :id", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, []query.Row{{"name": "bob"}}, rows)
	assert.True(t, strings.HasSuffix(f.opener.last(), ":reader"))

	f.mock.ExpectExec("UPDATE `user_v2` SET `age` = ?").
		WithArgs(int64(30)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	_, err = f.users.Exec(ctx, Target{ShardKey: 1}, "UPDATE <user_v2> SET <age> = :age", map[string]any{"age": 30})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.opener.last(), ":writer"))
	assert.Equal(t, "exec", f.meter.LastLabels(metrics.MetricQueriesTotal)[metrics.LabelOperation])
}

func TestQuote(t *testing.T) {
	f := newMockFixture(t)

	s, err := f.users.Quote(context.Background(), Target{}, "it's")
	require.NoError(t, err)
	assert.Equal(t, `'it\'s'`, s)
}

func TestIsSelect(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  \n\tselect * FROM t", true},
		{"Select", true},
		{"UPDATE t SET a = 1", false},
		{"sel", false},
		{"", false},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isSelect(tt.sql), tt.sql)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{true, true},
		{int64(0), false},
		{int64(1), true},
		{"0", false},
		{"", false},
		{"1", true},
		{float64(1), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.v), "%v", tt.v)
	}
}
