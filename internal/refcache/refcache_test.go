package refcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeStore struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	gets    int
	sets    int
	lastTTL time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (s *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	s.gets++
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (s *fakeStore) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	s.sets++
	s.lastTTL = expiration
	if s.setErr != nil {
		return redis.NewStatusResult("", s.setErr)
	}
	s.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

type fakeSource struct {
	records   []dataset.MechanismRecord
	relations []dataset.TargetRelation
	err       error
	calls     int
}

func (f *fakeSource) Mechanisms(ctx context.Context) ([]dataset.MechanismRecord, error) {
	f.calls++
	return f.records, f.err
}

func (f *fakeSource) TargetRelations(ctx context.Context) ([]dataset.TargetRelation, error) {
	return f.relations, nil
}

func fixtureSource() *fakeSource {
	return &fakeSource{
		records: []dataset.MechanismRecord{
			{CompoundID: "1", TargetID: "10", MaxPhase: dataset.PhaseApproved, DiseaseRelevant: true},
			{CompoundID: "2", TargetID: "11", MaxPhase: dataset.PhaseEarly},
		},
		relations: []dataset.TargetRelation{
			{TargetID: "100", RelatedID: "10", Kind: dataset.RelationFamily},
			{TargetID: "12", RelatedID: "13", Kind: dataset.RelationHomologue},
		},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "dtiset:mechanisms:34", Key("34"))
}

func TestCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	src := fixtureSource()

	first := New(src, store, "34", time.Hour, nil)
	records, err := first.Mechanisms(ctx)
	require.NoError(t, err)
	relations, err := first.TargetRelations(ctx)
	require.NoError(t, err)

	assert.Equal(t, src.records, records)
	assert.Equal(t, src.relations, relations)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, store.gets, "snapshot is resolved once per cache")
	assert.Equal(t, 1, store.sets)
	assert.Equal(t, time.Hour, store.lastTTL)
	assert.Contains(t, store.data, "dtiset:mechanisms:34")

	second := New(src, store, "34", time.Hour, nil)
	records, err = second.Mechanisms(ctx)
	require.NoError(t, err)
	relations, err = second.TargetRelations(ctx)
	require.NoError(t, err)

	assert.Equal(t, src.records, records)
	assert.Equal(t, src.relations, relations)
	assert.Equal(t, 1, src.calls, "hit must not touch the source")
}

func TestCache_VersionIsolated(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	src := fixtureSource()

	_, err := New(src, store, "33", time.Hour, nil).Mechanisms(ctx)
	require.NoError(t, err)
	_, err = New(src, store, "34", time.Hour, nil).Mechanisms(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls)
	assert.Len(t, store.data, 2)
}

func TestCache_Degrades(t *testing.T) {
	redisDown := errors.New("dial tcp: connection refused")

	tests := []struct {
		name    string
		prepare func(*fakeStore)
		warning string
	}{
		{"get fails", func(s *fakeStore) { s.getErr = redisDown }, "reading snapshot failed"},
		{"set fails", func(s *fakeStore) { s.setErr = redisDown }, "writing snapshot failed"},
		{"corrupt snapshot", func(s *fakeStore) { s.data[Key("34")] = []byte("{not json") }, "decoding snapshot failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			tt.prepare(store)
			src := fixtureSource()
			tl := logging.NewTestLogger()

			c := New(src, store, "34", time.Hour, tl.Underlying())
			records, err := c.Mechanisms(context.Background())
			require.NoError(t, err)
			assert.Equal(t, src.records, records)
			assert.Equal(t, 1, src.calls)
			tl.AssertLogged(t, zapcore.WarnLevel, tt.warning)
		})
	}
}

func TestCache_StaleVersionRefreshes(t *testing.T) {
	store := newFakeStore()
	store.data[Key("34")] = []byte(`{"version":0,"mechanisms":[{"compound_id":"9","target_id":"99"}]}`)
	src := fixtureSource()

	records, err := New(src, store, "34", time.Hour, nil).Mechanisms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src.records, records)
	assert.Equal(t, 1, store.sets)
}

func TestCache_NilStore(t *testing.T) {
	src := fixtureSource()
	c := New(src, nil, "34", 0, nil)

	records, err := c.Mechanisms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src.records, records)
	_, err = c.TargetRelations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestCache_SourceError(t *testing.T) {
	store := newFakeStore()
	src := &fakeSource{err: errors.New("chembl unavailable")}

	_, err := New(src, store, "34", time.Hour, nil).Mechanisms(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chembl unavailable")
	assert.Empty(t, store.data, "failed loads are not cached")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "http://not-redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing redis url")
}
