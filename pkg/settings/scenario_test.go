package settings_test

import (
	"context"
	"iter"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-settings/internal/vault"
	"github.com/celerix-dev/celerix-settings/pkg/engine"
	"github.com/celerix-dev/celerix-settings/pkg/engine/sqlite"
	"github.com/celerix-dev/celerix-settings/pkg/settings"
)

type Profile struct {
	Name string `json:"name"`
}

func engines(t *testing.T) map[string]engine.Engine {
	t.Helper()
	fileStore, err := engine.Open(t.TempDir())
	require.NoError(t, err)
	sqlStore, err := sqlite.Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		fileStore.Close()
		sqlStore.Close()
	})
	return map[string]engine.Engine{
		"memory": engine.NewMemStore(nil, nil),
		"file":   fileStore,
		"sqlite": sqlStore,
	}
}

func quiet() settings.Option {
	return settings.WithLogging(settings.LoggingConfig{Verbosity: settings.LogNone})
}

func TestScenarios(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())

			// Bool flag in the standard partition
			require.NoError(t, settings.Store(s, settings.Standard, "flag", true))
			flag, err := settings.Read[bool](s, settings.Standard, "flag")
			require.NoError(t, err)
			assert.True(t, flag)

			// Codec path in a custom partition stays out of the standard one
			sync := settings.Custom("sync")
			require.NoError(t, settings.StoreEncoded(s, sync, "profile", Profile{Name: "a"}))
			p, err := settings.ReadEncoded[Profile](s, sync, "profile")
			require.NoError(t, err)
			assert.Equal(t, Profile{Name: "a"}, p)
			_, err = settings.ReadEncoded[Profile](s, settings.Standard, "profile")
			assert.ErrorIs(t, err, settings.ErrKeyNotFound)

			// Raw string read as an int
			require.NoError(t, settings.Store(s, settings.Standard, "age", "forty"))
			_, err = settings.Read[int](s, settings.Standard, "age")
			assert.ErrorIs(t, err, settings.ErrTypeMismatch)
			assert.NotErrorIs(t, err, settings.ErrKeyNotFound)

			// Remove then read
			require.NoError(t, s.Remove(settings.Standard, "flag"))
			_, err = settings.Read[bool](s, settings.Standard, "flag")
			assert.ErrorIs(t, err, settings.ErrKeyNotFound)

			// RemoveAll keeps other partitions
			require.NoError(t, s.RemoveAll(sync))
			_, err = settings.ReadEncoded[Profile](s, sync, "profile")
			assert.ErrorIs(t, err, settings.ErrKeyNotFound)
			age, err := settings.Read[string](s, settings.Standard, "age")
			require.NoError(t, err)
			assert.Equal(t, "forty", age)
		})
	}
}

func TestScenario_FileEngineSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	e, err := engine.Open(dir)
	require.NoError(t, err)
	s := settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())
	require.NoError(t, settings.Store(s, settings.AuthScoped, "count", 7))
	require.NoError(t, settings.StoreEncoded(s, settings.Custom("sync"), "profile", Profile{Name: "b"}))
	require.NoError(t, e.Close())

	e, err = engine.Open(dir)
	require.NoError(t, err)
	s = settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())

	count, err := settings.Read[int](s, settings.AuthScoped, "count")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	p, err := settings.ReadEncoded[Profile](s, settings.Custom("sync"), "profile")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name)

	// Another bundle id sees none of it
	other := settings.New(settings.NewResolver(e, "dev.celerix.other"), quiet())
	_, err = settings.Read[int](other, settings.AuthScoped, "count")
	assert.ErrorIs(t, err, settings.ErrKeyNotFound)
}

func TestScenario_ValuesRoundTripExactly(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())

			require.NoError(t, settings.Store(s, settings.Standard, "nan", math.NaN()))
			require.NoError(t, settings.Store(s, settings.Standard, "inf", math.Inf(1)))
			require.NoError(t, settings.Store(s, settings.Standard, "raw", "a\xffb"))

			nan, err := settings.Read[float64](s, settings.Standard, "nan")
			require.NoError(t, err)
			assert.True(t, math.IsNaN(nan))
			inf, err := settings.Read[float64](s, settings.Standard, "inf")
			require.NoError(t, err)
			assert.True(t, math.IsInf(inf, 1))
			raw, err := settings.Read[string](s, settings.Standard, "raw")
			require.NoError(t, err)
			assert.Equal(t, "a\xffb", raw)

			// Keys must survive persistence as written
			err = settings.Store(s, settings.Standard, "k\xff", 1)
			assert.ErrorIs(t, err, settings.ErrUnexpected)
			assert.ErrorIs(t, err, engine.ErrInvalidKey)
		})
	}
}

func TestScenario_NaNDoesNotBlockPersistence(t *testing.T) {
	dir := t.TempDir()

	e, err := engine.Open(dir)
	require.NoError(t, err)
	s := settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())
	require.NoError(t, settings.Store(s, settings.Standard, "ratio", math.NaN()))
	require.NoError(t, settings.Store(s, settings.Standard, "name", "kept"))
	require.NoError(t, settings.Store(s, settings.Standard, "raw", "a\xffb"))
	require.NoError(t, e.Close())

	e, err = engine.Open(dir)
	require.NoError(t, err)
	defer e.Close()
	s = settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())

	ratio, err := settings.Read[float64](s, settings.Standard, "ratio")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ratio))
	name, err := settings.Read[string](s, settings.Standard, "name")
	require.NoError(t, err)
	assert.Equal(t, "kept", name)
	raw, err := settings.Read[string](s, settings.Standard, "raw")
	require.NoError(t, err)
	assert.Equal(t, "a\xffb", raw)
}

func TestScenario_SealedSecrets(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	e := engine.NewMemStore(nil, nil)
	r := settings.NewResolver(e, "dev.celerix.scenario")
	sealed := settings.New(r, settings.WithCodec(vault.NewCodec(settings.JSONCodec{}, key)), quiet())
	plain := settings.New(r, quiet())

	require.NoError(t, settings.StoreEncoded(sealed, settings.AuthScoped, "token", "s3cret"))

	token, err := settings.ReadEncoded[string](sealed, settings.AuthScoped, "token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", token)

	// Without the key the payload does not decode
	_, err = settings.ReadEncoded[string](plain, settings.AuthScoped, "token")
	assert.ErrorIs(t, err, settings.ErrTypeMismatch)

	raw, err := plain.Get(settings.AuthScoped, "token")
	require.NoError(t, err)
	data, ok := raw.AsData()
	require.True(t, ok)
	assert.NotContains(t, string(data), "s3cret")
}

func next[T any](t *testing.T, pull func() (T, bool)) T {
	t.Helper()
	type item struct {
		v  T
		ok bool
	}
	got := make(chan item, 1)
	go func() {
		v, ok := pull()
		got <- item{v, ok}
	}()
	select {
	case it := <-got:
		require.True(t, it.ok, "stream ended early")
		return it.v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream item")
	}
	panic("unreachable")
}

func TestObserve(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			s := settings.New(settings.NewResolver(e, "dev.celerix.scenario"), quiet())
			ctx := context.Background()

			pull, stop := iter.Pull(settings.Observe[int](ctx, s, settings.Standard, "counter"))
			defer stop()

			first := next(t, pull)
			assert.ErrorIs(t, first.Err, settings.ErrKeyNotFound)

			require.NoError(t, settings.Store(s, settings.Standard, "counter", 1))
			second := next(t, pull)
			require.NoError(t, second.Err)
			assert.Equal(t, 1, second.Value)

			// Wrong type and removal show up as failure items; the stream goes on
			require.NoError(t, settings.Store(s, settings.Standard, "counter", "one"))
			assert.ErrorIs(t, next(t, pull).Err, settings.ErrTypeMismatch)

			require.NoError(t, s.Remove(settings.Standard, "counter"))
			assert.ErrorIs(t, next(t, pull).Err, settings.ErrKeyNotFound)

			require.NoError(t, settings.Store(s, settings.Standard, "counter", 3))
			last := next(t, pull)
			require.NoError(t, last.Err)
			assert.Equal(t, 3, last.Value)
		})
	}
}

func TestObserveEncoded_IndependentSubscriptions(t *testing.T) {
	s := settings.New(settings.NewResolver(engine.NewMemStore(nil, nil), "dev.celerix.scenario"), quiet())
	sync := settings.Custom("sync")
	require.NoError(t, settings.StoreEncoded(s, sync, "profile", Profile{Name: "a"}))

	seq := settings.ObserveEncoded[Profile](context.Background(), s, sync, "profile")
	pullA, stopA := iter.Pull(seq)
	pullB, stopB := iter.Pull(seq)
	defer stopB()

	assert.Equal(t, "a", next(t, pullA).Value.Name)
	assert.Equal(t, "a", next(t, pullB).Value.Name)

	// Stopping one subscription leaves the other running
	stopA()
	require.NoError(t, settings.StoreEncoded(s, sync, "profile", Profile{Name: "b"}))
	assert.Equal(t, "b", next(t, pullB).Value.Name)
}

func TestObserve_ContextCancelEndsStream(t *testing.T) {
	s := settings.New(settings.NewResolver(engine.NewMemStore(nil, nil), "dev.celerix.scenario"), quiet())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int)
	go func() {
		n := 0
		for range settings.Observe[bool](ctx, s, settings.Standard, "flag") {
			n++
		}
		done <- n
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case n := <-done:
		assert.GreaterOrEqual(t, n, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
}

func TestObserve_CannotOpenPartition(t *testing.T) {
	s := settings.New(settings.NewResolver(engine.NewMemStore(nil, nil), "dev.celerix.scenario"), quiet())

	var items []settings.Result[string]
	for r := range settings.Observe[string](context.Background(), s, settings.Custom("a/b"), "k") {
		items = append(items, r)
	}
	require.Len(t, items, 1)
	assert.ErrorIs(t, items[0].Err, settings.ErrCannotOpenPartition)
}

func TestObserveValue_AnyKind(t *testing.T) {
	s := settings.New(settings.NewResolver(engine.NewMemStore(nil, nil), "dev.celerix.scenario"), quiet())
	pull, stop := iter.Pull(settings.ObserveValue(context.Background(), s, settings.Standard, "k"))
	defer stop()

	assert.ErrorIs(t, next(t, pull).Err, settings.ErrKeyNotFound)

	require.NoError(t, settings.Store(s, settings.Standard, "k", "text"))
	assert.True(t, next(t, pull).Value.Equal(engine.String("text")))

	require.NoError(t, settings.Store(s, settings.Standard, "k", 2.5))
	assert.True(t, next(t, pull).Value.Equal(engine.Float(2.5)))
}
