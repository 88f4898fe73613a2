package explorer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/infrastructure/database/redis"
	"github.com/ryanyen2/Scholet/internal/testutil"
	"github.com/ryanyen2/Scholet/pkg/errors"
)

type mockBinCache struct {
	mock.Mock
}

// GetOrCompute returns the stubbed layer on a hit, the stubbed error on a
// failure, and otherwise fills from compute.
func (m *mockBinCache) GetOrCompute(ctx context.Context, version string, level int, column string,
	compute func() ([]binning.Group, error)) ([]binning.Group, error) {
	args := m.Called(ctx, version, level, column)
	if args.Bool(1) {
		g, _ := args.Get(0).([]binning.Group)
		return g, nil
	}
	if err := args.Error(2); err != nil {
		return nil, err
	}
	return compute()
}

func (m *mockBinCache) PutLadder(ctx context.Context, version, column string, layers map[int][]binning.Group) error {
	return m.Called(ctx, version, column, layers).Error(0)
}

func (m *mockBinCache) Invalidate(ctx context.Context, version string) (int64, error) {
	args := m.Called(ctx, version)
	return int64(args.Int(0)), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSelectionChanged(ctx context.Context, ev SelectionEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type countingMetrics struct {
	nopMetrics
	mu       sync.Mutex
	messages map[string]int
	sources  map[string]int
	sessions int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{messages: map[string]int{}, sources: map[string]int{}}
}

func (m *countingMetrics) ObserveMessage(source, status string) {
	m.messages[source+"/"+status]++
}

func (m *countingMetrics) ObserveBins(_ int, source string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source]++
}

func (m *countingMetrics) count(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[source]
}

func (m *countingMetrics) SetSessions(n int) { m.sessions = n }

func paper(id string, x, y float64, attrs ...string) entity.Record {
	r := entity.Record{ID: id, X: x, Y: y, Kind: entity.KindPaper, Attributes: map[string]string{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		r.Attributes[attrs[i]] = attrs[i+1]
	}
	return r
}

func testSet(t *testing.T) *entity.Set {
	t.Helper()
	set, _ := entity.NewSet([]entity.Record{
		paper("A", 0, 0, "cluster", "3"),
		paper("B", 9, 0, "cluster", "1"),
		paper("C", 9.9, 9.9, "cluster", "1"),
		paper("D", 5, 5, "cluster", "2"),
	})
	return set
}

func newTestService(t *testing.T, cfg Config, opts ...Option) *service {
	t.Helper()
	engine, err := binning.NewEngine(binning.DefaultLadder(), nil)
	require.NoError(t, err)
	svc := NewService(engine, cfg, testutil.NewMockLogger(), opts...).(*service)
	_, err = svc.LoadDataset(context.Background(), testSet(t), entity.Stats{Accepted: 4})
	require.NoError(t, err)
	return svc
}

func newSessionID(t *testing.T, svc Service) string {
	t.Helper()
	info, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	return info.ID
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func msg(id int64, ins ...instruction.Instruction) instruction.Message {
	return instruction.Message{ID: id, Role: instruction.RoleAssistant, Instructions: ins}
}

func groupWith(groups []binning.Group, member string) (binning.Group, bool) {
	for _, g := range groups {
		for _, m := range g.Members {
			if m == member {
				return g, true
			}
		}
	}
	return binning.Group{}, false
}

func TestLevels(t *testing.T) {
	svc := newTestService(t, Config{})
	info := svc.Levels()
	assert.Equal(t, 10, info.Levels[0])
	assert.Equal(t, 38, info.Levels[len(info.Levels)-1])
	assert.Equal(t, 20, info.Default)
	assert.Equal(t, 1.0, info.ZoomMin)
}

func TestSessionLifecycle(t *testing.T) {
	metrics := newCountingMetrics()
	svc := newTestService(t, Config{MaxSessions: 1}, WithMetrics(metrics))
	ctx := context.Background()

	id := newSessionID(t, svc)
	assert.Equal(t, 1, metrics.sessions)

	_, err := svc.CreateSession(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionLimit))

	info, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 20, info.DefaultLevel)

	require.NoError(t, svc.DeleteSession(ctx, id))
	assert.Equal(t, 0, metrics.sessions)

	_, err = svc.GetSession(ctx, id)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsCode(svc.DeleteSession(ctx, id), errors.ErrCodeSessionNotFound))
}

func TestBins_PartitionAndMemo(t *testing.T) {
	metrics := newCountingMetrics()
	svc := newTestService(t, Config{}, WithMetrics(metrics))
	ctx := context.Background()
	id := newSessionID(t, svc)

	res, err := svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Level)
	assert.Equal(t, SourceComputed, res.Source)
	assert.NotEmpty(t, res.Version)

	members := 0
	for _, g := range res.Groups {
		members += g.Count()
		assert.False(t, g.Selected)
	}
	assert.Equal(t, 4, members)

	res, err = svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
	assert.Equal(t, 1, metrics.sources[SourceComputed])
	assert.Equal(t, 1, metrics.sources[SourceMemory])
}

func TestBins_LevelSelection(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)

	res, err := svc.Bins(ctx, &BinsInput{SessionID: id, Zoom: floatPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, 38, res.Level)

	res, err = svc.Bins(ctx, &BinsInput{SessionID: id, Level: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Level)

	_, err = svc.Bins(ctx, &BinsInput{SessionID: id, Level: intPtr(11)})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))

	_, err = svc.Bins(ctx, &BinsInput{SessionID: id, Level: intPtr(10), Zoom: floatPtr(2)})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = svc.Bins(ctx, &BinsInput{SessionID: id, Column: "Title"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = svc.Bins(ctx, &BinsInput{SessionID: "missing"})
	assert.True(t, errors.IsNotFound(err))
}

func TestBins_Summary(t *testing.T) {
	svc := newTestService(t, Config{})
	id := newSessionID(t, svc)

	res, err := svc.Bins(context.Background(), &BinsInput{SessionID: id, Level: intPtr(10), Column: "cluster"})
	require.NoError(t, err)
	g, ok := groupWith(res.Groups, "A")
	require.True(t, ok)
	require.NotNil(t, g.Summary)
	assert.Equal(t, "3", g.Summary.Dominant)
}

func TestApplyMessage_OverlaysSelection(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)
	other := newSessionID(t, svc)

	res, err := svc.ApplyMessage(ctx, id, "http", msg(1,
		instruction.Instruction{Kind: instruction.KindAdd, Targets: []string{"A"}},
		instruction.Instruction{Kind: instruction.KindGroup, Targets: []string{"A"}, Label: "cluster-3"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, []string{"A"}, res.Touched)
	assert.False(t, res.Duplicate)

	bins, err := svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	g, ok := groupWith(bins.Groups, "A")
	require.True(t, ok)
	assert.True(t, g.Selected)
	assert.Equal(t, "cluster-3", g.Label)

	// Layers are shared, selection is not.
	bins, err = svc.Bins(ctx, &BinsInput{SessionID: other})
	require.NoError(t, err)
	g, _ = groupWith(bins.Groups, "A")
	assert.False(t, g.Selected)

	key, err := svc.QueryKey(ctx, id, "A")
	require.NoError(t, err)
	assert.True(t, key.Known)
	assert.True(t, key.Facets.Selected)
	assert.Equal(t, "cluster-3", key.Facets.Group)
}

func TestBins_SeesWholeMessages(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 200; i++ {
			kind := instruction.KindAdd
			if i%2 == 0 {
				kind = instruction.KindRemove
			}
			_, _ = svc.ApplyMessage(ctx, id, "http", msg(int64(i),
				instruction.Instruction{Kind: kind, Targets: []string{"A", "B"}}))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		bins, err := svc.Bins(ctx, &BinsInput{SessionID: id})
		require.NoError(t, err)
		a, _ := groupWith(bins.Groups, "A")
		b, _ := groupWith(bins.Groups, "B")
		require.Equal(t, a.Selected, b.Selected, "selection overlaid mid-message")
	}
}

func TestApplyMessage_GhostTarget(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)

	_, err := svc.ApplyMessage(ctx, id, "http", msg(1,
		instruction.Instruction{Kind: instruction.KindAdd, Targets: []string{"ghost-1"}}))
	require.NoError(t, err)

	key, err := svc.QueryKey(ctx, id, "ghost-1")
	require.NoError(t, err)
	assert.True(t, key.Known)

	bins, err := svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	for _, g := range bins.Groups {
		assert.False(t, g.Selected)
	}
}

func TestApplyMessage_DuplicateAndRejected(t *testing.T) {
	metrics := newCountingMetrics()
	svc := newTestService(t, Config{}, WithMetrics(metrics))
	ctx := context.Background()
	id := newSessionID(t, svc)

	first, err := svc.ApplyMessage(ctx, id, "kafka", msg(7,
		instruction.Instruction{Kind: instruction.KindHighlight, Targets: []string{"B"}}))
	require.NoError(t, err)

	again, err := svc.ApplyMessage(ctx, id, "kafka", msg(7,
		instruction.Instruction{Kind: instruction.KindRemove, Targets: []string{"B"}}))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Revision, again.Revision)

	key, _ := svc.QueryKey(ctx, id, "B")
	assert.True(t, key.Facets.Highlighted)

	_, err = svc.ApplyMessage(ctx, id, "kafka", msg(8,
		instruction.Instruction{Kind: instruction.KindAdd, Targets: []string{"C"}},
		instruction.Instruction{Kind: "EXPLODE", Targets: []string{"C"}}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInstruction))
	key, _ = svc.QueryKey(ctx, id, "C")
	assert.False(t, key.Known)

	log, err := svc.Messages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, log, 1)
	assert.Equal(t, 1, metrics.messages["kafka/applied"])
	assert.Equal(t, 1, metrics.messages["kafka/duplicate"])
	assert.Equal(t, 1, metrics.messages["kafka/rejected"])
}

func TestApplyMessage_ZeroIDNeverDeduplicated(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)

	for i := 0; i < 2; i++ {
		res, err := svc.ApplyMessage(ctx, id, "http", msg(0,
			instruction.Instruction{Kind: instruction.KindGeneral}))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
	}
	log, _ := svc.Messages(ctx, id)
	assert.Len(t, log, 2)
}

func TestApplyMessage_PublishesEvent(t *testing.T) {
	pub := new(mockPublisher)
	svc := newTestService(t, Config{}, WithPublisher(pub))
	ctx := context.Background()
	id := newSessionID(t, svc)

	pub.On("PublishSelectionChanged", ctx, mock.MatchedBy(func(ev SelectionEvent) bool {
		return ev.SessionID == id && ev.MessageID == 3 && len(ev.Touched) == 2 && ev.Revision == 2
	})).Return(nil).Once()

	_, err := svc.ApplyMessage(ctx, id, "http", msg(3,
		instruction.Instruction{Kind: instruction.KindObscure, Targets: []string{"A", "B"}}))
	require.NoError(t, err)

	// GENERAL_CONTEXT touches nothing and publishes nothing.
	_, err = svc.ApplyMessage(ctx, id, "http", msg(4, instruction.Instruction{Kind: instruction.KindGeneral}))
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestReset(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)

	_, err := svc.ApplyMessage(ctx, id, "http", msg(1,
		instruction.Instruction{Kind: instruction.KindAdd, Targets: []string{"A", "bin:0_0"}}))
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, id))
	sel, err := svc.Selection(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sel.Entries)
	log, _ := svc.Messages(ctx, id)
	assert.Empty(t, log)

	again, err := svc.ApplyMessage(ctx, id, "http", msg(1,
		instruction.Instruction{Kind: instruction.KindAdd, Targets: []string{"A"}}))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
}

func TestUpdateDefaultLevel(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()
	id := newSessionID(t, svc)

	assert.True(t, errors.IsCode(svc.UpdateDefaultLevel(ctx, id, 21), errors.ErrCodeInvalidResolution))
	require.NoError(t, svc.UpdateDefaultLevel(ctx, id, 30))

	res, err := svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, 30, res.Level)
}

func TestBins_SharedCache(t *testing.T) {
	cache := new(mockBinCache)
	svc := newTestService(t, Config{}, WithBinCache(cache))
	ctx := context.Background()
	id := newSessionID(t, svc)
	version := svc.Dataset().Version

	cache.On("GetOrCompute", ctx, version, 20, "").Return(nil, false, nil).Once()
	res, err := svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, SourceComputed, res.Source)

	cached := []binning.Group{{Key: binning.Key{Column: 1, Row: 1}, ID: "1_1", Level: 12, Members: []string{"A"}}}
	cache.On("GetOrCompute", ctx, version, 12, "").Return(cached, true, nil).Once()
	res, err = svc.Bins(ctx, &BinsInput{SessionID: id, Level: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, "1_1", res.Groups[0].ID)

	res, err = svc.Bins(ctx, &BinsInput{SessionID: id, Level: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
	cache.AssertExpectations(t)
}

func TestBins_CacheFailureFallsBack(t *testing.T) {
	cache := new(mockBinCache)
	svc := newTestService(t, Config{}, WithBinCache(cache))
	ctx := context.Background()
	id := newSessionID(t, svc)

	cache.On("GetOrCompute", ctx, mock.Anything, 20, "").Return(nil, false, errors.New(errors.ErrCodeCacheError, "down")).Once()

	res, err := svc.Bins(ctx, &BinsInput{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, SourceComputed, res.Source)
	assert.True(t, svc.logger.(*testutil.MockLogger).HasMessage("warn", "bin cache unavailable"))
}

func TestBins_ConcurrentMissesComputeOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Mode: "standalone", Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	shared := redis.NewBinCache(redis.NewRedisCache(client, nil), time.Minute, nil)

	for name, opts := range map[string][]Option{
		"shared cache": {WithBinCache(shared)},
		"in process":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			metrics := newCountingMetrics()
			svc := newTestService(t, Config{}, append(opts, WithMetrics(metrics))...)
			id := newSessionID(t, svc)

			const callers = 16
			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = svc.Bins(context.Background(), &BinsInput{SessionID: id, Level: intPtr(14)})
				}(i)
			}
			close(start)
			wg.Wait()

			for _, err := range errs {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, metrics.count(SourceComputed))
			assert.Equal(t, callers, metrics.count(SourceComputed)+metrics.count(SourceCache)+metrics.count(SourceMemory))
		})
	}
}

func TestLoadDataset_InvalidatesPreviousVersion(t *testing.T) {
	cache := new(mockBinCache)
	svc := newTestService(t, Config{}, WithBinCache(cache))
	ctx := context.Background()
	old := svc.Dataset().Version

	next, _ := entity.NewSet([]entity.Record{paper("Z", 1, 1)})
	cache.On("Invalidate", ctx, old).Return(3, nil).Once()

	info, err := svc.LoadDataset(ctx, next, entity.Stats{Accepted: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, info.Records)
	assert.NotEqual(t, old, info.Version)
	cache.AssertExpectations(t)

	_, err = svc.LoadDataset(ctx, nil, entity.Stats{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetEmpty))
}

func TestLoadDataset_AttributeOnlyReloadInvalidates(t *testing.T) {
	cache := new(mockBinCache)
	svc := newTestService(t, Config{}, WithBinCache(cache))
	ctx := context.Background()
	id := newSessionID(t, svc)
	old := svc.Dataset().Version

	cache.On("GetOrCompute", ctx, old, 20, "cluster").Return(nil, false, nil).Once()
	res, err := svc.Bins(ctx, &BinsInput{SessionID: id, Column: "cluster"})
	require.NoError(t, err)
	a, _ := groupWith(res.Groups, "A")
	require.NotNil(t, a.Summary)

	relabeled, _ := entity.NewSet([]entity.Record{
		paper("A", 0, 0, "cluster", "7"),
		paper("B", 9, 0, "cluster", "1"),
		paper("C", 9.9, 9.9, "cluster", "1"),
		paper("D", 5, 5, "cluster", "2"),
	})
	cache.On("Invalidate", ctx, old).Return(1, nil).Once()
	info, err := svc.LoadDataset(ctx, relabeled, entity.Stats{Accepted: 4})
	require.NoError(t, err)
	require.NotEqual(t, old, info.Version)

	cache.On("GetOrCompute", ctx, info.Version, 20, "cluster").Return(nil, false, nil).Once()
	res, err = svc.Bins(ctx, &BinsInput{SessionID: id, Column: "cluster"})
	require.NoError(t, err)
	assert.Equal(t, SourceComputed, res.Source)
	a, _ = groupWith(res.Groups, "A")
	assert.Equal(t, "7", a.Summary.Dominant)
	cache.AssertExpectations(t)
}

func TestWarm(t *testing.T) {
	cache := new(mockBinCache)
	svc := newTestService(t, Config{Concurrency: 2}, WithBinCache(cache))
	ctx := context.Background()
	id := newSessionID(t, svc)

	cache.On("PutLadder", ctx, svc.Dataset().Version, "cluster", mock.MatchedBy(func(layers map[int][]binning.Group) bool {
		return len(layers) == len(binning.DefaultLadder().Levels())
	})).Return(nil).Once()
	require.NoError(t, svc.Warm(ctx, "cluster"))

	res, err := svc.Bins(ctx, &BinsInput{SessionID: id, Level: intPtr(14), Column: "cluster"})
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, res.Source)
	cache.AssertExpectations(t)
}

func TestSweep(t *testing.T) {
	svc := newTestService(t, Config{SessionIdleTTL: time.Minute})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.registry.now = func() time.Time { return now }

	stale := newSessionID(t, svc)
	now = now.Add(2 * time.Minute)
	fresh := newSessionID(t, svc)

	assert.Equal(t, []string{stale}, svc.Sweep(context.Background()))
	_, err := svc.GetSession(context.Background(), fresh)
	assert.NoError(t, err)
}
