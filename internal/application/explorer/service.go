// Package explorer drives the research map for interactive sessions. It
// turns zoom signals into bin layers overlaid with a session's selection and
// applies chat message instructions to that selection in arrival order.
package explorer

import (
	"context"
	"sync"
	"time"

	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Service is the explorer use-case surface shared by the HTTP API, the
// Kafka consumer and the CLI.
type Service interface {
	Levels() *LevelsInfo
	CreateSession(ctx context.Context) (*SessionInfo, error)
	GetSession(ctx context.Context, id string) (*SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	Bins(ctx context.Context, input *BinsInput) (*BinsResult, error)
	ApplyMessage(ctx context.Context, sessionID, source string, msg instruction.Message) (*ApplyResult, error)
	Selection(ctx context.Context, sessionID string) (*SelectionResult, error)
	QueryKey(ctx context.Context, sessionID, key string) (*KeyResult, error)
	Messages(ctx context.Context, sessionID string) ([]instruction.Message, error)
	Reset(ctx context.Context, sessionID string) error
	UpdateDefaultLevel(ctx context.Context, sessionID string, level int) error
	LoadDataset(ctx context.Context, set *entity.Set, stats entity.Stats) (*DatasetInfo, error)
	Dataset() *DatasetInfo
	Warm(ctx context.Context, column string) error
	Sweep(ctx context.Context) []string
}

// BinCache is a shared store of selection-free bin layers.
type BinCache interface {
	PutLadder(ctx context.Context, version, column string, layers map[int][]binning.Group) error
	Invalidate(ctx context.Context, version string) (int64, error)
	// GetOrCompute returns the cached layer or fills it from compute,
	// coalescing concurrent fills of the same layer.
	GetOrCompute(ctx context.Context, version string, level int, column string,
		compute func() ([]binning.Group, error)) ([]binning.Group, error)
}

// Metrics receives explorer observations.
type Metrics interface {
	ObserveBins(level int, source string, groups int, d time.Duration)
	ObserveLadder(d time.Duration)
	ObserveMessage(source, status string)
	ObserveInstruction(kind string)
	ObserveCache(cache string, hit bool)
	SetSessions(n int)
	SetDatasetRecords(kind string, n int)
}

// SelectionEvent announces the keys one message touched.
type SelectionEvent struct {
	SessionID string
	MessageID int64
	Touched   []string
	Revision  uint64
}

// Publisher forwards selection events to other processes.
type Publisher interface {
	PublishSelectionChanged(ctx context.Context, ev SelectionEvent) error
}

// Layer sources reported in BinsResult and metrics.
const (
	SourceMemory   = "memory"
	SourceCache    = "cache"
	SourceComputed = "computed"
)

// Message outcomes.
const (
	StatusApplied   = "applied"
	StatusDuplicate = "duplicate"
	StatusRejected  = "rejected"
)

type LevelsInfo struct {
	Levels  []int   `json:"levels"`
	Default int     `json:"default"`
	ZoomMin float64 `json:"zoom_min"`
	ZoomMax float64 `json:"zoom_max"`
}

// BinsInput selects a layer. At most one of Level and Zoom may be set; with
// neither the session's default level is used.
type BinsInput struct {
	SessionID string
	Level     *int
	Zoom      *float64
	Column    string
}

type BinsResult struct {
	SessionID string          `json:"session_id"`
	Level     int             `json:"level"`
	Column    string          `json:"column,omitempty"`
	Version   string          `json:"dataset_version"`
	Source    string          `json:"source"`
	Groups    []binning.Group `json:"groups"`
}

type ApplyResult struct {
	SessionID string   `json:"session_id"`
	MessageID int64    `json:"message_id"`
	Duplicate bool     `json:"duplicate"`
	Applied   int      `json:"applied"`
	Skipped   int      `json:"skipped"`
	Touched   []string `json:"touched"`
	Revision  uint64   `json:"revision"`
}

type SelectionResult struct {
	SessionID string             `json:"session_id"`
	Revision  uint64             `json:"revision"`
	Entries   selection.Snapshot `json:"entries"`
}

type KeyResult struct {
	Key    string           `json:"key"`
	Known  bool             `json:"known"`
	Facets selection.Facets `json:"facets"`
}

type Config struct {
	MaxSessions    int
	SessionIdleTTL time.Duration
	// Concurrency bounds Warm's parallel levels.
	Concurrency int
}

type Option func(*service)

func WithBinCache(c BinCache) Option {
	return func(s *service) { s.cache = c }
}

func WithMetrics(m Metrics) Option {
	return func(s *service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *service) { s.publisher = p }
}

type service struct {
	engine    *binning.Engine
	ladder    *binning.Ladder
	registry  *Registry
	cfg       Config
	cache     BinCache
	metrics   Metrics
	publisher Publisher
	logger    logging.Logger

	mu     sync.RWMutex
	data   *dataset
	flight singleflight.Group
}

// NewService returns a Service over engine's ladder with an empty dataset.
func NewService(engine *binning.Engine, cfg Config, log logging.Logger, opts ...Option) Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("explorer")
	s := &service{
		engine:   engine,
		ladder:   engine.Ladder(),
		registry: NewRegistry(cfg.MaxSessions, log),
		cfg:      cfg,
		metrics:  nopMetrics{},
		logger:   log,
		data:     newDataset(nil, entity.Stats{}, time.Now()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) current() *dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *service) Levels() *LevelsInfo {
	zmin, zmax := s.ladder.ZoomRange()
	return &LevelsInfo{Levels: s.ladder.Levels(), Default: s.ladder.Default(), ZoomMin: zmin, ZoomMax: zmax}
}

func (s *service) CreateSession(ctx context.Context) (*SessionInfo, error) {
	sess, err := s.registry.Create(s.ladder.Default())
	if err != nil {
		s.logger.Warn("session rejected", logging.Err(err))
		return nil, err
	}
	s.metrics.SetSessions(s.registry.Len())
	s.logger.Info("session created", logging.SessionID(sess.ID))
	return sess.info(), nil
}

func (s *service) GetSession(ctx context.Context, id string) (*SessionInfo, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.info(), nil
}

func (s *service) DeleteSession(ctx context.Context, id string) error {
	if err := s.registry.Delete(id); err != nil {
		return err
	}
	s.metrics.SetSessions(s.registry.Len())
	s.logger.Info("session ended", logging.SessionID(id))
	return nil
}

func (s *service) resolveLevel(sess *Session, in *BinsInput) (int, error) {
	switch {
	case in.Level != nil && in.Zoom != nil:
		return 0, errors.New(errors.ErrCodeBadRequest, "level and zoom are mutually exclusive")
	case in.Level != nil:
		if err := s.ladder.Validate(*in.Level); err != nil {
			return 0, err
		}
		return *in.Level, nil
	case in.Zoom != nil:
		return s.ladder.SelectLevel(*in.Zoom)
	default:
		return sess.defaultLevel(), nil
	}
}

func (s *service) Bins(ctx context.Context, in *BinsInput) (*BinsResult, error) {
	sess, err := s.registry.Get(in.SessionID)
	if err != nil {
		return nil, err
	}
	level, err := s.resolveLevel(sess, in)
	if err != nil {
		return nil, err
	}
	if in.Column != "" && !entity.IsSelectableColumn(in.Column) {
		return nil, errors.New(errors.ErrCodeBadRequest, "column cannot be summarized").WithDetail(in.Column)
	}

	ds := s.current()
	groups, source, err := s.layer(ctx, ds, level, in.Column)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	selected := sess.state.Snapshot()
	sess.mu.Unlock()

	return &BinsResult{
		SessionID: sess.ID,
		Level:     level,
		Column:    in.Column,
		Version:   ds.set.Version(),
		Source:    source,
		Groups:    binning.Overlay(groups, selected),
	}, nil
}

// layer returns the selection-free groups for (level, column), trying the
// in-process memo, then the shared cache, then computing. Concurrent misses
// for one layer share a single computation.
func (s *service) layer(ctx context.Context, ds *dataset, level int, column string) ([]binning.Group, string, error) {
	start := time.Now()
	if g, ok := ds.layer(level, column); ok {
		s.metrics.ObserveBins(level, SourceMemory, len(g), time.Since(start))
		return g, SourceMemory, nil
	}

	if s.cache != nil {
		var computed bool
		var computeErr error
		g, err := s.cache.GetOrCompute(ctx, ds.set.Version(), level, column, func() ([]binning.Group, error) {
			computed = true
			g, err := s.compute(ds, level, column)
			computeErr = err
			return g, err
		})
		switch {
		case computeErr != nil:
			return nil, "", computeErr
		case err != nil:
			s.logger.Warn("bin cache unavailable", logging.Level(level), logging.Err(err))
		default:
			ds.storeLayer(level, column, g)
			s.metrics.ObserveCache("bins", !computed)
			source := SourceCache
			if computed {
				source = SourceComputed
			}
			s.metrics.ObserveBins(level, source, len(g), time.Since(start))
			return g, source, nil
		}
	}

	var computed bool
	v, err, _ := s.flight.Do(layerID(level, column)+"@"+ds.set.Version(), func() (interface{}, error) {
		if g, ok := ds.layer(level, column); ok {
			return g, nil
		}
		computed = true
		g, err := s.compute(ds, level, column)
		if err != nil {
			return nil, err
		}
		ds.storeLayer(level, column, g)
		return g, nil
	})
	if err != nil {
		return nil, "", err
	}
	g := v.([]binning.Group)
	source := SourceMemory
	if computed {
		source = SourceComputed
	}
	s.metrics.ObserveBins(level, source, len(g), time.Since(start))
	return g, source, nil
}

func (s *service) compute(ds *dataset, level int, column string) ([]binning.Group, error) {
	return s.engine.ComputeBins(ds.set.Records(), level, ds.binOptions(column)...)
}

// ApplyMessage applies msg to the session's selection. A message whose
// non-zero ID was already applied is acknowledged without effect.
func (s *service) ApplyMessage(ctx context.Context, sessionID, source string, msg instruction.Message) (*ApplyResult, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		s.metrics.ObserveMessage(source, StatusRejected)
		return nil, err
	}

	sess.mu.Lock()
	if _, dup := sess.seen[msg.ID]; dup {
		rev := sess.state.Revision()
		sess.mu.Unlock()
		s.metrics.ObserveMessage(source, StatusDuplicate)
		s.logger.Debug("duplicate message ignored", logging.SessionID(sessionID), logging.Int64("message_id", msg.ID))
		return &ApplyResult{SessionID: sessionID, MessageID: msg.ID, Duplicate: true, Touched: []string{}, Revision: rev}, nil
	}
	res, err := sess.controller.ApplyMessage(msg)
	if err != nil {
		sess.mu.Unlock()
		s.metrics.ObserveMessage(source, StatusRejected)
		return nil, err
	}
	sess.messages = append(sess.messages, msg)
	if msg.ID != 0 {
		sess.seen[msg.ID] = struct{}{}
	}
	rev := sess.state.Revision()
	sess.mu.Unlock()

	s.metrics.ObserveMessage(source, StatusApplied)
	for _, ins := range msg.Instructions {
		s.metrics.ObserveInstruction(string(ins.Kind))
	}

	out := &ApplyResult{
		SessionID: sessionID,
		MessageID: msg.ID,
		Applied:   res.Applied,
		Skipped:   res.Skipped,
		Touched:   res.Touched,
		Revision:  rev,
	}
	if s.publisher != nil && len(res.Touched) > 0 {
		ev := SelectionEvent{SessionID: sessionID, MessageID: msg.ID, Touched: res.Touched, Revision: rev}
		if err := s.publisher.PublishSelectionChanged(ctx, ev); err != nil {
			s.logger.Warn("selection event not published", logging.SessionID(sessionID), logging.Err(err))
		}
	}
	return out, nil
}

func (s *service) Selection(ctx context.Context, sessionID string) (*SelectionResult, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &SelectionResult{SessionID: sessionID, Revision: sess.state.Revision(), Entries: sess.state.Snapshot()}, nil
}

func (s *service) QueryKey(ctx context.Context, sessionID, key string) (*KeyResult, error) {
	if key == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "key is required")
	}
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	f, ok := sess.state.Lookup(key)
	sess.mu.Unlock()
	return &KeyResult{Key: key, Known: ok, Facets: f}, nil
}

func (s *service) Messages(ctx context.Context, sessionID string) ([]instruction.Message, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]instruction.Message, len(sess.messages))
	copy(out, sess.messages)
	return out, nil
}

// Reset clears the selection and the message log. Applied message IDs are
// kept so a late redelivery stays ignored.
func (s *service) Reset(ctx context.Context, sessionID string) error {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.state.Reset()
	sess.messages = nil
	sess.mu.Unlock()
	s.logger.Info("session reset", logging.SessionID(sessionID))
	return nil
}

func (s *service) UpdateDefaultLevel(ctx context.Context, sessionID string, level int) error {
	if err := s.ladder.Validate(level); err != nil {
		return err
	}
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.level = level
	sess.mu.Unlock()
	s.logger.Info("default level updated", logging.SessionID(sessionID), logging.Level(level))
	return nil
}

// LoadDataset swaps in set. Layers of the previous version are dropped from
// the shared cache when the version changes.
func (s *service) LoadDataset(ctx context.Context, set *entity.Set, stats entity.Stats) (*DatasetInfo, error) {
	if set == nil {
		return nil, errors.New(errors.ErrCodeDatasetEmpty, "dataset is nil")
	}
	next := newDataset(set, stats, time.Now())

	s.mu.Lock()
	prev := s.data
	s.data = next
	s.mu.Unlock()

	if prevVersion := prev.set.Version(); s.cache != nil && prevVersion != set.Version() && prev.set.Len() > 0 {
		if n, err := s.cache.Invalidate(ctx, prevVersion); err != nil {
			s.logger.Warn("stale bin layers not invalidated", logging.String("version", prevVersion), logging.Err(err))
		} else {
			s.logger.Debug("stale bin layers invalidated", logging.String("version", prevVersion), logging.Int64("keys", n))
		}
	}

	info := next.info()
	s.metrics.SetDatasetRecords(string(entity.KindPaper), info.Papers)
	s.metrics.SetDatasetRecords(string(entity.KindAuthor), info.Authors)
	s.logger.Info("dataset loaded",
		logging.String("version", info.Version),
		logging.Int("records", info.Records),
		logging.Int("non_finite", stats.NonFinite),
		logging.Int("duplicates", stats.Duplicates))
	return info, nil
}

func (s *service) Dataset() *DatasetInfo {
	return s.current().info()
}

// Warm computes every ladder level for column and fills the memo and the
// shared cache.
func (s *service) Warm(ctx context.Context, column string) error {
	if column != "" && !entity.IsSelectableColumn(column) {
		return errors.New(errors.ErrCodeBadRequest, "column cannot be summarized").WithDetail(column)
	}
	ds := s.current()
	start := time.Now()
	opts := append(ds.binOptions(column), binning.WithConcurrency(s.cfg.Concurrency))
	layers, err := s.engine.ComputeLadder(ctx, ds.set.Records(), opts...)
	if err != nil {
		return err
	}
	for level, g := range layers {
		ds.storeLayer(level, column, g)
	}
	if s.cache != nil {
		if err := s.cache.PutLadder(ctx, ds.set.Version(), column, layers); err != nil {
			s.logger.Warn("bin ladder not cached", logging.Err(err))
		}
	}
	d := time.Since(start)
	s.metrics.ObserveLadder(d)
	s.logger.Info("bin ladder warmed",
		logging.String("version", ds.set.Version()),
		logging.Int("levels", len(layers)),
		logging.Duration("elapsed", d))
	return nil
}

// Sweep ends sessions idle longer than the configured TTL.
func (s *service) Sweep(ctx context.Context) []string {
	ended := s.registry.Sweep(s.cfg.SessionIdleTTL)
	if len(ended) > 0 {
		s.metrics.SetSessions(s.registry.Len())
		s.logger.Info("idle sessions ended", logging.Int("count", len(ended)))
	}
	return ended
}

type nopMetrics struct{}

func (nopMetrics) ObserveBins(int, string, int, time.Duration) {}
func (nopMetrics) ObserveLadder(time.Duration)                 {}
func (nopMetrics) ObserveMessage(string, string)               {}
func (nopMetrics) ObserveInstruction(string)                   {}
func (nopMetrics) ObserveCache(string, bool)                   {}
func (nopMetrics) SetSessions(int)                             {}
func (nopMetrics) SetDatasetRecords(string, int)               {}
