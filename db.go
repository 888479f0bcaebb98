package TrainRecord

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/metadata"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/kebukeYi/TrainRecord/store"
	"github.com/kebukeYi/TrainRecord/text"
	"github.com/kebukeYi/TrainRecord/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// recordIndex holds the records themselves, keyed by primary key.
const recordIndex = "_records"

type recordStore interface {
	interfaces.StoreWriter
	Close() error
}

type TrainRecord struct {
	Mux         sync.Mutex // 串行化记录写入;
	cfg         *Config
	store       recordStore
	indexes     map[string]*metadata.Index
	maintainers map[string]metadata.Maintainer
	state       *metadata.StateHolder
	planner     *text.Planner
	executor    *utils.Executor
	timer       *utils.Timer
	metrics     *prometheus.Registry
	logger      *slog.Logger
}

func Open(cfg *Config) (*TrainRecord, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := common.NewLogger(cfg.Log, nil)
	db := &TrainRecord{
		cfg:         cfg,
		indexes:     make(map[string]*metadata.Index, len(cfg.Indexes)),
		maintainers: make(map[string]metadata.Maintainer, len(cfg.Indexes)),
		state:       metadata.NewStateHolder(metadata.EmptyState),
		metrics:     prometheus.NewRegistry(),
		logger:      logger,
	}
	db.timer = utils.NewTimer(db.metrics)

	tokenizers := []text.Tokenizer{text.DefaultTokenizer{},
		text.NewFilteringTokenizer("english", text.DefaultTokenizer{}, text.DefaultStopWords)}
	for _, t := range cfg.Text.Tokenizers {
		tokenizers = append(tokenizers, text.NewFilteringTokenizer(t.Name, text.DefaultTokenizer{}, t.StopWords))
	}
	registry := text.NewTokenizerRegistry(logger, tokenizers...)
	maintainers := metadata.NewRegistry(logger,
		&text.TextFactory{Tokenizers: registry, Logger: logger},
		metadata.ValueFactory{},
		metadata.NoOpFactory{})
	for _, index := range cfg.Indexes {
		m, err := maintainers.Maintainer(index)
		if err != nil {
			return nil, err
		}
		db.indexes[index.Name] = index
		db.maintainers[index.Name] = m
	}

	var err error
	if db.executor, err = utils.NewExecutor(cfg.Text.ExecutorSize, logger); err != nil {
		return nil, err
	}
	db.planner, err = text.NewPlanner(&text.Options{
		Tokenizers:         registry,
		UnionLimitWidening: cfg.Text.UnionLimitWidening,
		PlanCacheSize:      cfg.Text.PlanCacheSize,
		Executor:           db.executor,
		Timer:              db.timer,
		Logger:             logger,
		State:              db.state,
	})
	if err != nil {
		db.executor.Close()
		return nil, err
	}

	storeOpt := cfg.Store
	storeOpt.Logger = logger
	if storeOpt.InMemory {
		db.store = store.NewMemoryStore(&storeOpt)
	} else if db.store, err = store.OpenSQLStore(&storeOpt); err != nil {
		db.executor.Close()
		return nil, err
	}
	logger.Info("trainRecord opened",
		slog.String(common.KeyWorkDir, storeOpt.WorkDir),
		slog.Int(common.KeyExecutorSize, cfg.Text.ExecutorSize),
		slog.Int(common.KeyIndexCount, len(db.indexes)))
	return db, nil
}

// Metrics is the registry holding the cursor and scan collectors.
func (db *TrainRecord) Metrics() *prometheus.Registry {
	return db.metrics
}

func (db *TrainRecord) Index(name string) (*metadata.Index, error) {
	index, ok := db.indexes[name]
	if !ok {
		return nil, errors.Wrapf(common.ErrUnknownIndex, "%q", name)
	}
	return index, nil
}

// SaveRecord writes rec and brings every enabled index up to date.
func (db *TrainRecord) SaveRecord(ctx context.Context, rec *model.Record) error {
	if len(rec.PrimaryKey) == 0 {
		return common.ErrEmptyKey
	}
	db.Mux.Lock()
	defer db.Mux.Unlock()
	old, err := db.loadRecord(ctx, rec.PrimaryKey)
	if err != nil {
		return err
	}
	if err = db.updateIndexes(ctx, old, rec); err != nil {
		return common.Err(db.logger, err)
	}
	raw, err := yaml.Marshal(rec.Fields)
	if err != nil {
		return errors.Wrapf(err, "encode record %s", rec.PrimaryKey)
	}
	return db.store.Put(ctx, recordIndex, rec.PrimaryKey, model.TupleOf(raw))
}

// DeleteRecord reports whether a record was removed.
func (db *TrainRecord) DeleteRecord(ctx context.Context, primaryKey model.Tuple) (bool, error) {
	db.Mux.Lock()
	defer db.Mux.Unlock()
	old, err := db.loadRecord(ctx, primaryKey)
	if err != nil || old == nil {
		return false, err
	}
	if err = db.updateIndexes(ctx, old, nil); err != nil {
		return false, common.Err(db.logger, err)
	}
	return true, db.store.Clear(ctx, recordIndex, primaryKey)
}

func (db *TrainRecord) LoadRecord(ctx context.Context, primaryKey model.Tuple) (*model.Record, error) {
	return db.loadRecord(ctx, primaryKey)
}

func (db *TrainRecord) updateIndexes(ctx context.Context, old, new *model.Record) error {
	state := db.state.Load()
	for name, m := range db.maintainers {
		// 禁用的索引不再维护;
		if state.IsDisabled(name) {
			continue
		}
		if err := m.Update(ctx, db.store, old, new); err != nil {
			return errors.WithMessagef(err, "update index %s", name)
		}
	}
	return nil
}

func (db *TrainRecord) loadRecord(ctx context.Context, primaryKey model.Tuple) (*model.Record, error) {
	if err := primaryKey.Validate(); err != nil {
		return nil, err
	}
	c, err := db.store.ScanIndex(ctx, recordIndex, model.AllOf(primaryKey), nil, interfaces.ForwardScan)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	for {
		ok, err := c.OnNext(ctx)
		if err != nil || !ok {
			return nil, err
		}
		e, err := c.Next()
		if err != nil {
			return nil, err
		}
		// AllOf 也覆盖以主键为前缀的更长主键;
		if !model.Equal(e.Key, primaryKey) {
			continue
		}
		if len(e.Value) == 0 {
			return nil, errors.Wrapf(common.ErrBadTuple, "record %s has an empty value", primaryKey)
		}
		raw, _ := e.Value[0].([]byte)
		fields := map[string]interface{}{}
		if err = yaml.Unmarshal(raw, &fields); err != nil {
			return nil, errors.Wrapf(err, "decode record %s", primaryKey)
		}
		return model.NewRecord(primaryKey, fields), nil
	}
}

// SetIndexState moves indexes to state and publishes the new snapshot.
func (db *TrainRecord) SetIndexState(state metadata.IndexState, names ...string) error {
	for _, name := range names {
		if _, err := db.Index(name); err != nil {
			return err
		}
	}
	next := db.state.Update(func(s *metadata.StoreState) *metadata.StoreState {
		return s.WithIndexesInState(names, state)
	})
	db.planner.Invalidate()
	db.logger.Info("index state changed",
		slog.Any(common.KeyIndexName, names),
		slog.String(common.KeyIndexState, state.String()),
		slog.Uint64(common.KeyVersion, next.Version()))
	return nil
}

func (db *TrainRecord) IndexState() *metadata.StoreState {
	return db.state.Load()
}

// TextQuery plans filters against the text index and opens the scan. The
// returned filters are the ones the scan does not satisfy.
func (db *TrainRecord) TextQuery(ctx context.Context, indexName string, filters []text.Filter, continuation []byte,
	props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], []text.Filter, error) {
	index, err := db.Index(indexName)
	if err != nil {
		return nil, nil, err
	}
	scan, rest, err := db.planner.Plan(index, filters, false)
	if err != nil {
		return nil, nil, err
	}
	if scan == nil {
		return nil, nil, errors.Wrapf(common.ErrNoTextPlan, "index %s", indexName)
	}
	c, err := scan.Scan(ctx, db.store, continuation, props)
	if err != nil {
		return nil, nil, err
	}
	return c, rest, nil
}

// Page is one resumable slice of query results.
type Page struct {
	PrimaryKeys  []model.Tuple
	Continuation []byte
	Reason       interfaces.NoNextReason
}

// TextQueryPage drains one page of TextQuery into primary keys.
func (db *TrainRecord) TextQueryPage(ctx context.Context, indexName string, filters []text.Filter,
	continuation []byte, props interfaces.ScanProperties) (*Page, error) {
	c, _, err := db.TextQuery(ctx, indexName, filters, continuation, props)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	index := db.indexes[indexName]
	prefixLen := index.PrefixLen() + len(index.SuffixFields)
	page := &Page{}
	for {
		ok, err := c.OnNext(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		e, err := c.Next()
		if err != nil {
			return nil, err
		}
		page.PrimaryKeys = append(page.PrimaryKeys, e.PrimaryKey(prefixLen))
	}
	page.Reason = c.NoNextReason()
	if page.Continuation, err = c.Continuation(); err != nil {
		return nil, err
	}
	return page, nil
}

func (db *TrainRecord) Close() error {
	db.Mux.Lock()
	defer db.Mux.Unlock()
	db.executor.Close()
	db.logger.Info("trainRecord closed", slog.String(common.KeyPlanCache, db.planner.CacheStats()))
	return common.Err(db.logger, db.store.Close())
}
