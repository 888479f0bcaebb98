package text

import (
	"log/slog"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/metadata"
	"github.com/kebukeYi/TrainRecord/utils"
	"github.com/kebukeYi/TrainRecord/utils/cache"
	"github.com/pkg/errors"
)

type Options struct {
	Tokenizers         *TokenizerRegistry
	UnionLimitWidening int // ContainsAny 子扫描的 limit 放大倍数;
	PlanCacheSize      int
	Executor           interfaces.Executor // nil 时子游标串行推进;
	Timer              *utils.Timer
	Logger             *slog.Logger
	// State gates planning on index readability; nil treats every index as readable.
	State *metadata.StateHolder
}

func GetDefaultOpt() *Options {
	return &Options{
		Tokenizers:         DefaultTokenizers(nil),
		UnionLimitWidening: common.DefaultUnionLimitWidening,
		PlanCacheSize:      common.DefaultPlanCacheSize,
	}
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return GetDefaultOpt()
	}
	out := *o
	if out.Tokenizers == nil {
		out.Tokenizers = DefaultTokenizers(out.Logger)
	}
	if out.UnionLimitWidening < 1 {
		out.UnionLimitWidening = common.DefaultUnionLimitWidening
	}
	if out.PlanCacheSize < 1 {
		out.PlanCacheSize = common.DefaultPlanCacheSize
	}
	return &out
}

// Planner turns queries into text scans and keeps recently planned scans.
type Planner struct {
	opt    *Options
	plans  *cache.Cache[uint64, *TextScan]
	logger *slog.Logger
}

func NewPlanner(opt *Options) (*Planner, error) {
	opt = opt.orDefault()
	plans, err := cache.NewCache[uint64, *TextScan](opt.PlanCacheSize)
	if err != nil {
		return nil, err
	}
	return &Planner{
		opt:    opt,
		plans:  plans,
		logger: common.OrDefault(opt.Logger),
	}, nil
}

func (p *Planner) Options() *Options {
	return p.opt
}

// Plan returns a text scan of index for the query, or nil when the index
// cannot serve it. The index must be readable in the current state snapshot.
func (p *Planner) Plan(index *metadata.Index, filters []Filter, hasSort bool) (*TextScan, []Filter, error) {
	var (
		scan *TextScan
		rest []Filter
	)
	plan := func(state *metadata.StoreState) error {
		if !state.IsReadable(index.Name) {
			return errors.Wrapf(common.ErrIndexNotReadable, "%s is %s", index.Name, state.State(index.Name))
		}
		scan, rest = GetScanForQuery(index, filters, hasSort, p.opt)
		return nil
	}
	var err error
	if p.opt.State != nil {
		err = p.opt.State.Read(plan)
	} else {
		err = plan(metadata.EmptyState)
	}
	if err != nil || scan == nil {
		return nil, nil, err
	}

	hash := scan.PlanHash()
	if cached, ok := p.plans.Get(hash); ok && cached.Equals(scan) {
		return cached, rest, nil
	}
	p.plans.Set(hash, scan)
	p.logger.Debug("text plan",
		slog.String(common.KeyIndexName, index.Name),
		slog.Uint64(common.KeyPlanHash, hash),
		slog.String(common.KeyComparisonValue, scan.comparison.String()))
	return scan, rest, nil
}

// Invalidate drops every cached plan.
func (p *Planner) Invalidate() {
	p.plans.Purge()
}

// CacheStats reports plan cache hits, misses and evictions.
func (p *Planner) CacheStats() string {
	return p.plans.String()
}
