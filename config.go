package TrainRecord

import (
	"os"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/metadata"
	"github.com/kebukeYi/TrainRecord/store"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store   store.Options     `yaml:"store"`
	Log     common.LogConfig  `yaml:"log"`
	Text    TextConfig        `yaml:"text"`
	Indexes []*metadata.Index `yaml:"indexes"`
}

type TextConfig struct {
	UnionLimitWidening int               `yaml:"union_limit_widening"` // ContainsAny 子扫描 limit 放大倍数;
	PlanCacheSize      int               `yaml:"plan_cache_size"`
	ExecutorSize       int               `yaml:"executor_size"` // 合并游标并发推进子游标的协程数;
	Tokenizers         []TokenizerConfig `yaml:"tokenizers"`
}

// TokenizerConfig adds a stop-word tokenizer on top of the default one.
type TokenizerConfig struct {
	Name      string   `yaml:"name"`
	StopWords []string `yaml:"stop_words"`
}

// DefaultConfig keeps everything in memory.
func DefaultConfig() *Config {
	opt := store.GetDefaultOpt("")
	opt.InMemory = true
	return &Config{
		Store: *opt,
		Log:   common.LogConfig{Level: "INFO", Format: "text"},
		Text: TextConfig{
			UnionLimitWidening: common.DefaultUnionLimitWidening,
			PlanCacheSize:      common.DefaultPlanCacheSize,
			ExecutorSize:       common.DefaultExecutorSize,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(common.ErrBadConfig, "%s: %v", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Indexes))
	for _, index := range c.Indexes {
		if err := index.Validate(); err != nil {
			return errors.Wrap(common.ErrBadConfig, err.Error())
		}
		if _, ok := seen[index.Name]; ok {
			return errors.Wrapf(common.ErrBadConfig, "duplicate index %s", index.Name)
		}
		seen[index.Name] = struct{}{}
	}
	for _, t := range c.Text.Tokenizers {
		if t.Name == "" {
			return errors.Wrap(common.ErrBadConfig, "tokenizer name can not be empty")
		}
	}
	return nil
}
