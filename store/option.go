package store

import (
	"log/slog"
	"os"
	"time"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
)

type Options struct {
	WorkDir     string        `yaml:"work_dir"`     // 工作数据目录; 为空时使用临时目录;
	FetchBatch  int           `yaml:"fetch_batch"`  // 每次从底层存储读取的条数;
	BusyTimeout time.Duration `yaml:"busy_timeout"` // sqlite 锁等待时间;
	SyncWrites  bool          `yaml:"sync_writes"`  // sqlite synchronous=FULL;
	InMemory    bool          `yaml:"in_memory"`    // 使用内存存储, 不落盘;

	Logger *slog.Logger `yaml:"-"`
}

func GetDefaultOpt(dirPath string) *Options {
	return &Options{
		WorkDir:     dirPath,
		FetchBatch:  common.DefaultFetchBatch,
		BusyTimeout: 5 * time.Second,
		SyncWrites:  false,
	}
}

// CheckOpt fills defaults and creates a temporary work directory when none is
// set. The returned callback removes that directory.
func CheckOpt(opt *Options) (func() error, error) {
	var err error
	var tempDir string
	if opt.FetchBatch <= 0 {
		opt.FetchBatch = common.DefaultFetchBatch
	}
	if opt.WorkDir == "" {
		tempDir, err = os.MkdirTemp("", "trainRecord")
		if err != nil {
			return func() error { return nil }, errors.Wrap(err, "create temp work dir")
		}
		opt.WorkDir = tempDir
	} else if err = os.MkdirAll(opt.WorkDir, 0o755); err != nil {
		return func() error { return nil }, errors.Wrapf(err, "create work dir %s", opt.WorkDir)
	}
	return func() error {
		if tempDir != "" {
			return os.RemoveAll(tempDir)
		}
		return nil
	}, nil
}
