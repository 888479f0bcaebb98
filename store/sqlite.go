package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLStore keeps index entries in one SQLite table. BLOB comparison in SQLite
// is memcmp then length, which is the packed tuple order.
type SQLStore struct {
	db       *sql.DB
	lock     *flock.Flock
	opt      *Options
	logger   *slog.Logger
	callBack func() error
}

const schema = `
CREATE TABLE IF NOT EXISTS index_entries (
	index_name TEXT NOT NULL,
	key        BLOB NOT NULL,
	value      BLOB,
	PRIMARY KEY (index_name, key)
) WITHOUT ROWID;
`

func OpenSQLStore(opt *Options) (*SQLStore, error) {
	if opt == nil {
		opt = GetDefaultOpt("")
	}
	callBack, err := CheckOpt(opt)
	if err != nil {
		return nil, err
	}
	logger := common.OrDefault(opt.Logger)

	fileLock := flock.New(filepath.Join(opt.WorkDir, common.LockFile))
	hold, err := fileLock.TryLock()
	if err != nil || !hold {
		_ = callBack()
		return nil, common.ErrLockDB
	}

	path := filepath.Join(opt.WorkDir, common.SQLStoreFilename)
	syncMode := "NORMAL"
	if opt.SyncWrites {
		syncMode = "FULL"
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(%s)&_pragma=busy_timeout(%d)",
		path, syncMode, opt.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = fileLock.Unlock()
		_ = callBack()
		return nil, errors.Wrap(err, "open sqlite store")
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		_ = fileLock.Unlock()
		_ = callBack()
		return nil, errors.Wrap(err, "create sqlite schema")
	}
	logger.Info("sqlite store opened", slog.String(common.KeyWorkDir, opt.WorkDir))
	return &SQLStore{db: db, lock: fileLock, opt: opt, logger: logger, callBack: callBack}, nil
}

func (s *SQLStore) ScanIndex(ctx context.Context, index string, rng model.TupleRange, continuation []byte,
	props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error) {
	return newKeyValueCursor(s, index, rng, continuation, props, s.opt.FetchBatch, s.logger)
}

func (s *SQLStore) Put(ctx context.Context, index string, key, value model.Tuple) error {
	k, v, err := packPair(key, value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO index_entries (index_name, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (index_name, key) DO UPDATE SET value = excluded.value`,
		index, k, v)
	return errors.Wrapf(err, "put %s%s", index, key)
}

func (s *SQLStore) Clear(ctx context.Context, index string, key model.Tuple) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM index_entries WHERE index_name = ? AND key = ?`, index, key.Pack())
	return errors.Wrapf(err, "clear %s%s", index, key)
}

func (s *SQLStore) fetch(ctx context.Context, index string, low, high []byte, reverse bool, limit int) ([]rawKV, error) {
	query := `SELECT key, value FROM index_entries
		WHERE index_name = ? AND key >= ? AND key < ? ORDER BY key ASC LIMIT ?`
	if reverse {
		query = `SELECT key, value FROM index_entries
		WHERE index_name = ? AND key >= ? AND key < ? ORDER BY key DESC LIMIT ?`
	}
	rows, err := s.db.QueryContext(ctx, query, index, low, high, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", index)
	}
	defer rows.Close()
	out := make([]rawKV, 0, limit)
	for rows.Next() {
		var kv rawKV
		if err = rows.Scan(&kv.key, &kv.value); err != nil {
			return nil, errors.Wrapf(err, "scan %s", index)
		}
		out = append(out, kv)
	}
	return out, errors.Wrapf(rows.Err(), "scan %s", index)
}

func (s *SQLStore) WorkDir() string {
	return s.opt.WorkDir
}

func (s *SQLStore) Close() error {
	var first error
	if err := s.db.Close(); err != nil {
		first = errors.Wrap(err, "close sqlite store")
	}
	if err := s.lock.Unlock(); err != nil && first == nil {
		first = errors.Wrap(err, "release work dir lock")
	}
	if err := s.callBack(); err != nil && first == nil {
		first = err
	}
	return first
}
