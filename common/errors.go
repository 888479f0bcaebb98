package common

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	gopath = path.Join(os.Getenv("GOPATH"), "src") + "/"
)

// cursor protocol violations
var (
	ErrNoSuchElement             = errors.New("cursor has no pending element")
	ErrIllegalContinuationAccess = errors.New("continuation requested before consuming the pending element")
	ErrCursorClosed              = errors.New("cursor is closed")
	ErrInvalidContinuation       = errors.New("invalid continuation")
	ErrChildPanic                = errors.New("merge child panicked")
)

// scan construction
var (
	ErrPrefixWithSuffix      = errors.New("text prefix comparison included inequality scan comparison")
	ErrPrefixTokenCount      = errors.New("text prefix comparison requires exactly one comparand")
	ErrIncompatibleComparand = errors.New("comparand for text query of incompatible type")
	ErrUnsupportedComparison = errors.New("unsupported comparison type for text query")
	ErrUnknownTokenizer      = errors.New("unknown text tokenizer")
	ErrTokenizerVersion      = errors.New("tokenizer version out of range")
)

// tuples and metadata
var (
	ErrBadTuple         = errors.New("malformed tuple encoding")
	ErrUnknownTupleType = errors.New("unknown tuple component type")
	ErrUnknownIndexType = errors.New("unknown index type")
	ErrIndexNotReadable = errors.New("index is not readable")
	ErrMissingField     = errors.New("record is missing an indexed field")
	ErrUnknownIndex     = errors.New("unknown index")
	ErrNoTextPlan       = errors.New("text index can not serve the query")
)

// storage
var (
	ErrLockDB     = errors.New("lock database error")
	ErrEmptyKey   = errors.New("key can not be empty")
	ErrStoreClose = errors.New("store is closed")
	ErrBadConfig  = errors.New("invalid configuration")
)

func location(deep int, fullPath bool) string {
	_, file, line, ok := runtime.Caller(deep)
	if !ok {
		file = "???"
		line = 0
	}

	if fullPath {
		if strings.HasPrefix(file, gopath) {
			file = file[len(gopath):]
		}
	} else {
		file = filepath.Base(file)
	}
	return file + ":" + strconv.Itoa(line)
}

// Err logs a non-nil error together with the caller location and returns it unchanged.
func Err(logger *slog.Logger, err error) error {
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error(err.Error(), slog.String(KeyLocation, location(2, true)))
	}
	return err
}
