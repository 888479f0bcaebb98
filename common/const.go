package common

const (
	LockFile          = "LOCKFILE"
	SQLStoreFilename  = "records.db"
	DefaultFetchBatch = 128
	MaxKeySize        = 65000 // B

	// index option keys
	TextTokenizerNameOption    = "textTokenizerName"
	TextTokenizerVersionOption = "textTokenizerVersion"
	TextMaxPositionsOption     = "textMaxPositions"

	// index types
	IndexTypeText  = "text"
	IndexTypeValue = "value"
	IndexTypeNoOp  = "noop"

	DefaultTokenizerName = "default"
)

const (
	DefaultUnionLimitWidening = 2
	DefaultPlanCacheSize      = 256
	DefaultExecutorSize       = 16
)

// continuation wire field numbers
const (
	ContinuationChildField     = 1
	ChildContinuationField     = 1
	ChildExhaustedField        = 2
	ChildStartedField          = 3
	ListContinuationIndexField = 1

	// 0xFE never starts a packed tuple or a protobuf message;
	SkipContinuationMarker         = 0xFE
	SkipContinuationInnerField     = 1
	SkipContinuationRemainingField = 2
)
