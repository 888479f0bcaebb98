package common

// Structured log attribute keys shared by every package.
const (
	KeyLocation = "location"

	KeyIndexName  = "index_name"
	KeyIndexType  = "index_type"
	KeyIndexState = "index_state"
	KeyPrimaryKey = "primary_key"

	KeyComparison      = "comparison"
	KeyComparisonValue = "comparison_value"
	KeyTokenizer       = "tokenizer"
	KeyTokenCount      = "token_count"
	KeyPlanHash        = "plan_hash"
	KeyPlanCache       = "plan_cache"
	KeyIndexCount      = "index_count"

	KeyCursor        = "cursor"
	KeyChildCount    = "child_count"
	KeyNoNextReason  = "no_next_reason"
	KeyContinuation  = "continuation"
	KeyReverse       = "reverse"
	KeySkip          = "skip"
	KeyLimit         = "limit"
	KeyRangeStart    = "rangeStart"
	KeyRangeEnd      = "rangeEnd"
	KeyVersion       = "version"
	KeyWorkDir       = "work_dir"
	KeyExecutorSize  = "executor_size"
	KeyRecoveredFrom = "panic"
)
