package interfaces

import "time"

// ExecuteProperties limit how much work a scan does. Zero means unlimited.
type ExecuteProperties struct {
	Skip                int
	ReturnedRowLimit    int
	ScannedRecordsLimit int
	ScannedBytesLimit   int
	TimeLimit           time.Duration
}

func (p ExecuteProperties) ClearSkipAndLimit() ExecuteProperties {
	p.Skip = 0
	p.ReturnedRowLimit = 0
	return p
}

// ClearSkipAndAdjustLimit folds the skip into the row limit and widens it so
// that children of a deduplicating merge still produce enough rows.
func (p ExecuteProperties) ClearSkipAndAdjustLimit(widening int) ExecuteProperties {
	if p.ReturnedRowLimit > 0 {
		if widening < 1 {
			widening = 1
		}
		p.ReturnedRowLimit = (p.ReturnedRowLimit + p.Skip) * widening
	}
	p.Skip = 0
	return p
}

// ScanProperties configures one scan.
type ScanProperties struct {
	Execute ExecuteProperties
	Reverse bool
}

var ForwardScan = ScanProperties{}

var ReverseScan = ScanProperties{Reverse: true}

func (s ScanProperties) With(fn func(ExecuteProperties) ExecuteProperties) ScanProperties {
	s.Execute = fn(s.Execute)
	return s
}

func (s ScanProperties) WithLimit(limit int) ScanProperties {
	s.Execute.ReturnedRowLimit = limit
	return s
}

func (s ScanProperties) WithSkip(skip int) ScanProperties {
	s.Execute.Skip = skip
	return s
}
