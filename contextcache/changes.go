package contextcache

import "time"

// ChangeType classifies a change-log record.
type ChangeType string

const (
	ChangeFileCreated    ChangeType = "file_created"
	ChangeFileUpdated    ChangeType = "file_updated"
	ChangeFileAdded      ChangeType = "file_added"
	ChangeContextRefresh ChangeType = "context_refresh"
)

// Change is one change-log record.
type Change struct {
	Type      ChangeType `json:"type"`
	Path      string     `json:"path,omitempty"`
	Count     int        `json:"count,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ChangeListener receives every recorded change.
type ChangeListener func(Change)

type changeLog struct {
	size    int
	records []Change
}

func (l *changeLog) add(c Change) {
	l.records = append(l.records, c)
	if over := len(l.records) - l.size; over > 0 {
		l.records = append([]Change(nil), l.records[over:]...)
	}
}

// recent returns up to limit records, oldest first.
func (l *changeLog) recent(limit int) []Change {
	if limit <= 0 || limit > len(l.records) {
		limit = len(l.records)
	}
	out := make([]Change, limit)
	copy(out, l.records[len(l.records)-limit:])
	return out
}
