package core

import "time"

// DefaultMaxDiagnostics caps how many line errors a summary keeps verbatim.
// ParseErrors always holds the exact count.
const DefaultMaxDiagnostics = 100

// GroupReport is the per-group part of a RunSummary.
type GroupReport struct {
	Key        string        `json:"key" yaml:"key"`
	Size       int           `json:"size" yaml:"size"`
	Status     OutcomeStatus `json:"status" yaml:"status"`
	Reason     string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	DurationMs int64         `json:"durationMs" yaml:"durationMs"`
}

// RunSummary is the terminal report of one engine run. It is built up
// during both phases and is read-only once Run returns.
//
// Header lines are tallied in their own bucket, so for every run
//
//	TotalLines == ValidLines + ParseErrors + HeaderLines
type RunSummary struct {
	State       RunState `json:"state" yaml:"state"`
	TotalLines  int      `json:"totalLines" yaml:"totalLines"`
	ValidLines  int      `json:"validLines" yaml:"validLines"`
	HeaderLines int      `json:"headerLines" yaml:"headerLines"`
	ParseErrors int      `json:"parseErrors" yaml:"parseErrors"`
	GroupCount  int      `json:"groupCount" yaml:"groupCount"`

	// Groups are in first-seen key order.
	Groups []GroupReport `json:"groups" yaml:"groups"`

	// LineErrors holds the first line errors, up to the diagnostics limit.
	LineErrors []LineError `json:"lineErrors,omitempty" yaml:"lineErrors,omitempty"`

	BytesRead       int64     `json:"bytesRead" yaml:"bytesRead"`
	Checksum        string    `json:"checksum" yaml:"checksum"`
	StartedAt       time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt" yaml:"finishedAt"`
	TotalDurationMs int64     `json:"totalDurationMs" yaml:"totalDurationMs"`
}

// Size returns the member count of the group for key.
func (s *RunSummary) Size(key string) (int, bool) {
	r, ok := s.Outcome(key)
	return r.Size, ok
}

// Outcome returns the report for the group with key.
func (s *RunSummary) Outcome(key string) (GroupReport, bool) {
	for _, r := range s.Groups {
		if r.Key == key {
			return r, true
		}
	}
	return GroupReport{}, false
}

// GroupSizes returns the member count per group key.
func (s *RunSummary) GroupSizes() map[string]int {
	sizes := make(map[string]int, len(s.Groups))
	for _, r := range s.Groups {
		sizes[r.Key] = r.Size
	}
	return sizes
}

// FailedGroups returns the reports of groups whose processing failed.
func (s *RunSummary) FailedGroups() []GroupReport {
	var failed []GroupReport
	for _, r := range s.Groups {
		if r.Status == OutcomeFailure {
			failed = append(failed, r)
		}
	}
	return failed
}

// SucceededGroups returns how many groups processed successfully.
func (s *RunSummary) SucceededGroups() int {
	n := 0
	for _, r := range s.Groups {
		if r.Status == OutcomeSuccess {
			n++
		}
	}
	return n
}

// Balanced reports whether every line landed in exactly one bucket.
func (s *RunSummary) Balanced() bool {
	return s.TotalLines == s.ValidLines+s.ParseErrors+s.HeaderLines
}

func (s *RunSummary) recordLineError(le *LineError, limit int) {
	s.ParseErrors++
	if len(s.LineErrors) < limit {
		s.LineErrors = append(s.LineErrors, *le)
	}
}

// describeGroups sizes the summary for the accumulated groups; every group
// starts out pending.
func (s *RunSummary) describeGroups(groups []*Group) {
	s.GroupCount = len(groups)
	s.Groups = make([]GroupReport, len(groups))
	for i, g := range groups {
		s.Groups[i] = GroupReport{Key: g.Key, Size: len(g.Members), Status: OutcomePending}
	}
}

func (s *RunSummary) finish(state RunState, at time.Time) {
	s.State = state
	s.FinishedAt = at
	s.TotalDurationMs = at.Sub(s.StartedAt).Milliseconds()
}
