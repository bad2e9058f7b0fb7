package entities

import "time"

// WaitStatistic is the per-department aggregate of completed consultations.
// Only running sums are kept so updates and queries stay O(1).
type WaitStatistic struct {
	Department     string        `json:"department" db:"department"`
	CompletedCount int64         `json:"completed_count" db:"completed_count"`
	WaitSum        time.Duration `json:"wait_sum" db:"wait_sum"`
	ConsultSum     time.Duration `json:"consult_sum" db:"consult_sum"`
}

// AverageWait returns the mean time patients waited before consultation
func (s *WaitStatistic) AverageWait() (time.Duration, bool) {
	if s == nil || s.CompletedCount == 0 {
		return 0, false
	}
	return s.WaitSum / time.Duration(s.CompletedCount), true
}

// AverageConsult returns the mean consultation duration
func (s *WaitStatistic) AverageConsult() (time.Duration, bool) {
	if s == nil || s.CompletedCount == 0 {
		return 0, false
	}
	return s.ConsultSum / time.Duration(s.CompletedCount), true
}
