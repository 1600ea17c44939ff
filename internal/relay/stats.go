package relay

import (
	"slices"
	"strings"
	"time"
)

// ProxyStat is the reliability record of one relay.
type ProxyStat struct {
	Name              string    `json:"name"`
	TotalRequests     int64     `json:"totalRequests"`
	Successes         int64     `json:"successes"`
	Failures          int64     `json:"failures"`
	AvgResponseTimeMs float64   `json:"avgResponseTimeMs"`
	LastUsed          time.Time `json:"lastUsed,omitempty"`
}

// SuccessRate is successes over total requests, 0 when unused.
func (s ProxyStat) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.TotalRequests)
}

// score is a Laplace-smoothed success rate so unused relays rank at 0.5.
func (s ProxyStat) score() float64 {
	return float64(s.Successes+1) / float64(s.TotalRequests+2)
}

// OverallStats aggregates every relay's statistics.
type OverallStats struct {
	TotalRequests     int64       `json:"totalRequests"`
	Successes         int64       `json:"successes"`
	Failures          int64       `json:"failures"`
	SuccessRate       float64     `json:"successRate"`
	AvgResponseTimeMs float64     `json:"avgResponseTimeMs"`
	Relays            []ProxyStat `json:"relays"`
}

func (m *Manager) record(name string, success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[name]
	if !ok {
		s = &ProxyStat{Name: name}
		m.stats[name] = s
	}
	s.TotalRequests++
	if success {
		s.Successes++
	} else {
		s.Failures++
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	s.AvgResponseTimeMs += (ms - s.AvgResponseTimeMs) / float64(s.TotalRequests)
	s.LastUsed = m.now()
}

// Stats returns the record for one relay.
func (m *Manager) Stats(name string) (ProxyStat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[name]
	if !ok {
		return ProxyStat{}, false
	}
	return *s, true
}

// AllStats returns every relay's record sorted by name.
func (m *Manager) AllStats() []ProxyStat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProxyStat, 0, len(m.stats))
	for _, s := range m.stats {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b ProxyStat) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// OverallStats aggregates all relays. The average response time is
// weighted by request count.
func (m *Manager) OverallStats() OverallStats {
	relays := m.AllStats()
	overall := OverallStats{Relays: relays}
	var weighted float64
	for _, s := range relays {
		overall.TotalRequests += s.TotalRequests
		overall.Successes += s.Successes
		overall.Failures += s.Failures
		weighted += s.AvgResponseTimeMs * float64(s.TotalRequests)
	}
	if overall.TotalRequests > 0 {
		overall.SuccessRate = float64(overall.Successes) / float64(overall.TotalRequests)
		overall.AvgResponseTimeMs = weighted / float64(overall.TotalRequests)
	}
	return overall
}

// ResetStats zeroes every record without touching the relay list.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.stats {
		m.stats[name] = &ProxyStat{Name: name}
	}
}
