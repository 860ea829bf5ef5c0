package connstats

import (
	"sort"
	"sync"
	"time"
)

// UnknownService groups records whose connection descriptor has no name.
const UnknownService = "(unknown)"

// ServiceStats holds counters for one service.
type ServiceStats struct {
	Service   string
	Records   int
	Sentinels int
	Symbols   map[string]int
	FirstSeen time.Time
	LastSeen  time.Time
}

func (s *ServiceStats) clone() *ServiceStats {
	out := *s
	out.Symbols = make(map[string]int, len(s.Symbols))
	for k, v := range s.Symbols {
		out.Symbols[k] = v
	}
	return &out
}

// Manager manages per-service statistics.
type Manager struct {
	mu       sync.RWMutex
	services map[string]*ServiceStats // service name -> stats
	total    int
}

// NewManager creates an empty statistics manager.
func NewManager() *Manager {
	return &Manager{
		services: make(map[string]*ServiceStats),
	}
}

// Add counts one record for service (command).
// An empty service name is counted under UnknownService.
func (m *Manager) Add(service, symbol string, sentinel bool, at time.Time) {
	if service == "" {
		service = UnknownService
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.services[service]
	if stats == nil {
		stats = &ServiceStats{
			Service:   service,
			Symbols:   make(map[string]int),
			FirstSeen: at,
		}
		m.services[service] = stats
	}

	stats.Records++
	stats.Symbols[symbol]++
	if sentinel {
		stats.Sentinels++
	}
	stats.LastSeen = at
	m.total++
}

// Get returns a snapshot of the statistics for service (query).
// Returns nil if the service has not been seen.
func (m *Manager) Get(service string) *ServiceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := m.services[service]
	if stats == nil {
		return nil
	}
	return stats.clone()
}

// Services returns snapshots of all services, most records first (query).
func (m *Manager) Services() []*ServiceStats {
	m.mu.RLock()
	out := make([]*ServiceStats, 0, len(m.services))
	for _, stats := range m.services {
		out = append(out, stats.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Records != out[j].Records {
			return out[i].Records > out[j].Records
		}
		return out[i].Service < out[j].Service
	})
	return out
}

// Total returns the number of records counted (query).
func (m *Manager) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Reset forgets all statistics (command).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[string]*ServiceStats)
	m.total = 0
}
