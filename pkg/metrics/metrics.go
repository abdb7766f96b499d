// Package metrics keeps lightweight in-process counters for the bot.
package metrics

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

// CommandStat aggregates executions of a single command.
type CommandStat struct {
	Count    int64
	Failures int64
	Total    time.Duration
	Max      time.Duration
}

// Metrics tracks command executions and coarse runtime gauges.
type Metrics struct {
	mu        sync.Mutex
	startTime time.Time
	commands  map[string]*CommandStat
	counters  map[string]int64
}

// New returns an empty metrics collector.
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		commands:  make(map[string]*CommandStat),
		counters:  make(map[string]int64),
	}
}

// RecordCommand notes one execution of a named command.
func (m *Metrics) RecordCommand(name string, ok bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stat, exists := m.commands[name]
	if !exists {
		stat = &CommandStat{}
		m.commands[name] = stat
	}
	stat.Count++
	if !ok {
		stat.Failures++
	}
	stat.Total += d
	if d > stat.Max {
		stat.Max = d
	}
}

// Inc bumps a named counter by one.
func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// Counter returns the current value of a named counter.
func (m *Metrics) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Command returns a copy of the stats for one command.
func (m *Metrics) Command(name string) CommandStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stat, ok := m.commands[name]; ok {
		return *stat
	}
	return CommandStat{}
}

// CommandNames returns the recorded command names, sorted.
func (m *Metrics) CommandNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.commands))
	for name := range m.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Uptime reports how long the collector has been running.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// MemoryMB returns the current heap allocation in megabytes.
func MemoryMB() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc / 1024 / 1024
}
