package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests, ingests and
// workflow runs.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	ingestCount  map[string]int64
	workflowRuns map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		ingestCount:  make(map[string]int64),
		workflowRuns: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordIngest counts one processed inbound event per channel.
func (m *Metrics) RecordIngest(channel string, newTicket bool) {
	if m == nil {
		return
	}
	key := channel
	if newTicket {
		key += "|new"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestCount[key]++
}

// RecordWorkflowRun counts one engine evaluation per trigger.
func (m *Metrics) RecordWorkflowRun(trigger string, matched int) {
	if m == nil {
		return
	}
	key := trigger + "|" + strconv.Itoa(matched)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflowRuns[key]++
}
