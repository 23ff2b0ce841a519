// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of an rnc relay, and exports them in
// the Prometheus format.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rnc"

type counter int

const (
	connActive counter = iota
	connTotal
	bytesIn
	bytesOut
	laggedChunks
	droppedChunks
	errorsTotal
	numCounters
)

// export binds a counter to the Prometheus series it is published as.
type export struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	which counter
	label []string
}

var (
	descBytes = prometheus.NewDesc(namespace+"_bytes_total",
		"Bytes relayed, by direction relative to the network.", []string{"direction"}, nil)
	descUptime = prometheus.NewDesc(namespace+"_uptime_seconds",
		"Seconds since the collector was created.", nil, nil)

	exports = []export{
		{prometheus.NewDesc(namespace+"_connections_active",
			"Sessions currently being relayed.", nil, nil), prometheus.GaugeValue, connActive, nil},
		{prometheus.NewDesc(namespace+"_connections_total",
			"Sessions accepted or dialed since start.", nil, nil), prometheus.CounterValue, connTotal, nil},
		{descBytes, prometheus.CounterValue, bytesIn, []string{"in"}},
		{descBytes, prometheus.CounterValue, bytesOut, []string{"out"}},
		{prometheus.NewDesc(namespace+"_bus_lagged_chunks_total",
			"Broadcast chunks skipped by subscribers that fell behind.", nil, nil), prometheus.CounterValue, laggedChunks, nil},
		{prometheus.NewDesc(namespace+"_bus_dropped_chunks_total",
			"Stdin chunks published while no client was connected.", nil, nil), prometheus.CounterValue, droppedChunks, nil},
		{prometheus.NewDesc(namespace+"_errors_total",
			"Session and accept errors.", nil, nil), prometheus.CounterValue, errorsTotal, nil},
	}
)

// Collector tracks runtime metrics for an rnc process.
type Collector struct {
	vals  [numCounters]atomic.Int64
	start time.Time

	mu      sync.RWMutex
	errAt   time.Time
	errText string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{start: time.Now()}
}

func (c *Collector) add(k counter, n int64) {
	if c != nil {
		c.vals[k].Add(n)
	}
}

func (c *Collector) get(k counter) int64 {
	if c == nil {
		return 0
	}
	return c.vals[k].Load()
}

// ConnectionOpened counts a new session as both active and total.
func (c *Collector) ConnectionOpened() {
	c.add(connActive, 1)
	c.add(connTotal, 1)
}

// ConnectionClosed marks a session as no longer active.
func (c *Collector) ConnectionClosed() { c.add(connActive, -1) }

func (c *Collector) ActiveConnections() int64 { return c.get(connActive) }
func (c *Collector) TotalConnections() int64  { return c.get(connTotal) }

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) { c.add(bytesIn, n) }

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) { c.add(bytesOut, n) }

func (c *Collector) TotalBytesIn() int64  { return c.get(bytesIn) }
func (c *Collector) TotalBytesOut() int64 { return c.get(bytesOut) }

// ChunksLagged records chunks a slow subscriber never saw.
func (c *Collector) ChunksLagged(n uint64) { c.add(laggedChunks, int64(n)) }

// ChunkDropped records a chunk published with no subscriber attached.
func (c *Collector) ChunkDropped() { c.add(droppedChunks, 1) }

func (c *Collector) LaggedChunks() int64  { return c.get(laggedChunks) }
func (c *Collector) DroppedChunks() int64 { return c.get(droppedChunks) }

// RecordError counts an error and remembers the latest message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.add(errorsTotal, 1)
	c.mu.Lock()
	c.errAt, c.errText = time.Now(), msg
	c.mu.Unlock()
}

func (c *Collector) ErrorCount() int64 { return c.get(errorsTotal) }

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	seen := make(map[*prometheus.Desc]bool, len(exports))
	for _, e := range exports {
		if !seen[e.desc] {
			seen[e.desc] = true
			ch <- e.desc
		}
	}
	ch <- descUptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	for _, e := range exports {
		ch <- prometheus.MustNewConstMetric(e.desc, e.kind, float64(c.get(e.which)), e.label...)
	}
	ch <- prometheus.MustNewConstMetric(descUptime, prometheus.GaugeValue, time.Since(c.start).Seconds())
}

// Snapshot is a point-in-time view of all metrics, used for the
// end-of-run debug dump.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	LaggedChunks      int64  `json:"lagged_chunks"`
	DroppedChunks     int64  `json:"dropped_chunks"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Uptime:            time.Since(c.start).Truncate(time.Second).String(),
		ConnectionsActive: c.get(connActive),
		ConnectionsTotal:  c.get(connTotal),
		BytesIn:           c.get(bytesIn),
		BytesOut:          c.get(bytesOut),
		LaggedChunks:      c.get(laggedChunks),
		DroppedChunks:     c.get(droppedChunks),
		ErrorsTotal:       c.get(errorsTotal),
	}
	c.mu.RLock()
	if !c.errAt.IsZero() {
		s.LastError = c.errAt.Format(time.RFC3339)
		s.LastErrorMessage = c.errText
	}
	c.mu.RUnlock()
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	data, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return string(data)
}
