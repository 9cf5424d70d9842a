package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsAcceptedTotal   atomic.Uint64
	queueJobsClaimedTotal  atomic.Uint64
	queueJobsCompleted     atomic.Uint64
	queueJobsRetriedTotal  atomic.Uint64
	queueJobsFailedTotal   atomic.Uint64
	statusTransitionsTotal atomic.Uint64

	uploadsRejected = newLabeledCounter()

	analysisDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncUploadsAccepted increments the accepted-submission counter.
func IncUploadsAccepted() {
	uploadsAcceptedTotal.Add(1)
}

// IncUploadsRejected increments the rejected-submission counter for a reason.
func IncUploadsRejected(reason string) {
	uploadsRejected.inc(reason)
}

// IncQueueJobsClaimed increments the claimed-item counter.
func IncQueueJobsClaimed() {
	queueJobsClaimedTotal.Add(1)
}

// IncQueueJobsCompleted increments the completed-item counter.
func IncQueueJobsCompleted() {
	queueJobsCompleted.Add(1)
}

// IncQueueJobsRetried increments the retried-attempt counter.
func IncQueueJobsRetried() {
	queueJobsRetriedTotal.Add(1)
}

// IncQueueJobsFailed increments the terminally-failed-item counter.
func IncQueueJobsFailed() {
	queueJobsFailedTotal.Add(1)
}

// IncStatusTransitions increments the propagated-transition counter.
func IncStatusTransitions() {
	statusTransitionsTotal.Add(1)
}

// ObserveAnalysisDurationMs records an analysis call duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "uploads_accepted_total", "Total submissions accepted", uploadsAcceptedTotal.Load())
	uploadsRejected.write(&buf, "uploads_rejected_total", "Total submissions rejected", "reason")
	writeCounter(&buf, "queue_jobs_claimed_total", "Total queue items claimed", queueJobsClaimedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue items completed", queueJobsCompleted.Load())
	writeCounter(&buf, "queue_jobs_retried_total", "Total queue item attempts retried", queueJobsRetriedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue items terminally failed", queueJobsFailedTotal.Load())
	writeCounter(&buf, "status_transitions_total", "Total swing status transitions propagated", statusTransitionsTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis call duration in milliseconds", analysisDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{counts: make(map[string]uint64)}
}

func (l *labeledCounter) inc(label string) {
	l.mu.Lock()
	l.counts[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) write(buf *bytes.Buffer, name, help, labelName string) {
	l.mu.Lock()
	labels := make([]string, 0, len(l.counts))
	for label := range l.counts {
		labels = append(labels, label)
	}
	snapshot := make(map[string]uint64, len(l.counts))
	for label, count := range l.counts {
		snapshot[label] = count
	}
	l.mu.Unlock()

	sort.Strings(labels)
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	for _, label := range labels {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, labelName, label, snapshot[label])
	}
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
