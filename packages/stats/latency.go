package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/okx/txprop/packages/records"
)

// Latency is the time a transaction took from submission to first sighting in the pool.
type Latency struct {
	TxID     string
	Duration time.Duration
}

// Summary aggregates propagation latencies
type Summary struct {
	Count   int
	Missing int

	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
}

// Join pairs send records with monitor records by transaction id. Sent transactions
// never seen are returned as missing, in send order. A transaction sent or seen more
// than once keeps its first record.
func Join(sent, seen []records.TxRecord) (latencies []Latency, missing []string) {
	seenAt := make(map[string]int64, len(seen))
	for _, r := range seen {
		if _, ok := seenAt[r.TxID]; !ok {
			seenAt[r.TxID] = r.TimestampMs
		}
	}

	joined := make(map[string]struct{}, len(sent))
	for _, r := range sent {
		if _, ok := joined[r.TxID]; ok {
			continue
		}
		joined[r.TxID] = struct{}{}

		ts, ok := seenAt[r.TxID]
		if !ok {
			missing = append(missing, r.TxID)
			continue
		}
		latencies = append(latencies, Latency{
			TxID:     r.TxID,
			Duration: time.Duration(ts-r.TimestampMs) * time.Millisecond,
		})
	}
	return latencies, missing
}

// Summarize computes the summary of latencies. missing is carried through as is.
func Summarize(latencies []Latency, missing int) Summary {
	s := Summary{Count: len(latencies), Missing: missing}
	if len(latencies) == 0 {
		return s
	}

	durations := make([]time.Duration, len(latencies))
	var total time.Duration
	for i, l := range latencies {
		durations[i] = l.Duration
		total += l.Duration
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	s.Min = durations[0]
	s.Max = durations[len(durations)-1]
	s.Mean = total / time.Duration(len(durations))
	s.P50 = percentile(durations, 50)
	s.P95 = percentile(durations, 95)
	s.P99 = percentile(durations, 99)
	return s
}

// percentile uses the nearest-rank method on sorted durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// String renders the summary as a block for the terminal.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("\n========== Propagation Latency ==========\n")
	fmt.Fprintf(&b, "Observed:  %d\n", s.Count)
	fmt.Fprintf(&b, "Missing:   %d\n", s.Missing)
	if s.Count > 0 {
		fmt.Fprintf(&b, "Min:       %s\n", s.Min)
		fmt.Fprintf(&b, "Mean:      %s\n", s.Mean)
		fmt.Fprintf(&b, "P50:       %s\n", s.P50)
		fmt.Fprintf(&b, "P95:       %s\n", s.P95)
		fmt.Fprintf(&b, "P99:       %s\n", s.P99)
		fmt.Fprintf(&b, "Max:       %s\n", s.Max)
	}
	b.WriteString("=========================================\n")
	return b.String()
}

// Log writes the summary through logger.
func (s Summary) Log(logger log.Logger) {
	logger.Info("Propagation latency",
		"observed", s.Count,
		"missing", s.Missing,
		"min", s.Min,
		"mean", s.Mean,
		"p50", s.P50,
		"p95", s.P95,
		"p99", s.P99,
		"max", s.Max,
	)
}

// LatencyRecords converts latencies to "txid,latency_ms" records for WriteTxRecords.
func LatencyRecords(latencies []Latency) []records.TxRecord {
	out := make([]records.TxRecord, len(latencies))
	for i, l := range latencies {
		out[i] = records.TxRecord{TxID: l.TxID, TimestampMs: l.Duration.Milliseconds()}
	}
	return out
}
