// Package aggregate joins cluster and component assignments with
// third-party domain metrics and rolls them up into per-group summaries.
// Summaries are rebuilt on every call and never modify their inputs.
package aggregate

import (
	"errors"
	"sort"
	"time"

	"github.com/alvmarrod/everest/internal/storage"
)

var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrDomainNotFound = errors.New("domain not found")
)

// MetricsSource resolves third-party metrics by domain name
type MetricsSource interface {
	Metrics(domain string) (storage.DomainMetrics, bool)
}

// MetricsMap is a MetricsSource backed by a map
type MetricsMap map[string]storage.DomainMetrics

// Metrics implements MetricsSource
func (m MetricsMap) Metrics(domain string) (storage.DomainMetrics, bool) {
	metrics, ok := m[domain]
	return metrics, ok
}

// lookup returns the metrics of a domain, or an empty record whose fields are
// all nil when the domain has no metrics
func lookup(source MetricsSource, domain string) storage.DomainMetrics {
	if source != nil {
		if m, ok := source.Metrics(domain); ok {
			m.DomainName = domain
			return m
		}
	}
	return storage.DomainMetrics{DomainName: domain}
}

// Options controls summary construction
type Options struct {
	// NewThreshold marks domains updated at or after it as new. When nil the
	// earliest LastUpdated among the summarized domains is used, which flags
	// every domain that has a LastUpdated.
	NewThreshold *time.Time
}

// resolveThreshold returns the explicit threshold or the earliest LastUpdated of members
func resolveThreshold(explicit *time.Time, members []storage.DomainMetrics) *time.Time {
	if explicit != nil {
		t := *explicit
		return &t
	}
	var threshold *time.Time
	for _, m := range members {
		if m.LastUpdated == nil {
			continue
		}
		if threshold == nil || m.LastUpdated.Before(*threshold) {
			t := *m.LastUpdated
			threshold = &t
		}
	}
	return threshold
}

func isNew(m storage.DomainMetrics, threshold *time.Time) bool {
	if m.LastUpdated == nil || threshold == nil {
		return false
	}
	return !m.LastUpdated.Before(*threshold)
}

// Rollup accumulates a nullable numeric column. Nil values are skipped by
// every statistic; Count still includes them.
type Rollup struct {
	count  int
	values []float64
}

// Add records one value, nil for absent
func (r *Rollup) Add(v *float64) {
	r.count++
	if v != nil {
		r.values = append(r.values, *v)
	}
}

// AddInt records an integer value, nil for absent
func (r *Rollup) AddInt(v *int64) {
	if v == nil {
		r.Add(nil)
		return
	}
	f := float64(*v)
	r.Add(&f)
}

// Count returns the number of recorded values, absent ones included
func (r *Rollup) Count() int {
	return r.count
}

// Sum returns the total of present values, 0 when none are present
func (r *Rollup) Sum() float64 {
	total := 0.0
	for _, v := range r.values {
		total += v
	}
	return total
}

// Mean returns the average of present values, nil when none are present
func (r *Rollup) Mean() *float64 {
	if len(r.values) == 0 {
		return nil
	}
	mean := r.Sum() / float64(len(r.values))
	return &mean
}

// Median returns the middle present value, averaging the two middle values
// for an even count, nil when none are present
func (r *Rollup) Median() *float64 {
	n := len(r.values)
	if n == 0 {
		return nil
	}
	sorted := append([]float64(nil), r.values...)
	sort.Float64s(sorted)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return &median
}

// Max returns the largest present value, nil when none are present
func (r *Rollup) Max() *float64 {
	if len(r.values) == 0 {
		return nil
	}
	largest := r.values[0]
	for _, v := range r.values[1:] {
		if v > largest {
			largest = v
		}
	}
	return &largest
}
