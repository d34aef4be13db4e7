// Package cluster groups scraped pages by content similarity within each
// language. Every language partition is vectorized and clustered on its own;
// a failure in one partition labels that partition as failed and never
// affects the others.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alvmarrod/everest/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMinClusterSize is the smallest group HDBSCAN reports as a cluster
	DefaultMinClusterSize = 10

	// MaxLanguageCodeLen bounds eligible language codes; codes must be shorter
	MaxLanguageCodeLen = 9

	labelSeparator = "-"
	noiseSuffix    = "-1"
	failedSuffix   = "-clustering-failed"
)

// Document is one page to cluster
type Document struct {
	DomainName string
	Language   string
	Text       string
}

// Label is the cluster assignment of one domain
type Label struct {
	DomainName string
	Language   string
	Cluster    string
	Cohesion   *float64
}

// Valid reports whether the label names a real cluster (not noise or failure)
func (l Label) Valid() bool {
	return IsValidLabel(l.Cluster)
}

// Assignment maps domain names to their labels
type Assignment map[string]Label

// Rows converts the assignment into storage rows ordered by domain
func (a Assignment) Rows() []storage.ClusterRow {
	rows := make([]storage.ClusterRow, 0, len(a))
	for _, l := range a {
		rows = append(rows, storage.ClusterRow{
			DomainName:   l.DomainName,
			Language:     l.Language,
			Cluster:      l.Cluster,
			MeanDistance: l.Cohesion,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DomainName < rows[j].DomainName })
	return rows
}

// AssignmentFromRows rebuilds an assignment from persisted cluster rows
func AssignmentFromRows(rows []storage.ClusterRow) Assignment {
	a := make(Assignment, len(rows))
	for _, r := range rows {
		a[r.DomainName] = Label{
			DomainName: r.DomainName,
			Language:   r.Language,
			Cluster:    r.Cluster,
			Cohesion:   r.MeanDistance,
		}
	}
	return a
}

// PartitionFailure records why a language partition could not be clustered
type PartitionFailure struct {
	Language  string
	Documents int
	Err       error
}

func (f PartitionFailure) Error() string {
	return fmt.Sprintf("clustering failed for language code %s (%d documents): %v", f.Language, f.Documents, f.Err)
}

func (f PartitionFailure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one clustering run
type Result struct {
	Assignment Assignment
	Cohesion   map[string]float64 // valid label -> mean pairwise distance
	Failures   []PartitionFailure
	Excluded   []string // domains whose language code is not eligible
	Partitions int
}

// IsValidLabel reports whether a cluster label names a real cluster
func IsValidLabel(label string) bool {
	return label != "" && !strings.Contains(label, labelSeparator)
}

// NoiseLabel returns the noise label of a language
func NoiseLabel(language string) string {
	return language + noiseSuffix
}

// FailedLabel returns the failure label of a language
func FailedLabel(language string) string {
	return language + failedSuffix
}

// Eligible reports whether documents in the language take part in clustering
func Eligible(language string) bool {
	return language != "" && len(language) < MaxLanguageCodeLen
}

// Engine runs language-partitioned clustering
type Engine struct {
	workers int
}

// NewEngine creates an engine that clusters up to workers partitions at once
func NewEngine(workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{workers: workers}
}

type partition struct {
	language string
	docs     []Document
}

type partitionResult struct {
	labels   []string
	cohesion map[string]float64
	err      error
}

// Cluster labels every document with an eligible language code.
// Partition failures are recorded in the result, never returned; the only
// error is an invalid minClusterSize or a cancelled context.
func (e *Engine) Cluster(ctx context.Context, docs []Document, minClusterSize int) (*Result, error) {
	if minClusterSize < 2 {
		return nil, fmt.Errorf("invalid min cluster size %d: %w", minClusterSize, errMinClusterSize)
	}

	result := &Result{
		Assignment: make(Assignment),
		Cohesion:   make(map[string]float64),
	}

	byLanguage := make(map[string][]Document)
	for _, d := range docs {
		if !Eligible(d.Language) {
			result.Excluded = append(result.Excluded, d.DomainName)
			continue
		}
		byLanguage[d.Language] = append(byLanguage[d.Language], d)
	}

	partitions := make([]partition, 0, len(byLanguage))
	for language, members := range byLanguage {
		partitions = append(partitions, partition{language: language, docs: members})
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i].language < partitions[j].language })
	result.Partitions = len(partitions)

	results := make([]partitionResult, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range partitions {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = clusterPartition(p.language, p.docs, minClusterSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, p := range partitions {
		r := results[i]
		if r.err != nil {
			failure := PartitionFailure{Language: p.language, Documents: len(p.docs), Err: r.err}
			logrus.Warnf("Clustering failed for language code %s: %v", p.language, r.err)
			result.Failures = append(result.Failures, failure)
			for _, d := range p.docs {
				result.Assignment[d.DomainName] = Label{DomainName: d.DomainName, Language: p.language, Cluster: FailedLabel(p.language)}
			}
			continue
		}

		for j, d := range p.docs {
			label := Label{DomainName: d.DomainName, Language: p.language, Cluster: r.labels[j]}
			if cohesion, ok := r.cohesion[label.Cluster]; ok {
				c := cohesion
				label.Cohesion = &c
			}
			result.Assignment[d.DomainName] = label
		}
		for name, cohesion := range r.cohesion {
			result.Cohesion[name] = cohesion
		}
		logrus.Infof("Clustering complete for language code %s (%d documents, %d clusters)", p.language, len(p.docs), len(r.cohesion))
	}

	return result, nil
}

// clusterPartition vectorizes and clusters one language. Any error or panic
// is returned in the result so the caller can mark the partition failed.
func clusterPartition(language string, docs []Document, minClusterSize int) (res partitionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = partitionResult{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectorizer := NewVectorizer(minDocumentFrequency)
	vectors, err := vectorizer.FitTransform(texts)
	if err != nil {
		return partitionResult{err: fmt.Errorf("vectorize: %w", err)}
	}

	indices, err := HDBSCAN{MinClusterSize: minClusterSize}.Fit(vectors)
	if err != nil {
		return partitionResult{err: fmt.Errorf("hdbscan: %w", err)}
	}

	labels := make([]string, len(indices))
	members := make(map[string][]string)
	for i, idx := range indices {
		labels[i] = language + strconv.Itoa(idx)
		if IsValidLabel(labels[i]) {
			members[labels[i]] = append(members[labels[i]], texts[i])
		}
	}

	cohesion := make(map[string]float64, len(members))
	for name, memberTexts := range members {
		memberVectors, err := vectorizer.Transform(memberTexts)
		if err != nil {
			return partitionResult{err: fmt.Errorf("cohesion for %s: %w", name, err)}
		}
		cohesion[name] = meanDistance(memberVectors)
	}

	return partitionResult{labels: labels, cohesion: cohesion}
}
