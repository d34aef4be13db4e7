// Package report exports cluster and component summaries to an xlsx workbook.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/everest/internal/aggregate"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook
const (
	SheetClusters         = "Clusters"
	SheetClusterDomains   = "Cluster Domains"
	SheetComponents       = "Components"
	SheetComponentDomains = "Component Domains"
)

var errEmptyReport = errors.New("nothing to report")

// Workbook builds an xlsx workbook one sheet at a time
type Workbook struct {
	file   *excelize.File
	header int
	sheets int
}

// NewWorkbook creates an empty workbook
func NewWorkbook() (*Workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &Workbook{file: f, header: header}, nil
}

// addSheet writes a header row followed by rows. The first sheet replaces the default one.
func (w *Workbook) addSheet(name string, header []any, rows [][]any) error {
	if w.sheets == 0 {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("failed to name sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	w.sheets++

	if err := w.file.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if err := w.file.SetRowStyle(name, 1, 1, w.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i+2, err)
		}
	}
	return nil
}

// AddClusters writes the cluster summary and member sheets
func (w *Workbook) AddClusters(r *aggregate.ClusterReport) error {
	summaries := make([][]any, 0, len(r.Summaries))
	for _, s := range r.Summaries {
		summaries = append(summaries, []any{
			s.Cluster, s.Language, s.NumDomains, s.NumNewDomains,
			s.TotalLiveBacklinks, s.TotalBacklinks, s.TotalOrganicTraffic,
			value(s.MeanDistance), value(s.MedianLiveBacklinks), value(s.MedianBacklinks),
			value(s.MedianDomainRating), value(s.MedianOrganicTraffic),
			value(s.MaxLiveBacklinks), value(s.MaxBacklinks), value(s.MaxDomainRating), value(s.MaxOrganicTraffic),
		})
	}
	err := w.addSheet(SheetClusters, []any{
		"cluster", "lang", "num_domains", "num_new_domains",
		"total_live_backlinks", "total_backlinks", "total_organic_traffic",
		"mean_distance", "median_live_backlinks", "median_backlinks",
		"median_domain_rating", "median_organic_traffic",
		"max_live_backlinks", "max_backlinks", "max_domain_rating", "max_organic_traffic",
	}, summaries)
	if err != nil {
		return err
	}

	domains := make([][]any, 0, len(r.Domains))
	for _, d := range r.Domains {
		domains = append(domains, []any{
			d.DomainName, d.Cluster, d.Language, value(d.MeanDistance), d.New,
			value(d.LiveBacklinks), value(d.TotalBacklinks), value(d.DomainRating), value(d.OrganicTraffic),
			date(d.FirstSeen), date(d.LastUpdated),
		})
	}
	return w.addSheet(SheetClusterDomains, []any{
		"domain", "cluster", "lang", "mean_distance", "new",
		"live_backlinks", "total_backlinks", "domain_rating", "organic_traffic",
		"first_seen", "last_updated",
	}, domains)
}

// AddComponents writes the component summary and node sheets
func (w *Workbook) AddComponents(r *aggregate.ComponentReport) error {
	summaries := make([][]any, 0, len(r.Summaries))
	for _, s := range r.Summaries {
		summaries = append(summaries, []any{
			s.Component, s.Size, s.Links, s.Density, s.Star, s.Centroid, s.CentroidLinks,
			s.NumNewDomains, s.TotalLiveBacklinks, s.TotalBacklinks, s.TotalOrganicTraffic,
			value(s.MeanDomainRating), value(s.MaxDomainRating),
			value(s.MeanOrganicTraffic), value(s.MaxOrganicTraffic),
		})
	}
	err := w.addSheet(SheetComponents, []any{
		"component", "size", "links", "density", "star", "centroid", "centroid_links",
		"num_new_domains", "total_live_backlinks", "total_backlinks", "total_organic_traffic",
		"mean_domain_rating", "max_domain_rating", "mean_organic_traffic", "max_organic_traffic",
	}, summaries)
	if err != nil {
		return err
	}

	domains := make([][]any, 0, len(r.Domains))
	for _, d := range r.Domains {
		domains = append(domains, []any{
			d.DomainName, d.Component, d.AllLinks, d.InLinks, d.OutLinks, d.New,
			value(d.LiveBacklinks), value(d.TotalBacklinks), value(d.DomainRating), value(d.OrganicTraffic),
			date(d.LastUpdated),
		})
	}
	return w.addSheet(SheetComponentDomains, []any{
		"domain", "component", "all_links", "in_links", "out_links", "new",
		"live_backlinks", "total_backlinks", "domain_rating", "organic_traffic", "last_updated",
	}, domains)
}

// SaveAs writes the workbook to path and releases it
func (w *Workbook) SaveAs(path string) error {
	defer w.file.Close()
	if w.sheets == 0 {
		return errEmptyReport
	}
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Write exports whichever reports are non-nil to a workbook at path
func Write(path string, clusters *aggregate.ClusterReport, components *aggregate.ComponentReport) error {
	w, err := NewWorkbook()
	if err != nil {
		return err
	}
	if clusters != nil {
		if err := w.AddClusters(clusters); err != nil {
			w.file.Close()
			return err
		}
	}
	if components != nil {
		if err := w.AddComponents(components); err != nil {
			w.file.Close()
			return err
		}
	}
	return w.SaveAs(path)
}

// value turns a nullable number into a cell value, nil for an empty cell
func value[T int64 | float64](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func date(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.DateOnly)
}
