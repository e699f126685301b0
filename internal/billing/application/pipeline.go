// Package application orchestrates the billing pipeline: calendar
// expansion, completeness gating, solar allocation and period
// aggregation. A run always completes; months failing the gate are
// excluded with a reason instead of failing the run.
package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	allocation "vzev-billing/internal/allocation/domain"
	billing "vzev-billing/internal/billing/domain"
	"vzev-billing/internal/calendar"
	masterdata "vzev-billing/internal/masterdata/domain"
	metering "vzev-billing/internal/metering/domain"
	"vzev-billing/internal/observability/metrics"
	quality "vzev-billing/internal/quality/domain"
)

// ReadingSource supplies ordered, quality-filtered interval readings for
// a meter and time range. The postgres and memory stores implement it.
type ReadingSource interface {
	Readings(ctx context.Context, meterID string, start, end time.Time) ([]metering.IntervalReading, error)
}

// ExcludedMonth names a month left out of billing and why.
type ExcludedMonth struct {
	Month  calendar.Month
	Reason string
}

// RunResult is the complete outcome of one pipeline run.
type RunResult struct {
	Bills    []*billing.Bill
	Statuses []quality.MonthStatus
	Excluded []ExcludedMonth
	Warnings []string
}

// Pipeline wires the core components over a reading source.
type Pipeline struct {
	source ReadingSource
	graph  *masterdata.Graph
	rates  billing.Rates
	loc    *time.Location
	logger *log.Logger
}

// NewPipeline constructs the pipeline.
func NewPipeline(source ReadingSource, graph *masterdata.Graph, rates billing.Rates, loc *time.Location, logger *log.Logger) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("pipeline: nil reading source")
	}
	if graph == nil {
		return nil, errors.New("pipeline: nil member graph")
	}
	if loc == nil {
		return nil, calendar.ErrNilLocation
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{source: source, graph: graph, rates: rates, loc: loc, logger: logger}, nil
}

// Run bills the configured overall period. Configuration and input
// defects (bad range, duplicate readings) abort; data-quality gaps only
// exclude the affected months.
func (p *Pipeline) Run(ctx context.Context, start, end calendar.Month, kind calendar.IntervalKind) (*RunResult, error) {
	began := time.Now()
	result, err := p.run(ctx, start, end, kind)
	if err != nil {
		metrics.ObservePipelineRun(metrics.ResultError, time.Since(began))
		return nil, err
	}
	metrics.ObservePipelineRun(metrics.ResultSuccess, time.Since(began))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, start, end calendar.Month, kind calendar.IntervalKind) (*RunResult, error) {
	periods, err := calendar.Partition(start, end, kind)
	if err != nil {
		return nil, err
	}
	months, err := calendar.MonthsBetween(start, end)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	allocations := make(map[calendar.Month]*allocation.MonthAllocation)

	for _, month := range months {
		readings, err := p.fetchMonth(ctx, month)
		if err != nil {
			return nil, err
		}

		status, err := quality.CheckMonth(month, p.loc, p.allMeters(), readings)
		if err != nil {
			return nil, err
		}
		result.Statuses = append(result.Statuses, status)
		metrics.IncMonthChecked(status.Billable)

		if !status.Billable {
			reason := status.Reason()
			result.Excluded = append(result.Excluded, ExcludedMonth{Month: month, Reason: reason})
			p.logf("month %s excluded from billing (%s)", month, reason)
			continue
		}

		alloc, err := allocation.AllocateMonth(month, p.loc, p.graph.PhysicalMeters(), readings)
		if err != nil {
			return nil, err
		}
		allocations[month] = alloc

		result.Warnings = append(result.Warnings, p.crossCheck(month, readings, alloc)...)
	}

	for _, period := range periods {
		if excluded := p.excludedIn(period, result.Excluded); excluded != "" {
			p.logf("period %s skipped: month %s not billable", period.Label(), excluded)
			continue
		}
		for _, member := range p.graph.Members() {
			bill, err := billing.Aggregate(member, period, allocations, p.rates)
			if err != nil {
				return nil, fmt.Errorf("period %s member %s: %w", period.Label(), member.ID, err)
			}
			result.Bills = append(result.Bills, bill)
		}
	}

	sort.Slice(result.Bills, func(i, j int) bool {
		a, b := result.Bills[i], result.Bills[j]
		if a.Period.Start() != b.Period.Start() {
			return a.Period.Start().Before(b.Period.Start())
		}
		return a.MemberID < b.MemberID
	})

	metrics.AddBillsGenerated(len(result.Bills))
	p.logf("run complete: %d bill(s), %d month(s) excluded, %d warning(s)",
		len(result.Bills), len(result.Excluded), len(result.Warnings))
	return result, nil
}

func (p *Pipeline) fetchMonth(ctx context.Context, month calendar.Month) (map[string][]metering.IntervalReading, error) {
	from := month.Start(p.loc)
	to := month.End(p.loc)

	readings := make(map[string][]metering.IntervalReading)
	for _, meter := range p.allMeters() {
		rows, err := p.source.Readings(ctx, meter.ExternalID, from, to)
		if err != nil {
			return nil, fmt.Errorf("readings for meter %s in %s: %w", meter.ExternalID, month, err)
		}
		readings[meter.ExternalID] = rows
	}
	return readings, nil
}

func (p *Pipeline) allMeters() []masterdata.Meter {
	return append(p.graph.PhysicalMeters(), p.graph.VirtualMeters()...)
}

// crossCheck compares virtual grid-level meter totals against the
// allocation output. Deviations are warnings, never exclusions.
func (p *Pipeline) crossCheck(month calendar.Month, readings map[string][]metering.IntervalReading, alloc *allocation.MonthAllocation) []string {
	var virtualConsumption, virtualProduction float64
	seen := false
	for _, meter := range p.graph.VirtualMeters() {
		seen = true
		for _, r := range readings[meter.ExternalID] {
			if !r.Valid() {
				continue
			}
			if meter.IsProduction {
				virtualProduction += r.ProductionKWh
			} else {
				virtualConsumption += r.ConsumptionKWh
			}
		}
	}
	if !seen {
		return nil
	}

	warnings := quality.CrossCheckVirtual(month,
		virtualConsumption, virtualProduction,
		alloc.GridDrawKWh().InexactFloat64(), alloc.ExportKWh().InexactFloat64())
	for _, w := range warnings {
		p.logf("cross-check: %s", w)
	}
	return warnings
}

func (p *Pipeline) excludedIn(period calendar.BillingPeriod, excluded []ExcludedMonth) string {
	for _, month := range period.Months {
		for _, ex := range excluded {
			if ex.Month == month {
				return month.String()
			}
		}
	}
	return ""
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
