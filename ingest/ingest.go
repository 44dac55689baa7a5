// Package ingest turns the planner's three flat input tables
// (programs, schedule, observing blocks) plus a weights file into the
// entity values the planner core operates on. Malformed rows are
// collected as InvalidInput errors rather than aborting the whole parse,
// mirroring how a queue operator wants to see every bad row in one pass
// instead of fixing and re-running one at a time.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/evaluate"
	"github.com/naojsoft/qplan-core/scheduler"
)

// AuditLog is the ingest package's own structured logger, separate from
// the core's slog-based log package: a parse run is a one-shot batch job
// an operator tails, not a long-lived service emitting spans.
var AuditLog = logrus.New()

// InvalidInput is one rejected row: which table, which line, and why.
// A parse that produces InvalidInput entries still returns its
// successfully parsed rows -- the caller decides whether partial ingest
// is acceptable.
type InvalidInput struct {
	Table string
	Line  int
	Err   error
}

func (e InvalidInput) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Table, e.Line, e.Err)
}

// ProgramsResult is the outcome of parsing the programs table.
type ProgramsResult struct {
	Programs []*entity.Program
	Errors   []InvalidInput
}

// programs.csv columns: proposal,rank,grade,total_time_sec,category,instruments,skip
func ParsePrograms(r io.Reader) ProgramsResult {
	var out ProgramsResult
	rows, lineOf, err := readCSV(r)
	if err != nil {
		out.Errors = append(out.Errors, InvalidInput{Table: "programs", Line: 0, Err: err})
		return out
	}
	for i, row := range rows {
		line := lineOf(i)
		if len(row) < 7 {
			out.Errors = append(out.Errors, InvalidInput{Table: "programs", Line: line, Err: fmt.Errorf("expected 7 columns, got %d", len(row))})
			continue
		}
		rank, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "programs", Line: line, Err: fmt.Errorf("rank: %w", err)})
			continue
		}
		totalSec, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "programs", Line: line, Err: fmt.Errorf("total_time_sec: %w", err)})
			continue
		}
		skip, err := strconv.ParseBool(strings.TrimSpace(row[6]))
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "programs", Line: line, Err: fmt.Errorf("skip: %w", err)})
			continue
		}
		p := &entity.Program{
			Proposal:    strings.TrimSpace(row[0]),
			Rank:        rank,
			Grade:       entity.Grade(strings.TrimSpace(row[2])),
			TotalTime:   time.Duration(totalSec * float64(time.Second)),
			Category:    strings.TrimSpace(row[4]),
			Instruments: splitList(row[5]),
			Skip:        skip,
		}
		out.Programs = append(out.Programs, p)
	}
	AuditLog.WithFields(logrus.Fields{"table": "programs", "accepted": len(out.Programs), "rejected": len(out.Errors)}).Info("parsed programs table")
	return out
}

// NightsResult is the outcome of parsing the schedule table.
type NightsResult struct {
	Nights []scheduler.NightRecord
	Errors []InvalidInput
}

// schedule.csv columns: start_rfc3339,stop_rfc3339,dome,cur_filter,installed_filters,instruments,categories[,skip[,note]]
//
// The trailing skip and note columns are optional: skip (bool) takes the
// night out of queue service, note is free-form operator commentary.
func ParseSchedule(r io.Reader) NightsResult {
	var out NightsResult
	rows, lineOf, err := readCSV(r)
	if err != nil {
		out.Errors = append(out.Errors, InvalidInput{Table: "schedule", Line: 0, Err: err})
		return out
	}
	for i, row := range rows {
		line := lineOf(i)
		if len(row) < 7 {
			out.Errors = append(out.Errors, InvalidInput{Table: "schedule", Line: line, Err: fmt.Errorf("expected 7 columns, got %d", len(row))})
			continue
		}
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "schedule", Line: line, Err: fmt.Errorf("start: %w", err)})
			continue
		}
		stop, err := time.Parse(time.RFC3339, strings.TrimSpace(row[1]))
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "schedule", Line: line, Err: fmt.Errorf("stop: %w", err)})
			continue
		}
		rec := scheduler.NightRecord{
			Start: start,
			Stop:  stop,
			Data: entity.NightConditions{
				Dome:             entity.DomeState(strings.TrimSpace(row[2])),
				CurFilter:        strings.TrimSpace(row[3]),
				InstalledFilters: splitList(row[4]),
				Instruments:      splitList(row[5]),
				Categories:       splitList(row[6]),
			},
		}
		if len(row) > 7 && strings.TrimSpace(row[7]) != "" {
			skip, err := strconv.ParseBool(strings.TrimSpace(row[7]))
			if err != nil {
				out.Errors = append(out.Errors, InvalidInput{Table: "schedule", Line: line, Err: fmt.Errorf("skip: %w", err)})
				continue
			}
			rec.Data.Skip = skip
		}
		if len(row) > 8 {
			rec.Data.Note = strings.TrimSpace(row[8])
		}
		out.Nights = append(out.Nights, rec)
	}
	AuditLog.WithFields(logrus.Fields{"table": "schedule", "accepted": len(out.Nights), "rejected": len(out.Errors)}).Info("parsed schedule table")
	return out
}

// OBsResult is the outcome of parsing the observing-blocks table.
type OBsResult struct {
	OBs    []*entity.OB
	Errors []InvalidInput
}

// obs.csv columns: id,proposal,target_name,ra_deg,dec_deg,equinox,instrument,filter,num_exp,exp_time_sec,priority
//
// ingest only ever builds ImagerConfig entries from this table -- a
// spectrograph-backed OB still round-trips through the core, it just
// isn't representable in this flat row shape, matching how the original
// tables carried one instrument family per deployment.
func ParseOBs(r io.Reader, programByID map[string]*entity.Program) OBsResult {
	var out OBsResult
	rows, lineOf, err := readCSV(r)
	if err != nil {
		out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: 0, Err: err})
		return out
	}
	for i, row := range rows {
		line := lineOf(i)
		if len(row) < 11 {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("expected 11 columns, got %d", len(row))})
			continue
		}
		ra, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("ra_deg: %w", err)})
			continue
		}
		dec, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("dec_deg: %w", err)})
			continue
		}
		equinox, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("equinox: %w", err)})
			continue
		}
		numExp, err := strconv.Atoi(strings.TrimSpace(row[8]))
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("num_exp: %w", err)})
			continue
		}
		expSec, err := strconv.ParseFloat(strings.TrimSpace(row[9]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("exp_time_sec: %w", err)})
			continue
		}
		priority, err := strconv.ParseFloat(strings.TrimSpace(row[10]), 64)
		if err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("priority: %w", err)})
			continue
		}
		proposal := strings.TrimSpace(row[1])
		prog, ok := programByID[proposal]
		if !ok {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: fmt.Errorf("unknown proposal %q", proposal)})
			continue
		}
		ob := &entity.OB{
			ID:      strings.TrimSpace(row[0]),
			Program: prog,
			Target: &entity.Target{
				Name:    strings.TrimSpace(row[2]),
				RA:      ra,
				Dec:     dec,
				Equinox: equinox,
			},
			InstCfg:  entity.NewImagerConfig(strings.TrimSpace(row[6]), strings.TrimSpace(row[7]), numExp, time.Duration(expSec*float64(time.Second)), 0),
			TelCfg:   entity.TelescopeConfig{Dome: entity.DomeOpen, MinEl: 15, MaxEl: 85},
			EnvCfg:   entity.DefaultEnvironmentConfiguration(),
			Priority: priority,
		}
		if err := ob.Validate(); err != nil {
			out.Errors = append(out.Errors, InvalidInput{Table: "obs", Line: line, Err: err})
			continue
		}
		out.OBs = append(out.OBs, ob)
	}
	AuditLog.WithFields(logrus.Fields{"table": "obs", "accepted": len(out.OBs), "rejected": len(out.Errors)}).Info("parsed obs table")
	return out
}

// WeightsFile is the YAML shape of the cost-function configuration file:
// weights and normalization limits, both optional (missing fields fall
// back to evaluate's defaults).
type WeightsFile struct {
	Weights struct {
		Slew         *float64 `yaml:"slew"`
		Delay        *float64 `yaml:"delay"`
		FilterChange *float64 `yaml:"filter_change"`
		Rank         *float64 `yaml:"rank"`
		Priority     *float64 `yaml:"priority"`
	} `yaml:"weights"`
	Limits struct {
		MaxSlewSec         *float64 `yaml:"max_slew_sec"`
		MaxDelaySec         *float64 `yaml:"max_delay_sec"`
		MaxFilterChangeSec *float64 `yaml:"max_filter_change_sec"`
		MaxRank            *float64 `yaml:"max_rank"`
	} `yaml:"limits"`
}

// LoadWeights parses a YAML weights file, overlaying any fields it sets
// on top of the defaults.
func LoadWeights(r io.Reader) (evaluate.Weights, evaluate.Limits, error) {
	w := evaluate.DefaultWeights()
	lim := evaluate.DefaultLimits()

	data, err := io.ReadAll(r)
	if err != nil {
		return w, lim, fmt.Errorf("read weights file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return w, lim, nil
	}

	var wf WeightsFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return w, lim, fmt.Errorf("parse weights file: %w", err)
	}

	if wf.Weights.Slew != nil {
		w.Slew = *wf.Weights.Slew
	}
	if wf.Weights.Delay != nil {
		w.Delay = *wf.Weights.Delay
	}
	if wf.Weights.FilterChange != nil {
		w.FilterChange = *wf.Weights.FilterChange
	}
	if wf.Weights.Rank != nil {
		w.Rank = *wf.Weights.Rank
	}
	if wf.Weights.Priority != nil {
		w.Priority = *wf.Weights.Priority
	}

	if wf.Limits.MaxSlewSec != nil {
		lim.MaxSlew = time.Duration(*wf.Limits.MaxSlewSec * float64(time.Second))
	}
	if wf.Limits.MaxDelaySec != nil {
		lim.MaxDelay = time.Duration(*wf.Limits.MaxDelaySec * float64(time.Second))
	}
	if wf.Limits.MaxFilterChangeSec != nil {
		lim.MaxFilterChange = time.Duration(*wf.Limits.MaxFilterChangeSec * float64(time.Second))
	}
	if wf.Limits.MaxRank != nil {
		lim.MaxRank = *wf.Limits.MaxRank
	}

	return w, lim, nil
}

func splitList(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	parts := strings.Split(field, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readCSV reads every record, tolerating a variable field count per row
// (csv.Reader's default strictness would abort the whole file on the
// first short row) and returns a function mapping a 0-based data-row
// index back to its 1-based source line number, accounting for the
// header row.
func readCSV(r io.Reader) ([][]string, func(int) int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, func(int) int { return 0 }, nil
	}
	return all[1:], func(i int) int { return i + 2 }, nil
}
