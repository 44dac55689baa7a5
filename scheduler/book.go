package scheduler

import (
	"time"

	"github.com/naojsoft/qplan-core/entity"
)

// ProgramBook is the scheduler's per-program bookkeeping record: how
// much on-source time a program has used, how many OBs it has had
// scheduled, and how much it is allotted in total. Derived OBs never
// touch ScheduledTime or ObCount; only science time is billed.
type ProgramBook struct {
	Program       *entity.Program
	ScheduledTime time.Duration
	ObCount       int
}

// NewBooks builds one ProgramBook per program, pre-loading ScheduledTime
// from preScheduled when present -- the executed-OB feedback mechanism:
// a program that has exhausted its budget via prior executions starts
// with ScheduledTime already at (or past) its total, so the fill loop's
// budget check naturally stops selecting its OBs.
func NewBooks(programs []*entity.Program, preScheduled map[string]time.Duration) map[string]*ProgramBook {
	books := make(map[string]*ProgramBook, len(programs))
	for _, p := range programs {
		books[p.Proposal] = &ProgramBook{Program: p, ScheduledTime: preScheduled[p.Proposal]}
	}
	return books
}

// Fits reports whether debiting amount against this book would keep
// ScheduledTime at or under the program's TotalTime.
func (b *ProgramBook) Fits(amount time.Duration) bool {
	if b.Program == nil {
		return true
	}
	return b.ScheduledTime+amount <= b.Program.TotalTime
}

// Debit charges amount (an OB's on-source time) to the book and
// increments ObCount. Callers must have already confirmed Fits.
func (b *ProgramBook) Debit(amount time.Duration) {
	b.ScheduledTime += amount
	b.ObCount++
}
