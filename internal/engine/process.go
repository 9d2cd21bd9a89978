package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexsteininfo/clonesim/internal/logging"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// Process is the closed set of simulation variants.
type Process string

const (
	// ProcessBranching is the single-level birth-death branching
	// process, run until the target population size.
	ProcessBranching Process = "branching"

	// ProcessMoran is the single-level fixed-size Moran process.
	ProcessMoran Process = "moran"

	// ProcessBranchingMoran grows via the branching process, then holds
	// the population under Moran dynamics until the horizon.
	ProcessBranchingMoran Process = "branchingmoran"

	// ProcessMultilevel is the hierarchical module model.
	ProcessMultilevel Process = "multilevel"
)

// Valid reports whether p names a known process variant.
func (p Process) Valid() bool {
	switch p {
	case ProcessBranching, ProcessMoran, ProcessBranchingMoran, ProcessMultilevel:
		return true
	}
	return false
}

// Processes lists every recognized process variant.
func Processes() []Process {
	return []Process{ProcessBranching, ProcessMoran, ProcessBranchingMoran, ProcessMultilevel}
}

// Run is the single entry point over the process variants: it dispatches
// on the tag and drives the matching engine to completion.
func Run(ctx context.Context, process Process, opts Options, src *rng.Source, log *slog.Logger, trace *logging.EventLogger) (*Result, error) {
	switch process {
	case ProcessMultilevel:
		e, err := New(opts, src, log, trace)
		if err != nil {
			return nil, err
		}
		return e.Run(ctx)

	case ProcessBranching:
		s, err := NewSingleLevel(opts, src, log, trace)
		if err != nil {
			return nil, err
		}
		return s.RunBranching(ctx)

	case ProcessMoran:
		s, err := NewSingleLevel(opts, src, log, trace)
		if err != nil {
			return nil, err
		}
		if err := s.FillToCapacity(); err != nil {
			return nil, err
		}
		return s.RunMoran(ctx)

	case ProcessBranchingMoran:
		s, err := NewSingleLevel(opts, src, log, trace)
		if err != nil {
			return nil, err
		}
		res, err := s.RunBranching(ctx)
		if err != nil {
			return nil, err
		}
		if res.Reason != ReasonSizeReached {
			// Extinct or out of time during growth; nothing to hold.
			return res, nil
		}
		return s.RunMoran(ctx)
	}
	return nil, fmt.Errorf("engine: unknown process %q", process)
}
