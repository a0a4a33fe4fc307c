// Package orchestrator runs batches of sync steps. Its one safety
// invariant is check-before-apply: no step ever mutates state without
// first confirming its source is readable and learning the true check
// result. Steps run sequentially within a batch so backup and rollback
// ordering stays deterministic.
package orchestrator

import (
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/logging"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
)

// Step binds one unit of sync work to a module instance and its
// parameters.
type Step struct {
	Label  string
	Module syncmod.Module
	Params syncmod.Params
}

// StepResult pairs a step with its check outcome and, on apply runs, the
// apply outcome.
type StepResult struct {
	Step    Step
	Check   syncmod.CheckResult
	Apply   *syncmod.ApplyResult
	Skipped bool
	// SkipReason explains a skipped apply: filtered out, failed check,
	// or nothing to do.
	SkipReason string
}

// Summary aggregates counts by check status plus how many steps changed
// anything.
type Summary struct {
	OK      int
	Missing int
	Drifted int
	Failed  int
	Changed int
}

func (s *Summary) tally(status syncmod.Status) {
	switch status {
	case syncmod.StatusOK:
		s.OK++
	case syncmod.StatusMissing:
		s.Missing++
	case syncmod.StatusDrifted:
		s.Drifted++
	case syncmod.StatusFailed:
		s.Failed++
	}
}

// Report is a batch outcome: per-step results plus the summary.
type Report struct {
	Results []StepResult
	Summary Summary
}

// RunCheck invokes every step's check and nothing else.
func RunCheck(steps []Step) Report {
	logger := logging.GetLogger("orchestrator")
	defer logging.LogOperationStart(logger, "check batch")()

	report := Report{Results: make([]StepResult, 0, len(steps))}
	for _, step := range steps {
		check := step.Module.Check(step.Params)
		report.Summary.tally(check.Status)
		report.Results = append(report.Results, StepResult{Step: step, Check: check})

		logger.Debug().
			Str("label", step.Label).
			Str("module", step.Module.Name()).
			Str("status", string(check.Status)).
			Msg("Checked step")
	}
	return report
}

// RunPullback reverse-syncs the steps matching label, copying installed
// target content back into the declared source. Only steps whose
// declaration opted into pullback and whose module supports it run;
// everything else is reported as skipped. Check-before-apply holds here
// too.
func RunPullback(steps []Step, label string) Report {
	logger := logging.GetLogger("orchestrator")
	defer logging.LogOperationStart(logger, "pullback batch")()

	report := Report{Results: make([]StepResult, 0, len(steps))}
	for _, step := range steps {
		if step.Label != label {
			report.Results = append(report.Results, StepResult{
				Step:       step,
				Skipped:    true,
				SkipReason: "not selected",
			})
			continue
		}
		if !step.Params.Pullback {
			report.Results = append(report.Results, StepResult{
				Step:       step,
				Skipped:    true,
				SkipReason: "declaration does not allow pullback",
			})
			continue
		}
		puller, ok := step.Module.(syncmod.Pullbacker)
		if !ok {
			report.Results = append(report.Results, StepResult{
				Step:       step,
				Skipped:    true,
				SkipReason: "module does not support pullback",
			})
			continue
		}

		check := step.Module.Check(step.Params)
		report.Summary.tally(check.Status)
		result := StepResult{Step: step, Check: check}

		if check.Status == syncmod.StatusFailed {
			result.Skipped = true
			result.SkipReason = "check failed; pullback not attempted"
			report.Results = append(report.Results, result)
			continue
		}

		apply := puller.ApplyPullback(step.Params)
		result.Apply = &apply
		if apply.Changed {
			report.Summary.Changed++
		}
		report.Results = append(report.Results, result)

		logger.Debug().
			Str("label", step.Label).
			Bool("changed", apply.Changed).
			Msg("Pulled back step")
	}
	return report
}

// RunApply checks each step and then applies it, unless its label is
// excluded by the filter or its check failed. A failed check means the
// source is unreadable or broken: writing over the target from it would
// destroy the only good copy, so the failure is reported and the step
// skipped. A step whose check classified both-changed is a conflict with
// no automatic winner: an unfiltered run skips it, and only an explicit
// filter selection overwrites the target.
func RunApply(steps []Step, filter map[string]bool) Report {
	logger := logging.GetLogger("orchestrator")
	defer logging.LogOperationStart(logger, "apply batch")()

	report := Report{Results: make([]StepResult, 0, len(steps))}
	for _, step := range steps {
		if filter != nil && !filter[step.Label] {
			report.Results = append(report.Results, StepResult{
				Step:       step,
				Skipped:    true,
				SkipReason: "not selected by filter",
			})
			continue
		}

		check := step.Module.Check(step.Params)
		report.Summary.tally(check.Status)
		result := StepResult{Step: step, Check: check}

		if check.Status == syncmod.StatusFailed {
			result.Skipped = true
			result.SkipReason = "check failed; apply not attempted"
			logger.Warn().
				Str("label", step.Label).
				Err(check.Err).
				Msg("Step failed check, skipping apply")
			report.Results = append(report.Results, result)
			continue
		}

		if check.Drift == ledger.DriftBothChanged && filter == nil {
			result.Skipped = true
			result.SkipReason = "source and target both changed; select the step explicitly to overwrite the target"
			logger.Warn().
				Str("label", step.Label).
				Msg("Step is a conflict, skipping apply")
			report.Results = append(report.Results, result)
			continue
		}

		apply := step.Module.Apply(step.Params)
		result.Apply = &apply
		if apply.Changed {
			report.Summary.Changed++
		}
		report.Results = append(report.Results, result)

		logger.Debug().
			Str("label", step.Label).
			Bool("changed", apply.Changed).
			Msg("Applied step")
	}
	return report
}
