package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/snowpitlab/pitctl/internal/state"
)

// StageResult is the outcome of one stage within a run.
type StageResult struct {
	Stage    string
	Status   state.StageStatus
	Duration time.Duration
	Err      error
}

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	Run    *state.Run
	Stages []StageResult
}

// Failed reports whether any stage failed.
func (r *RunResult) Failed() bool {
	for _, s := range r.Stages {
		if s.Status == state.StageStatusFailed {
			return true
		}
	}
	return false
}

// Plan returns the stages that a full run would execute, in order.
func (e *Engine) Plan() ([]string, error) {
	return e.graph.TopoSort()
}

// PlanSelected returns the stages a selected run would execute, in order.
// With downstream set, every stage reachable from the selection is
// included as well.
func (e *Engine) PlanSelected(selected []string, downstream bool) ([]string, error) {
	ids, err := e.resolveSelection(selected, downstream)
	if err != nil {
		return nil, err
	}
	return e.graph.Subgraph(ids).TopoSort()
}

// Run executes the full pipeline and records the outcome.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	order, err := e.Plan()
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, order)
}

// RunSelected executes a subset of stages. Dependencies between selected
// stages are respected; unselected stages are not run.
func (e *Engine) RunSelected(ctx context.Context, selected []string, downstream bool) (*RunResult, error) {
	order, err := e.PlanSelected(selected, downstream)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, order)
}

func (e *Engine) resolveSelection(selected []string, downstream bool) ([]string, error) {
	for _, id := range selected {
		if !e.graph.Has(id) {
			return nil, fmt.Errorf("unknown stage %q", id)
		}
	}
	if !downstream {
		return selected, nil
	}
	return e.graph.Downstream(selected), nil
}

// execute runs stages in order. Once a stage fails, every remaining stage
// is recorded as skipped rather than run, so a broken processing step
// never feeds partial outputs into the tiler.
func (e *Engine) execute(ctx context.Context, order []string) (*RunResult, error) {
	run, err := e.store.CreateRun(e.cfg.Environment, e.cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}
	e.logger.Info("run started", "run_id", run.ID, "stages", order)

	result := &RunResult{Run: run}
	var failed bool

	for _, name := range order {
		st := e.stages[name]

		record, err := e.store.CreateStageRun(run.ID, st.name, st.command)
		if err != nil {
			return nil, fmt.Errorf("failed to create stage record: %w", err)
		}

		if failed {
			if err := e.store.UpdateStageRun(record.ID, state.StageStatusSkipped, 0, ""); err != nil {
				return nil, fmt.Errorf("failed to update stage record: %w", err)
			}
			e.logger.Warn("stage skipped", "stage", st.name, "run_id", run.ID)
			result.Stages = append(result.Stages, StageResult{Stage: st.name, Status: state.StageStatusSkipped})
			continue
		}

		e.logger.Info("stage started", "stage", st.name, "run_id", run.ID)
		start := time.Now()
		stageErr := st.fn(ctx)
		elapsed := time.Since(start)

		if stageErr != nil {
			failed = true
			if err := e.store.UpdateStageRun(record.ID, state.StageStatusFailed, elapsed.Milliseconds(), stageErr.Error()); err != nil {
				return nil, fmt.Errorf("failed to update stage record: %w", err)
			}
			e.logger.Error("stage failed", "stage", st.name, "run_id", run.ID,
				"duration", elapsed, "error", stageErr)
			result.Stages = append(result.Stages, StageResult{
				Stage: st.name, Status: state.StageStatusFailed, Duration: elapsed, Err: stageErr,
			})
			continue
		}

		if err := e.store.UpdateStageRun(record.ID, state.StageStatusSuccess, elapsed.Milliseconds(), ""); err != nil {
			return nil, fmt.Errorf("failed to update stage record: %w", err)
		}
		e.logger.Info("stage completed", "stage", st.name, "run_id", run.ID, "duration", elapsed)
		result.Stages = append(result.Stages, StageResult{
			Stage: st.name, Status: state.StageStatusSuccess, Duration: elapsed,
		})
	}

	runStatus := state.RunStatusCompleted
	var runErr string
	if failed {
		runStatus = state.RunStatusFailed
		for _, s := range result.Stages {
			if s.Err != nil {
				runErr = fmt.Sprintf("stage %s: %s", s.Stage, s.Err)
				break
			}
		}
	}
	if ctx.Err() != nil {
		runStatus = state.RunStatusCancelled
		runErr = ctx.Err().Error()
	}
	if err := e.store.CompleteRun(run.ID, runStatus, runErr); err != nil {
		return nil, fmt.Errorf("failed to complete run record: %w", err)
	}

	run.Status = runStatus
	run.Error = runErr
	e.logger.Info("run finished", "run_id", run.ID, "status", runStatus)
	return result, nil
}
