package reconcile

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prober checks that the management endpoint is reachable and authenticated.
type Prober interface {
	CheckConnectivity(ctx context.Context, expectedStatus int) error
}

// Outcome is one finished reconciliation, successful or not.
type Outcome struct {
	Key    ResourceKey
	Result Result
	Action Action
	Err    error
}

// Recorder receives every outcome, e.g. to persist run history.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome)
}

// ProbeOptions configures the connectivity probe.
type ProbeOptions struct {
	Skip           bool
	ExpectedStatus int
}

// Orchestrator runs resources one after another against a single endpoint.
// The connectivity probe runs once per Run; the first error ends the run.
type Orchestrator struct {
	prober   Prober
	probe    ProbeOptions
	recorder Recorder
	logger   zerolog.Logger
}

// NewOrchestrator creates a new reconciliation orchestrator.
// recorder may be nil.
func NewOrchestrator(prober Prober, probe ProbeOptions, recorder Recorder, runID string) *Orchestrator {
	if probe.ExpectedStatus == 0 {
		probe.ExpectedStatus = 500
	}
	return &Orchestrator{
		prober:   prober,
		probe:    probe,
		recorder: recorder,
		logger:   log.With().Str("run_id", runID).Logger(),
	}
}

// Run probes the endpoint and reconciles each resource in order.
// Results of the resources finished before a failure are returned with the error.
func (o *Orchestrator) Run(ctx context.Context, resources []Resource) ([]Result, error) {
	if !o.probe.Skip {
		if err := o.prober.CheckConnectivity(ctx, o.probe.ExpectedStatus); err != nil {
			o.logger.Error().Err(err).Msg("Connectivity probe failed")
			return nil, err
		}
		o.logger.Debug().Int("expected_status", o.probe.ExpectedStatus).Msg("Connectivity probe passed")
	}

	results := make([]Result, 0, len(resources))
	for _, r := range resources {
		outcome := o.reconcileOne(ctx, r)
		if o.recorder != nil {
			o.recorder.Record(ctx, outcome)
		}
		if outcome.Err != nil {
			return results, outcome.Err
		}
		results = append(results, outcome.Result)
	}

	o.logger.Debug().Int("total", len(resources)).Msg("Run completed")
	return results, nil
}

func (o *Orchestrator) reconcileOne(ctx context.Context, r Resource) Outcome {
	key := r.Key()
	logger := o.logger.With().
		Str("kind", string(key.Kind)).
		Str("symm_id", key.SymmID).
		Str("id", key.ID).
		Str("desired", string(r.Desired())).
		Logger()

	outcome := Outcome{
		Key:    key,
		Result: Result{Kind: key.Kind, Name: key.ID, State: r.Desired()},
	}

	// Load current state
	if err := r.Load(ctx); err != nil {
		logger.Error().Err(err).Msg("Load failed")
		outcome.Err = err
		return outcome
	}

	// Check if reconciliation needed
	if !r.NeedsReconcile() {
		logger.Info().Msg("Already in desired state")
		return outcome
	}

	outcome.Action = actionFor(r.Desired())
	if err := r.ReconcileStep(ctx); err != nil {
		logger.Error().Err(err).Str("action", outcome.Action.String()).Msg("Reconcile failed")
		outcome.Err = err
		return outcome
	}

	outcome.Result.Changed = true
	logger.Info().Str("action", outcome.Action.String()).Msg("Resource reconciled")
	return outcome
}

// actionFor is only meaningful once NeedsReconcile reported true.
func actionFor(desired State) Action {
	if desired == StatePresent {
		return ActionCreate
	}
	return ActionDelete
}
