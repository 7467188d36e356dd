package hooks

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DerianAndre/aidd.md-sub000/internal/evolution"
	"github.com/DerianAndre/aidd.md-sub000/internal/storage"
)

// Standard subscriber names. hooks.yaml toggles refer to these.
const (
	SubscriberPatternAutoDetect   = "pattern-auto-detect"
	SubscriberPatternModelProfile = "pattern-model-profile"
	SubscriberAutoAnalyze         = "evolution-auto-analyze"
	SubscriberFeedbackLoop        = "evolution-feedback-loop"
	SubscriberAutoPrune           = "evolution-auto-prune"
)

// Cadence counter keys in engine meta. Persisted, so cadence survives process
// restarts.
const (
	CounterEvolution = "sessions_since_last_evolution"
	CounterPrune     = "sessions_since_last_prune"
)

const (
	// narrativeMinRunes gates pattern detection to narratives with enough
	// text to fingerprint.
	narrativeMinRunes = 50
	// DefaultAnalyzeEvery is the detector pass cadence in session ends.
	DefaultAnalyzeEvery = 5
	// DefaultPruneEvery is the retention pass cadence in session ends.
	DefaultPruneEvery = 10
)

// Deps carries what the standard subscribers need. AnalyzeEvery and
// PruneEvery override the pass cadences; zero means the default.
type Deps struct {
	Store        storage.Storage
	Evolution    *evolution.Service
	AnalyzeEvery int
	PruneEvery   int
}

// RegisterDefaults wires the five standard subscribers onto the bus in their
// fixed dispatch order.
func RegisterDefaults(bus *Bus, deps *Deps) error {
	if bus == nil {
		return fmt.Errorf("bus is required")
	}
	if deps == nil || deps.Store == nil {
		return fmt.Errorf("storage is required")
	}
	if deps.Evolution == nil {
		return fmt.Errorf("evolution service is required")
	}

	d := *deps
	if d.AnalyzeEvery <= 0 {
		d.AnalyzeEvery = DefaultAnalyzeEvery
	}
	if d.PruneEvery <= 0 {
		d.PruneEvery = DefaultPruneEvery
	}

	subs := []Subscriber{
		{Name: SubscriberPatternAutoDetect, Kind: ObservationSaved, Handler: patternAutoDetect(&d)},
		{Name: SubscriberPatternModelProfile, Kind: SessionEnded, Handler: patternModelProfile(&d)},
		{Name: SubscriberAutoAnalyze, Kind: SessionEnded, Handler: autoAnalyze(&d)},
		{Name: SubscriberFeedbackLoop, Kind: SessionEnded, Handler: feedbackLoop(&d)},
		{Name: SubscriberAutoPrune, Kind: SessionEnded, Handler: autoPrune(&d)},
	}
	for _, sub := range subs {
		if err := bus.Subscribe(sub); err != nil {
			return err
		}
	}
	return nil
}

// patternAutoDetect records a pattern sighting for every saved observation
// whose narrative carries enough text to fingerprint.
func patternAutoDetect(deps *Deps) Handler {
	return func(ctx context.Context, event Event) error {
		obs, err := deps.Store.GetObservation(ctx, event.ObservationID)
		if err != nil {
			return err
		}
		if utf8.RuneCountInString(obs.Narrative) <= narrativeMinRunes {
			return nil
		}
		sess, err := deps.Store.GetSession(ctx, obs.SessionID)
		if err != nil {
			return err
		}
		_, err = deps.Evolution.RecordPattern(ctx, obs.Narrative, obs.SessionID, sess.AIProvider.ModelID)
		return err
	}
}

// patternModelProfile promotes per-model pattern concentration into
// candidates after every session end.
func patternModelProfile(deps *Deps) Handler {
	return func(ctx context.Context, event Event) error {
		result, err := deps.Evolution.ProfileModels(ctx)
		if err != nil {
			return err
		}
		return failuresErr(result.Failures)
	}
}

// autoAnalyze runs the full detector pass every AnalyzeEvery-th session end.
// The counter resets only after a successful pass, so a failing pass is
// retried on the next session end instead of waiting out another full cadence.
func autoAnalyze(deps *Deps) Handler {
	return func(ctx context.Context, event Event) error {
		n, err := deps.Store.IncrementCounter(ctx, CounterEvolution)
		if err != nil {
			return err
		}
		if n < int64(deps.AnalyzeEvery) {
			return nil
		}
		result, err := deps.Evolution.Analyze(ctx)
		if err != nil {
			return err
		}
		if err := deps.Store.ResetCounter(ctx, CounterEvolution); err != nil {
			return err
		}
		return failuresErr(result.Failures)
	}
}

// feedbackLoop applies the ended session's operator verdict to matching
// candidates.
func feedbackLoop(deps *Deps) Handler {
	return func(ctx context.Context, event Event) error {
		sess, err := deps.Store.GetSession(ctx, event.SessionID)
		if err != nil {
			return err
		}
		result, err := deps.Evolution.ApplyFeedback(ctx, sess)
		if err != nil {
			return err
		}
		return failuresErr(result.Failures)
	}
}

// autoPrune enforces the retention bounds every PruneEvery-th session end.
func autoPrune(deps *Deps) Handler {
	return func(ctx context.Context, event Event) error {
		n, err := deps.Store.IncrementCounter(ctx, CounterPrune)
		if err != nil {
			return err
		}
		if n < int64(deps.PruneEvery) {
			return nil
		}
		result, err := deps.Evolution.Prune(ctx)
		if err != nil {
			return err
		}
		if err := deps.Store.ResetCounter(ctx, CounterPrune); err != nil {
			return err
		}
		return failuresErr(result.Failures)
	}
}

// failuresErr folds collected per-item failures into one handler error so the
// breaker sees persistent trouble.
func failuresErr(failures []string) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d operations failed: %s", len(failures), strings.Join(failures, "; "))
}
