package inversion

import (
	"context"

	"github.com/df07/go-drtm/pkg/ledger"
	"github.com/df07/go-drtm/pkg/logging"
	"github.com/df07/go-drtm/pkg/trace"
)

// TraceObserver appends every iteration to the reflectance, transmittance
// and loss arrays of set, flushing after each one
func TraceObserver(set *trace.Set) Observer {
	return ObserverFunc(func(it Iteration) error {
		return set.Record(it.Loss, it.Reflectance, it.Transmittance)
	})
}

// IterationLogObserver writes every iteration as one JSON line. A nil log
// drops them.
func IterationLogObserver(l *logging.IterationLog) Observer {
	return ObserverFunc(func(it Iteration) error {
		return l.Log(map[string]any{
			"iteration":       it.Index,
			"seed":            it.Seed,
			"loss":            it.Loss,
			"parameter_error": it.ParameterError,
			"reflectance":     it.Reflectance,
			"transmittance":   it.Transmittance,
			"duration_ms":     it.Duration.Milliseconds(),
		})
	})
}

// LedgerObserver stores every iteration under runID
func LedgerObserver(ctx context.Context, l *ledger.Ledger, runID string) Observer {
	return ObserverFunc(func(it Iteration) error {
		return l.RecordIteration(ctx, runID, ledger.Iteration{
			Iteration:      it.Index,
			Seed:           it.Seed,
			Loss:           it.Loss,
			ParameterError: it.ParameterError,
			Reflectance:    it.Reflectance,
			Transmittance:  it.Transmittance,
			Duration:       it.Duration,
		})
	})
}
