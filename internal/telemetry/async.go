package telemetry

import (
	"context"
	"log"
	"time"

	"guild-sync/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the dispatch loops stop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the dispatch loop is not blocked.
//
// emitter and outcome may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() so a cancelled tick does not drop the outcome.
func EmitAsync(emitter EventEmitter, outcome *domain.Outcome) {
	if emitter == nil || outcome == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, outcome); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
