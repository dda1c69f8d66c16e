package world

import "patternbuilder.ai/internal/sim/builder"

// WorldMetrics is a read-only view of runtime signals, published by the
// world loop after every step and safe to read from HTTP handlers.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Machines     int `json:"machines"`
	Clients      int `json:"clients"`
	LoadedChunks int `json:"loaded_chunks"`

	QueueDepths QueueDepths `json:"queue_depths"`

	// Build outcomes during the last step.
	Placed  int `json:"placed"`
	Skipped int `json:"skipped"`
	NoSlot  int `json:"no_slot"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) publishMetrics(tick uint64, builds []RecordedBuild, stepMS float64) {
	m := WorldMetrics{
		Tick:         tick,
		Machines:     len(w.machines),
		Clients:      len(w.clients),
		LoadedChunks: len(w.blocks.chunks),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: stepMS,
	}
	for _, b := range builds {
		switch b.Outcome {
		case builder.OutcomePlaced.String():
			m.Placed++
		case builder.OutcomeSkipped.String():
			m.Skipped++
		case builder.OutcomeNoSlot.String():
			m.NoSlot++
		}
	}
	w.metrics.Store(m)
}
