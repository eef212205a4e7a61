package playground

import (
	"time"

	"tattty/internal/domain"
)

// State is everything the UI renders for the current round.
type State struct {
	Images          []domain.ResultSlot
	Errors          []domain.FailureRecord
	Timings         map[domain.Provider]domain.ProviderTiming
	FailedProviders []domain.Provider
	IsLoading       bool
	ActivePrompt    string
}

func emptyState() State {
	return State{
		Images:          []domain.ResultSlot{},
		Errors:          []domain.FailureRecord{},
		Timings:         map[domain.Provider]domain.ProviderTiming{},
		FailedProviders: []domain.Provider{},
	}
}

// clone returns a deep copy so readers never share memory with the round.
func (s State) clone() State {
	out := State{
		Images:          make([]domain.ResultSlot, len(s.Images)),
		Errors:          append([]domain.FailureRecord{}, s.Errors...),
		Timings:         make(map[domain.Provider]domain.ProviderTiming, len(s.Timings)),
		FailedProviders: append([]domain.Provider{}, s.FailedProviders...),
		IsLoading:       s.IsLoading,
		ActivePrompt:    s.ActivePrompt,
	}
	for i, slot := range s.Images {
		if slot.Image != nil {
			img := *slot.Image
			slot.Image = &img
		}
		out.Images[i] = slot
	}
	for k, v := range s.Timings {
		if v.CompletionTime != nil {
			ct := *v.CompletionTime
			v.CompletionTime = &ct
		}
		if v.Elapsed != nil {
			el := *v.Elapsed
			v.Elapsed = &el
		}
		out.Timings[k] = v
	}
	return out
}

// Completed counts slots that hold an image.
func (s State) Completed() int {
	n := 0
	for _, slot := range s.Images {
		if slot.Image != nil {
			n++
		}
	}
	return n
}

func timingFor(start, end time.Time) domain.ProviderTiming {
	elapsed := end.Sub(start)
	return domain.ProviderTiming{StartTime: start, CompletionTime: &end, Elapsed: &elapsed}
}
