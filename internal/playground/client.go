package playground

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tattty/internal/domain"
	"tattty/internal/infra"
)

// Dispatcher sends one slot request to the generation endpoint.
type Dispatcher interface {
	GenerateImage(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// Options configures a Client. OnChange, if set, receives a snapshot after
// every state mutation and is called without the client lock held.
type Options struct {
	Logger   *infra.Logger
	OnChange func(State)
	Now      func() time.Time
}

// Client runs generation rounds and owns the state of the current one. A new
// round replaces the previous state wholesale; calls still in flight from a
// superseded round are dropped when they settle.
type Client struct {
	dispatcher Dispatcher
	logger     *infra.Logger
	onChange   func(State)
	now        func() time.Time

	mu    sync.Mutex
	round uint64
	state State
}

// NewClient wires a dispatcher into a fresh client.
func NewClient(dispatcher Dispatcher, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		dispatcher: dispatcher,
		logger:     logger,
		onChange:   opts.OnChange,
		now:        now,
		state:      emptyState(),
	}
}

// Snapshot returns a copy of the current state.
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// ResetState clears all round state without any network activity. The
// active prompt is kept.
func (c *Client) ResetState() {
	c.update(func(s *State) {
		c.round++
		active := s.ActivePrompt
		*s = emptyState()
		s.ActivePrompt = active
	})
}

// StartGeneration runs one round: SlotCount requests dispatched concurrently,
// providers assigned round-robin. Failures are recorded per slot and never
// returned. It blocks until every slot has settled. An empty providers list
// falls back to domain.ProviderOrder.
func (c *Client) StartGeneration(
	ctx context.Context,
	prompt string,
	style, color, aspectRatio *string,
	providers []domain.Provider,
	providerToModel map[domain.Provider]string,
) {
	if len(providers) == 0 {
		providers = domain.ProviderOrder
	}

	var round uint64
	c.update(func(s *State) {
		c.round++
		round = c.round

		now := c.now()
		next := emptyState()
		next.ActivePrompt = prompt
		next.IsLoading = true
		next.Images = make([]domain.ResultSlot, domain.SlotCount)
		for i := range next.Images {
			p := providers[i%len(providers)]
			next.Images[i] = domain.ResultSlot{Provider: p, ModelID: providerToModel[p]}
		}
		for _, p := range providers {
			next.Timings[p] = domain.ProviderTiming{StartTime: now}
		}
		*s = next
	})

	// No derived context: one slot failing must not cancel its siblings.
	var g errgroup.Group
	for slot := 0; slot < domain.SlotCount; slot++ {
		provider := providers[slot%len(providers)]
		req := domain.GenerationRequest{
			Prompt:      prompt,
			Provider:    provider,
			ModelID:     providerToModel[provider],
			Style:       style,
			Color:       color,
			AspectRatio: aspectRatio,
		}
		g.Go(func() error {
			c.runSlot(ctx, round, slot, req)
			return nil
		})
	}
	_ = g.Wait()

	c.updateRound(round, func(s *State) {
		s.IsLoading = false
	})
}

func (c *Client) runSlot(ctx context.Context, round uint64, slot int, req domain.GenerationRequest) {
	start := c.now()
	image, err := c.dispatcher.GenerateImage(ctx, req)
	end := c.now()

	log := c.logger.With().
		Int("slot", slot).
		Str("provider", string(req.Provider)).
		Str("model", req.ModelID).
		Logger()

	if err != nil {
		log.Error().Err(err).Msg("slot generation failed")
		c.updateRound(round, func(s *State) {
			s.FailedProviders = append(s.FailedProviders, req.Provider)
			s.Errors = append(s.Errors, domain.FailureRecord{Provider: req.Provider, Message: err.Error()})
			s.Images[slot].Image = nil
			s.Images[slot].ModelID = req.ModelID
		})
		return
	}

	timing := timingFor(start, end)
	log.Info().Dur("elapsed", *timing.Elapsed).Msg("successful image response")
	c.updateRound(round, func(s *State) {
		// Keyed by provider: slots sharing a provider overwrite each other and
		// the last to settle wins.
		s.Timings[req.Provider] = timing
		var img *string
		if image != "" {
			img = &image
		}
		s.Images[slot].Image = img
		s.Images[slot].ModelID = req.ModelID
	})
}

func (c *Client) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	snap := c.snapshotForHook()
	c.mu.Unlock()
	c.notify(snap)
}

// updateRound applies fn only while round is still the current one.
func (c *Client) updateRound(round uint64, fn func(*State)) {
	c.mu.Lock()
	if c.round != round {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	snap := c.snapshotForHook()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Client) snapshotForHook() *State {
	if c.onChange == nil {
		return nil
	}
	s := c.state.clone()
	return &s
}

func (c *Client) notify(s *State) {
	if s != nil && c.onChange != nil {
		c.onChange(*s)
	}
}
