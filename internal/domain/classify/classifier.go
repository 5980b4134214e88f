package classify

import (
	"context"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
)

// Classifier runs the strategy chain in order and converts the first
// above-floor opinion into a Result.  Strategies that error or decline are
// skipped; best sub-floor candidates are kept as rejection hints.
type Classifier struct {
	strategies []Strategy
	logger     logging.Logger
}

// NewClassifier builds the chain.  semantic may be nil when no embedding
// backend is configured; the rule layers are always present.
func NewClassifier(semantic Strategy, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	chain := make([]Strategy, 0, 3)
	if semantic != nil {
		chain = append(chain, semantic)
	}
	chain = append(chain, NewHybridStrategy(), NewKeywordStrategy())
	return &Classifier{strategies: chain, logger: logger}
}

// Classify resolves the input to either a chosen endpoint set or a
// rejection.  The returned result satisfies the chosen-xor-rejected
// invariant.
func (c *Classifier) Classify(ctx context.Context, in *Input) *Result {
	var hints []Candidate

	for _, strategy := range c.strategies {
		opinion, err := strategy.Attempt(ctx, in)
		if err != nil {
			c.logger.Warn("classification layer failed, falling through",
				logging.String("layer", string(strategy.Name())),
				logging.Err(err))
			continue
		}
		if opinion == nil || len(opinion.Candidates) == 0 {
			continue
		}

		floor := c.floorFor(in, strategy.Name())
		top := opinion.Candidates[0]
		if top.Confidence >= floor {
			chosen := c.selectChosen(in, opinion.Candidates)
			c.logger.Debug("query classified",
				logging.String("layer", string(strategy.Name())),
				logging.String("endpoint", chosen[0].EndpointID),
				logging.Float64("confidence", chosen[0].Confidence),
				logging.Int("chosen", len(chosen)))
			return &Result{
				Chosen:    chosen,
				Ranked:    opinion.Candidates,
				DecidedBy: strategy.Name(),
			}
		}

		// Keep the strongest sub-floor view seen so far as hint material.
		if len(hints) == 0 || top.Confidence > hints[0].Confidence {
			hints = truncateCandidates(opinion.Candidates, 3)
		}
	}

	c.logger.Info("query rejected: no layer cleared its confidence floor",
		logging.Int("hints", len(hints)))
	return &Result{Rejection: &Rejection{
		Reason: RejectionReasonBelowFloor,
		Hints:  hints,
	}}
}

func (c *Classifier) floorFor(in *Input, layer Layer) float64 {
	w := in.Snapshot.Classify
	switch layer {
	case LayerSemantic:
		return w.SemanticFloor
	case LayerHybrid:
		return w.HybridFloor
	default:
		return w.KeywordFloor
	}
}

// selectChosen applies the multi-endpoint co-selection rule: the runner-up
// joins the winner when it belongs to a different analysis domain and clears
// the co-selection floor.  At most two endpoints are chosen here; the router
// caps overall fan-out separately.
func (c *Classifier) selectChosen(in *Input, ranked []Candidate) []Candidate {
	chosen := []Candidate{ranked[0]}
	if len(ranked) < 2 {
		return chosen
	}
	winner := in.Snapshot.Catalog.ByID(ranked[0].EndpointID)
	if winner == nil {
		return chosen
	}
	coFloor := in.Snapshot.Classify.CoSelectionFloor
	for _, next := range ranked[1:] {
		ep := in.Snapshot.Catalog.ByID(next.EndpointID)
		if ep == nil || ep.Domain == winner.Domain {
			continue
		}
		if next.Confidence >= coFloor {
			chosen = append(chosen, next)
		}
		break
	}
	return chosen
}

func truncateCandidates(cs []Candidate, n int) []Candidate {
	if len(cs) > n {
		cs = cs[:n]
	}
	out := make([]Candidate, len(cs))
	copy(out, cs)
	return out
}
