package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/epimap/epimap-api/rate"
	"github.com/epimap/epimap-api/schema"
	"github.com/epimap/epimap-api/score"
)

// Analysis - the callable analysis surface driven by the workflow state
// machine. Both operations recompute and replace their outputs wholesale.
type Analysis interface {
	CalculateRates(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.PositivityResult, error)
	ScoreRisk(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.RiskScore, error)
}

// CalculateRates runs the rate calculator over the session's stored
// records, filtered by the user's stratum selections, and replaces the
// session's positivity results.
func (m *mongoDB) CalculateRates(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.PositivityResult, error) {
	records, err := m.ListRecords(ctx, sessionID, sel)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no surveillance records match age group %q and method %q", sel.AgeGroup, sel.Method)
	}

	results := rate.Calculate(records, m.policy)
	if err := m.ReplaceResults(ctx, sessionID, results); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"prefix":  mongoLogPrefix,
		"session": sessionID,
		"results": len(results),
	}).Info("positivity results replaced")
	return results, nil
}

// ScoreRisk fuses the session's primary positivity results with its
// extracted covariate vectors and replaces the session's risk scores.
func (m *mongoDB) ScoreRisk(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.RiskScore, error) {
	results, err := m.ListResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	primary := rate.Primary(results)
	if len(primary) == 0 {
		return nil, fmt.Errorf("no positivity results available; run rate calculation first")
	}

	vectors, err := m.ListVectors(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	units, err := m.ListUnits(ctx)
	if err != nil {
		return nil, err
	}

	scores, err := score.Compute(primary, vectors, units, m.scoring)
	if err != nil {
		return nil, err
	}
	if err := m.ReplaceScores(ctx, sessionID, scores); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"prefix":  mongoLogPrefix,
		"session": sessionID,
		"units":   len(scores),
	}).Info("risk scores replaced")
	return scores, nil
}
