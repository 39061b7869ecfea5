package service

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sealed-ballot/ballot"
	"sealed-ballot/models"
)

// OptionCount is the number of ballots that chose one answer code.
type OptionCount struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

type QuestionResult struct {
	Question string        `json:"question"`
	Text     string        `json:"text,omitempty"`
	Options  []OptionCount `json:"options"`
}

// Results is the tally over every stored ballot.
type Results struct {
	TotalBallots int              `json:"total_ballots"`
	Counted      int              `json:"counted"`
	Unreadable   int              `json:"unreadable"`
	Questions    []QuestionResult `json:"questions"`
}

// Tally counts answers per question. Ballots are read from the retained
// plaintext when present and opened from their envelope otherwise.
func (vs *VotingService) Tally(ctx context.Context) (*Results, error) {
	ballots, err := vs.store.ListSealedBallots(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sealed ballots")
	}

	counts := make(map[string]map[string]int)
	results := &Results{TotalBallots: len(ballots)}
	for _, sb := range ballots {
		canonical, err := vs.readBallot(sb)
		if err != nil {
			results.Unreadable++
			vs.logger.Warn("ballot could not be read for tally",
				zap.String("ballot", sb.ID), zap.Error(err))
			continue
		}
		_, answers := ballot.Decode(canonical)
		for _, a := range answers {
			if counts[a.Question] == nil {
				counts[a.Question] = make(map[string]int)
			}
			counts[a.Question][a.Code]++
		}
		results.Counted++
	}

	results.Questions = vs.arrangeCounts(counts)
	vs.metrics.RecordTally(results.Counted)
	return results, nil
}

func (vs *VotingService) readBallot(sb *models.SealedBallot) ([]byte, error) {
	if sb.Plaintext != "" {
		return []byte(sb.Plaintext), nil
	}
	return vs.sealer.Open(sb.Envelope)
}

// arrangeCounts lists defined questions and options first, in definition order,
// followed by anything else found in ballots in sorted order.
func (vs *VotingService) arrangeCounts(counts map[string]map[string]int) []QuestionResult {
	out := make([]QuestionResult, 0, len(counts))
	seen := make(map[string]bool)
	for _, q := range vs.definition.Questions {
		seen[q.ID] = true
		qr := QuestionResult{Question: q.ID, Text: q.Text, Options: []OptionCount{}}
		listed := make(map[string]bool)
		for _, o := range q.Options {
			listed[o.Code] = true
			qr.Options = append(qr.Options, OptionCount{
				Code:  o.Code,
				Label: vs.definition.Label(q.ID, o.Code),
				Count: counts[q.ID][o.Code],
			})
		}
		qr.Options = append(qr.Options, vs.extraOptions(q.ID, counts[q.ID], listed)...)
		out = append(out, qr)
	}

	extra := make([]string, 0)
	for id := range counts {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		out = append(out, QuestionResult{
			Question: id,
			Options:  vs.extraOptions(id, counts[id], nil),
		})
	}
	return out
}

func (vs *VotingService) extraOptions(questionID string, counts map[string]int, listed map[string]bool) []OptionCount {
	codes := make([]string, 0)
	for code := range counts {
		if !listed[code] {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	opts := make([]OptionCount, 0, len(codes))
	for _, code := range codes {
		opts = append(opts, OptionCount{
			Code:  code,
			Label: vs.definition.Label(questionID, code),
			Count: counts[code],
		})
	}
	return opts
}
