package service

import (
	"context"
	"errors"
	"time"

	"witswatch/internal/market"
)

type intervalData struct {
	price      *market.PriceFile
	infeasible market.InfeasibleSet
	reserve    *market.ReserveSummary
	outcomes   map[market.Kind]Outcome
}

// fetchInterval fetches and parses each requested kind for target. A failure
// in one kind never affects another.
func (s *Service) fetchInterval(ctx context.Context, target time.Time, kinds []market.Kind) intervalData {
	out := intervalData{outcomes: make(map[market.Kind]Outcome, len(kinds))}

	for _, kind := range kinds {
		payload, outcome := s.fetchKind(ctx, kind, target)
		if outcome != OutcomeOK {
			out.outcomes[kind] = outcome
			continue
		}

		var err error
		switch kind {
		case market.KindPrice:
			var file market.PriceFile
			if file, err = market.ParsePrices(payload, s.loc); err == nil {
				out.price = &file
			}
		case market.KindInfeasible:
			out.infeasible, err = market.ParseInfeasible(payload)
		case market.KindReserve:
			out.reserve, err = market.ParseReserve(payload, s.loc)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("kind", string(kind)).Msg("decode failed")
			s.metrics.DecodeError(string(kind))
			out.outcomes[kind] = OutcomeDecodeError
			continue
		}
		out.outcomes[kind] = OutcomeOK
	}
	return out
}

func (s *Service) fetchKind(ctx context.Context, kind market.Kind, target time.Time) ([]byte, Outcome) {
	set := market.CandidatesAt(kind, market.TargetFor(kind, target))
	res := s.orch.Fetch(ctx, set)

	log := s.logger.With().Str("kind", string(kind)).Str("stem", set.Stem).Logger()
	switch {
	case res.Err != nil:
		var decodeErr *market.DecodeError
		if errors.As(res.Err, &decodeErr) {
			log.Error().Err(res.Err).Str("file", res.Name).Msg("payload could not be decompressed")
			s.metrics.DecodeError(string(kind))
			return nil, OutcomeDecodeError
		}
		log.Error().Err(res.Err).Int("attempts", res.Attempts).Msg("fetch failed")
		s.metrics.FetchError(string(kind))
		return nil, OutcomeFetchError
	case res.Missed:
		log.Debug().Int("attempts", res.Attempts).Msg("no candidate available")
		s.metrics.SoftMiss(string(kind))
		return nil, OutcomeMissed
	}

	log.Debug().Str("file", res.Name).Int("bytes", len(res.Payload)).Msg("fetched")
	return res.Payload, OutcomeOK
}
