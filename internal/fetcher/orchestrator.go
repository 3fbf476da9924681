package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"witswatch/internal/market"
)

// Result is the outcome of walking one kind's candidate set.
type Result struct {
	Kind     market.Kind
	Stem     string
	Name     string
	Payload  []byte
	Attempts int
	// Missed is set when every candidate was absent or empty.
	Missed bool
	// Err is a transport or decompression failure.
	Err error
}

// OK reports whether a payload was retrieved.
func (r Result) OK() bool {
	return r.Err == nil && !r.Missed && len(r.Payload) > 0
}

// Orchestrator walks candidate filenames against a Fetcher.
type Orchestrator struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewOrchestrator wraps a fetcher.
func NewOrchestrator(f Fetcher, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{fetcher: f, logger: logger.With().Str("component", "fetch_orchestrator").Logger()}
}

// Fetch tries each candidate in order. A not-found reply moves on to the
// next candidate; any other failure stops the walk for this kind. At most
// one payload is returned.
func (o *Orchestrator) Fetch(ctx context.Context, set market.CandidateSet) Result {
	res := Result{Kind: set.Kind, Stem: set.Stem}

	for _, name := range set.Names {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		res.Attempts++
		res.Name = name
		data, err := o.fetcher.Fetch(ctx, set.Dir, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				o.logger.Debug().Str("kind", string(set.Kind)).Str("file", name).Msg("candidate not found")
				continue
			}
			res.Err = err
			return res
		}
		if len(data) == 0 {
			o.logger.Debug().Str("kind", string(set.Kind)).Str("file", name).Msg("candidate empty")
			continue
		}

		if set.Compressed {
			data, err = gunzip(data)
			if err != nil {
				res.Err = &market.DecodeError{Kind: set.Kind, Err: err}
				return res
			}
		}
		res.Payload = data
		if len(data) == 0 {
			res.Missed = true
		}
		return res
	}

	res.Missed = true
	return res
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
