package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"witswatch/internal/market"
)

type stubFetcher struct {
	files map[string][]byte
	fail  map[string]error
	calls []string
}

func (s *stubFetcher) Fetch(ctx context.Context, dir, name string) ([]byte, error) {
	s.calls = append(s.calls, dir+name)
	if err, ok := s.fail[name]; ok {
		return nil, err
	}
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, nil
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

var now = time.Date(2026, 10, 18, 12, 37, 0, 0, time.UTC)

func TestOrchestratorStopsAtFirstHit(t *testing.T) {
	set := market.Candidates(now, 15*time.Minute, market.KindPrice)
	stub := &stubFetcher{files: map[string][]byte{
		set.Names[2]: gz(t, "payload"),
		set.Names[3]: gz(t, "other"),
	}}

	res := NewOrchestrator(stub, noopLogger()).Fetch(context.Background(), set)

	require.True(t, res.OK())
	assert.Equal(t, "payload", string(res.Payload))
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, set.Names[2], res.Name)
	assert.Len(t, stub.calls, 3)
	assert.Equal(t, "/5minprices/"+set.Names[0], stub.calls[0])
}

func TestOrchestratorAllMissingIsSoftMiss(t *testing.T) {
	set := market.Candidates(now, 15*time.Minute, market.KindInfeasible)
	stub := &stubFetcher{}

	res := NewOrchestrator(stub, noopLogger()).Fetch(context.Background(), set)

	assert.True(t, res.Missed)
	assert.NoError(t, res.Err)
	assert.Equal(t, 6, res.Attempts)
	assert.Equal(t, set.Stem, res.Stem)
}

func TestOrchestratorEmptyPayloadIsSoftMiss(t *testing.T) {
	set := market.Candidates(now, 15*time.Minute, market.KindPrice)
	stub := &stubFetcher{files: map[string][]byte{set.Names[0]: {}}}

	res := NewOrchestrator(stub, noopLogger()).Fetch(context.Background(), set)

	assert.True(t, res.Missed)
	assert.Equal(t, 6, res.Attempts)
}

func TestOrchestratorTransportErrorStops(t *testing.T) {
	set := market.Candidates(now, 15*time.Minute, market.KindPrice)
	boom := errors.New("connection reset")
	stub := &stubFetcher{fail: map[string]error{set.Names[1]: boom}}

	res := NewOrchestrator(stub, noopLogger()).Fetch(context.Background(), set)

	require.ErrorIs(t, res.Err, boom)
	assert.False(t, res.Missed)
	assert.Equal(t, 2, res.Attempts)
}

func TestOrchestratorBadGzipIsDecodeError(t *testing.T) {
	set := market.Candidates(now, 15*time.Minute, market.KindPrice)
	stub := &stubFetcher{files: map[string][]byte{set.Names[0]: []byte("not gzip")}}

	res := NewOrchestrator(stub, noopLogger()).Fetch(context.Background(), set)

	var derr *market.DecodeError
	require.ErrorAs(t, res.Err, &derr)
	assert.Equal(t, market.KindPrice, derr.Kind)
}
