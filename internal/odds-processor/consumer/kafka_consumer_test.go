package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-pools/internal/parimutuel"
	"github.com/radieske/parimutuel-pools/pkg/contracts/events"
)

type fakeRefresher struct {
	version int64
	err     error
	calls   []parimutuel.MarketKind
}

func (f *fakeRefresher) Refresh(_ context.Context, kind parimutuel.MarketKind) (events.OddsUpdate, error) {
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return events.OddsUpdate{}, f.err
	}
	return events.OddsUpdate{Market: string(kind), Version: f.version}, nil
}

type fakeBroadcaster struct{ sent []events.OddsUpdate }

func (f *fakeBroadcaster) Publish(_ context.Context, upd events.OddsUpdate) error {
	f.sent = append(f.sent, upd)
	return nil
}

type sliceReader struct {
	msgs []kafka.Message
	stop context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.stop()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func betPlaced(t *testing.T, market string) []byte {
	t.Helper()
	b, err := json.Marshal(events.BetPlaced{BetID: "b1", Market: market})
	require.NoError(t, err)
	return b
}

func newProcessor(ref *fakeRefresher, bc *fakeBroadcaster, stages *[]string) *Processor {
	return &Processor{
		Log:         zap.NewNop(),
		Odds:        ref,
		Broadcaster: bc,
		OnError:     func(s string) { *stages = append(*stages, s) },
	}
}

func TestHandle_RefreshesAndPublishes(t *testing.T) {
	ref := &fakeRefresher{version: 3}
	bc := &fakeBroadcaster{}
	var stages []string
	p := newProcessor(ref, bc, &stages)

	p.Handle(context.Background(), betPlaced(t, "win"))
	require.Len(t, bc.sent, 1)
	assert.Equal(t, "win", bc.sent[0].Market)
	assert.Equal(t, []parimutuel.MarketKind{parimutuel.KindWin}, ref.calls)
	assert.Empty(t, stages)
}

func TestHandle_SkipsStaleVersions(t *testing.T) {
	ref := &fakeRefresher{version: 5}
	bc := &fakeBroadcaster{}
	var stages []string
	p := newProcessor(ref, bc, &stages)

	p.Handle(context.Background(), betPlaced(t, "prop"))
	p.Handle(context.Background(), betPlaced(t, "prop"))
	ref.version = 6
	p.Handle(context.Background(), betPlaced(t, "prop"))
	p.Handle(context.Background(), betPlaced(t, "win"))

	require.Len(t, bc.sent, 3)
	assert.EqualValues(t, 6, bc.sent[1].Version)
}

func TestHandle_Errors(t *testing.T) {
	ref := &fakeRefresher{err: errors.New("db down")}
	bc := &fakeBroadcaster{}
	var stages []string
	p := newProcessor(ref, bc, &stages)

	p.Handle(context.Background(), []byte("{"))
	p.Handle(context.Background(), betPlaced(t, "exacta"))
	p.Handle(context.Background(), betPlaced(t, "advance"))

	assert.Equal(t, []string{"decode", "decode", "refresh"}, stages)
	assert.Empty(t, bc.sent)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ref := &fakeRefresher{version: 1}
	bc := &fakeBroadcaster{}
	consumed := 0
	p := &Processor{
		Log:         zap.NewNop(),
		Reader:      &sliceReader{msgs: []kafka.Message{{Value: betPlaced(t, "win")}}, stop: cancel},
		Odds:        ref,
		Broadcaster: bc,
		OnConsumed:  func() { consumed++ },
	}

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, consumed)
	assert.Len(t, bc.sent, 1)
}
