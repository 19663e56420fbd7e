package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/metrics"
	"github.com/purplesyringa/sunwalker-conductor/relay"
	"github.com/purplesyringa/sunwalker-conductor/types"
	"github.com/purplesyringa/sunwalker-conductor/wire"
)

// fakeSink records sent messages instead of touching a real connection.
type fakeSink struct {
	mu   sync.Mutex
	sent []*wire.C2I
}

func (f *fakeSink) send(msg *wire.C2I) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSink) kinds() []wire.C2IKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]wire.C2IKind, len(f.sent))
	for i, msg := range f.sent {
		kinds[i] = msg.Kind
	}
	return kinds
}

type fakeRelay struct {
	mu     sync.Mutex
	events []*relay.Event
}

func (f *fakeRelay) Notify(_ context.Context, event *relay.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRelay) Close() error { return nil }

func newTestConductor() (*Conductor, *metrics.Collector) {
	collector := metrics.NewCollector()
	return NewConductor(blob.NewMemoryStore(), relay.NewNoopSink(), collector), collector
}

func TestHandshakeRegistersInvokerAndCountsConnect(t *testing.T) {
	c, collector := newTestConductor()
	sink := &fakeSink{}

	inv := c.Handshake("invoker-a", sink.send)
	require.NotNil(t, inv)

	got, ok := c.Invoker("invoker-a")
	require.True(t, ok)
	require.Same(t, inv, got)
	require.Equal(t, int64(1), collector.Snapshot().InvokersConnected)
}

func TestDisconnectDiscardsAssignedSubmissions(t *testing.T) {
	c, collector := newTestConductor()
	sink := &fakeSink{}
	inv := c.Handshake("invoker-a", sink.send)

	c.PublishRevision("prob-1", "rev-1", testRevision())
	require.NoError(t, c.AddSubmission("invoker-a", 0, "sub-1", "prob-1", "rev-1", "cpp", nil, nil))

	c.Disconnect(inv)

	_, ok := c.Invoker("invoker-a")
	require.False(t, ok)
	require.Equal(t, int64(1), collector.Snapshot().InvokersDisconnected)

	sub, ok := c.Submission("sub-1")
	require.True(t, ok)
	require.Equal(t, 0, sub.PendingCount())
}

func TestAddSubmissionUnknownInvokerFails(t *testing.T) {
	c, _ := newTestConductor()
	c.PublishRevision("prob-1", "rev-1", testRevision())
	err := c.AddSubmission("ghost", 0, "sub-1", "prob-1", "rev-1", "cpp", nil, nil)
	require.Error(t, err)
	require.True(t, types.IsKind(err, types.ErrConductorFailure))
}

func TestAddSubmissionUnknownRevisionFails(t *testing.T) {
	c, _ := newTestConductor()
	sink := &fakeSink{}
	c.Handshake("invoker-a", sink.send)
	err := c.AddSubmission("invoker-a", 0, "sub-1", "prob-1", "missing", "cpp", nil, nil)
	require.Error(t, err)
	require.True(t, types.IsKind(err, types.ErrConfigurationFailure))
}

func TestAddSubmissionDispatchesAddThenPush(t *testing.T) {
	c, collector := newTestConductor()
	sink := &fakeSink{}
	c.Handshake("invoker-a", sink.send)
	c.PublishRevision("prob-1", "rev-1", testRevision())

	require.NoError(t, c.AddSubmission("invoker-a", 7, "sub-1", "prob-1", "rev-1", "cpp", nil, nil))

	kinds := sink.kinds()
	require.Equal(t, []wire.C2IKind{wire.C2IAddSubmission, wire.C2IPushToJudgementQueue}, kinds)
	require.Equal(t, int64(1), collector.Snapshot().SubmissionsStarted)

	push := sink.sent[1].PushToJudgementQueue
	require.ElementsMatch(t, []uint64{1, 2, 3, 4}, push.Tests)
}

func TestFinalizeSubmissionSendsAndPublishesAndForgets(t *testing.T) {
	collector := metrics.NewCollector()
	fr := &fakeRelay{}
	c := NewConductor(blob.NewMemoryStore(), fr, collector)

	sink := &fakeSink{}
	c.Handshake("invoker-a", sink.send)
	c.PublishRevision("prob-1", "rev-1", testRevision())
	require.NoError(t, c.AddSubmission("invoker-a", 0, "sub-1", "prob-1", "rev-1", "cpp", nil, nil))

	require.NoError(t, c.FinalizeSubmission(context.Background(), "sub-1"))

	kinds := sink.kinds()
	require.Equal(t, wire.C2IFinalizeSubmission, kinds[len(kinds)-1])

	_, ok := c.Submission("sub-1")
	require.False(t, ok)

	require.Equal(t, int64(1), collector.Snapshot().SubmissionsFinalized)
	require.Len(t, fr.events, 1)
	require.Equal(t, "sub-1", fr.events[0].SubmissionID)
}

func TestFinalizeSubmissionUnknownFails(t *testing.T) {
	c, _ := newTestConductor()
	err := c.FinalizeSubmission(context.Background(), "ghost")
	require.Error(t, err)
}
