package rpcclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/pkg/bus"
	"github.com/dittobus/busrpc/pkg/bus/loopbus"
	"github.com/dittobus/busrpc/pkg/rpcerrors"
)

// echoServerObserver replies to every inbound call by echoing its first
// argument back, unless holdReplies is set, in which case it swallows
// frames so the client's timeout path can be exercised.
type echoServerObserver struct {
	side        *loopbus.ServerSide
	holdReplies bool
}

func (s *echoServerObserver) OnClientLogon(bus.Address)  {}
func (s *echoServerObserver) OnClientLogoff(bus.Address) {}
func (s *echoServerObserver) OnCheckUser(bus.Address, []byte) bool { return true }

func (s *echoServerObserver) OnClientRecv(addr bus.Address, raw []byte) {
	if s.holdReplies {
		return
	}
	pkt, _, err := rpcwire.Parse(raw)
	if err != nil {
		return
	}
	reply, err := rpcwire.Begin(rpcwire.Header{
		RequestID:  pkt.Header.RequestID,
		FunctionID: pkt.Header.FunctionID,
		RPCCode:    0,
	}, true).PushMany(pkt.Args()).End()
	if err != nil {
		return
	}
	_ = s.side.Send(context.Background(), addr, reply.Bytes())
}

func newTestEngine(t *testing.T, holdReplies bool) (*Engine, func()) {
	t.Helper()
	engine := NewEngine(nil, "", Config{PendingCalls: 4, DefaultTimeout: time.Second}, nil)
	require.NoError(t, engine.Register(1, []rpcwire.TypeTag{rpcwire.Int32}, []rpcwire.TypeTag{rpcwire.Int32}))
	require.NoError(t, engine.Register(2, nil, nil))
	server := &echoServerObserver{holdReplies: holdReplies}
	clientSide, serverSide := loopbus.NewPair(engine, server)
	server.side = serverSide
	engine.Rebind(clientSide, clientSide.ServerAddr())
	clientSide.Start()
	return engine, func() {}
}

func TestCallRoundTrip(t *testing.T) {
	engine, cleanup := newTestEngine(t, false)
	defer cleanup()

	reply, err := engine.Call(context.Background(), 1, time.Second, false, []rpcwire.Argument{rpcwire.NewInt32(77)})
	require.NoError(t, err)
	require.NotNil(t, reply)

	arg, err := reply.Arg(0)
	require.NoError(t, err)
	v, err := arg.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(77), v)
}

func TestCallTimesOut(t *testing.T) {
	engine, cleanup := newTestEngine(t, true)
	defer cleanup()

	_, err := engine.Call(context.Background(), 2, 50*time.Millisecond, false, nil)
	require.Error(t, err)
	assert.True(t, rpcerrors.IsNetworkTimeout(err))
}

func TestClientBusyWhenPendingLimitReached(t *testing.T) {
	engine, cleanup := newTestEngine(t, true)
	defer cleanup()

	for i := 0; i < 4; i++ {
		go func() { _, _ = engine.Call(context.Background(), 2, time.Second, false, nil) }()
	}
	time.Sleep(20 * time.Millisecond)

	_, err := engine.Call(context.Background(), 2, time.Second, false, nil)
	require.Error(t, err)
	assert.True(t, rpcerrors.IsClientBusy(err))
}

func TestZeroTimeoutUsesEngineDefault(t *testing.T) {
	engine, cleanup := newTestEngine(t, false)
	defer cleanup()

	reply, err := engine.Call(context.Background(), 1, 0, false, []rpcwire.Argument{rpcwire.NewInt32(9)})
	require.NoError(t, err)
	require.NotNil(t, reply)

	arg, err := reply.Arg(0)
	require.NoError(t, err)
	v, err := arg.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(9), v)
}

func TestNoReplyCallDoesNotWaitForReply(t *testing.T) {
	engine, cleanup := newTestEngine(t, true)
	defer cleanup()

	reply, err := engine.Call(context.Background(), 2, time.Second, true, nil)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

// blockingCountingObserver counts every frame it receives, letting a test
// assert that a locally-rejected call never reaches the bus at all.
type blockingCountingObserver struct {
	recvCount int
}

func (o *blockingCountingObserver) OnClientLogon(bus.Address)          {}
func (o *blockingCountingObserver) OnClientLogoff(bus.Address)         {}
func (o *blockingCountingObserver) OnCheckUser(bus.Address, []byte) bool { return true }
func (o *blockingCountingObserver) OnClientRecv(bus.Address, []byte) {
	o.recvCount++
}

func TestCallRejectsUnregisteredFunctionWithoutTransmitting(t *testing.T) {
	engine := NewEngine(nil, "", Config{PendingCalls: 4, DefaultTimeout: time.Second}, nil)
	server := &blockingCountingObserver{}
	clientSide, serverSide := loopbus.NewPair(engine, server)
	_ = serverSide
	engine.Rebind(clientSide, clientSide.ServerAddr())
	clientSide.Start()

	_, err := engine.Call(context.Background(), 42, time.Second, false, nil)
	require.Error(t, err)
	assert.Equal(t, rpcerrors.InvalidFunction, rpcerrors.CodeOf(err))
	assert.Equal(t, 0, server.recvCount)
}

func TestCallRejectsMismatchedArgumentsWithoutTransmitting(t *testing.T) {
	engine := NewEngine(nil, "", Config{PendingCalls: 4, DefaultTimeout: time.Second}, nil)
	require.NoError(t, engine.Register(1, []rpcwire.TypeTag{rpcwire.Int32}, []rpcwire.TypeTag{rpcwire.Int32}))
	server := &blockingCountingObserver{}
	clientSide, serverSide := loopbus.NewPair(engine, server)
	_ = serverSide
	engine.Rebind(clientSide, clientSide.ServerAddr())
	clientSide.Start()

	_, err := engine.Call(context.Background(), 1, time.Second, false, []rpcwire.Argument{rpcwire.NewFloat64(1)})
	require.Error(t, err)
	assert.Equal(t, rpcerrors.MismatchedParameter, rpcerrors.CodeOf(err))
	assert.Equal(t, 0, server.recvCount)
}

func TestTimeoutPreservesCorrelation(t *testing.T) {
	engine, cleanup := newTestEngine(t, true)
	defer cleanup()

	reply, err := engine.CallCorrelated(context.Background(), 2, 50*time.Millisecond, false, nil,
		Correlation{Magic1: 11, Magic2: 22, MagicStr: "scenario-3"})
	require.Error(t, err)
	assert.True(t, rpcerrors.IsNetworkTimeout(err))
	require.NotNil(t, reply)
	assert.Equal(t, int32(rpcerrors.NetworkTimeout), reply.Header.RPCCode)
	assert.Equal(t, int64(11), reply.Correlation.Magic1)
	assert.Equal(t, int64(22), reply.Correlation.Magic2)
	assert.Equal(t, "scenario-3", reply.Correlation.MagicStr)
}
