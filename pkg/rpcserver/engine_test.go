package rpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dittobus/busrpc/internal/rpcregistry"
	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/pkg/bus"
	"github.com/dittobus/busrpc/pkg/bus/loopbus"
	"github.com/dittobus/busrpc/pkg/rpcclient"
	"github.com/dittobus/busrpc/pkg/rpcerrors"
)

const addFunctionID uint32 = 1

func addHandler(_ context.Context, _ bus.Address, _ uint32, args []rpcwire.Argument) ([]rpcwire.Argument, rpcerrors.Code) {
	a, err1 := args[0].Int32()
	b, err2 := args[1].Int32()
	if err1 != nil || err2 != nil {
		return nil, rpcerrors.InvalidArgument
	}
	return []rpcwire.Argument{rpcwire.NewInt32(a + b)}, rpcerrors.OK
}

func newTestPair(t *testing.T, cfg Config) (*rpcclient.Engine, *Engine) {
	t.Helper()
	reg := rpcregistry.NewRegistry()
	server := NewEngine(nil, reg, cfg, nil)
	require.NoError(t, server.RegisterHandler(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32},
		addHandler))

	client := rpcclient.NewEngine(nil, "", rpcclient.Config{PendingCalls: 100, DefaultTimeout: time.Second}, nil)
	require.NoError(t, client.Register(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32}))

	clientSide, serverSide := loopbus.NewPair(client, server)
	server.b = serverSide
	client.Rebind(clientSide, clientSide.ServerAddr())
	clientSide.Start()
	return client, server
}

func TestServerDispatchesRegisteredCall(t *testing.T) {
	client, _ := newTestPair(t, Config{PendingCalls: 10, WorkerCount: 2})

	reply, err := client.Call(context.Background(), addFunctionID, time.Second, false,
		[]rpcwire.Argument{rpcwire.NewInt32(3), rpcwire.NewInt32(4)})
	require.NoError(t, err)
	arg, _ := reply.Arg(0)
	v, err := arg.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestClientRejectsUnknownFunctionLocally(t *testing.T) {
	client, _ := newTestPair(t, Config{PendingCalls: 10, WorkerCount: 2})

	_, err := client.Call(context.Background(), 999, time.Second, false, nil)
	require.Error(t, err)
	assert.Equal(t, rpcerrors.InvalidFunction, rpcerrors.CodeOf(err))
}

func TestClientRejectsMismatchedParametersLocally(t *testing.T) {
	client, _ := newTestPair(t, Config{PendingCalls: 10, WorkerCount: 2})

	_, err := client.Call(context.Background(), addFunctionID, time.Second, false,
		[]rpcwire.Argument{rpcwire.NewFloat64(1)})
	require.Error(t, err)
	assert.Equal(t, rpcerrors.MismatchedParameter, rpcerrors.CodeOf(err))
}

// rawClientObserver captures whichever reply frame the server sends back,
// bypassing rpcclient.Engine entirely so a test can drive rpcserver.Engine
// with a hand-built request frame and inspect its raw reply.
type rawClientObserver struct {
	recv chan []byte
}

func (o *rawClientObserver) OnConnect(bus.Address)    {}
func (o *rawClientObserver) OnDisconnect(bus.Address) {}
func (o *rawClientObserver) OnRecv(_ bus.Address, raw []byte) {
	o.recv <- raw
}

func TestServerRejectsMismatchedParametersFromRawFrame(t *testing.T) {
	reg := rpcregistry.NewRegistry()
	server := NewEngine(nil, reg, Config{PendingCalls: 10, WorkerCount: 2}, nil)
	require.NoError(t, server.RegisterHandler(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32},
		addHandler))

	obs := &rawClientObserver{recv: make(chan []byte, 1)}
	clientSide, serverSide := loopbus.NewPair(obs, server)
	server.b = serverSide
	clientSide.Start()

	req, err := rpcwire.Begin(rpcwire.Header{RequestID: 1, FunctionID: addFunctionID}, true).
		PushMany([]rpcwire.Argument{rpcwire.NewFloat64(1)}).End()
	require.NoError(t, err)
	require.NoError(t, clientSide.Send(context.Background(), clientSide.ServerAddr(), req.Bytes()))

	select {
	case raw := <-obs.recv:
		reply, _, err := rpcwire.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, int32(rpcerrors.MismatchedParameter), reply.Header.RPCCode)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server reply")
	}
}

func TestServerRejectsWithServerBusyWhenPendingLimitReached(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)

	reg := rpcregistry.NewRegistry()
	server := NewEngine(nil, reg, Config{PendingCalls: 1, WorkerCount: 1}, nil)
	require.NoError(t, server.RegisterHandler(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32},
		func(_ context.Context, _ bus.Address, _ uint32, args []rpcwire.Argument) ([]rpcwire.Argument, rpcerrors.Code) {
			entered <- struct{}{}
			<-release
			a, _ := args[0].Int32()
			b, _ := args[1].Int32()
			return []rpcwire.Argument{rpcwire.NewInt32(a + b)}, rpcerrors.OK
		}))

	client := rpcclient.NewEngine(nil, "", rpcclient.Config{PendingCalls: 100, DefaultTimeout: 5 * time.Second}, nil)
	require.NoError(t, client.Register(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32}))
	clientSide, serverSide := loopbus.NewPair(client, server)
	server.b = serverSide
	client.Rebind(clientSide, clientSide.ServerAddr())
	clientSide.Start()

	go client.Call(context.Background(), addFunctionID, 5*time.Second, false,
		[]rpcwire.Argument{rpcwire.NewInt32(1), rpcwire.NewInt32(1)})
	<-entered // first call is now occupying the server's one worker

	go client.Call(context.Background(), addFunctionID, 5*time.Second, false,
		[]rpcwire.Argument{rpcwire.NewInt32(2), rpcwire.NewInt32(2)})
	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return server.pendingGlobal >= 1
	}, time.Second, time.Millisecond)

	_, err := client.Call(context.Background(), addFunctionID, 5*time.Second, false,
		[]rpcwire.Argument{rpcwire.NewInt32(3), rpcwire.NewInt32(3)})
	require.Error(t, err)
	assert.Equal(t, rpcerrors.ServerBusy, rpcerrors.CodeOf(err))

	close(release)
}

func TestInboundRequestExpiredBeforeExecution(t *testing.T) {
	req := &inboundRequest{header: rpcwire.Header{TimeoutS: 1}, arrival: time.Now().Add(-2 * time.Second)}
	assert.True(t, req.expired(time.Now()))

	fresh := &inboundRequest{header: rpcwire.Header{TimeoutS: 5}, arrival: time.Now()}
	assert.False(t, fresh.expired(time.Now()))

	noDeadline := &inboundRequest{header: rpcwire.Header{TimeoutS: 0}, arrival: time.Now().Add(-time.Hour)}
	assert.False(t, noDeadline.expired(time.Now()))
}
