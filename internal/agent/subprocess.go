package agent

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/orb-project/orb-core/internal/pb"
)

// Codec adapts a Cell's typed Input/Output to the pb wire messages exchanged
// with a model container.
type Codec[I, O any] struct {
	Marshal   func(I) (*pb.FrameRequest, error)
	Unmarshal func(*pb.EstimateReply) (O, error)
	// OnError builds the Output value representing a model error, matching
	// the "Model error output" kind of the error taxonomy: logged, the Plan
	// keeps running, the objective may simply time out.
	OnError func(error) O
}

// dialer opens the control channel to a running model container. Swappable
// in tests; defaults to a real gRPC dial.
type dialer func(endpoint string) (pb.ModelServiceClient, func() error, error)

func grpcDialer(endpoint string) (pb.ModelServiceClient, func() error, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial model container: %w", err)
	}
	return pb.NewModelServiceClient(conn), conn.Close, nil
}

// SubprocessRunner implements Runner[I, O] for the Subprocess execution
// model: it acquires a warm model container from a ModelPool, opens the
// gRPC control channel, and bridges each input to a Score call.
type SubprocessRunner[I, O any] struct {
	Pool  *ModelPool
	Codec Codec[I, O]
	Dial  dialer
}

// NewSubprocessRunner builds a runner bridging a model pool to typed
// channels via codec.
func NewSubprocessRunner[I, O any](pool *ModelPool, codec Codec[I, O]) *SubprocessRunner[I, O] {
	return &SubprocessRunner[I, O]{Pool: pool, Codec: codec, Dial: grpcDialer}
}

// Run implements Runner.
func (r *SubprocessRunner[I, O]) Run(ctx context.Context, in <-chan I, out chan<- O) error {
	container, err := r.Pool.Acquire(ctx)
	if err != nil {
		out <- r.Codec.OnError(fmt.Errorf("acquire model container: %w", err))
		return err
	}
	defer r.Pool.Release(context.Background(), container)

	client, closeConn, err := r.Dial(container.Endpoint)
	if err != nil {
		out <- r.Codec.OnError(err)
		return err
	}
	defer closeConn()

	for {
		select {
		case <-ctx.Done():
			return nil
		case value, ok := <-in:
			if !ok {
				return nil
			}
			r.score(ctx, client, value, out)
		}
	}
}

func (r *SubprocessRunner[I, O]) score(ctx context.Context, client pb.ModelServiceClient, value I, out chan<- O) {
	req, err := r.Codec.Marshal(value)
	if err != nil {
		out <- r.Codec.OnError(err)
		return
	}
	reply, err := client.Score(ctx, req)
	if err != nil {
		out <- r.Codec.OnError(fmt.Errorf("model subprocess score: %w", err))
		return
	}
	if reply.Error != "" {
		out <- r.Codec.OnError(errors.New(reply.Error))
		return
	}
	value2, err := r.Codec.Unmarshal(reply)
	if err != nil {
		out <- r.Codec.OnError(err)
		return
	}
	out <- value2
}
