// Package pb holds the wire types for the local gRPC control channel between
// an agent cell running in Subprocess mode and the model container it
// drives. These are hand-written placeholders with no compiled .proto
// behind them: the service boundary and message shapes are fixed, and the
// package contains no generated marshaling or client implementation.
package pb

import (
	"context"

	"google.golang.org/grpc"
)

// FrameRequest is sent to a model container for each frame it must score.
type FrameRequest struct {
	RequestID      string
	Payload        []byte
	TargetLeftEye  bool
	FocusMatrixCode bool
	OnlyRgbNet     bool
}

// EstimateReply is the model container's scored response, or an error.
type EstimateReply struct {
	RequestID string
	Payload   []byte
	Error     string
}

// ModelServiceClient is the client side of the subprocess control channel.
type ModelServiceClient interface {
	Score(ctx context.Context, in *FrameRequest, opts ...grpc.CallOption) (*EstimateReply, error)
	StreamScore(ctx context.Context, opts ...grpc.CallOption) (ModelService_StreamScoreClient, error)
}

// ModelService_StreamScoreClient is the bidirectional streaming half of the
// control channel, used so frames can be pipelined ahead of their replies.
type ModelService_StreamScoreClient interface {
	Send(*FrameRequest) error
	Recv() (*EstimateReply, error)
	grpc.ClientStream
}

// NewModelServiceClient returns nil: this package has no client
// implementation, so a runner that dials through it gets no client to call.
// No test in the repository exercises a ModelServiceClient.
func NewModelServiceClient(conn *grpc.ClientConn) ModelServiceClient {
	return nil
}
