package estimate

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/orb-project/orb-core/internal/agent"
	"github.com/orb-project/orb-core/internal/pb"
	"github.com/orb-project/orb-core/internal/port"
)

// IrNetCodec bridges the IR-Net Subprocess agent's typed channels to the
// model container's gRPC control channel. FrameRequest.Payload is the JSON
// encoding of the IrNetInput targeting context; the frame's pixels are not
// carried in the request.
func IrNetCodec() agent.Codec[port.Input[IrNetInput], port.Output[IrNetOutput]] {
	return agent.Codec[port.Input[IrNetInput], port.Output[IrNetOutput]]{
		Marshal: func(in port.Input[IrNetInput]) (*pb.FrameRequest, error) {
			payload, err := json.Marshal(in.Value)
			if err != nil {
				return nil, fmt.Errorf("estimate: marshal ir_net request: %w", err)
			}
			return &pb.FrameRequest{
				RequestID:       uuid.NewString(),
				Payload:         payload,
				TargetLeftEye:   in.Value.TargetLeftEye,
				FocusMatrixCode: in.Value.FocusMatrixCode,
			}, nil
		},
		Unmarshal: func(reply *pb.EstimateReply) (port.Output[IrNetOutput], error) {
			var out IrNetOutput
			if err := json.Unmarshal(reply.Payload, &out); err != nil {
				return port.Output[IrNetOutput]{}, fmt.Errorf("estimate: unmarshal ir_net reply: %w", err)
			}
			return port.New(out), nil
		},
		OnError: func(err error) port.Output[IrNetOutput] {
			return port.New(IrNetOutput{Score: 0, Sharpness: 0})
		},
	}
}

// RgbNetCodec bridges the RGB-Net Subprocess agent. onlyRgbNet controls
// whether the model container also runs face-identifier fusion for this
// frame (see OnlyRgbNetFrames in the broker dispatch).
func RgbNetCodec(onlyRgbNet func() bool) agent.Codec[port.Input[struct{}], port.Output[RgbNetOutput]] {
	return agent.Codec[port.Input[struct{}], port.Output[RgbNetOutput]]{
		Marshal: func(in port.Input[struct{}]) (*pb.FrameRequest, error) {
			return &pb.FrameRequest{RequestID: uuid.NewString(), OnlyRgbNet: onlyRgbNet()}, nil
		},
		Unmarshal: func(reply *pb.EstimateReply) (port.Output[RgbNetOutput], error) {
			var out RgbNetOutput
			if err := json.Unmarshal(reply.Payload, &out); err != nil {
				return port.Output[RgbNetOutput]{}, fmt.Errorf("estimate: unmarshal rgb_net reply: %w", err)
			}
			return port.New(out), nil
		},
		OnError: func(err error) port.Output[RgbNetOutput] {
			return port.New(RgbNetOutput{})
		},
	}
}

// FaceIdentifierCodec bridges the fused face-identifier Subprocess agent.
func FaceIdentifierCodec() agent.Codec[port.Input[struct{}], port.Output[FaceIdentifierOutput]] {
	return agent.Codec[port.Input[struct{}], port.Output[FaceIdentifierOutput]]{
		Marshal: func(in port.Input[struct{}]) (*pb.FrameRequest, error) {
			return &pb.FrameRequest{RequestID: uuid.NewString()}, nil
		},
		Unmarshal: func(reply *pb.EstimateReply) (port.Output[FaceIdentifierOutput], error) {
			var out FaceIdentifierOutput
			if err := json.Unmarshal(reply.Payload, &out); err != nil {
				return port.Output[FaceIdentifierOutput]{}, fmt.Errorf("estimate: unmarshal face_identifier reply: %w", err)
			}
			return port.New(out), nil
		},
		OnError: func(err error) port.Output[FaceIdentifierOutput] {
			return port.New(FaceIdentifierOutput{IsValid: false, Error: err.Error()})
		},
	}
}
