package orb

import (
	"context"

	"github.com/orb-project/orb-core/internal/broker"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/port"
)

// Plan is the state machine the broker drives: one handler per agent
// output type the facade can produce. Every method has a meaningful
// default (Continue, doing nothing else) so a concrete Plan only
// overrides the handlers its objective logic actually needs.
type Plan interface {
	HandleIrEyeCamera(ctx context.Context, o *Orb, frame port.Output[camera.Frame]) broker.Flow
	HandleIrFaceCamera(ctx context.Context, o *Orb, frame port.Output[camera.Frame]) broker.Flow
	HandleRgbCamera(ctx context.Context, o *Orb, frame port.Output[camera.Frame]) broker.Flow
	HandleThermalCamera(ctx context.Context, o *Orb, frame port.Output[camera.Frame]) broker.Flow
	HandleIrNet(ctx context.Context, o *Orb, out port.Output[estimate.IrNetOutput], frame *camera.Frame) broker.Flow
	HandleRgbNet(ctx context.Context, o *Orb, out port.Output[estimate.RgbNetOutput], frame *camera.Frame) broker.Flow
	HandleFaceIdentifier(ctx context.Context, o *Orb, out port.Output[estimate.FaceIdentifierOutput], frame *camera.Frame) broker.Flow
	HandleMirror(ctx context.Context, o *Orb, out port.Output[MirrorOutput]) broker.Flow
	HandleQrCode(ctx context.Context, o *Orb, out port.Output[QrCodeOutput]) broker.Flow
	PollExtra(ctx context.Context, o *Orb) broker.Flow
}

// DefaultPlan implements Plan with every handler returning Continue and
// doing nothing else. Concrete plans embed it and override only the
// handlers their objective logic needs.
type DefaultPlan struct{}

func (DefaultPlan) HandleIrEyeCamera(context.Context, *Orb, port.Output[camera.Frame]) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleIrFaceCamera(context.Context, *Orb, port.Output[camera.Frame]) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleRgbCamera(context.Context, *Orb, port.Output[camera.Frame]) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleThermalCamera(context.Context, *Orb, port.Output[camera.Frame]) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleIrNet(context.Context, *Orb, port.Output[estimate.IrNetOutput], *camera.Frame) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleRgbNet(context.Context, *Orb, port.Output[estimate.RgbNetOutput], *camera.Frame) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleFaceIdentifier(context.Context, *Orb, port.Output[estimate.FaceIdentifierOutput], *camera.Frame) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleMirror(context.Context, *Orb, port.Output[MirrorOutput]) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) HandleQrCode(context.Context, *Orb, port.Output[QrCodeOutput]) broker.Flow {
	return broker.Continue
}
func (DefaultPlan) PollExtra(context.Context, *Orb) broker.Flow { return broker.Continue }
