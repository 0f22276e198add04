// Command orb-core runs the broker-driven biometric capture loop: one
// session per pass through main's loop, wired to whichever perception
// model backend and backend-connectivity services the config enables.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/orb-project/orb-core/internal/agent"
	"github.com/orb-project/orb-core/internal/auditlog"
	"github.com/orb-project/orb-core/internal/biometric"
	"github.com/orb-project/orb-core/internal/calibration"
	"github.com/orb-project/orb-core/internal/camera"
	"github.com/orb-project/orb-core/internal/config"
	"github.com/orb-project/orb-core/internal/diagnostics"
	"github.com/orb-project/orb-core/internal/estimate"
	"github.com/orb-project/orb-core/internal/identity"
	"github.com/orb-project/orb-core/internal/mcu"
	"github.com/orb-project/orb-core/internal/orb"
	"github.com/orb-project/orb-core/internal/port"
	"github.com/orb-project/orb-core/internal/signer"
	"github.com/orb-project/orb-core/internal/telemetry"
	"github.com/orb-project/orb-core/internal/uploader"
)

func main() {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("orb-core starting", "env", cfg.Server.Env, "models_backend", cfg.Models.Backend)

	diag := diagnostics.NewServer(cfg.Telemetry.Addr)
	if cfg.Telemetry.Enabled {
		diag.Start()
		defer diag.Shutdown(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)
	}

	sign, err := loadSigner(cfg.Signer.SeedPath)
	if err != nil {
		slog.Error("signer init failed", "error", err)
		os.Exit(1)
	}

	var svidHash uint64
	if cfg.Identity.SpireSocketPath != "" {
		ident, err := identity.NewWorkloadIdentity(cfg.Identity.SpireSocketPath)
		if err != nil {
			slog.Warn("workload identity unavailable, proceeding without SVID fingerprint", "error", err)
		} else {
			defer ident.Close()
			if h, err := ident.SVIDHash(); err != nil {
				slog.Warn("svid fingerprint failed", "error", err)
			} else {
				svidHash = h
			}
		}
	}

	var auditStore *auditlog.Store
	if cfg.AuditLog.Enabled {
		auditStore, err = auditlog.NewStore(ctx, cfg.AuditLog.ProjectID, cfg.AuditLog.InstanceID, cfg.AuditLog.DatabaseID)
		if err != nil {
			slog.Error("audit log store init failed", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()
	}

	var (
		notifier   *uploader.Notifier
		dispatcher *uploader.TaskDispatcher
	)
	if cfg.Uploader.Enabled {
		notifier, err = uploader.NewNotifier(ctx, cfg.Uploader.GcpProjectID, cfg.Uploader.PubSubTopicID)
		if err != nil {
			slog.Error("uploader notifier init failed", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()

		dispatcher, err = uploader.NewTaskDispatcher(ctx, cfg.Uploader.GcpProjectID, cfg.Uploader.TasksLocationID, cfg.Uploader.TasksQueueID, cfg.Uploader.TaskHandlerURL)
		if err != nil {
			slog.Error("uploader task dispatcher init failed", "error", err)
			os.Exit(1)
		}
		defer dispatcher.Close()
	}

	calStore := buildCalibrationStore(cfg)

	recorder := telemetry.Recorder(&telemetry.Fake{})
	if cfg.Telemetry.Enabled {
		recorder = telemetry.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	}

	mcuLink := mcu.NewGuardedMcu(mcu.NewFake(), 3, 5*time.Second)

	builder := orb.NewBuilder().WithMcu(mcuLink)
	if calStore != nil {
		if cal, err := calStore.Load(ctx); err != nil {
			slog.Warn("calibration load failed, starting uncalibrated", "error", err)
		} else {
			builder = builder.WithCalibration(cal)
		}
	}
	o := builder.Build()

	runners, closeRunners := buildRunners(cfg)
	defer closeRunners()

	wavelengths := wavelengthsFromConfig(cfg)
	timeout := time.Duration(cfg.Capture.TimeoutSec) * time.Second

	planOpts := []biometric.Option{
		biometric.WithRecorder(recorder),
		biometric.WithLed(o.Led),
	}
	if calStore != nil {
		planOpts = append(planOpts, biometric.WithCalibrationStore(calStore))
	}

	for ctx.Err() == nil {
		runSession(ctx, o, runners, wavelengths, timeout, planOpts, diag, auditStore, notifier, dispatcher, sign, svidHash)
	}

	slog.Info("orb-core shutting down")
}

func runSession(
	ctx context.Context,
	o *orb.Orb,
	runners biometric.Runners,
	wavelengths []biometric.Wavelength,
	timeout time.Duration,
	planOpts []biometric.Option,
	diag *diagnostics.Server,
	auditStore *auditlog.Store,
	notifier *uploader.Notifier,
	dispatcher *uploader.TaskDispatcher,
	sign signer.Signer,
	svidHash uint64,
) {
	sessionID := uuid.NewString()
	started := time.Now()

	if diag != nil {
		diag.Publish(diagnostics.SessionEvent{Type: diagnostics.EventSessionStarted, SessionID: sessionID})
	}

	plan := biometric.NewPlan(wavelengths, timeout, planOpts...)
	output, err := plan.Run(ctx, o, runners)
	finished := time.Now()
	if err != nil {
		slog.Error("biometric capture session failed", "session_id", sessionID, "error", err)
		return
	}

	slog.Info("biometric capture session finished", "session_id", sessionID, "captured", output.Capture != nil, "timed_out", output.TimedOut)

	if diag != nil {
		diag.Publish(diagnostics.SessionEvent{
			Type:      diagnostics.EventSessionFinished,
			SessionID: sessionID,
			Data:      map[string]any{"captured": output.Capture != nil, "timed_out": output.TimedOut},
		})
	}

	if auditStore != nil {
		entry := auditlog.Entry{
			SessionID:   sessionID,
			StartedAt:   started,
			FinishedAt:  finished,
			TimedOut:    output.TimedOut,
			Captured:    output.Capture != nil,
			SVIDHash:    svidHash,
			McuCommands: nil,
		}
		if err := auditStore.Record(ctx, entry); err != nil {
			slog.Error("audit log record failed", "session_id", sessionID, "error", err)
		}
	}

	if notifier != nil {
		note := uploader.CompletedNotification{SessionID: sessionID, Captured: output.Capture != nil, TimedOut: output.TimedOut, At: finished}
		if err := notifier.NotifyCaptureCompleted(ctx, note); err != nil {
			slog.Error("upload notification failed", "session_id", sessionID, "error", err)
		}
	}

	if output.Capture != nil && dispatcher != nil {
		image := output.Capture.FaceSelfCustodyCandidate.RgbFrame.Bytes()
		signature, err := sign.Sign(image)
		if err != nil {
			slog.Error("self-custody image signing failed", "session_id", sessionID, "error", err)
		} else {
			slog.Info("self-custody image signed", "session_id", sessionID, "signature_len", len(signature))
		}
		if err := dispatcher.EnqueueUpload(ctx, sessionID, image); err != nil {
			slog.Error("self-custody upload enqueue failed", "session_id", sessionID, "error", err)
		}
	}
}

func loadSigner(seedPath string) (signer.Signer, error) {
	if seedPath == "" {
		return signer.NewSoftware()
	}
	seed, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return signer.NewSoftware()
		}
		return nil, err
	}
	return signer.NewSoftwareFromSeed(seed)
}

func buildCalibrationStore(cfg *config.Config) *calibration.Store {
	redisAddr := os.Getenv("ORB_REDIS_ADDR")
	pgDSN := os.Getenv("ORB_POSTGRES_DSN")
	if redisAddr == "" || pgDSN == "" {
		slog.Warn("calibration persistence disabled: ORB_REDIS_ADDR/ORB_POSTGRES_DSN not set")
		return nil
	}
	db, err := sql.Open("postgres", pgDSN)
	if err != nil {
		slog.Warn("calibration postgres open failed, persistence disabled", "error", err)
		return nil
	}
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	return calibration.NewStore(redisClient, db)
}

// buildRunners selects the camera and perception-model driver
// implementations per cfg.Models.Backend. Real sensor drivers are out of
// this build's scope (no V4L2/gocv capture integration exists yet), so
// camera acquisition always runs on the deterministic Fakes; only the
// perception models switch between in-process fakes and Subprocess-model
// Docker containers.
func buildRunners(cfg *config.Config) (biometric.Runners, func()) {
	irEye := camera.NewFakeRunner(camera.KindIR, 400, 400)
	irFace := camera.NewFakeRunner(camera.KindIR, 400, 400)
	rgb := camera.NewFakeRunner(camera.KindRGB, 1080, 1080)

	if cfg.Models.Backend != "subprocess" {
		return biometric.Runners{
			IrEyeCamera:    irEye,
			IrFaceCamera:   irFace,
			RgbCamera:      rgb,
			IrNet:          &fakeIrNetRunner{},
			RgbNet:         &fakeRgbNetRunner{},
			FaceIdentifier: &fakeFaceIdentifierRunner{},
			Mirror:         orb.NewFakeMirrorRunner(),
			Distance:       orb.NewFakeDistanceRunner(),
			AutoFocus:      orb.NewFakeAutoFocusRunner(biometric.MinSharpness),
			AutoExposure:   orb.NewFakeAutoExposureRunner(biometric.IrTargetMean),
			EyeTracker:     orb.NewFakeEyeTrackerRunner(),
			EyePid:         orb.NewFakeEyePidRunner(),
		}, func() {}
	}

	irNetPool := agent.NewModelPool(cfg.Models.IrNetImage, cfg.Models.PoolMaxIdle)
	rgbNetPool := agent.NewModelPool(cfg.Models.RgbNetImage, cfg.Models.PoolMaxIdle)
	faceIdentifierPool := agent.NewModelPool(cfg.Models.FaceIdentifierImage, cfg.Models.PoolMaxIdle)

	onlyRgbNet := false
	runners := biometric.Runners{
		IrEyeCamera:    irEye,
		IrFaceCamera:   irFace,
		RgbCamera:      rgb,
		IrNet:          agent.NewSubprocessRunner(irNetPool, estimate.IrNetCodec()),
		RgbNet:         agent.NewSubprocessRunner(rgbNetPool, estimate.RgbNetCodec(func() bool { return onlyRgbNet })),
		FaceIdentifier: agent.NewSubprocessRunner(faceIdentifierPool, estimate.FaceIdentifierCodec()),
		Mirror:         orb.NewFakeMirrorRunner(),
		Distance:       orb.NewFakeDistanceRunner(),
		AutoFocus:      orb.NewFakeAutoFocusRunner(biometric.MinSharpness),
		AutoExposure:   orb.NewFakeAutoExposureRunner(biometric.IrTargetMean),
		EyeTracker:     orb.NewFakeEyeTrackerRunner(),
		EyePid:         orb.NewFakeEyePidRunner(),
	}
	return runners, func() {}
}

func wavelengthsFromConfig(cfg *config.Config) []biometric.Wavelength {
	wavelengths := make([]biometric.Wavelength, 0, len(cfg.Capture.IrWavelengths))
	for _, w := range cfg.Capture.IrWavelengths {
		wavelengths = append(wavelengths, biometric.Wavelength{
			IrLed:    parseIrLed(w.Wavelength),
			Duration: uint16(w.DurationUs),
		})
	}
	return wavelengths
}

func parseIrLed(s string) mcu.IrLed {
	switch s {
	case "740nm":
		return mcu.IrLed740
	case "850nm":
		return mcu.IrLed850
	case "940nm":
		return mcu.IrLed940
	default:
		return mcu.IrLedNone
	}
}

// fakeIrNetRunner/fakeRgbNetRunner/fakeFaceIdentifierRunner are minimal
// in-process stand-ins for a real perception model, returning a fixed
// estimate for every input. The IR-Net estimate has no perceived side and
// the RGB-Net estimate no primary prediction, so the plan accepts neither;
// the face-identifier estimate is valid with score 0.95. Used when cfg.Models.Backend is
// "fake" (bench/CI runs with no GPU or Docker host available).
type fakeIrNetRunner struct{}

func (f *fakeIrNetRunner) Run(ctx context.Context, in <-chan port.Input[estimate.IrNetInput], out chan<- port.Output[estimate.IrNetOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-in:
			if !ok {
				return nil
			}
			out <- port.Output[estimate.IrNetOutput]{Value: estimate.IrNetOutput{Sharpness: 2.0, Score: 0.9}, SourceTS: v.SourceTS}
		}
	}
}

type fakeRgbNetRunner struct{}

func (f *fakeRgbNetRunner) Run(ctx context.Context, in <-chan port.Input[struct{}], out chan<- port.Output[estimate.RgbNetOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-in:
			if !ok {
				return nil
			}
			out <- port.Output[estimate.RgbNetOutput]{Value: estimate.RgbNetOutput{}, SourceTS: v.SourceTS}
		}
	}
}

type fakeFaceIdentifierRunner struct{}

func (f *fakeFaceIdentifierRunner) Run(ctx context.Context, in <-chan port.Input[struct{}], out chan<- port.Output[estimate.FaceIdentifierOutput]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-in:
			if !ok {
				return nil
			}
			out <- port.Output[estimate.FaceIdentifierOutput]{Value: estimate.FaceIdentifierOutput{IsValid: true, Score: 0.95}, SourceTS: v.SourceTS}
		}
	}
}
