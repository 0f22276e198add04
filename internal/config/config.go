// Package config loads the orb's runtime configuration: a YAML file
// describing the device's hardware, capture, and backend-connectivity
// settings, overridable by environment variables for field deployment
// and CI.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full orb configuration tree.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Capture   CaptureConfig   `yaml:"capture"`
	Identity  IdentityConfig  `yaml:"identity"`
	Signer    SignerConfig    `yaml:"signer"`
	AuditLog  AuditLogConfig  `yaml:"audit_log"`
	Uploader  UploaderConfig  `yaml:"uploader"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Models    ModelsConfig    `yaml:"models"`
}

// ServerConfig holds the environment name and the diagnostics server's
// shutdown timeout. Port is not read by the diagnostics server, which
// listens on TelemetryConfig.Addr.
type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
}

// HardwareConfig names the device paths of the MCU serial link and the
// cameras. No agent in this build opens them.
type HardwareConfig struct {
	McuSerialPort string `yaml:"mcu_serial_port"`
	IrEyeCamera   string `yaml:"ir_eye_camera_path"`
	IrFaceCamera  string `yaml:"ir_face_camera_path"`
	RgbCamera     string `yaml:"rgb_camera_path"`
}

// CaptureConfig parameterizes a biometric capture session.
type CaptureConfig struct {
	TimeoutSec       int               `yaml:"timeout_sec"`
	IrWavelengths    []WavelengthEntry `yaml:"ir_wavelengths"`
	OnlyRgbNetFrames bool              `yaml:"only_rgb_net_frames_default"`
}

// WavelengthEntry is one objective-queue IR wavelength/duration pair.
type WavelengthEntry struct {
	Wavelength string `yaml:"wavelength"`
	DurationUs int    `yaml:"duration_us"`
}

// IdentityConfig configures the SPIFFE workload identity used to talk to
// backend services.
type IdentityConfig struct {
	SpireSocketPath string `yaml:"spire_socket_path"`
	TrustDomain     string `yaml:"trust_domain"`
	BackendID       string `yaml:"backend_spiffe_id"`
	Serial          string `yaml:"serial"`
}

// SignerConfig locates the persisted ed25519 signing seed.
type SignerConfig struct {
	SeedPath string `yaml:"seed_path"`
}

// AuditLogConfig points at the Spanner database storing session audit
// entries.
type AuditLogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ProjectID  string `yaml:"project_id"`
	InstanceID string `yaml:"instance_id"`
	DatabaseID string `yaml:"database_id"`
}

// UploaderConfig points at the Pub/Sub topic, Cloud Tasks queue, and
// Supabase bucket used to ship self-custody images off the device.
type UploaderConfig struct {
	Enabled           bool   `yaml:"enabled"`
	GcpProjectID      string `yaml:"gcp_project_id"`
	PubSubTopicID     string `yaml:"pubsub_topic_id"`
	TasksLocationID   string `yaml:"tasks_location_id"`
	TasksQueueID      string `yaml:"tasks_queue_id"`
	TaskHandlerURL    string `yaml:"task_handler_url"`
	SupabaseURL       string `yaml:"supabase_url"`
	SupabaseKey       string `yaml:"supabase_service_key"`
	SupabaseBucket    string `yaml:"supabase_bucket"`
}

// TelemetryConfig toggles the Prometheus recorder and the diagnostics
// HTTP server, and sets the address that server listens on.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ModelsConfig selects how the three perception models run: in-process
// fakes (development, bench tests with no GPU) or Subprocess-model Docker
// containers pulled from the named images.
type ModelsConfig struct {
	Backend          string `yaml:"backend"` // "fake" or "subprocess"
	IrNetImage       string `yaml:"ir_net_image"`
	RgbNetImage      string `yaml:"rgb_net_image"`
	FaceIdentifierImage string `yaml:"face_identifier_image"`
	PoolMaxIdle      int    `yaml:"pool_max_idle"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton config, loaded from CONFIG_PATH
// (default "config.yaml") the first time it's called.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("config: no .env file found")
		}
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("ORB_DIAGNOSTICS_PORT", c.Server.Port)
	c.Server.Env = getEnv("ORB_ENV", c.Server.Env)

	c.Hardware.McuSerialPort = getEnv("ORB_MCU_SERIAL_PORT", c.Hardware.McuSerialPort)

	if v := getEnvInt("ORB_CAPTURE_TIMEOUT_SEC", 0); v > 0 {
		c.Capture.TimeoutSec = v
	}

	c.Identity.SpireSocketPath = getEnv("ORB_SPIRE_SOCKET_PATH", c.Identity.SpireSocketPath)
	c.Identity.TrustDomain = getEnv("ORB_TRUST_DOMAIN", c.Identity.TrustDomain)
	c.Identity.BackendID = getEnv("ORB_BACKEND_SPIFFE_ID", c.Identity.BackendID)
	c.Identity.Serial = getEnv("ORB_SERIAL", c.Identity.Serial)

	c.Signer.SeedPath = getEnv("ORB_SIGNER_SEED_PATH", c.Signer.SeedPath)

	c.AuditLog.Enabled = getEnvBool("ORB_AUDIT_LOG_ENABLED", c.AuditLog.Enabled)
	c.AuditLog.ProjectID = getEnv("ORB_AUDIT_LOG_PROJECT_ID", c.AuditLog.ProjectID)
	c.AuditLog.InstanceID = getEnv("ORB_AUDIT_LOG_INSTANCE_ID", c.AuditLog.InstanceID)
	c.AuditLog.DatabaseID = getEnv("ORB_AUDIT_LOG_DATABASE_ID", c.AuditLog.DatabaseID)

	c.Uploader.Enabled = getEnvBool("ORB_UPLOADER_ENABLED", c.Uploader.Enabled)
	if projectID := getEnv("ORB_GCP_PROJECT_ID", ""); projectID != "" {
		c.Uploader.GcpProjectID = projectID
	}
	c.Uploader.PubSubTopicID = getEnv("ORB_PUBSUB_TOPIC_ID", c.Uploader.PubSubTopicID)
	c.Uploader.TasksLocationID = getEnv("ORB_TASKS_LOCATION_ID", c.Uploader.TasksLocationID)
	c.Uploader.TasksQueueID = getEnv("ORB_TASKS_QUEUE_ID", c.Uploader.TasksQueueID)
	c.Uploader.TaskHandlerURL = getEnv("ORB_TASK_HANDLER_URL", c.Uploader.TaskHandlerURL)
	c.Uploader.SupabaseURL = getEnv("SUPABASE_URL", c.Uploader.SupabaseURL)
	c.Uploader.SupabaseKey = getEnv("SUPABASE_SERVICE_KEY", c.Uploader.SupabaseKey)
	c.Uploader.SupabaseBucket = getEnv("ORB_SUPABASE_BUCKET", c.Uploader.SupabaseBucket)

	c.Telemetry.Enabled = getEnvBool("ORB_TELEMETRY_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.Addr = getEnv("ORB_TELEMETRY_ADDR", c.Telemetry.Addr)

	c.Models.Backend = getEnv("ORB_MODELS_BACKEND", c.Models.Backend)
	c.Models.IrNetImage = getEnv("ORB_IR_NET_IMAGE", c.Models.IrNetImage)
	c.Models.RgbNetImage = getEnv("ORB_RGB_NET_IMAGE", c.Models.RgbNetImage)
	c.Models.FaceIdentifierImage = getEnv("ORB_FACE_IDENTIFIER_IMAGE", c.Models.FaceIdentifierImage)
	if v := getEnvInt("ORB_MODELS_POOL_MAX_IDLE", 0); v > 0 {
		c.Models.PoolMaxIdle = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15
	}
	if c.Capture.TimeoutSec == 0 {
		c.Capture.TimeoutSec = 30
	}
	if len(c.Capture.IrWavelengths) == 0 {
		c.Capture.IrWavelengths = []WavelengthEntry{
			{Wavelength: "850nm", DurationUs: 400},
			{Wavelength: "940nm", DurationUs: 400},
		}
	}
	if c.Identity.TrustDomain == "" {
		c.Identity.TrustDomain = "orb.example.com"
	}
	if c.Uploader.TasksLocationID == "" {
		c.Uploader.TasksLocationID = "us-central1"
	}
	if c.Uploader.TasksQueueID == "" {
		c.Uploader.TasksQueueID = "orb-self-custody-uploads"
	}
	if c.Uploader.PubSubTopicID == "" {
		c.Uploader.PubSubTopicID = "orb-capture-events"
	}
	if c.Telemetry.Addr == "" {
		c.Telemetry.Addr = ":9090"
	}
	if c.Models.Backend == "" {
		c.Models.Backend = "fake"
	}
	if c.Models.PoolMaxIdle == 0 {
		c.Models.PoolMaxIdle = 2
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// IsProduction reports whether the orb is running in a production
// environment.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
