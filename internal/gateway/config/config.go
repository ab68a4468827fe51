package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	Env     string
	Sandbox SandboxConfig
	GenAI   GenAIConfig
	Archive ArchiveConfig
}

// SandboxConfig bounds generation script execution. AllowedModules is fixed
// system configuration; it is never taken from a request.
type SandboxConfig struct {
	RunnerPath     string
	AllowedModules []string
	Timeout        time.Duration
	MaxOutputBytes int64
	MaxMemoryBytes int64
	MaxSteps       uint64
}

type GenAIConfig struct {
	Enabled bool
	Model   string
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var defaultAllowedModules = []string{"math", "json", "random", "time"}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:    *port,
		Env:     env,
		Sandbox: loadSandboxConfig(),
		GenAI:   loadGenAIConfig(),
		Archive: loadArchiveConfig(env),
	}, nil
}

func loadSandboxConfig() SandboxConfig {
	cfg := SandboxConfig{
		RunnerPath:     strings.TrimSpace(os.Getenv("SANDBOX_RUNNER_PATH")),
		AllowedModules: defaultAllowedModules,
		Timeout:        5 * time.Second,
		MaxOutputBytes: 1 << 20,
		MaxMemoryBytes: 256 << 20,
		MaxSteps:       10_000_000,
	}
	if raw := strings.TrimSpace(os.Getenv("SANDBOX_TIMEOUT_SECONDS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.Timeout = time.Duration(v) * time.Second
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SANDBOX_MAX_OUTPUT_BYTES")); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			cfg.MaxOutputBytes = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SANDBOX_MAX_MEMORY_BYTES")); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			cfg.MaxMemoryBytes = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SANDBOX_MAX_STEPS")); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			cfg.MaxSteps = v
		}
	}
	return cfg
}

func loadGenAIConfig() GenAIConfig {
	return GenAIConfig{
		Enabled: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "",
		Model:   firstNonEmpty(strings.TrimSpace(os.Getenv("GENAI_MODEL")), "gemini-2.0-flash"),
	}
}

func loadArchiveConfig(env string) ArchiveConfig {
	endpoint := resolveArchiveEndpoint(env)
	return ArchiveConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "graphscape-snapshots"),
		UseSSL:    resolveArchiveUseSSL(env),
	}
}

func resolveArchiveEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARCHIVE_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
}

func resolveArchiveUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
