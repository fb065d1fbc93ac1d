package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// StorageBackend selects the FileStore adapter: "drive" or "minio".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"drive"`

	PicFolderID string `env:"PIC_FOLDER_ID,required"`
	RefFolderID string `env:"REF_FOLDER_ID,required"`
	OutFolderID string `env:"OUT_FOLDER_ID,required"`

	// DriveCredentialsJSON holds the service-account key inline.
	DriveCredentialsJSON string `env:"GDRIVE_SA_JSON"`

	SpaceURL    string `env:"SPACE_URL"             envDefault:"https://wan-ai-wan2-2-animate.hf.space"`
	HFToken     string `env:"HF_TOKEN"`
	MaxAttempts int    `env:"GENERATE_MAX_ATTEMPTS" envDefault:"5"`

	MaxVideoMB int64 `env:"MAX_VIDEO_MB" envDefault:"200"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"   envDefault:"minio:9000"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"media"`

	SMTPHost       string `env:"SMTP_HOST"       envDefault:"mailhog"`
	SMTPPort       int    `env:"SMTP_PORT"       envDefault:"1025"`
	SMTPFrom       string `env:"SMTP_FROM"       envDefault:"noreply@animator.local"`
	NotificationTo string `env:"NOTIFICATION_TO"`

	MetricsPort  int    `env:"METRICS_PORT"  envDefault:"8083"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"http://jaeger:4318/v1/traces"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`

	// TempDir overrides the parent of the per-run workspace. Empty
	// means the system temp dir.
	TempDir string `env:"TEMP_DIR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate covers requirements the env tags cannot express, i.e. the
// backend-conditional ones.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "drive":
		if c.DriveCredentialsJSON == "" {
			return errors.New("missing env var: GDRIVE_SA_JSON (required for the drive backend)")
		}
	case "minio":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want drive or minio)", c.StorageBackend)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("GENERATE_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}
