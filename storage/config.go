package storage

import "github.com/kbukum/pilgi/validation"

// Backends.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

const (
	defaultBasePath    = "./data"
	defaultRegion      = "us-east-1"
	defaultMaxFileSize = int64(500 << 20)
)

// Config selects where uploads and artifacts are kept. The S3 fields are
// ignored by the local backend.
type Config struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=local s3"`
	BasePath string `yaml:"base_path" mapstructure:"base_path" validate:"required_if=Provider local"`

	Bucket string `yaml:"bucket" mapstructure:"bucket" validate:"required_if=Provider s3"`
	Region string `yaml:"region" mapstructure:"region"`
	// Endpoint points at an S3-compatible service such as MinIO and
	// switches to path-style addressing.
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key" json:"-"`
	ForcePathStyle bool   `yaml:"force_path_style" mapstructure:"force_path_style"`

	// MaxFileSize caps a single upload in bytes.
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size" validate:"gte=0"`
}

// ApplyDefaults fills in unset fields. Uploads default to 500 MiB, enough
// for an hour of uncompressed speech.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = defaultBasePath
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
}

// Validate checks the fields the selected provider needs.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
