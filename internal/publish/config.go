package publish

import (
	"strings"

	"codeberg.org/mutker/carbonwise/internal/errors"
)

// Config addresses an S3-compatible bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if strings.TrimSpace(c.Endpoint) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "publish endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "publish access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "publish secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "publish region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "publish bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errFactory.WithData(errors.ErrInvalidConfig, "endpoint must not include scheme: "+c.Endpoint)
	}
	return nil
}
