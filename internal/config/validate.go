package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would break a
// composition run. Normalization has already applied defaults, so the
// checks here cover contradictions a default cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.ScratchDir == "" {
		problems = append(problems, "paths.scratch_dir is required")
	}
	if c.Paths.ScratchDir != "" && c.Paths.ScratchDir == c.Storage.LocalDir {
		problems = append(problems, "paths.scratch_dir and storage.local_dir must differ")
	}
	if c.Output.MaxDurationSeconds > 600 {
		problems = append(problems, "output.max_duration_seconds exceeds the 600s short-form ceiling")
	}
	if c.Output.CRF > 51 {
		problems = append(problems, "output.crf must be 51 or lower")
	}
	if c.Compose.Workers > 64 {
		problems = append(problems, "compose.workers above 64 is not supported")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			problems = append(problems, "storage.local_dir is required for the local backend")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			problems = append(problems, "storage.bucket is required for the s3 backend")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			problems = append(problems, "storage credentials are required for the s3 backend (config or CLIPFORGE_STORAGE_* env)")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q is not supported (local, s3)", c.Storage.Backend))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
