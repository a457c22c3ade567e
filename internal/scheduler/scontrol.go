// Package scheduler asks Slurm about finished jobs.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chrisconley/auditor-collector/internal"
)

// JobIDEnv is set by slurmd for prolog and epilog scripts.
const JobIDEnv = "SLURM_JOB_ID"

var ErrNoJobID = errors.New(JobIDEnv + " is not set; not running inside a Slurm epilog")

// JobIDFromEnv returns the numeric job id of the epilog's job.
func JobIDFromEnv() (string, error) {
	return ParseJobID(os.Getenv(JobIDEnv))
}

func ParseJobID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoJobID
	}
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return "", &internal.ValidationError{Field: "job id", Value: raw, Reason: "must be a non-negative integer"}
	}
	return raw, nil
}

// Scontrol queries job attributes through the scontrol binary at Path.
type Scontrol struct {
	Path string
}

func (s Scontrol) Query(ctx context.Context, jobID string) (internal.Attributes, error) {
	path := s.Path
	if path == "" {
		path = "scontrol"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "show", "job", jobID, "--details")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return internal.Attributes{}, fmt.Errorf("scontrol show job %s: %w: %s", jobID, err, msg)
		}
		return internal.Attributes{}, fmt.Errorf("scontrol show job %s: %w", jobID, err)
	}
	return internal.ParseAttributes(stdout.String()), nil
}
