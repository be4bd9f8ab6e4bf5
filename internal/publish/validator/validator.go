// Package validator invokes the external archive validator executable and
// decodes its machine-readable output.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/uiua-boo/registry/internal/log"
)

// DefaultTimeout bounds a single validator invocation. A stuck validator
// is treated as a transient infrastructure failure, not a validation
// verdict.
const DefaultTimeout = 60 * time.Second

// Problem is one validation finding reported by the validator.
type Problem struct {
	Message string `json:"message"`
}

// Client runs the validator executable. The archive path is passed as the
// positional argument; the expected package identity is passed as flags.
type Client struct {
	ExecPath string
	Timeout  time.Duration
}

// NewClient builds a Client for the given executable path.
func NewClient(execPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{ExecPath: execPath, Timeout: timeout}
}

// Validate runs the validator against the archive at archivePath,
// expecting it to contain fullName (e.g. "acme/foo") at version. An empty
// problem list means the archive passed. A non-zero exit, malformed
// output, or timeout is an error, distinct from a validation verdict.
func (c *Client) Validate(ctx context.Context, archivePath, fullName, version string) ([]Problem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ExecPath,
		archivePath,
		"--json",
		"--expect-name", fullName,
		"--expect-version", version,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug(log.CatPublish, "invoking archive validator",
		"exec", c.ExecPath, "archive", archivePath, "name", fullName, "version", version)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("archive validator timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("archive validator failed: %w (stderr: %s)", err, stderr.String())
	}

	problems := []Problem{}
	if err := json.Unmarshal(stdout.Bytes(), &problems); err != nil {
		return nil, fmt.Errorf("failed to decode validator output: %w", err)
	}
	return problems, nil
}
