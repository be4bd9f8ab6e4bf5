package validator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubValidator writes a shell script to a temp dir and returns its path.
func stubValidator(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub validator scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "boo-validate")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0700))
	return path
}

func TestClient_CleanArchive(t *testing.T) {
	client := NewClient(stubValidator(t, `echo '[]'`), 5*time.Second)

	problems, err := client.Validate(context.Background(), "/tmp/a.tar.gz", "math/linalg", "1.0.0")
	require.NoError(t, err)
	require.Empty(t, problems)
}

func TestClient_ReportsProblems(t *testing.T) {
	client := NewClient(stubValidator(t,
		`echo '[{"message":"name mismatch"},{"message":"missing description"}]'`), 5*time.Second)

	problems, err := client.Validate(context.Background(), "/tmp/a.tar.gz", "math/linalg", "1.0.0")
	require.NoError(t, err)
	require.Equal(t, []Problem{{Message: "name mismatch"}, {Message: "missing description"}}, problems)
}

func TestClient_PassesArchiveAndIdentity(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args.txt")
	client := NewClient(stubValidator(t, `echo "$@" > `+out+`; echo '[]'`), 5*time.Second)

	_, err := client.Validate(context.Background(), "/tmp/pkg.tar.gz", "math/linalg", "2.1.0")
	require.NoError(t, err)

	args, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "/tmp/pkg.tar.gz --json --expect-name math/linalg --expect-version 2.1.0\n", string(args))
}

// A non-zero exit is an infrastructure failure carrying the validator's
// stderr, never an empty verdict.
func TestClient_NonZeroExit(t *testing.T) {
	client := NewClient(stubValidator(t, `echo 'validator crashed' >&2; exit 3`), 5*time.Second)

	_, err := client.Validate(context.Background(), "/tmp/a.tar.gz", "math/linalg", "1.0.0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "validator crashed")
}

func TestClient_MalformedOutput(t *testing.T) {
	client := NewClient(stubValidator(t, `echo 'not json'`), 5*time.Second)

	_, err := client.Validate(context.Background(), "/tmp/a.tar.gz", "math/linalg", "1.0.0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode validator output")
}

func TestClient_Timeout(t *testing.T) {
	client := NewClient(stubValidator(t, `sleep 10`), 100*time.Millisecond)

	start := time.Now()
	_, err := client.Validate(context.Background(), "/tmp/a.tar.gz", "math/linalg", "1.0.0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_MissingExecutable(t *testing.T) {
	client := NewClient("/nonexistent/boo-validate", time.Second)

	_, err := client.Validate(context.Background(), "/tmp/a.tar.gz", "math/linalg", "1.0.0")
	require.Error(t, err)
}
