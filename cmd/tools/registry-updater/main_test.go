package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"community-notifications/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyRegistry returns a writable copy of the shipped registry.
func copyRegistry(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeVars(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vars.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidateRegistry(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateRegistry(&out, copyRegistry(t)))
	assert.Contains(t, out.String(), "Found 5 activities")
}

func TestCheckVariables(t *testing.T) {
	path := copyRegistry(t)

	t.Run("valid", func(t *testing.T) {
		var out bytes.Buffer
		vars := writeVars(t, `{"caller": {"callerId": "res-a", "role": "resident"}, "notificationId": "n-1"}`)
		require.NoError(t, checkVariables(&out, path, "mark-notification-read", vars))
		assert.Contains(t, out.String(), "valid for mark-notification-read")
	})

	t.Run("violations listed", func(t *testing.T) {
		var out bytes.Buffer
		vars := writeVars(t, `{"caller": {"callerId": "res-a", "role": "resident"}}`)
		err := checkVariables(&out, path, "mark-notification-read", vars)
		require.Error(t, err)
		assert.Contains(t, out.String(), "notificationId")
	})

	t.Run("unknown task type", func(t *testing.T) {
		err := checkVariables(&bytes.Buffer{}, path, "send-notification", writeVars(t, `{}`))
		assert.ErrorContains(t, err, "not registered")
	})
}

func TestUpdateActivity(t *testing.T) {
	path := copyRegistry(t)

	require.NoError(t, updateActivity(path, "notification.fanout.broadcast", "timeout", "90s"))
	require.NoError(t, updateActivity(path, "notification.fanout.broadcast", "retries", "2"))

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	a, ok := reg.Find("broadcast-notification")
	require.True(t, ok)
	assert.Equal(t, "90s", a.Timeout)
	assert.Equal(t, 2, a.Retries)

	assert.Error(t, updateActivity(path, "notification.fanout.broadcast", "timeout", "soon"))
	assert.Error(t, updateActivity(path, "notification.fanout.broadcast", "taskType", "x"))
	assert.Error(t, updateActivity(path, "notification.fanout.missing", "version", "2.0.0"))
}
