package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

func TestLoadRegistry_ShippedCatalogue(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(repoRoot(t), "configs", "activity-registry.json"))
	require.NoError(t, err)

	for _, taskType := range []string{
		"broadcast-notification",
		"list-notifications",
		"mark-notification-read",
		"delete-notifications",
		"search-notification-batches",
	} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.InputSchema, taskType)
	}

	_, ok := reg.Find("send-notification")
	assert.False(t, ok)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "bad id",
			doc:     `{"activities":[{"id":"Broadcast","taskType":"a","inputSchema":{"type":"object"}}]}`,
			wantErr: "domain.subdomain.action",
		},
		{
			name: "duplicate task type",
			doc: `{"activities":[
				{"id":"notification.inbox.list","taskType":"a","inputSchema":{"type":"object"}},
				{"id":"notification.inbox.page","taskType":"a","inputSchema":{"type":"object"}}]}`,
			wantErr: "duplicate taskType",
		},
		{
			name:    "missing schema",
			doc:     `{"activities":[{"id":"notification.inbox.list","taskType":"a"}]}`,
			wantErr: "inputSchema is required",
		},
		{
			name:    "not json",
			doc:     `{`,
			wantErr: "decode registry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, os.IsNotExist(err))
}
