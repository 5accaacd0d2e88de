package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: community
    user: notifier
    password: ${TEST_NOTIFIER_PG_PASSWORD}
workers:
  broadcast-notification:
    enabled: true
  list-notifications:
    enabled: false
    timeout: 5000
notifications:
  fanout:
    max_batch_size: 250
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("TEST_NOTIFIER_PG_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	assert.Equal(t, 250, cfg.Notifications.Fanout.MaxBatchSize)
	assert.Equal(t, 20, cfg.Notifications.Inbox.DefaultPageSize)
	assert.Equal(t, 100, cfg.Notifications.Inbox.MaxPageSize)
	assert.Equal(t, "Dear %s,", cfg.Notifications.Composer.Salutation)
	assert.Equal(t, "Resident", cfg.Notifications.Composer.FallbackName)
	assert.Equal(t, "notif:batch:", cfg.Notifications.Idempotency.KeyPrefix)
	assert.Equal(t, ":8080", cfg.Server.Address)

	bw := cfg.Workers["broadcast-notification"]
	assert.True(t, bw.Enabled)
	assert.Equal(t, 5, bw.MaxJobsActive)
	assert.Equal(t, 30000, bw.Timeout)
	assert.Equal(t, 3, bw.MaxRetries)

	assert.False(t, IsWorkerEnabled(cfg, "list-notifications"))
	assert.Equal(t, 5000, GetWorkerConfig(cfg, "list-notifications").Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))
}

func TestLoadFromFile_EnvOverridesYAML(t *testing.T) {
	t.Setenv("DATABASE_POSTGRES_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Camunda.BrokerAddress = "localhost:26500"
		cfg.Database.Postgres.Host = "localhost"
		cfg.Database.Postgres.Database = "community"
		cfg.Database.Postgres.User = "notifier"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing broker", mutate: func(c *Config) { c.Camunda.BrokerAddress = "" }, wantErr: "camunda.broker_address"},
		{name: "missing postgres host", mutate: func(c *Config) { c.Database.Postgres.Host = "" }, wantErr: "database.postgres.host"},
		{name: "redis enabled without address", mutate: func(c *Config) { c.Database.Redis.Enabled = true }, wantErr: "database.redis.address"},
		{name: "elasticsearch enabled without address", mutate: func(c *Config) { c.Database.Elasticsearch.Enabled = true }, wantErr: "database.elasticsearch"},
		{name: "ses without sender", mutate: func(c *Config) { c.Integrations.AWS.SES.Enabled = true }, wantErr: "from_email"},
		{name: "sns without topic", mutate: func(c *Config) { c.Integrations.AWS.SNS.Enabled = true }, wantErr: "topic_arn"},
		{name: "amqp without url", mutate: func(c *Config) { c.Integrations.AMQP.Enabled = true }, wantErr: "integrations.amqp.url"},
		{name: "keycloak without realm", mutate: func(c *Config) { c.Auth.Keycloak.Enabled = true; c.Auth.Keycloak.URL = "http://kc" }, wantErr: "auth.keycloak"},
		{name: "salutation without verb", mutate: func(c *Config) { c.Notifications.Composer.Salutation = "Hello," }, wantErr: "salutation"},
		{name: "page size inverted", mutate: func(c *Config) { c.Notifications.Inbox.DefaultPageSize = 500 }, wantErr: "default_page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElasticsearchConfig_GetAddresses(t *testing.T) {
	assert.Equal(t, []string{"http://a:9200"}, ElasticsearchConfig{URL: "http://a:9200"}.GetAddresses())
	assert.Equal(t, []string{"http://b:9200"}, ElasticsearchConfig{URL: "http://a:9200", Addresses: []string{"http://b:9200"}}.GetAddresses())
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
}
