package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
	"exchange": {
		"httpEndpoint": "https://exchange.example.com",
		"wsEndpoint": "wss://exchange.example.com/ws"
	},
	"dispatch": {"queueDepth": 512},
	"rate": {
		"limit": 30,
		"windowMillis": 1000,
		"queueDepth": 128,
		"drainOnReconnect": true,
		"sendTimeoutMillis": 5000
	},
	"strategy": {
		"instruments": ["ABC", "XYZ"],
		"quantity": "50",
		"halfSpread": "0.5",
		"requoteThreshold": "0.25",
		"minIntervalMillis": 200,
		"priority": 3
	},
	"journal": {"dsn": "postgres://quoter@localhost/quoter"},
	"profiling": {"serverAddress": "http://pyroscope:4040"}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(EnvUsername, "trader")
	t.Setenv(EnvAPIKey, "key-123")
}

func TestLoadValidConfig(t *testing.T) {
	setCredentials(t)
	loaded, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://exchange.example.com", loaded.Exchange.HTTPEndpoint)
	assert.Equal(t, "trader", loaded.Exchange.Username)
	assert.Equal(t, "key-123", loaded.Exchange.APIKey)
	assert.Equal(t, 512, loaded.QueueDepth)

	assert.Equal(t, time.Second, loaded.Rate.Window)
	assert.Equal(t, 30, loaded.Rate.Limit)
	assert.Equal(t, 128, loaded.Rate.QueueDepth)
	assert.True(t, loaded.Rate.DrainOnReconnect)
	assert.Equal(t, 5*time.Second, loaded.Rate.SendTimeout)

	assert.Equal(t, []string{"ABC", "XYZ"}, loaded.Strategy.Instruments)
	assert.Equal(t, "50", loaded.Strategy.Quantity.String())
	assert.Equal(t, "0.25", loaded.Strategy.RequoteThreshold.String())
	assert.Equal(t, 200*time.Millisecond, loaded.Strategy.MinInterval)

	assert.Equal(t, "postgres://quoter@localhost/quoter", loaded.JournalDSN)
	assert.Equal(t, "http://pyroscope:4040", loaded.ProfilingAddr)
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)
	loaded, err := Load(writeConfig(t, `{
		"exchange": {"httpEndpoint": "https://x", "wsEndpoint": "wss://x/ws"},
		"strategy": {"instruments": ["ABC"], "quantity": "1", "halfSpread": "1"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 1024, loaded.QueueDepth)
	assert.Equal(t, 256, loaded.Rate.QueueDepth)
	assert.Zero(t, loaded.Rate.Limit, "missing rate block means unlimited")
	assert.Empty(t, loaded.JournalDSN)
	assert.Empty(t, loaded.ProfilingAddr)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	setCredentials(t)
	cases := []struct {
		name    string
		content string
	}{
		{"not json", `{{`},
		{"missing http endpoint", `{
			"exchange": {"wsEndpoint": "wss://x/ws"},
			"strategy": {"instruments": ["ABC"], "quantity": "1", "halfSpread": "1"}
		}`},
		{"limit without window", `{
			"exchange": {"httpEndpoint": "https://x", "wsEndpoint": "wss://x/ws"},
			"rate": {"limit": 10},
			"strategy": {"instruments": ["ABC"], "quantity": "1", "halfSpread": "1"}
		}`},
		{"no instruments", `{
			"exchange": {"httpEndpoint": "https://x", "wsEndpoint": "wss://x/ws"},
			"strategy": {"quantity": "1", "halfSpread": "1"}
		}`},
		{"zero quantity", `{
			"exchange": {"httpEndpoint": "https://x", "wsEndpoint": "wss://x/ws"},
			"strategy": {"instruments": ["ABC"], "quantity": "0", "halfSpread": "1"}
		}`},
		{"garbage threshold", `{
			"exchange": {"httpEndpoint": "https://x", "wsEndpoint": "wss://x/ws"},
			"strategy": {"instruments": ["ABC"], "quantity": "1", "halfSpread": "1", "requoteThreshold": "abc"}
		}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvAPIKey, "")
	_, err := Load(writeConfig(t, validConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvUsername)

	t.Setenv(EnvUsername, "trader")
	_, err = Load(writeConfig(t, validConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAPIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
