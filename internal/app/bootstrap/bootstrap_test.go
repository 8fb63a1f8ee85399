package bootstrap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/slotwatch/internal/config"
	"github.com/wolfman30/slotwatch/internal/reminders"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

func testConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	return &appconfig.Config{
		PortalUsername:      "user",
		PortalPassword:      "pass",
		LoginBaseURL:        "https://login.example.test",
		AppBaseURL:          "https://app.example.test",
		APIBaseURL:          "https://api.example.test",
		PollCycles:          2,
		RegionID:            202,
		LedgerBackend:       "file",
		LedgerPath:          filepath.Join(t.TempDir(), "doctor_data.json"),
		LedgerThreshold:     3,
		NotificationChannel: "telegram",
		AWSRegion:           "eu-central-1",
	}
}

func TestBuildLedgerFile(t *testing.T) {
	cfg := testConfig(t)
	p, cleanup, err := BuildLedger(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &reminders.FileStore{}, p)
}

func TestBuildLedgerRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.LedgerBackend = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.RedisLedgerKey = "test:ledger"

	p, cleanup, err := BuildLedger(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &reminders.RedisStore{}, p)
}

func TestBuildLedgerRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.LedgerBackend = "redis"
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	_, _, err := BuildLedger(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "redis ledger unavailable")
}

func TestBuildLedgerAWSBackends(t *testing.T) {
	for backend, want := range map[string]any{
		"s3":       &reminders.S3Store{},
		"dynamodb": &reminders.DynamoStore{},
	} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.LedgerBackend = backend
			cfg.LedgerBucket = "slotwatch"
			cfg.LedgerTable = "slotwatch_ledger"
			cfg.LedgerItemID = "default"
			cfg.AWSAccessKeyID = "test"
			cfg.AWSSecretAccessKey = "test"
			cfg.AWSEndpointOverride = "http://localhost:4566"

			p, cleanup, err := BuildLedger(context.Background(), cfg, logging.Discard())
			require.NoError(t, err)
			defer cleanup()
			assert.IsType(t, want, p)
		})
	}
}

func TestBuildLedgerUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.LedgerBackend = "etcd"
	_, _, err := BuildLedger(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown ledger backend")

	_, _, err = BuildLedger(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestBuildDispatcherRegistersConfiguredTransports(t *testing.T) {
	cfg := testConfig(t)
	cfg.TelegramBotToken = "tok"
	cfg.TelegramChatID = "chat"
	cfg.GotifyURL = "https://gotify.example.test"
	cfg.GotifyToken = "app"
	cfg.PushoverToken = "only-token"

	d := BuildDispatcher(context.Background(), cfg, logging.Discard(), nil)
	assert.Equal(t, []string{"gotify", "log", "telegram"}, d.Names())
}

func TestBuildDispatcherSendGrid(t *testing.T) {
	cfg := testConfig(t)
	cfg.SendGridAPIKey = "SG.key"
	cfg.SendGridFromEmail = "bot@example.com"
	cfg.NotifyEmailTo = "me@example.com"

	d := BuildDispatcher(context.Background(), cfg, logging.Discard(), nil)
	assert.Contains(t, d.Names(), "sendgrid")
}

func TestBuildRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.JobsFile = filepath.Join(t.TempDir(), "missing.csv")

	var out bytes.Buffer
	rt, err := BuildRuntime(context.Background(), cfg, logging.Discard(), &out, nil)
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Loop)
	// No jobs: the cycle finishes without contacting the portal.
	require.NoError(t, rt.Loop.RunCycle(context.Background()))

	families, err := rt.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuildRuntimeRequiresConfig(t *testing.T) {
	_, err := BuildRuntime(context.Background(), nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestAuthConfig(t *testing.T) {
	cfg := testConfig(t)
	a := AuthConfig(cfg)
	assert.Equal(t, "https://login.example.test", a.LoginBaseURL)
	assert.Equal(t, "https://app.example.test", a.AppBaseURL)
}
