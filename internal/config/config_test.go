package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: "9090"
organization:
  current: UNIT_1
  peers:
    - id: UNIT_1
      ip: 192.168.205.108
      endpoint: http://192.168.205.108:9090/api/v1/sync
    - id: UNIT_2
      ip: 192.168.205.104
      endpoint: http://192.168.205.104:9090/api/v1/sync
processing:
  qualities:
    - name: 480p
      height: 480
      bitrate: 1000k
      preset: fast
      crf: 23
    - name: 720p
      height: 720
      bitrate: 2500k
      preset: fast
      crf: 23
share:
  ttl: 72h
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "UNIT_1", cfg.Organization.Current)
	require.Len(t, cfg.Organization.Peers, 2)
	assert.Equal(t, "192.168.205.104", cfg.Organization.Peers[1].IP)

	require.Len(t, cfg.Processing.Qualities, 2)
	assert.Equal(t, "720p", cfg.Processing.Qualities[1].Name)

	assert.Equal(t, 72*time.Hour, cfg.Share.TTL)
	assert.Equal(t, 5, cfg.Share.PoolSize)
	assert.Equal(t, time.Duration(0), cfg.Share.PeerTimeout)
	assert.Equal(t, 60*time.Second, cfg.Reconciler.Interval)
	assert.Equal(t, 3, cfg.Processing.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Processing.Retry.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Processing.Retry.MaxDelay)
	assert.Equal(t, "video-transcoding", cfg.Kafka.Topics.Work)
	assert.Equal(t, "video-transcoding-result", cfg.Kafka.Topics.Result)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.PresignTTL)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", sampleConfig)
	t.Setenv("VSS_SHARE_POOL_SIZE", "9")
	t.Setenv("VSS_SERVER_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Share.PoolSize)
	assert.Equal(t, "7000", cfg.Server.Port)
}

func TestLoadPeersFile(t *testing.T) {
	dir := t.TempDir()
	peers := writeFile(t, dir, "peers.yaml", `
peers:
  - id: UNIT_1
    ip: 10.0.0.1
    endpoint: http://10.0.0.1/api/v1/sync
  - id: UNIT_2
    ip: 10.0.0.2
`)
	path := writeFile(t, dir, "config.yaml", "organization:\n  current: UNIT_2\n  peers_file: "+peers+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Organization.Peers, 2)
	assert.Equal(t, "", cfg.Organization.Peers[1].Endpoint)
	assert.Len(t, cfg.Processing.Qualities, len(DefaultQualities()))
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	bad := *cfg
	bad.Processing.Qualities = append([]Quality{}, cfg.Processing.Qualities...)
	bad.Processing.Qualities = append(bad.Processing.Qualities, Quality{Name: "480p", Height: 480})
	assert.ErrorContains(t, bad.Validate(), "duplicate quality")

	bad = *cfg
	bad.Organization.Current = "UNIT_9"
	assert.ErrorContains(t, bad.Validate(), "not among organization.peers")

	bad = *cfg
	bad.Share.PoolSize = 0
	assert.ErrorContains(t, bad.Validate(), "pool_size")

	bad = *cfg
	bad.Reconciler.Interval = 0
	assert.ErrorContains(t, bad.Validate(), "reconciler.interval")

	bad = *cfg
	bad.Storage.Type = "gcs"
	assert.ErrorContains(t, bad.Validate(), "storage.type")
}

func TestResolvePath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultConfigPath, ResolvePath(""))

	t.Setenv("CONFIG_PATH", "/etc/vss.yaml")
	assert.Equal(t, "/etc/vss.yaml", ResolvePath(""))
	assert.Equal(t, "/tmp/x.yaml", ResolvePath("/tmp/x.yaml"))
}
