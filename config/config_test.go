// vodgrab/config/config_test.go
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vodgrab/config"
	"vodgrab/media"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("VODGRAB_SEGMENT_CONCURRENCY", "")
		t.Setenv("VODGRAB_QUALITY", "")
		t.Setenv("VODGRAB_FF_ENABLE", "")
		t.Setenv("VODGRAB_THROTTLE_FREEDISK", "")

		cfg, err := config.Load(nil)
		require.NoError(t, err)

		assert.Equal(t, ".", cfg.OutputDir)
		assert.Equal(t, "https://www.skill-capped.com", cfg.ProbeBase)
		assert.Equal(t, 10, cfg.SegmentConcurrency)
		assert.Equal(t, 3, cfg.SegmentAttempts)
		assert.Equal(t, time.Second, cfg.SegmentRetryDelay)
		assert.Equal(t, true, cfg.FFEnable)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, 30*time.Minute, cfg.FFTimeout)
		assert.Equal(t, int64(200*1024*1024), cfg.ThrottleFreeDisk)
		assert.Equal(t, int64(0), cfg.ThrottleFreeMem)
		assert.Equal(t, 1, cfg.MaxConcurrency)
		assert.Equal(t, media.DefaultQualityOrder, cfg.QualityOrder)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("VODGRAB_SEGMENT_CONCURRENCY", "4")
		t.Setenv("VODGRAB_QUALITY", "low")
		t.Setenv("VODGRAB_FF_ENABLE", "false")
		t.Setenv("VODGRAB_THROTTLE_FREEDISK", "50MB")
		t.Setenv("VODGRAB_SEGMENT_RETRY_DELAY", "250ms")

		cfg, err := config.Load(nil)
		require.NoError(t, err)

		assert.Equal(t, 4, cfg.SegmentConcurrency)
		assert.Equal(t, false, cfg.FFEnable)
		assert.Equal(t, int64(50*1024*1024), cfg.ThrottleFreeDisk)
		assert.Equal(t, 250*time.Millisecond, cfg.SegmentRetryDelay)
		assert.Equal(t, []media.QualityTier{media.Tier500, media.Tier1500, media.Tier2500, media.Tier4500}, cfg.QualityOrder)
	})

	t.Run("flags win over environment", func(t *testing.T) {
		t.Setenv("VODGRAB_SEGMENT_CONCURRENCY", "4")

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("config", "", "")
		fs.Int("concurrency", 10, "")
		fs.Bool("no-ffmpeg", false, "")
		fs.String("quality", "", "")
		require.NoError(t, fs.Parse([]string{"--concurrency", "2", "--no-ffmpeg", "--quality", "standard"}))

		cfg, err := config.Load(fs)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.SegmentConcurrency)
		assert.False(t, cfg.FFEnable)
		assert.Equal(t, media.Tier2500, cfg.QualityOrder[0])
	})

	t.Run("reads an explicit config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("OUTPUT_DIR: /videos\nPROBE_BASE: http://localhost:9000/\n"), 0o644))

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("config", "", "")
		require.NoError(t, fs.Parse([]string{"--config", path}))

		cfg, err := config.Load(fs)
		require.NoError(t, err)
		assert.Equal(t, "/videos", cfg.OutputDir)
		assert.Equal(t, "http://localhost:9000", cfg.ProbeBase)
	})

	t.Run("rejects an invalid quality order", func(t *testing.T) {
		t.Setenv("VODGRAB_QUALITY", "4500,4500,1500,500")
		_, err := config.Load(nil)
		assert.Error(t, err)
	})
}
