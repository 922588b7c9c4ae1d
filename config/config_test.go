package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	override.LogLvl = util.Pointer(TraceVerbose)
	cfg := NewConfig(override)

	expCfg := &Config{
		MountOptions: MountOptions{
			Debug:        true,
			FsName:       "test_fs",
			Name:         "test_name",
			AllowOther:   true,
			CacheTimeout: 90 * time.Second,
		},
		LogLvl:          util.TraceLevel,
		Version:         *override.Version,
		BlockSize:       *override.BlockSize,
		BlockCount:      *override.BlockCount,
		ReadSize:        *override.ReadSize,
		ProgSize:        *override.ProgSize,
		BlockCycles:     *override.BlockCycles,
		CacheSize:       *override.CacheSize,
		LookaheadSize:   *override.LookaheadSize,
		NameMax:         *override.NameMax,
		FileMax:         *override.FileMax,
		AttrMax:         *override.AttrMax,
		ArchiveFormat:   *override.ArchiveFormat,
		Permissions:     *override.Permissions,
		FullBlockAccess: *override.FullBlockAccess,
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			override := &ConfigOverride{
				LogLvl: &tt.verboseValue,
			}

			cfg := NewConfig(override)

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		Version:   util.Pointer(uint32(1)),
		BlockSize: util.Pointer(uint32(4096)),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.Version = 1
	expCfg.BlockSize = 4096

	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestConfig_DomainValues(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	cfg.BlockCount = 16
	cfg.CacheSize = 128

	assert.Equal(t, littlefs.Geometry{BlockSize: 512, BlockCount: 16}, cfg.Geometry())
	assert.Equal(t, littlefs.Tuning{
		ReadSize:      64,
		ProgSize:      64,
		BlockCycles:   100,
		CacheSize:     128,
		LookaheadSize: 128,
	}, cfg.Tuning())

	v, err := cfg.LittlefsVersion()
	require.NoError(t, err)
	assert.Equal(t, littlefs.V2, v)

	cfg.Version = 3
	_, err = cfg.LittlefsVersion()
	assert.ErrorIs(t, err, littlefs.ErrInvalidConfig)
}

func TestLoadConfigOverrideFile_Valid(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext   string
		build func() (*ConfigOverride, []byte)
	}

	cases := []tc{
		{
			ext: ".yaml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".yml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".json",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := json.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
	}

	for _, c := range cases {
		c := c
		name := "valid" + c.ext
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			override, data := c.build()
			dir := t.TempDir()
			path := filepath.Join(dir, "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

func TestLoadConfigOverrideFile_HandWrittenYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tools.yaml")
	data := "version: 1\nblock_size: 4096\narchive_format: tar.zst\nfull_block_access: true\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), cfg.Version)
	assert.Equal(t, uint32(4096), cfg.BlockSize)
	assert.Equal(t, "tar.zst", cfg.ArchiveFormat)
	assert.True(t, cfg.FullBlockAccess)
	assert.Equal(t, uint32(DefaultReadSize), cfg.ReadSize, "unset fields keep defaults")
}

// TestLoadConfigOverrideFile_NonExistentFile tests error handling
// when trying to load a file that doesn't exist.
func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("block_size: 1"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestNewConfigFromFile_FileError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.json")

	_, err := NewConfigFromFile(path)
	require.Error(t, err)
}

func createDefaultCfg() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName:       DefaultFsName,
			Name:         DefaultName,
			CacheTimeout: DefaultCacheTimeout,
		},
		LogLvl:        DefaultLogLvl,
		Version:       DefaultVersion,
		BlockSize:     DefaultBlockSize,
		ReadSize:      DefaultReadSize,
		ProgSize:      DefaultProgSize,
		BlockCycles:   DefaultBlockCycles,
		LookaheadSize: DefaultLookaheadSize,
		ArchiveFormat: DefaultArchiveFormat,
		Permissions:   DefaultPermissions,
	}
}

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		LogLvl:          util.Pointer(DebugVerbose),
		FsName:          util.Pointer("test_fs"),
		Name:            util.Pointer("test_name"),
		Debug:           util.Pointer(true),
		AllowOther:      util.Pointer(true),
		CacheTimeout:    util.Pointer(uint32(90)),
		Version:         util.Pointer(uint32(1)),
		BlockSize:       util.Pointer(uint32(DefaultBlockSize * 2)),
		BlockCount:      util.Pointer(uint32(32)),
		ReadSize:        util.Pointer(uint32(DefaultReadSize + 1)),
		ProgSize:        util.Pointer(uint32(DefaultProgSize + 1)),
		BlockCycles:     util.Pointer(int32(DefaultBlockCycles + 1)),
		CacheSize:       util.Pointer(uint32(256)),
		LookaheadSize:   util.Pointer(uint32(DefaultLookaheadSize + 1)),
		NameMax:         util.Pointer(uint32(64)),
		FileMax:         util.Pointer(uint32(1 << 20)),
		AttrMax:         util.Pointer(uint32(32)),
		ArchiveFormat:   util.Pointer("tar.gz"),
		Permissions:     util.Pointer(int64(0o600)),
		FullBlockAccess: util.Pointer(true),
	}
}
