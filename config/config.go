package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultVersion       = uint32(littlefs.V2)
	DefaultBlockSize     = 512
	DefaultReadSize      = 64
	DefaultProgSize      = 64
	DefaultBlockCycles   = littlefs.DefaultBlockCycles
	DefaultLookaheadSize = littlefs.DefaultLookaheadSize
	DefaultArchiveFormat = "tar"
	DefaultPermissions   = littlefs.DefaultPermissions
	DefaultLogLvl        = util.InfoLevel

	DefaultFsName = "littlefs"
	DefaultName   = "littlefs"
)

// CLI verbosity values. Higher is chattier.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Config contains runtime configuration for the littlefs tools.
type Config struct {
	MountOptions

	LogLvl util.LogLevel

	Version       uint32 // littlefs generation, 1 or 2 (Default 2)
	BlockSize     uint32 // Device block size in bytes (Default 512)
	BlockCount    uint32 // Block count when formatting; 0 derives it from the image size
	ReadSize      uint32 // Minimum read size (Default 64)
	ProgSize      uint32 // Minimum program size (Default 64)
	BlockCycles   int32  // Erase cycles before metadata eviction, v2 only (Default 100)
	CacheSize     uint32 // Cache size, v2 only; 0 means block size
	LookaheadSize uint32 // Lookahead size (Default 128)
	NameMax       uint32 // v2 only; 0 means engine default
	FileMax       uint32 // v2 only; 0 means engine default
	AttrMax       uint32 // v2 only; 0 means engine default

	ArchiveFormat string // tar, tar.gz, tar.zst, tar.lz4 or tar.xz (Default tar)
	Permissions   int64  // Mode recorded for every archived file (Default 0644)

	// FullBlockAccess lets the device accept accesses ending exactly on a
	// block boundary. Needed by engines that read whole blocks into cache.
	FullBlockAccess bool
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl *int `yaml:"verbose,omitempty" json:"verbose,omitempty"` // CLI verbosity 1..5

	FsName *string `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name   *string `yaml:"name,omitempty" json:"name,omitempty"`
	Debug  *bool   `yaml:"fuse_debug,omitempty" json:"fuse_debug,omitempty"`

	AllowOther   *bool   `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	CacheTimeout *uint32 `yaml:"cache_timeout,omitempty" json:"cache_timeout,omitempty"` // seconds

	Version       *uint32 `yaml:"version,omitempty" json:"version,omitempty"`
	BlockSize     *uint32 `yaml:"block_size,omitempty" json:"block_size,omitempty"`
	BlockCount    *uint32 `yaml:"block_count,omitempty" json:"block_count,omitempty"`
	ReadSize      *uint32 `yaml:"read_size,omitempty" json:"read_size,omitempty"`
	ProgSize      *uint32 `yaml:"prog_size,omitempty" json:"prog_size,omitempty"`
	BlockCycles   *int32  `yaml:"block_cycles,omitempty" json:"block_cycles,omitempty"`
	CacheSize     *uint32 `yaml:"cache_size,omitempty" json:"cache_size,omitempty"`
	LookaheadSize *uint32 `yaml:"lookahead_size,omitempty" json:"lookahead_size,omitempty"`
	NameMax       *uint32 `yaml:"name_max,omitempty" json:"name_max,omitempty"`
	FileMax       *uint32 `yaml:"file_max,omitempty" json:"file_max,omitempty"`
	AttrMax       *uint32 `yaml:"attr_max,omitempty" json:"attr_max,omitempty"`

	ArchiveFormat   *string `yaml:"archive_format,omitempty" json:"archive_format,omitempty"`
	Permissions     *int64  `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	FullBlockAccess *bool   `yaml:"full_block_access,omitempty" json:"full_block_access,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
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

// NewConfig returns the defaults with override applied. A nil override yields
// the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = verboseToLogLevel(*override.LogLvl)
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.AllowOther != nil {
		c.AllowOther = *override.AllowOther
	}
	if override.CacheTimeout != nil {
		c.CacheTimeout = time.Duration(*override.CacheTimeout) * time.Second
	}
	if override.Version != nil {
		c.Version = *override.Version
	}
	if override.BlockSize != nil {
		c.BlockSize = *override.BlockSize
	}
	if override.BlockCount != nil {
		c.BlockCount = *override.BlockCount
	}
	if override.ReadSize != nil {
		c.ReadSize = *override.ReadSize
	}
	if override.ProgSize != nil {
		c.ProgSize = *override.ProgSize
	}
	if override.BlockCycles != nil {
		c.BlockCycles = *override.BlockCycles
	}
	if override.CacheSize != nil {
		c.CacheSize = *override.CacheSize
	}
	if override.LookaheadSize != nil {
		c.LookaheadSize = *override.LookaheadSize
	}
	if override.NameMax != nil {
		c.NameMax = *override.NameMax
	}
	if override.FileMax != nil {
		c.FileMax = *override.FileMax
	}
	if override.AttrMax != nil {
		c.AttrMax = *override.AttrMax
	}
	if override.ArchiveFormat != nil {
		c.ArchiveFormat = *override.ArchiveFormat
	}
	if override.Permissions != nil {
		c.Permissions = *override.Permissions
	}
	if override.FullBlockAccess != nil {
		c.FullBlockAccess = *override.FullBlockAccess
	}
}

// verboseToLogLevel maps CLI verbosity (1 quiet .. 5 chatty) onto the internal
// log levels, clamping out of range values.
func verboseToLogLevel(v int) util.LogLevel {
	v = max(ErrorVerbose, min(v, TraceVerbose))
	return util.ErrorLevel - (v - ErrorVerbose)
}

// Tuning returns the engine tuning described by the config.
func (c *Config) Tuning() littlefs.Tuning {
	return littlefs.Tuning{
		ReadSize:      c.ReadSize,
		ProgSize:      c.ProgSize,
		BlockCycles:   c.BlockCycles,
		CacheSize:     c.CacheSize,
		LookaheadSize: c.LookaheadSize,
		NameMax:       c.NameMax,
		FileMax:       c.FileMax,
		AttrMax:       c.AttrMax,
	}
}

// Geometry returns the configured geometry. BlockCount may be 0, meaning the
// caller derives it from the image.
func (c *Config) Geometry() littlefs.Geometry {
	return littlefs.Geometry{BlockSize: c.BlockSize, BlockCount: c.BlockCount}
}

// LittlefsVersion validates and returns the configured generation.
func (c *Config) LittlefsVersion() (littlefs.Version, error) {
	return littlefs.ParseVersion(c.Version)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
