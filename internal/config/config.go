// Package config loads project settings from rtgl.yaml, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rtgl/internal/cache"
	"github.com/roach88/rtgl/internal/publish"
)

// FileName is the project configuration file at the project root.
const FileName = "rtgl.yaml"

// Defaults for settings the file leaves out.
const (
	DefaultOutDir   = "dist/rtgl"
	DefaultCacheDir = ".rtgl/cache"
)

// Environment overrides.
const (
	EnvCacheDriver     = "RTGL_CACHE_DRIVER"
	EnvCacheDSN        = "RTGL_CACHE_DSN"
	EnvPublishEndpoint = "RTGL_PUBLISH_ENDPOINT"
	EnvPublishBucket   = "RTGL_PUBLISH_BUCKET"
	EnvPublishRegion   = "RTGL_PUBLISH_REGION"
	EnvPublishUseSSL   = "RTGL_PUBLISH_USE_SSL"
	EnvPublishAccess   = "RTGL_PUBLISH_ACCESS_KEY"
	EnvPublishSecret   = "RTGL_PUBLISH_SECRET_KEY"
)

// Config is the resolved project configuration.
type Config struct {
	// Root is the project root the file was loaded from.
	Root string `yaml:"-"`

	// Dirs are the component directories, relative to Root.
	Dirs []string `yaml:"dirs"`

	// OutDir receives artifact.json, relative to Root.
	OutDir string `yaml:"outDir"`

	Cache   CacheConfig   `yaml:"cache"`
	Policy  PolicyConfig  `yaml:"policy"`
	Release ReleaseConfig `yaml:"release"`
	Publish PublishConfig `yaml:"publish"`
}

// CacheConfig selects the compile cache.
type CacheConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Dir        string `yaml:"dir"`
	MaxEntries int    `yaml:"maxEntries"`
}

// PolicyConfig points at an optional policy pack.
type PolicyConfig struct {
	Path            string `yaml:"path"`
	VerifySignature bool   `yaml:"verifySignature"`
}

// ReleaseConfig locates the release directory.
type ReleaseConfig struct {
	// Dir defaults to OutDir.
	Dir string `yaml:"dir"`
}

// PublishConfig addresses the release bucket. Credentials come only from
// the environment.
type PublishConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	UseSSL   bool   `yaml:"useSSL"`

	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Load reads root/.env (if present) into the process environment, then
// root/rtgl.yaml (if present), then applies environment overrides.
// Variables already set in the environment win over .env.
func Load(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	default:
		// Reject unknown fields so typos surface instead of being ignored.
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}

	cfg.Root = root
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Cache.Driver, EnvCacheDriver)
	set(&c.Cache.DSN, EnvCacheDSN)
	set(&c.Publish.Endpoint, EnvPublishEndpoint)
	set(&c.Publish.Bucket, EnvPublishBucket)
	set(&c.Publish.Region, EnvPublishRegion)
	set(&c.Publish.AccessKey, EnvPublishAccess)
	set(&c.Publish.SecretKey, EnvPublishSecret)

	if raw := strings.TrimSpace(getenv(EnvPublishUseSSL)); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			c.Publish.UseSSL = v
		}
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.OutDir) == "" {
		c.OutDir = DefaultOutDir
	}
	if strings.TrimSpace(c.Cache.Driver) == "" {
		c.Cache.Driver = string(cache.DriverDisk)
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if strings.TrimSpace(c.Release.Dir) == "" {
		c.Release.Dir = c.OutDir
	}
}

// Resolve joins a project-relative path onto Root. Absolute paths are
// returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// CacheOptions converts the cache settings for cache.Open. SQLite DSNs
// and the disk directory are resolved against Root.
func (c *Config) CacheOptions() cache.Options {
	driver := cache.Driver(strings.ToLower(c.Cache.Driver))
	dsn := c.Cache.DSN
	if driver == cache.DriverSQLite {
		if dsn == "" {
			dsn = filepath.Join(DefaultCacheDir, "cache.db")
		}
		dsn = c.Resolve(dsn)
	}
	return cache.Options{
		Driver:     driver,
		Dir:        c.Resolve(c.Cache.Dir),
		DSN:        dsn,
		MaxEntries: c.Cache.MaxEntries,
	}
}

// S3Config converts the publish settings for publish.NewS3Store.
func (c *Config) S3Config() publish.S3Config {
	return publish.S3Config{
		Endpoint:  c.Publish.Endpoint,
		Region:    c.Publish.Region,
		AccessKey: c.Publish.AccessKey,
		SecretKey: c.Publish.SecretKey,
		Bucket:    c.Publish.Bucket,
		UseSSL:    c.Publish.UseSSL,
	}
}
