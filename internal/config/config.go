package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/modnet-matting/internal/hub"
)

// Example is a preset input shown in the UI with its own threshold.
type Example struct {
	Name      string `yaml:"name" validate:"required,excludesall=/?#"`
	URL       string `yaml:"url" validate:"required,url"`
	Filename  string `yaml:"filename" validate:"required"`
	Threshold int    `yaml:"threshold" validate:"min=0,max=250"`
}

// Config captures the runtime knobs of the matting service.
type Config struct {
	Port             string    `yaml:"port" validate:"required,numeric"`
	ModelRepo        string    `yaml:"model_repo"`
	ModelFile        string    `yaml:"model_file" validate:"required"`
	ModelURL         string    `yaml:"model_url" validate:"omitempty,url"`
	ModelPath        string    `yaml:"model_path"`
	CacheDir         string    `yaml:"cache_dir" validate:"required"`
	LibraryPath      string    `yaml:"onnxruntime_lib"`
	IntraOpThreads   int       `yaml:"intra_op_threads" validate:"min=0"`
	ReferenceSize    int       `yaml:"reference_size" validate:"min=32"`
	DefaultThreshold int       `yaml:"default_threshold" validate:"min=0,max=250"`
	MaxUploadBytes   int64     `yaml:"max_upload_bytes" validate:"min=1"`
	LogLevel         string    `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
	Preload          bool      `yaml:"preload"`
	Examples         []Example `yaml:"examples" validate:"dive"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Port        string
	ModelPath   string
	CacheDir    string
	LibraryPath string
	LogLevel    string
}

const (
	defaultModelRepo = "nateraw/background-remover-files"
	defaultModelFile = "modnet.onnx"
)

// Default returns the configuration the service runs with when no file is
// given.
func Default() *Config {
	cache := filepath.Join(os.TempDir(), "modnet-matting")
	if dir, err := os.UserCacheDir(); err == nil {
		cache = filepath.Join(dir, "modnet-matting")
	}
	return &Config{
		Port:             "8080",
		ModelRepo:        defaultModelRepo,
		ModelFile:        defaultModelFile,
		CacheDir:         cache,
		ReferenceSize:    512,
		DefaultThreshold: 100,
		MaxUploadBytes:   10 << 20,
		LogLevel:         "info",
		Preload:          true,
		Examples: []Example{
			{
				Name:      "twitter_profile_pic",
				URL:       hub.DatasetURL(defaultModelRepo, "twitter_profile_pic.jpeg"),
				Filename:  "twitter_profile_pic.jpg",
				Threshold: 120,
			},
			{
				Name:      "obama",
				URL:       "https://upload.wikimedia.org/wikipedia/commons/8/8d/President_Barack_Obama.jpg",
				Filename:  "obama.jpg",
				Threshold: 155,
			},
		},
	}
}

// Load reads a Config from YAML on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// ApplyEnv reads PORT, ONNXRUNTIME_LIB and ONNXRUNTIME_THREADS.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Port = port
	}
	if lib := getenv("ONNXRUNTIME_LIB"); lib != "" {
		c.LibraryPath = lib
	}
	if threads := getenv("ONNXRUNTIME_THREADS"); threads != "" {
		if n, err := strconv.Atoi(threads); err == nil {
			c.IntraOpThreads = n
		}
	}
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Port != "" {
		c.Port = o.Port
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
	if o.LibraryPath != "" {
		c.LibraryPath = o.LibraryPath
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.ModelPath == "" && c.ModelURL == "" && c.ModelRepo == "" {
		return errors.New("invalid config: one of model_path, model_url or model_repo is required")
	}
	seen := map[string]bool{}
	for _, ex := range c.Examples {
		if seen[ex.Name] {
			return errors.Errorf("invalid config: duplicate example %q", ex.Name)
		}
		seen[ex.Name] = true
	}
	return nil
}

// ResolvedModelURL is where the network file is downloaded from when no
// local ModelPath is set.
func (c *Config) ResolvedModelURL() string {
	if c.ModelURL != "" {
		return c.ModelURL
	}
	return hub.DatasetURL(c.ModelRepo, c.ModelFile)
}
