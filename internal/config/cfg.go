package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	StorageConfig struct {
		Path string `yaml:"path" sanitize:"path_clean" validate:"required_unless=Temp true"`
		Temp bool   `yaml:"temp"`
	}

	HTTPConfig struct {
		Listen          string        `yaml:"listen" validate:"required,hostname_port"`
		ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
		WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	}

	ImportConfig struct {
		MaxFileSize         int64         `yaml:"max_file_size" validate:"min=1"`
		DownloadTimeout     time.Duration `yaml:"download_timeout" validate:"gte=0"`
		InflateControlFiles bool          `yaml:"inflate_control_files"`
		MaxInflateSize      int64         `yaml:"max_inflate_size" validate:"min=1"`
		TmpDir              string        `yaml:"tmp_dir"`
	}

	ReaderConfig struct {
		PageSize int `yaml:"page_size" validate:"min=100"`
	}

	I18nConfig struct {
		Path        string `yaml:"path"`
		DefaultLang string `yaml:"default_lang" validate:"required"`
		Watch       bool   `yaml:"watch"`
	}

	Config struct {
		Version int           `yaml:"version" validate:"eq=1"`
		Storage StorageConfig `yaml:"storage"`
		HTTP    HTTPConfig    `yaml:"http"`
		Import  ImportConfig  `yaml:"import"`
		Reader  ReaderConfig  `yaml:"reader"`
		I18n    I18nConfig    `yaml:"i18n"`
		Logging LoggingConfig `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields defined above are accepted
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of the expanded configuration template and
// performs validation. An empty path yields the defaults.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates a configuration file from the template.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
