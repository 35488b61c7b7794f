// Package config loads llm2fs settings from a file, the environment and
// defaults.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/llm2fs/internal/audit"
	"github.com/sokinpui/llm2fs/internal/fs"
	"github.com/sokinpui/llm2fs/internal/marker"
)

// FileNames are the config files looked up in the working directory, in order.
var FileNames = []string{".llm2fs.yaml", ".llm2fs.yml", ".llm2fs.json", ".llm2fs.hcl"}

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "LLM2FS_"

// Config holds every setting of a run.
type Config struct {
	Threshold float64
	FailFast  bool
	DryRun    bool
	AuditDir  string
	NoAudit   bool
	Protected []string
	NoNvim    bool
	Plain     bool
	Debug     bool
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Threshold: marker.DefaultThreshold,
		AuditDir:  audit.DefaultDir,
		Protected: append([]string(nil), fs.DefaultProtected...),
	}
}

// fileConfig is the on-disk shape. Unset fields keep the current value.
type fileConfig struct {
	Threshold *float64 `json:"threshold" yaml:"threshold" hcl:"threshold,optional"`
	FailFast  *bool    `json:"fail_fast" yaml:"fail_fast" hcl:"fail_fast,optional"`
	DryRun    *bool    `json:"dry_run" yaml:"dry_run" hcl:"dry_run,optional"`
	AuditDir  *string  `json:"audit_dir" yaml:"audit_dir" hcl:"audit_dir,optional"`
	NoAudit   *bool    `json:"no_audit" yaml:"no_audit" hcl:"no_audit,optional"`
	Protected []string `json:"protected" yaml:"protected" hcl:"protected,optional"`
	NoNvim    *bool    `json:"no_nvim" yaml:"no_nvim" hcl:"no_nvim,optional"`
	Plain     *bool    `json:"plain" yaml:"plain" hcl:"plain,optional"`
	Debug     *bool    `json:"debug" yaml:"debug" hcl:"debug,optional"`
}

func (f *fileConfig) applyTo(cfg *Config) {
	setFloat(&cfg.Threshold, f.Threshold)
	setBool(&cfg.FailFast, f.FailFast)
	setBool(&cfg.DryRun, f.DryRun)
	if f.AuditDir != nil {
		cfg.AuditDir = *f.AuditDir
	}
	setBool(&cfg.NoAudit, f.NoAudit)
	if f.Protected != nil {
		cfg.Protected = f.Protected
	}
	setBool(&cfg.NoNvim, f.NoNvim)
	setBool(&cfg.Plain, f.Plain)
	setBool(&cfg.Debug, f.Debug)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Find returns the first config file present in dir, or "" if none exists.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadFile applies the config file at path to cfg. The format follows the
// file extension.
func LoadFile(ctx context.Context, cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Errorf("reading config file: %w", err)
	}

	var fc *fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		fc, err = loadJSON(data)
	case ".yaml", ".yml":
		fc, err = loadYAML(data)
	case ".hcl":
		fc, err = loadHCL(data, path)
	default:
		return errors.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return errors.Errorf("loading %s: %w", path, err)
	}

	fc.applyTo(cfg)
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("config file loaded")
	return nil
}

func loadJSON(data []byte) (*fileConfig, error) {
	var fc fileConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &fc, nil
}

func loadYAML(data []byte) (*fileConfig, error) {
	var fc fileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &fc, nil
}

func loadHCL(data []byte, filename string) (*fileConfig, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"default_threshold": cty.NumberFloatVal(marker.DefaultThreshold),
		},
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &fc); diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return &fc, nil
}

// ApplyEnv applies LLM2FS_* variables to cfg. Values from dotenv, when that
// file exists, are used only for variables not already set in the process
// environment.
func ApplyEnv(cfg *Config, dotenv string) error {
	fromFile := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Errorf("reading %s: %w", dotenv, err)
		}
		if vars != nil {
			fromFile = vars
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := fromFile[EnvPrefix+key]
		return v, ok
	}
	return applyLookup(cfg, lookup)
}

func applyLookup(cfg *Config, lookup func(string) (string, bool)) error {
	bools := map[string]*bool{
		"FAIL_FAST": &cfg.FailFast,
		"DRY_RUN":   &cfg.DryRun,
		"NO_AUDIT":  &cfg.NoAudit,
		"NO_NVIM":   &cfg.NoNvim,
		"PLAIN":     &cfg.Plain,
		"DEBUG":     &cfg.Debug,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}

	if v, ok := lookup("THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Errorf("%sTHRESHOLD: %w", EnvPrefix, err)
		}
		cfg.Threshold = f
	}
	if v, ok := lookup("AUDIT_DIR"); ok && v != "" {
		cfg.AuditDir = v
	}
	if v, ok := lookup("PROTECTED"); ok {
		cfg.Protected = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Protected = append(cfg.Protected, p)
			}
		}
	}
	return nil
}

// Validate checks the settings for values that cannot work.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return errors.Errorf("threshold must be in (0, 1], got %v", c.Threshold)
	}
	if !c.NoAudit && strings.TrimSpace(c.AuditDir) == "" {
		return errors.New("audit directory must not be empty")
	}
	for _, p := range c.Protected {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid protected pattern %q", p)
		}
	}
	return nil
}
