package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/xeipuuv/gojsonschema"
)

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(jsonSchema)
		compiled, compileErr = gojsonschema.NewSchema(loader)
	})
	return compiled, compileErr
}

// Validate checks raw config bytes against the schema without parsing them
// into a Config -- a compile-once, validate-many shape that keeps schema
// compilation off the hot path.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return errs.Newf(errs.Unspecified, "compile config schema: %v", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errs.Newf(errs.InvalidConfig, "validate config: %v", err)
	}
	if !result.Valid() {
		msg := "config failed schema validation"
		if errsList := result.Errors(); len(errsList) > 0 {
			msg = errsList[0].String()
		}
		return errs.New(errs.InvalidConfig, msg)
	}
	return nil
}

// Load reads, size-checks, schema-validates, and parses a configuration
// file from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errs.Newf(errs.FileNotFound, "config file %s not found", path)
		}
		return Config{}, errs.Newf(errs.FileNotSupported, "read config %s: %v", path, err)
	}
	return Parse(data)
}

// Parse validates and decodes raw configuration bytes, enforcing the 12 KB
// size limit placed on the file.
func Parse(data []byte) (Config, error) {
	if len(data) > MaxFileSize {
		return Config{}, errs.Newf(errs.PayloadTooLarge, "config size %d exceeds %d byte limit", len(data), MaxFileSize)
	}
	if err := Validate(data); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errs.Newf(errs.InvalidConfig, "parse config: %v", err)
	}
	return cfg, nil
}

// Write validates cfg, renders it as pretty-printed JSON, and writes it to
// path, refusing to exceed the 12 KB limit.
func Write(path string, cfg Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if len(data) > MaxFileSize {
		return errs.Newf(errs.PayloadTooLarge, "config size %d exceeds %d byte limit", len(data), MaxFileSize)
	}
	if err := Validate(data); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Newf(errs.FileNotSupported, "write config %s: %v", path, err)
	}
	return nil
}
