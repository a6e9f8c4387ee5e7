// Package config provides YAML configuration loading with environment variable override.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads a YAML configuration file into the given struct.
// It also applies environment variable overrides using struct tags.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand environment variables in the YAML
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return ApplyEnv(out)
}

// LoadOrDefault tries to load config from path. A missing file keeps the
// values already in out and still applies environment overrides.
func LoadOrDefault(path string, out any) error {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path, out)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat config file %s: %w", path, err)
		}
	}
	return ApplyEnv(out)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv sets struct fields from environment variables.
// It uses the `env` struct tag to determine the env var name; a tag may list
// several names separated by commas, the first one set wins.
func ApplyEnv(v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		// Recurse into struct fields
		if fieldVal.Kind() == reflect.Struct {
			if fieldVal.CanAddr() {
				if err := ApplyEnv(fieldVal.Addr().Interface()); err != nil {
					return err
				}
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" || !fieldVal.CanSet() {
			continue
		}

		name, envVal, ok := lookupAny(strings.Split(envTag, ","))
		if !ok {
			continue
		}

		if err := setField(fieldVal, envVal); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

func lookupAny(names []string) (string, string, bool) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if v, ok := os.LookupEnv(n); ok && v != "" {
			return n, v, true
		}
	}
	return "", "", false
}

func setField(fieldVal reflect.Value, envVal string) error {
	if fieldVal.Type() == durationType {
		d, err := time.ParseDuration(envVal)
		if err != nil {
			return err
		}
		fieldVal.SetInt(int64(d))
		return nil
	}

	switch fieldVal.Kind() {
	case reflect.String:
		fieldVal.SetString(envVal)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(envVal, 10, 64)
		if err != nil {
			return err
		}
		fieldVal.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(envVal, 64)
		if err != nil {
			return err
		}
		fieldVal.SetFloat(f)
	case reflect.Bool:
		fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
	}
	return nil
}
