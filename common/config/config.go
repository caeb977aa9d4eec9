package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// settings holds the raw process environment, plus values merged from .env files.
var settings = make(map[string]string)

// parsed caches typed conversions keyed by "<kind>:<key>".
var parsed = make(map[string]interface{})

var mu sync.RWMutex

func init() {
	for _, entry := range os.Environ() {
		if idx := strings.IndexByte(entry, '='); idx > 0 {
			settings[entry[:idx]] = entry[idx+1:]
		}
	}
}

// LoadDotEnv merges the given dotenv files into the settings. Keys already present in the
// process environment are kept. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		mu.Lock()
		for k, v := range values {
			if _, exists := settings[k]; !exists {
				settings[k] = v
				os.Setenv(k, v)
			}
		}
		mu.Unlock()
	}
	return nil
}

func lookup[T any](kind, key string, parse func(string) (T, error), def []T) T {
	cacheKey := kind + ":" + key
	mu.RLock()
	if v, ok := parsed[cacheKey]; ok {
		mu.RUnlock()
		return v.(T)
	}
	raw, exists := settings[key]
	mu.RUnlock()

	if !exists {
		if len(def) == 0 {
			panic(fmt.Errorf("setting %s does not exist", key))
		}
		return def[0]
	}
	val, err := parse(raw)
	if err != nil {
		panic(fmt.Errorf("failed to parse %s for setting %s, err=%w", kind, key, err))
	}
	mu.Lock()
	parsed[cacheKey] = val
	mu.Unlock()
	return val
}

// GetString returns a setting in string.
func GetString(key string, def ...string) string {
	return lookup("string", key, func(s string) (string, error) { return s, nil }, def)
}

// GetBool returns a setting in bool.
func GetBool(key string, def ...bool) bool {
	return lookup("bool", key, strconv.ParseBool, def)
}

// GetInt returns a setting in integer.
func GetInt(key string, def ...int) int {
	return lookup("int", key, func(s string) (int, error) {
		v, err := strconv.ParseInt(s, 0, 32)
		return int(v), err
	}, def)
}

// GetInt64 returns a setting in int64.
func GetInt64(key string, def ...int64) int64 {
	return lookup("int64", key, func(s string) (int64, error) {
		return strconv.ParseInt(s, 0, 64)
	}, def)
}

// GetDuration returns a setting in time.Duration. Plain integers are read as milliseconds,
// anything else goes through time.ParseDuration.
func GetDuration(key string, def ...time.Duration) time.Duration {
	return lookup("duration", key, func(s string) (time.Duration, error) {
		if ms, err := strconv.ParseUint(s, 0, 32); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		return time.ParseDuration(s)
	}, def)
}

// SetString overrides a setting.
func SetString(key string, value string) {
	mu.Lock()
	settings[key] = value
	for k := range parsed {
		if strings.HasSuffix(k, ":"+key) {
			delete(parsed, k)
		}
	}
	mu.Unlock()
}
