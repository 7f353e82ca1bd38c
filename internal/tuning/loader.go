package tuning

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// EnvPrefix lets DOMAIN_ADMIN_CALLREQUESTLIMIT etc. override the file.
const EnvPrefix = "DOMAIN_ADMIN"

var tuninglog = logf.Log.WithName("tuning")

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("callRequestLimit", d.RequestLimit)
	v.SetDefault("callTimeoutSeconds", d.TimeoutSeconds)
	v.SetDefault("callMaxRetryCount", d.MaxRetryCount)

	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}
	return v
}

func decode(v *viper.Viper) (CallTuning, error) {
	var t CallTuning
	if err := v.Unmarshal(&t); err != nil {
		return CallTuning{}, fmt.Errorf("error unmarshaling call tuning: %w", err)
	}
	t.SetDefaults()
	if err := t.Validate(); err != nil {
		return CallTuning{}, fmt.Errorf("call tuning validation failed: %w", err)
	}
	return t, nil
}

// Load reads the tuning file, publishes it with Set, and returns it.
// An empty path publishes the defaults plus any environment overrides.
func Load(path string) (CallTuning, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return CallTuning{}, fmt.Errorf("failed to read call tuning at %s: %w", path, err)
		}
	}
	t, err := decode(v)
	if err != nil {
		return CallTuning{}, err
	}
	Set(t)
	return t, nil
}

// debounceDelay lets editors finish writing before the file is re-read.
const debounceDelay = 250 * time.Millisecond

// Watch loads the file and keeps publishing new snapshots whenever it changes.
// A change that fails to parse leaves the previous snapshot in place. The
// watcher and its goroutine are released once ctx is done.
func Watch(ctx context.Context, path string) (CallTuning, error) {
	if path == "" {
		return Load(path)
	}
	t, err := Load(path)
	if err != nil {
		return CallTuning{}, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return CallTuning{}, fmt.Errorf("failed to create call tuning watcher: %w", err)
	}
	// 监听目录：编辑器以 rename 方式替换文件时，直接监听文件会丢事件
	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return CallTuning{}, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	logger := tuninglog.WithValues("path", path)
	go func() {
		defer w.Close()

		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()

		for {
			select {
			case ev := <-w.Events:
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if ctx.Err() != nil {
						return
					}
					reload(path, logger)
				})
			case err := <-w.Errors:
				if err != nil {
					logger.Error(err, "call tuning watcher failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return t, nil
}

func reload(path string, logger logr.Logger) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		logger.Error(err, "ignoring unreadable call tuning")
		return
	}
	next, err := decode(v)
	if err != nil {
		logger.Error(err, "ignoring call tuning change")
		return
	}
	prev := Set(next)
	logger.Info("call tuning reloaded", "previous", prev, "current", next)
}
