package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/skills"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	Verbosity    string
	DebounceTime int
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		Verbosity:    "normal",
		DebounceTime: 500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	validVerbosityLevels := []string{"quiet", "normal", "verbose"}
	for _, level := range validVerbosityLevels {
		if c.Verbosity == level {
			goto verbosityValid
		}
	}
	return errors.New(fmt.Sprintf("invalid verbosity level: %s, must be one of: %s", c.Verbosity, strings.Join(validVerbosityLevels, ", ")))

verbosityValid:
	if c.DebounceTime < 0 {
		return errors.New(fmt.Sprintf("debounce time cannot be negative: %d", c.DebounceTime))
	}

	return nil
}

// FileEvent represents a file system event with additional metadata
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the skill library and re-scan on changes",
	Long: `Continuously monitors the skill library and re-scans it whenever bundles
change on disk. Descriptor edits, new bundle folders, and deletions are
picked up without restarting.

Changes are debounced so a burst of writes triggers a single re-scan.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Create a cancellable context that listens for signals
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Get watch config from flags first to configure quiet mode
		config := getWatchConfigFromFlags(cmd)

		// Configure presenter based on verbosity
		presenter.SetQuiet(config.Verbosity == "quiet")

		settings, err := loadSettings()
		if err != nil {
			presenter.Error(err, "Failed to load settings")
			os.Exit(1)
		}
		if !cmd.Flags().Changed("debounce") {
			config.DebounceTime = int(settings.WatchDebounce / time.Millisecond)
		}

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		// Set up signal handling
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("\n[skillet]: Cancellation requested, shutting down...")
			cancel()
		}()

		manager, cleanup, err := newManager(ctx, settings)
		if err != nil {
			presenter.Error(err, "Failed to initialize skill manager")
			os.Exit(1)
		}
		defer cleanup()

		runWatchMode(ctx, manager, config)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().StringP("verbosity", "v", defaults.Verbosity, "Verbosity level (quiet, normal, verbose)")
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	rootCmd.AddCommand(withTracing(watchCmd))
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if verbosity, err := cmd.Flags().GetString("verbosity"); err == nil {
		config.Verbosity = verbosity
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}

	return config
}

func runWatchMode(ctx context.Context, manager *skills.Manager, config *WatchConfig) {
	root := manager.Root()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		presenter.Error(err, "Failed to create file watcher")
		logger.G(ctx).WithError(err).Fatal("Failed to create file watcher")
	}
	defer watcher.Close()

	// Setup debouncing mechanism
	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)

	// Start debouncer goroutine
	go debounceLibraryEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	// Process events
	go func() {
		for {
			select {
			case event, ok := <-debouncedEvents:
				if !ok {
					return
				}
				if config.Verbosity != "quiet" {
					presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
					logger.G(ctx).WithFields(map[string]interface{}{
						"file":      event.Path,
						"operation": event.Op.String(),
						"timestamp": event.Time,
					}).Debug("File change detected")
				}
				reconcileLibrary(ctx, manager, watcher)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Watch for events
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// The root watch dies with the directory; re-arm it once
				// the root reappears
				if event.Name == root && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := rearmRootWatch(ctx, watcher, root); err != nil {
						presenter.Error(err, "Lost watch on skill library root")
						logger.G(ctx).WithError(err).Error("Failed to re-watch skill library root")
						continue
					}
				}
				// Skip editor droppings and other dot files
				if strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// New bundle folders need their own watch so descriptor
				// writes inside them are seen
				if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == root {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := watcher.Add(event.Name); err != nil {
							logger.G(ctx).WithError(err).WithField("directory", event.Name).Debug("Failed to watch new bundle directory")
						}
					}
				}
				events <- FileEvent{
					Path: event.Name,
					Op:   event.Op,
					Time: time.Now(),
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.G(ctx).WithError(err).Error("Error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := watcher.Add(root); err != nil {
		presenter.Error(err, "Failed to watch skill library root")
		logger.G(ctx).WithError(err).Fatal("Failed to watch skill library root")
	}
	if err := addBundleWatches(watcher, root); err != nil {
		presenter.Error(err, "Failed to watch bundle directories")
		logger.G(ctx).WithError(err).Fatal("Failed to watch bundle directories")
	}

	reconcileLibrary(ctx, manager, watcher)

	presenter.Info("Watching skill library for changes... Press Ctrl+C to stop")
	logger.G(ctx).WithField("root", root).Info("File watcher initialized")

	// Wait for context cancellation
	<-ctx.Done()
}

// Debounce file events so a burst of changes triggers a single re-scan
func debounceLibraryEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	var pending *time.Timer

	for {
		select {
		case event, ok := <-input:
			if !ok {
				if pending != nil {
					pending.Stop()
				}
				return
			}
			// Re-arm the timer; only the last event of a burst is reported
			if pending != nil {
				pending.Stop()
			}
			eventCopy := event
			pending = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return
		}
	}
}

// reconcileLibrary re-scans the library and refreshes the per-bundle
// watches so newly created folders are covered on the next change.
func reconcileLibrary(ctx context.Context, manager *skills.Manager, watcher *fsnotify.Watcher) {
	reconciled, err := manager.Reconcile(ctx)
	if err != nil {
		presenter.Error(err, "Failed to reconcile skill library")
		logger.G(ctx).WithError(err).Error("Reconcile failed")
		return
	}

	enabled := 0
	for _, s := range reconciled {
		if s.Enabled {
			enabled++
		}
	}
	presenter.Info(fmt.Sprintf("Library reconciled: %d skill(s), %d enabled", len(reconciled), enabled))

	if err := addBundleWatches(watcher, manager.Root()); err != nil {
		logger.G(ctx).WithError(err).Debug("Failed to refresh bundle watches")
	}
}

func addBundleWatches(watcher *fsnotify.Watcher, root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", root)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := watcher.Add(filepath.Join(root, entry.Name())); err != nil {
			return errors.Wrapf(err, "failed to watch %s", entry.Name())
		}
	}
	return nil
}

func rearmRootWatch(ctx context.Context, watcher *fsnotify.Watcher, root string) error {
	return retry.Do(
		func() error {
			if _, err := os.Stat(root); err != nil {
				return err
			}
			return watcher.Add(root)
		},
		retry.Attempts(10),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("waiting for skill library root to reappear")
		}),
	)
}
