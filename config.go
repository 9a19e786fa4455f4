package intesismqtt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Setup failures, one per user-visible outcome of the setup flow.
var (
	ErrCannotConnect     = errors.New("intesismqtt: cannot connect")
	ErrInvalidAuth       = errors.New("intesismqtt: invalid auth")
	ErrAlreadyConfigured = errors.New("intesismqtt: already configured")
)

// Config holds the connection settings for one controller.
type Config struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("intesismqtt: host is required")
	}
	if c.Username == "" {
		return fmt.Errorf("intesismqtt: username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("intesismqtt: password is required")
	}
	return nil
}

// ControllerFactory builds a controller for a config. Supplied by the host
// program, since the device-control library lives outside this module.
type ControllerFactory func(Config) Controller

// Entry is one successfully configured controller.
type Entry struct {
	UniqueID   string
	Title      string
	Config     Config
	Controller Controller
}

// ConfigFlow validates controller configs and tracks which controllers are
// already set up, so the same device cannot be added twice.
type ConfigFlow struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewConfigFlow() *ConfigFlow {
	return &ConfigFlow{entries: make(map[string]Entry)}
}

// Setup builds a controller from cfg, checks it answers, and registers it.
// Failures map to ErrInvalidAuth, ErrCannotConnect or ErrAlreadyConfigured;
// anything else is unexpected and returned wrapped.
func (f *ConfigFlow) Setup(ctx context.Context, cfg Config, factory ControllerFactory) (*Entry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	controller := factory(cfg)

	if err := controller.PollStatus(ctx); err != nil {
		switch {
		case errors.Is(err, ErrAuthentication):
			return nil, fmt.Errorf("%w: %v", ErrInvalidAuth, err)
		case errors.Is(err, ErrConnection):
			return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
		default:
			log.Errorf("unexpected error during setup: %v", err)
			return nil, fmt.Errorf("intesismqtt: setup failed: %w", err)
		}
	}

	uniqueID := strings.ToLower(controller.DeviceType() + "_" + controller.ControllerID())

	f.mu.Lock()
	if _, exists := f.entries[uniqueID]; exists {
		f.mu.Unlock()
		_ = controller.Stop(ctx)
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConfigured, uniqueID)
	}

	entry := Entry{
		UniqueID:   uniqueID,
		Title:      controller.DeviceType() + " " + controller.Name(),
		Config:     cfg,
		Controller: controller,
	}
	f.entries[uniqueID] = entry
	f.mu.Unlock()

	log.Infof("configured %s", entry.Title)
	return &entry, nil
}

// Entries lists configured controllers in stable order.
func (f *ConfigFlow) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.entries[id])
	}
	return out
}

// Remove unregisters an entry, reporting whether it existed.
func (f *ConfigFlow) Remove(uniqueID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.entries[uniqueID]
	delete(f.entries, uniqueID)
	return ok
}
