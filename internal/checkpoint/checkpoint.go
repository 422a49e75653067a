// Package checkpoint persists the entire mutable state of a crawl as one
// JSON document per save, the sole unit of resumability. A snapshot is the
// whole crawl state; restore never sees a partial frontier.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/models"
	"github.com/hojonavi/hojokin-harvester/internal/queue"
)

// ErrNotFound indicates the requested checkpoint id does not exist.
var ErrNotFound = errors.New("checkpoint not found")

// DefaultMaxAge bounds Cleanup when no age is given.
const DefaultMaxAge = 7 * 24 * time.Hour

// State is the crawl frontier portion of a checkpoint.
type State struct {
	VisitedURLs  []string     `json:"visited_urls"`
	QueuedItems  []queue.Item `json:"queued_items"`
	CurrentDepth int          `json:"current_depth"`
}

// Results is the accumulated output portion of a checkpoint.
type Results struct {
	Subsidies []models.ScrapedSubsidy `json:"subsidies"`
	Stats     models.CrawlStats       `json:"stats"`
	Errors    []models.CrawlError     `json:"errors"`
}

// Checkpoint is a full snapshot of one crawl. Restoring it must reproduce
// the queue's pending/visited sets and the engine's counters exactly, or the
// resumed run double-visits and double-counts.
type Checkpoint struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Config    config.Config `json:"config"`
	State     State         `json:"state"`
	Results   Results       `json:"results"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Manager saves and restores checkpoints under a directory, one JSON file
// per checkpoint named <slug(name)>-<base36 timestamp>.json.
type Manager struct {
	dir          string
	saveInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu        sync.Mutex
	autoStop  chan struct{}
	autoDone  chan struct{}
	currentID string
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithSaveInterval changes the auto-save cadence (default 1 minute).
func WithSaveInterval(interval time.Duration) Option {
	return func(m *Manager) { m.saveInterval = interval }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager rooted at dir, creating it if needed.
func NewManager(dir string, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint dir is empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}
	m := &Manager{
		dir:          dir,
		saveInterval: time.Minute,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// NewID derives a checkpoint id from a human name: slug(name) plus the
// current time in base36.
func (m *Manager) NewID(name string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "crawl"
	}
	return slug + "-" + strconv.FormatInt(m.now().UnixMilli(), 36)
}

// Save writes cp to disk, stamping UpdatedAt (and CreatedAt when unset). The
// file is written to a temp path and renamed into place so a crash mid-write
// cannot truncate an existing checkpoint.
func (m *Manager) Save(cp *Checkpoint) error {
	if cp.ID == "" {
		return fmt.Errorf("checkpoint id is empty")
	}
	now := m.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	payload, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	target := m.path(cp.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename checkpoint %s: %w", target, err)
	}
	return nil
}

// Load reads the checkpoint with the given id. JSON timestamps round-trip
// through time.Time, so date fields come back as native values.
func (m *Manager) Load(id string) (*Checkpoint, error) {
	payload, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", id, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// List scans the checkpoint directory, skipping unreadable or corrupt files,
// and returns checkpoints sorted by UpdatedAt descending.
func (m *Manager) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}
	var out []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		cp, err := m.Load(id)
		if err != nil {
			m.logger.Warn("skipping unreadable checkpoint",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes the checkpoint with the given id.
func (m *Manager) Delete(id string) error {
	if err := os.Remove(m.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return nil
}

// Cleanup deletes checkpoints older than maxAge (default 7 days) and
// reports how many were removed.
func (m *Manager) Cleanup(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	checkpoints, err := m.List()
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-maxAge)
	deleted := 0
	for _, cp := range checkpoints {
		if cp.UpdatedAt.After(cutoff) {
			continue
		}
		if err := m.Delete(cp.ID); err != nil {
			m.logger.Warn("cleanup delete failed", zap.String("id", cp.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// StartAutoSave generates an id for name, performs one immediate save, then
// saves again every save interval until StopAutoSave. getState is invoked on
// each tick to snapshot the live crawl.
func (m *Manager) StartAutoSave(getState func() *Checkpoint, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	id := m.NewID(name)
	m.currentID = id
	stop := make(chan struct{})
	done := make(chan struct{})
	m.autoStop = stop
	m.autoDone = done

	save := func() {
		cp := getState()
		if cp == nil {
			return
		}
		cp.ID = id
		cp.Name = name
		if err := m.Save(cp); err != nil {
			m.logger.Error("auto-save failed", zap.String("id", id), zap.Error(err))
		}
	}
	save()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.saveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				save()
			}
		}
	}()
	return id
}

// StopAutoSave halts the auto-save timer. Safe to call when not running.
func (m *Manager) StopAutoSave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.autoStop == nil {
		return
	}
	close(m.autoStop)
	<-m.autoDone
	m.autoStop = nil
	m.autoDone = nil
	m.currentID = ""
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}
