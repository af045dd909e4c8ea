// Package memory implements the durable key/value store of preferences,
// environment facts, repeated decisions, and timestamped discovered facts
// that survive across runs.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Decision is a recorded repeated decision, keyed by category then key.
type Decision struct {
	Value      any       `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Fact is a timestamped discovered fact, grouped by category.
type Fact struct {
	Fact       string    `json:"fact"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Data is the JSON document persisted to the backing file. Its shape is the
// external wire contract for memory.json and must not change independently
// of SPEC_FULL.md §6.
type Data struct {
	Version            string                         `json:"version"`
	CreatedAt          time.Time                      `json:"created_at"`
	LastUpdated        time.Time                      `json:"last_updated"`
	UserPreferences    map[string]any                 `json:"user_preferences"`
	Environment        map[string]any                 `json:"environment"`
	RepeatedDecisions  map[string]map[string]Decision  `json:"repeated_decisions"`
	Facts              map[string][]Fact               `json:"facts"`
}

// Memory owns one backing file. Every mutation implies a save; persistence
// is best-effort; a failure is returned to the caller to log, never
// treated as fatal by the core.
type Memory struct {
	mu   sync.Mutex
	path string
	data Data
}

// New constructs a Memory backed by path (default "./data/memory.json" is
// the caller's responsibility to supply) and loads any existing contents.
// A missing or unreadable file is not an error; Memory starts empty.
func New(path string) *Memory {
	m := &Memory{
		path: path,
		data: Data{
			Version:           "1",
			CreatedAt:         time.Now(),
			LastUpdated:       time.Now(),
			UserPreferences:   map[string]any{},
			Environment:       map[string]any{},
			RepeatedDecisions: map[string]map[string]Decision{},
			Facts:             map[string][]Fact{},
		},
	}
	_ = m.Load()
	return m
}

// Load re-reads the backing file, shallow-merging its top-level fields into
// the in-memory Data. A missing file is not an error.
func (m *Memory) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("memory: read %s: %w", m.path, err)
	}

	var loaded Data
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("memory: parse %s: %w", m.path, err)
	}

	if loaded.UserPreferences != nil {
		m.data.UserPreferences = loaded.UserPreferences
	}
	if loaded.Environment != nil {
		m.data.Environment = loaded.Environment
	}
	if loaded.RepeatedDecisions != nil {
		m.data.RepeatedDecisions = loaded.RepeatedDecisions
	}
	if loaded.Facts != nil {
		m.data.Facts = loaded.Facts
	}
	if loaded.Version != "" {
		m.data.Version = loaded.Version
	}
	if !loaded.CreatedAt.IsZero() {
		m.data.CreatedAt = loaded.CreatedAt
	}
	return nil
}

// Save updates LastUpdated and rewrites the backing file as a single JSON
// object, indented for human inspection.
func (m *Memory) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Memory) saveLocked() error {
	m.data.LastUpdated = time.Now()

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("memory: create dir: %w", err)
		}
	}

	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode: %w", err)
	}
	if err := os.WriteFile(m.path, raw, 0o644); err != nil {
		return fmt.Errorf("memory: write %s: %w", m.path, err)
	}
	return nil
}

// SetPreference records a user preference and saves.
func (m *Memory) SetPreference(key string, value any) error {
	m.mu.Lock()
	m.data.UserPreferences[key] = value
	m.mu.Unlock()
	return m.Save()
}

// GetPreference returns the preference for key, or (nil, false).
func (m *Memory) GetPreference(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data.UserPreferences[key]
	return v, ok
}

// SetEnvironment records an environment fact and saves.
func (m *Memory) SetEnvironment(key string, value any) error {
	m.mu.Lock()
	m.data.Environment[key] = value
	m.mu.Unlock()
	return m.Save()
}

// GetEnvironment returns the environment value for key, or (nil, false).
func (m *Memory) GetEnvironment(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data.Environment[key]
	return v, ok
}

// RecordDecision records value under category/key with the current time,
// and saves.
func (m *Memory) RecordDecision(category, key string, value any) error {
	m.mu.Lock()
	if m.data.RepeatedDecisions[category] == nil {
		m.data.RepeatedDecisions[category] = map[string]Decision{}
	}
	m.data.RepeatedDecisions[category][key] = Decision{Value: value, RecordedAt: time.Now()}
	m.mu.Unlock()
	return m.Save()
}

// GetDecision returns the recorded decision for category/key, or
// (Decision{}, false).
func (m *Memory) GetDecision(category, key string) (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.data.RepeatedDecisions[category]
	if !ok {
		return Decision{}, false
	}
	d, ok := byKey[key]
	return d, ok
}

// RecordFact appends fact to category's fact list with the current time,
// and saves.
func (m *Memory) RecordFact(category, fact string) error {
	m.mu.Lock()
	m.data.Facts[category] = append(m.data.Facts[category], Fact{Fact: fact, RecordedAt: time.Now()})
	m.mu.Unlock()
	return m.Save()
}

// GetFacts returns the facts for category, or every category's facts when
// category is "".
func (m *Memory) GetFacts(category string) map[string][]Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	if category != "" {
		if facts, ok := m.data.Facts[category]; ok {
			return map[string][]Fact{category: append([]Fact(nil), facts...)}
		}
		return map[string][]Fact{}
	}
	out := make(map[string][]Fact, len(m.data.Facts))
	for k, v := range m.data.Facts {
		out[k] = append([]Fact(nil), v...)
	}
	return out
}

// ToContext renders a short, budget-bounded summary of memory for inclusion
// in Planner/Responder prompts: preferences, environment, and the last
// three facts per category. Returns "(No memory yet)" when nothing has been
// recorded.
func (m *Memory) ToContext(maxChars int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.data.UserPreferences) == 0 && len(m.data.Environment) == 0 && len(m.data.Facts) == 0 {
		return "(No memory yet)"
	}

	var b strings.Builder
	if len(m.data.UserPreferences) > 0 {
		b.WriteString("User Preferences:\n")
		for _, k := range sortedKeys(m.data.UserPreferences) {
			fmt.Fprintf(&b, "  %s: %v\n", k, m.data.UserPreferences[k])
		}
	}
	if len(m.data.Environment) > 0 {
		b.WriteString("Environment:\n")
		for _, k := range sortedKeys(m.data.Environment) {
			fmt.Fprintf(&b, "  %s: %v\n", k, m.data.Environment[k])
		}
	}
	if len(m.data.Facts) > 0 {
		b.WriteString("Known Facts:\n")
		for _, category := range sortedFactKeys(m.data.Facts) {
			facts := m.data.Facts[category]
			start := len(facts) - 3
			if start < 0 {
				start = 0
			}
			fmt.Fprintf(&b, "  %s:\n", category)
			for _, f := range facts[start:] {
				fmt.Fprintf(&b, "    - %s\n", f.Fact)
			}
		}
	}

	out := b.String()
	if maxChars > 0 && len(out) > maxChars {
		out = out[:maxChars] + "\n... (truncated)"
	}
	return out
}

// Clear deletes the backing file and resets in-memory data without saving
// (matching the original's "clear means forget, not re-persist empty"
// semantics).
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("memory: remove %s: %w", m.path, err)
	}
	m.data = Data{
		Version:           "1",
		CreatedAt:         time.Now(),
		LastUpdated:       time.Now(),
		UserPreferences:   map[string]any{},
		Environment:       map[string]any{},
		RepeatedDecisions: map[string]map[string]Decision{},
		Facts:             map[string][]Fact{},
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFactKeys(m map[string][]Fact) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
