// Package config loads and resolves agent-brain's YAML configuration,
// generalizing the teacher's internal/config (YAML + gopkg.in/yaml.v3,
// env-var overrides, project-root discovery) to spec.md section 6's
// resolution order and schema.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete agent-brain configuration (spec.md section 6).
type Config struct {
	Server        ServerConfig   `yaml:"server" json:"server"`
	Project       ProjectConfig  `yaml:"project" json:"project"`
	Embedding     ProviderConfig `yaml:"embedding" json:"embedding"`
	Summarization ProviderConfig `yaml:"summarization" json:"summarization"`
	Reranker      ProviderConfig `yaml:"reranker" json:"reranker"`
	Query         QueryConfig    `yaml:"query" json:"query"`
	Queue         QueueConfig    `yaml:"queue" json:"queue"`
	Graph         GraphConfig    `yaml:"graph" json:"graph"`
	Storage       StorageConfig  `yaml:"storage" json:"storage"`
}

// StorageConfig selects and configures the chunk storage backend (spec.md
// section 4.3): "columnar" is the embedded default, "relational" points
// at an external Postgres+pgvector instance via ConnString.
type StorageConfig struct {
	Backend    string `yaml:"backend" json:"backend"` // "columnar" or "relational"
	ConnString string `yaml:"conn_string,omitempty" json:"conn_string,omitempty"`
}

// ServerConfig configures the HTTP server and its self-reported address.
type ServerConfig struct {
	URL      string `yaml:"url" json:"url"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	AutoPort bool   `yaml:"auto_port" json:"auto_port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// ProjectConfig locates the per-project state directory (spec.md
// section 4's "Ownership" paragraph).
type ProjectConfig struct {
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

// ProviderConfig is the shared shape for embedding/summarization/reranker
// providers: a name, a model, optional credentials, an optional base URL
// for self-hosted endpoints, and a bag of provider-specific params.
type ProviderConfig struct {
	Provider  string         `yaml:"provider" json:"provider"`
	Model     string         `yaml:"model" json:"model"`
	APIKey    string         `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyEnv string         `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	BaseURL   string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// ResolvedAPIKey returns APIKey if set, otherwise the value of the
// environment variable named by APIKeyEnv.
func (p ProviderConfig) ResolvedAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// QueryConfig holds the query fusion pipeline's default parameters
// (spec.md section 6's query request body table), used whenever a request
// omits a field.
type QueryConfig struct {
	TopK                int     `yaml:"top_k" json:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	Alpha               float64 `yaml:"alpha" json:"alpha"`
}

// QueueConfig holds the job queue and worker's tunables (spec.md
// sections 4.6/4.7).
type QueueConfig struct {
	MaxQueueSize               int `yaml:"max_queue_size" json:"max_queue_size"`
	MaxRuntimeSeconds          int `yaml:"max_runtime_seconds" json:"max_runtime_seconds"`
	ProgressCheckpointInterval int `yaml:"progress_checkpoint_interval" json:"progress_checkpoint_interval"`
	CompactThreshold           int `yaml:"compact_threshold" json:"compact_threshold"`
}

// GraphConfig toggles the knowledge graph extractor/store (spec.md
// section 4.5). Disabling it is what makes mode=graph return a 400.
type GraphConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Backend string `yaml:"backend" json:"backend"`
}

const envConfigPath = "AGENT_BRAIN_CONFIG"

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:      "http://127.0.0.1:8000",
			Host:     "127.0.0.1",
			Port:     8000,
			AutoPort: false,
			LogLevel: "info",
		},
		Project: ProjectConfig{
			StateDir: ".claude/agent-brain",
		},
		Embedding: ProviderConfig{
			Provider: "", // empty triggers provider auto-detection
		},
		Summarization: ProviderConfig{
			Provider: "",
		},
		Reranker: ProviderConfig{
			Provider: "",
		},
		Query: QueryConfig{
			TopK:                5,
			SimilarityThreshold: 0.7,
			Alpha:               0.5,
		},
		Queue: QueueConfig{
			MaxQueueSize:               100,
			MaxRuntimeSeconds:          7200,
			ProgressCheckpointInterval: 50,
			CompactThreshold:           100,
		},
		Graph: GraphConfig{
			Enabled: true,
			Backend: "map",
		},
		Storage: StorageConfig{
			Backend: "columnar",
		},
	}
}

// candidatePaths returns the resolution order of spec.md section 6: env
// var, ./agent-brain.yaml, the nearest ancestor's
// .claude/agent-brain/config.yaml, $HOME/.agent-brain/config.yaml,
// $HOME/.config/agent-brain/config.yaml. dir is the starting directory for
// the ancestor search (typically the project root or cwd).
func candidatePaths(dir string) []string {
	var paths []string
	if v := os.Getenv(envConfigPath); v != "" {
		paths = append(paths, v)
	}
	paths = append(paths, filepath.Join(dir, "agent-brain.yaml"))
	if ancestor, ok := findAncestorConfig(dir); ok {
		paths = append(paths, ancestor)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".agent-brain", "config.yaml"))
		paths = append(paths, filepath.Join(home, ".config", "agent-brain", "config.yaml"))
	}
	return paths
}

// findAncestorConfig walks upward from dir looking for
// "<ancestor>/.claude/agent-brain/config.yaml".
func findAncestorConfig(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(abs, ".claude", "agent-brain", "config.yaml")
		if fileExists(candidate) {
			return candidate, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

// Load resolves configuration for a project rooted at dir: the first
// candidate path that exists is loaded over the defaults, then environment
// variable overrides are applied, then the result is validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	for _, path := range candidatePaths(dir) {
		if !fileExists(path) {
			continue
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		break
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML loads path and merges its non-zero fields onto c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's non-zero-valued fields onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Server.URL != "" {
		c.Server.URL = other.Server.URL
	}
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.AutoPort {
		c.Server.AutoPort = other.Server.AutoPort
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Project.StateDir != "" {
		c.Project.StateDir = other.Project.StateDir
	}

	mergeProvider(&c.Embedding, other.Embedding)
	mergeProvider(&c.Summarization, other.Summarization)
	mergeProvider(&c.Reranker, other.Reranker)

	if other.Query.TopK != 0 {
		c.Query.TopK = other.Query.TopK
	}
	if other.Query.SimilarityThreshold != 0 {
		c.Query.SimilarityThreshold = other.Query.SimilarityThreshold
	}
	if other.Query.Alpha != 0 {
		c.Query.Alpha = other.Query.Alpha
	}

	if other.Queue.MaxQueueSize != 0 {
		c.Queue.MaxQueueSize = other.Queue.MaxQueueSize
	}
	if other.Queue.MaxRuntimeSeconds != 0 {
		c.Queue.MaxRuntimeSeconds = other.Queue.MaxRuntimeSeconds
	}
	if other.Queue.ProgressCheckpointInterval != 0 {
		c.Queue.ProgressCheckpointInterval = other.Queue.ProgressCheckpointInterval
	}
	if other.Queue.CompactThreshold != 0 {
		c.Queue.CompactThreshold = other.Queue.CompactThreshold
	}

	// Graph.Enabled defaults to true and a parsed false is indistinguishable
	// from an absent field, so the graph section overrides it only when it
	// also names a backend; "enabled: false" without a backend leaves the
	// default in place.
	if other.Graph.Backend != "" {
		c.Graph.Enabled = other.Graph.Enabled
		c.Graph.Backend = other.Graph.Backend
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.ConnString != "" {
		c.Storage.ConnString = other.Storage.ConnString
	}
}

func mergeProvider(dst *ProviderConfig, src ProviderConfig) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.APIKeyEnv != "" {
		dst.APIKeyEnv = src.APIKeyEnv
	}
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if len(src.Params) > 0 {
		if dst.Params == nil {
			dst.Params = make(map[string]any, len(src.Params))
		}
		for k, v := range src.Params {
			dst.Params[k] = v
		}
	}
}

// applyEnvOverrides applies AGENT_BRAIN_* overrides, the highest-precedence
// layer per spec.md section 6.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENT_BRAIN_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("AGENT_BRAIN_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("AGENT_BRAIN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("AGENT_BRAIN_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("AGENT_BRAIN_STATE_DIR"); v != "" {
		c.Project.StateDir = v
	}

	if v := os.Getenv("AGENT_BRAIN_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("AGENT_BRAIN_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("AGENT_BRAIN_SUMMARIZATION_PROVIDER"); v != "" {
		c.Summarization.Provider = v
	}
	if v := os.Getenv("AGENT_BRAIN_RERANKER_PROVIDER"); v != "" {
		c.Reranker.Provider = v
	}

	if v := os.Getenv("AGENT_BRAIN_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Query.TopK = k
		}
	}
	if v := os.Getenv("AGENT_BRAIN_SIMILARITY_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t >= 0 && t <= 1 {
			c.Query.SimilarityThreshold = t
		}
	}
	if v := os.Getenv("AGENT_BRAIN_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil && a >= 0 && a <= 1 {
			c.Query.Alpha = a
		}
	}

	if v := os.Getenv("AGENT_BRAIN_MAX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Queue.MaxQueueSize = n
		}
	}
	if v := os.Getenv("AGENT_BRAIN_ENABLE_GRAPH"); v != "" {
		c.Graph.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("AGENT_BRAIN_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("AGENT_BRAIN_STORAGE_CONN_STRING"); v != "" {
		c.Storage.ConnString = v
	}
}

// Validate checks the configuration for internal consistency, returning a
// descriptive error for the first problem found.
func (c *Config) Validate() error {
	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k must be positive, got %d", c.Query.TopK)
	}
	if c.Query.SimilarityThreshold < 0 || c.Query.SimilarityThreshold > 1 {
		return fmt.Errorf("query.similarity_threshold must be between 0 and 1, got %f", c.Query.SimilarityThreshold)
	}
	if c.Query.Alpha < 0 || c.Query.Alpha > 1 {
		return fmt.Errorf("query.alpha must be between 0 and 1, got %f", c.Query.Alpha)
	}
	if c.Queue.MaxQueueSize <= 0 {
		return fmt.Errorf("queue.max_queue_size must be positive, got %d", c.Queue.MaxQueueSize)
	}
	if c.Queue.MaxRuntimeSeconds <= 0 {
		return fmt.Errorf("queue.max_runtime_seconds must be positive, got %d", c.Queue.MaxRuntimeSeconds)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be one of debug/info/warn/error, got %s", c.Server.LogLevel)
	}
	if c.Storage.Backend != "columnar" && c.Storage.Backend != "relational" {
		return fmt.Errorf("storage.backend must be columnar or relational, got %s", c.Storage.Backend)
	}
	if c.Storage.Backend == "relational" && c.Storage.ConnString == "" {
		return fmt.Errorf("storage.conn_string is required when storage.backend is relational")
	}
	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the user/global configuration path, following
// XDG Base Directory conventions, matching the teacher's precedent.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agent-brain", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "agent-brain", "config.yaml")
	}
	return filepath.Join(home, ".config", "agent-brain", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// FindProjectRoot walks upward from startDir looking for a .git directory
// or an agent-brain.yaml file, matching the teacher's FindProjectRoot.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, "agent-brain.yaml")) {
			return currentDir, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
