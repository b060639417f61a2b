package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PedroOSilv/meetResume/internal/retry"
)

// Config represents the complete configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Session       SessionConfig       `yaml:"session"`
	Store         StoreConfig         `yaml:"store"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Logging       LoggingConfig       `yaml:"logging"`
	Client        ClientConfig        `yaml:"client"`
}

// ServerConfig contains HTTP API server configuration
type ServerConfig struct {
	Address         string `yaml:"address"`
	Port            int    `yaml:"port"`
	ReadTimeout     int    `yaml:"read_timeout"`     // seconds
	WriteTimeout    int    `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
	UploadDir       string `yaml:"upload_dir"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	Language        string `yaml:"language"`
	Environment     string `yaml:"environment"` // development or production
}

// AuthConfig contains bearer token authentication
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	Tokens  []string `yaml:"tokens"`
}

// SessionConfig contains session lifecycle parameters
type SessionConfig struct {
	IdleTimeout   int `yaml:"idle_timeout"`   // seconds
	SweepInterval int `yaml:"sweep_interval"` // seconds
}

// StoreConfig selects where live sessions are kept
type StoreConfig struct {
	Backend  string `yaml:"backend"` // memory or redis
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTL      int    `yaml:"ttl"` // seconds, 0 keeps keys until finalize or sweep
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Provider      string `yaml:"provider"` // openai or http
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	RetryDelay    int    `yaml:"retry_delay"` // milliseconds, multiplied by the attempt number
	MaxConcurrent int    `yaml:"max_concurrent"`
	OutputFormat  string `yaml:"output_format"`
}

// SummarizationConfig contains chat model configuration for the final analysis
type SummarizationConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
	Timeout      int     `yaml:"timeout"` // seconds
	SystemPrompt string  `yaml:"system_prompt"`
	MaxRetries   int     `yaml:"max_retries"`
	RetryDelay   int     `yaml:"retry_delay"` // milliseconds
}

// AssistantConfig contains the live objection assistant settings
type AssistantConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Model         string  `yaml:"model"`
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

// ArchiveConfig contains the finished session archive settings
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ClientConfig contains recorder configuration
type ClientConfig struct {
	ServerURL       string         `yaml:"server_url"`
	Token           string         `yaml:"token"`
	ChunkInterval   int            `yaml:"chunk_interval"` // milliseconds
	SampleRate      int            `yaml:"sample_rate"`
	FFmpegPath      string         `yaml:"ffmpeg_path"`
	Sources         []SourceConfig `yaml:"sources"`
	Mixer           MixerConfig    `yaml:"mixer"`
	Silence         SilenceConfig  `yaml:"silence"`
	Upload          UploadConfig   `yaml:"upload"`
	PendingWait     int            `yaml:"pending_wait"`       // seconds
	FinalizeTimeout int            `yaml:"finalize_timeout"`   // seconds
	Heartbeat       int            `yaml:"heartbeat_interval"` // seconds
	Assistant       bool           `yaml:"assistant"`
}

// SourceConfig describes one capture device
type SourceConfig struct {
	Name   string  `yaml:"name"`
	Format string  `yaml:"format"` // ffmpeg input format: pulse, alsa, avfoundation, dshow
	Device string  `yaml:"device"`
	Gain   float32 `yaml:"gain"`
}

// MixerConfig contains the dual-source compressor parameters
type MixerConfig struct {
	Threshold float32 `yaml:"threshold"`
	Ratio     float32 `yaml:"ratio"`
}

// SilenceConfig controls dropping of silent segments before upload
type SilenceConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Threshold  float32 `yaml:"threshold"`
	WindowSize int     `yaml:"window_size"` // samples
}

// UploadConfig contains chunk upload parameters
type UploadConfig struct {
	Timeout       int `yaml:"timeout"` // seconds
	MaxRetries    int `yaml:"max_retries"`
	RetryDelay    int `yaml:"retry_delay"` // milliseconds
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Load reads the configuration file, expands ${VAR} references and applies
// defaults. Section validation is left to the caller.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: logging config: %w", err)
	}

	return config, nil
}

// Parse decodes YAML after environment expansion and applies defaults
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	s := &c.Server
	if s.Address == "" {
		s.Address = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 3001
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 60
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 420
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30
	}
	if s.UploadDir == "" {
		s.UploadDir = "uploads"
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = 25 << 20
	}
	if s.Language == "" {
		s.Language = "pt"
	}
	if s.Environment == "" {
		s.Environment = "production"
	}

	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 1800
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = 300
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Addr == "" {
		c.Store.Addr = "localhost:6379"
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = "meetresume"
	}

	t := &c.Transcription
	if t.Provider == "" {
		t.Provider = "openai"
	}
	if t.Model == "" {
		t.Model = "whisper-1"
	}
	if t.Timeout == 0 {
		t.Timeout = 60
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = 3
	}
	if t.RetryDelay == 0 {
		t.RetryDelay = 2000
	}
	if t.MaxConcurrent == 0 {
		t.MaxConcurrent = 10
	}
	if t.OutputFormat == "" {
		t.OutputFormat = "json"
	}

	sm := &c.Summarization
	if sm.APIKey == "" {
		sm.APIKey = t.APIKey
	}
	if sm.Model == "" {
		sm.Model = "gpt-4o-mini"
	}
	if sm.MaxTokens == 0 {
		sm.MaxTokens = 1000
	}
	if sm.Temperature == 0 {
		sm.Temperature = 0.7
	}
	if sm.Timeout == 0 {
		sm.Timeout = 120
	}
	if sm.MaxRetries == 0 {
		sm.MaxRetries = 3
	}
	if sm.RetryDelay == 0 {
		sm.RetryDelay = 2000
	}

	if c.Assistant.Model == "" {
		c.Assistant.Model = sm.Model
	}
	if c.Assistant.RatePerMinute == 0 {
		c.Assistant.RatePerMinute = 6
	}
	if c.Assistant.Burst == 0 {
		c.Assistant.Burst = 2
	}

	if c.Archive.Path == "" {
		c.Archive.Path = "data/archive.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	cl := &c.Client
	if cl.ServerURL == "" {
		cl.ServerURL = "http://localhost:3001"
	}
	if cl.ChunkInterval == 0 {
		cl.ChunkInterval = 5000
	}
	if cl.SampleRate == 0 {
		cl.SampleRate = 16000
	}
	if cl.FFmpegPath == "" {
		cl.FFmpegPath = "ffmpeg"
	}
	for i := range cl.Sources {
		if cl.Sources[i].Gain == 0 {
			cl.Sources[i].Gain = 1
		}
	}
	if cl.Mixer.Threshold == 0 {
		cl.Mixer.Threshold = 0.8
	}
	if cl.Mixer.Ratio == 0 {
		cl.Mixer.Ratio = 0.5
	}
	if cl.Silence.Threshold == 0 {
		cl.Silence.Threshold = 0.01
	}
	if cl.Silence.WindowSize == 0 {
		cl.Silence.WindowSize = 512
	}
	if cl.Upload.Timeout == 0 {
		cl.Upload.Timeout = 120
	}
	if cl.Upload.MaxRetries == 0 {
		cl.Upload.MaxRetries = 3
	}
	if cl.Upload.RetryDelay == 0 {
		cl.Upload.RetryDelay = 2000
	}
	if cl.Upload.MaxConcurrent == 0 {
		cl.Upload.MaxConcurrent = 4
	}
	if cl.PendingWait == 0 {
		cl.PendingWait = 30
	}
	if cl.FinalizeTimeout == 0 {
		cl.FinalizeTimeout = 480
	}
	if cl.Heartbeat == 0 {
		cl.Heartbeat = 60
	}
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.ValidateServer(); err != nil {
		return err
	}
	return c.ValidateClient()
}

// ValidateServer validates the sections used by the serve command
func (c *Config) ValidateServer() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Summarization.Validate(); err != nil {
		return fmt.Errorf("summarization config: %w", err)
	}

	// finalize answers only after summarization, retries included
	if budget := c.Summarization.GetBudget(); c.Server.GetWriteTimeoutDuration() <= budget {
		return fmt.Errorf("server config: write_timeout (%ds) must exceed the summarization budget (%v)",
			c.Server.WriteTimeout, budget)
	}

	// the reaper must see a session before its redis key expires
	if c.Store.Backend == "redis" && c.Store.TTL != 0 &&
		c.Store.TTL <= c.Session.IdleTimeout+c.Session.SweepInterval {
		return fmt.Errorf("store config: ttl (%d) must exceed idle_timeout + sweep_interval (%d)",
			c.Store.TTL, c.Session.IdleTimeout+c.Session.SweepInterval)
	}

	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant config: %w", err)
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive config: path cannot be empty when archive is enabled")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ValidateClient validates the sections used by the record command
func (c *Config) ValidateClient() error {
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}

	if budget := c.Summarization.GetBudget(); c.Client.GetFinalizeTimeoutDuration() <= budget {
		return fmt.Errorf("client config: finalize_timeout (%ds) must exceed the summarization budget (%v)",
			c.Client.FinalizeTimeout, budget)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.ReadTimeout < 1 || s.WriteTimeout < 1 {
		return fmt.Errorf("read_timeout and write_timeout must be at least 1 second")
	}

	if s.UploadDir == "" {
		return fmt.Errorf("upload_dir cannot be empty")
	}

	if s.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024 bytes, got %d", s.MaxUploadBytes)
	}

	validEnvs := map[string]bool{"development": true, "production": true}
	if !validEnvs[s.Environment] {
		return fmt.Errorf("environment must be 'development' or 'production', got '%s'", s.Environment)
	}

	return nil
}

// Validate validates auth configuration
func (a *AuthConfig) Validate() error {
	if !a.Enabled {
		return nil
	}

	if len(a.Tokens) == 0 {
		return fmt.Errorf("at least one token is required when auth is enabled")
	}

	for i, token := range a.Tokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("token %d is empty", i)
		}
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", s.IdleTimeout)
	}

	if s.SweepInterval < 1 {
		return fmt.Errorf("sweep_interval must be at least 1 second, got %d", s.SweepInterval)
	}

	if s.SweepInterval > s.IdleTimeout {
		return fmt.Errorf("sweep_interval (%d) cannot exceed idle_timeout (%d)", s.SweepInterval, s.IdleTimeout)
	}

	return nil
}

// Validate validates store configuration
func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case "memory":
		return nil
	case "redis":
		if s.Addr == "" {
			return fmt.Errorf("addr cannot be empty for the redis backend")
		}
		if s.DB < 0 {
			return fmt.Errorf("db cannot be negative, got %d", s.DB)
		}
		if s.TTL < 0 {
			return fmt.Errorf("ttl cannot be negative, got %d", s.TTL)
		}
		return nil
	default:
		return fmt.Errorf("backend must be 'memory' or 'redis', got '%s'", s.Backend)
	}
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Provider {
	case "openai":
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai provider")
		}
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the http provider")
		}
	default:
		return fmt.Errorf("provider must be 'openai' or 'http', got '%s'", t.Provider)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[t.OutputFormat] {
		return fmt.Errorf("output_format must be 'json' or 'text', got '%s'", t.OutputFormat)
	}

	return nil
}

// Validate validates summarization configuration
func (s *SummarizationConfig) Validate() error {
	if s.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty")
	}

	if s.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", s.MaxTokens)
	}

	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", s.Temperature)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", s.MaxRetries)
	}

	return nil
}

// Validate validates assistant configuration
func (a *AssistantConfig) Validate() error {
	if !a.Enabled {
		return nil
	}

	if a.RatePerMinute <= 0 {
		return fmt.Errorf("rate_per_minute must be positive, got %f", a.RatePerMinute)
	}

	if a.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", a.Burst)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Validate validates recorder configuration
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url cannot be empty")
	}

	if c.ChunkInterval < 500 {
		return fmt.Errorf("chunk_interval must be at least 500 ms, got %d", c.ChunkInterval)
	}

	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", c.SampleRate)
	}

	if len(c.Sources) < 1 || len(c.Sources) > 2 {
		return fmt.Errorf("one or two sources are required, got %d", len(c.Sources))
	}

	for i, src := range c.Sources {
		if src.Name == "" || src.Format == "" {
			return fmt.Errorf("source %d: name and format are required", i)
		}
		if src.Gain < 0 {
			return fmt.Errorf("source %s: gain cannot be negative, got %f", src.Name, src.Gain)
		}
	}

	if c.Mixer.Threshold <= 0 || c.Mixer.Threshold > 1 {
		return fmt.Errorf("mixer threshold must be in (0, 1], got %f", c.Mixer.Threshold)
	}

	if c.Mixer.Ratio <= 0 || c.Mixer.Ratio > 1 {
		return fmt.Errorf("mixer ratio must be in (0, 1], got %f", c.Mixer.Ratio)
	}

	if c.Silence.Threshold < 0 || c.Silence.Threshold > 1 {
		return fmt.Errorf("silence threshold must be between 0 and 1, got %f", c.Silence.Threshold)
	}

	if c.Upload.MaxRetries < 1 {
		return fmt.Errorf("upload max_retries must be at least 1, got %d", c.Upload.MaxRetries)
	}

	if c.Upload.MaxConcurrent < 1 {
		return fmt.Errorf("upload max_concurrent must be at least 1, got %d", c.Upload.MaxConcurrent)
	}

	if c.PendingWait < 1 {
		return fmt.Errorf("pending_wait must be at least 1 second, got %d", c.PendingWait)
	}

	if c.Heartbeat < 1 {
		return fmt.Errorf("heartbeat_interval must be at least 1 second, got %d", c.Heartbeat)
	}

	return nil
}

// GetReadTimeoutDuration returns the read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetShutdownTimeoutDuration returns the shutdown timeout as a time.Duration
func (s *ServerConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// IsDevelopment reports whether error details may be exposed to clients
func (s *ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// GetIdleTimeoutDuration returns the session idle timeout as a time.Duration
func (s *SessionConfig) GetIdleTimeoutDuration() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}

// GetSweepIntervalDuration returns the reaper interval as a time.Duration
func (s *SessionConfig) GetSweepIntervalDuration() time.Duration {
	return time.Duration(s.SweepInterval) * time.Second
}

// GetTTLDuration returns the redis key TTL as a time.Duration
func (s *StoreConfig) GetTTLDuration() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetRetryDelayDuration returns the base retry delay as a time.Duration
func (t *TranscriptionConfig) GetRetryDelayDuration() time.Duration {
	return time.Duration(t.RetryDelay) * time.Millisecond
}

// GetTimeoutDuration returns the summarization timeout as a time.Duration
func (s *SummarizationConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetRetryDelayDuration returns the base retry delay as a time.Duration
func (s *SummarizationConfig) GetRetryDelayDuration() time.Duration {
	return time.Duration(s.RetryDelay) * time.Millisecond
}

// GetRetryPolicy returns the summarization retry policy
func (s *SummarizationConfig) GetRetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: s.MaxRetries, BaseDelay: s.GetRetryDelayDuration()}
}

// GetBudget returns the longest a finalize can spend summarizing
func (s *SummarizationConfig) GetBudget() time.Duration {
	return s.GetRetryPolicy().Budget(s.GetTimeoutDuration())
}

// GetFinalizeTimeoutDuration returns the finalize request timeout as a time.Duration
func (c *ClientConfig) GetFinalizeTimeoutDuration() time.Duration {
	return time.Duration(c.FinalizeTimeout) * time.Second
}

// GetHeartbeatDuration returns the session heartbeat interval as a time.Duration
func (c *ClientConfig) GetHeartbeatDuration() time.Duration {
	return time.Duration(c.Heartbeat) * time.Second
}

// GetChunkIntervalDuration returns the segmentation interval as a time.Duration
func (c *ClientConfig) GetChunkIntervalDuration() time.Duration {
	return time.Duration(c.ChunkInterval) * time.Millisecond
}

// GetPendingWaitDuration returns the finalize wait bound as a time.Duration
func (c *ClientConfig) GetPendingWaitDuration() time.Duration {
	return time.Duration(c.PendingWait) * time.Second
}

// GetTimeoutDuration returns the per-upload timeout as a time.Duration
func (u *UploadConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(u.Timeout) * time.Second
}

// GetRetryDelayDuration returns the base upload retry delay as a time.Duration
func (u *UploadConfig) GetRetryDelayDuration() time.Duration {
	return time.Duration(u.RetryDelay) * time.Millisecond
}

// Sanitized returns a copy with secrets removed, safe to expose over HTTP
func (c *Config) Sanitized() Config {
	out := *c
	out.Auth.Tokens = nil
	out.Store.Password = redact(out.Store.Password)
	out.Transcription.APIKey = redact(out.Transcription.APIKey)
	out.Summarization.APIKey = redact(out.Summarization.APIKey)
	out.Client.Token = redact(out.Client.Token)
	out.Client.Sources = append([]SourceConfig(nil), c.Client.Sources...)
	return out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
