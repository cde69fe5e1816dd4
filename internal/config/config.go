package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AudioConfig configures the capture session and its artifacts.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	// CaptureCommand is the external program that writes raw PCM16 frames to
	// stdout while recording (e.g. arecord or sox). Audio digitization itself
	// is outside the engine.
	CaptureCommand []string      `yaml:"capture_command,omitempty"`
	MaxRecordSecs  float64       `yaml:"max_record_secs"` // hard cap per capture; 0 disables
	Silence        SilenceConfig `yaml:"silence"`
}

// SilenceConfig tunes the advisory silence auto-stop.
type SilenceConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Threshold     float64 `yaml:"threshold"`     // RMS amplitude, 0..1
	DurationSecs  float64 `yaml:"duration_secs"` // sustained quiet before auto-stop
	MinRecordSecs float64 `yaml:"min_record_secs"`
}

// BackendConfig describes one text-generation backend endpoint.
type BackendConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GenerationConfig configures the retry+fallback generation gateway.
type GenerationConfig struct {
	PreferLocal   bool          `yaml:"prefer_local"`
	LocalAttempts int           `yaml:"local_attempts"`
	BackoffBaseMS int           `yaml:"backoff_base_ms"`
	BackoffMaxMS  int           `yaml:"backoff_max_ms"`
	Temperature   float64       `yaml:"temperature"`
	Local         BackendConfig `yaml:"local"`
	Remote        BackendConfig `yaml:"remote"`
}

// TranscriptionConfig configures the speech-to-text gateway (an
// OpenAI-compatible audio/transcriptions endpoint, local or remote).
type TranscriptionConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig configures the OpenAI/Ollama-compatible embeddings client.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SearchConfig tunes retrieval-augmented answers.
type SearchConfig struct {
	TopK         int `yaml:"top_k"`
	ContextRunes int `yaml:"context_runes"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir       string              `yaml:"data_dir"`
	Audio         AudioConfig         `yaml:"audio"`
	Generation    GenerationConfig    `yaml:"generation"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	Search        SearchConfig        `yaml:"search"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/capsule/config.yaml.
// If neither exists, it writes defaults to ~/.config/capsule/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "capsule", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg := &AppConfig{
		DataDir: filepath.Join(home, ".capsule"),
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			MaxRecordSecs: 600,
			Silence: SilenceConfig{
				Enabled:       true,
				Threshold:     0.01,
				DurationSecs:  2.5,
				MinRecordSecs: 1.0,
			},
		},
		Generation: GenerationConfig{
			PreferLocal:   true,
			LocalAttempts: 3,
			BackoffBaseMS: 200,
			BackoffMaxMS:  5000,
			Temperature:   0.7,
			Local: BackendConfig{
				Enabled:     true,
				BaseURL:     "http://localhost:11434",
				Model:       "llama3.2",
				TimeoutSecs: 120,
			},
			Remote: BackendConfig{
				Enabled:     true,
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "gpt-4o-mini",
				TimeoutSecs: 60,
			},
		},
		Transcription: TranscriptionConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "whisper-1",
			TimeoutSecs: 120,
		},
		Embedder: EmbedderConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "nomic-embed-text",
			TimeoutSecs: 30,
		},
		Search: SearchConfig{TopK: 5, ContextRunes: 8000},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = def.Audio.Channels
	}
	if cfg.Audio.MaxRecordSecs == 0 {
		cfg.Audio.MaxRecordSecs = def.Audio.MaxRecordSecs
	}
	if cfg.Audio.Silence.Threshold == 0 {
		cfg.Audio.Silence.Threshold = def.Audio.Silence.Threshold
	}
	if cfg.Audio.Silence.DurationSecs == 0 {
		cfg.Audio.Silence.DurationSecs = def.Audio.Silence.DurationSecs
	}
	if cfg.Generation.LocalAttempts == 0 {
		cfg.Generation.LocalAttempts = def.Generation.LocalAttempts
	}
	if cfg.Generation.BackoffBaseMS == 0 {
		cfg.Generation.BackoffBaseMS = def.Generation.BackoffBaseMS
	}
	if cfg.Generation.BackoffMaxMS == 0 {
		cfg.Generation.BackoffMaxMS = def.Generation.BackoffMaxMS
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = def.Generation.Temperature
	}
	if cfg.Generation.Local.BaseURL == "" {
		cfg.Generation.Local = def.Generation.Local
	}
	if cfg.Generation.Remote.BaseURL == "" {
		cfg.Generation.Remote = def.Generation.Remote
	}
	if cfg.Generation.Remote.APIKeyEnv == "" {
		cfg.Generation.Remote.APIKeyEnv = def.Generation.Remote.APIKeyEnv
	}
	if cfg.Transcription.BaseURL == "" {
		cfg.Transcription = def.Transcription
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder = def.Embedder
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Search.ContextRunes == 0 {
		cfg.Search.ContextRunes = def.Search.ContextRunes
	}
}
