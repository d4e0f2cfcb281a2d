package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings are the machine-local app settings: endpoints, directories and
// key fallbacks. Experiment documents override the experiment-shaped
// fields; environment variables override the API keys.
type Settings struct {
	QdrantURL string `toml:"qdrant_url"`
	OllamaURL string `toml:"ollama_url"`

	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`

	DashScopeAPIKey string `toml:"dashscope_api_key"`

	// EvalWorkers bounds the evaluation worker pool.
	EvalWorkers int `toml:"eval_workers"`
}

// DefaultSettings returns the compiled-in settings. StateDir defaults to
// ~/.raglab and holds the bbolt and sqlite files.
func DefaultSettings() Settings {
	s := Settings{
		QdrantURL:   "http://localhost:6333",
		OllamaURL:   "http://localhost:11434",
		DataDir:     "data",
		OutputDir:   "results",
		EvalWorkers: 1,
	}
	if home, err := os.UserHomeDir(); err == nil {
		s.StateDir = filepath.Join(home, ".raglab")
	} else {
		s.StateDir = ".raglab"
	}
	return s
}

// LoadSettings reads the TOML settings file and applies environment
// overrides. A missing file is not an error; defaults apply. An empty path
// means <StateDir>/config.toml.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		path = filepath.Join(s.StateDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No settings file yet, defaults apply.
	case err != nil:
		return s, fmt.Errorf("read settings %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		s.DashScopeAPIKey = key
	}
	if url := os.Getenv("QDRANT_URL"); url != "" {
		s.QdrantURL = url
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		s.OllamaURL = url
	}
	if s.EvalWorkers < 1 {
		s.EvalWorkers = 1
	}
	return s, nil
}

// Save writes the settings to path with restricted permissions, creating
// the directory when needed.
func (s Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
