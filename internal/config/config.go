package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const DefaultConfigFilename = "project.toml"

type Config struct {
	Backend BackendSettings `toml:"backend"`
	Scene   SceneSettings   `toml:"scene"`
	Audio   AudioSettings   `toml:"audio"`
	Link    LinkSettings    `toml:"link"`
	IPC     IPCSettings     `toml:"ipc"`
	Notify  NotifySettings  `toml:"notify"`
	TTS     TTSSettings     `toml:"tts"`
	Agent   AgentSettings   `toml:"agent"`
}

type BackendSettings struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Proxy          string `toml:"proxy"`
}

type SceneSettings struct {
	Context string `toml:"context"`
	Areas   []Area `toml:"area"`
}

// Area lists which controllers an area has. Unset flags default to true.
type Area struct {
	Name   string `toml:"name"`
	Lights *bool  `toml:"lights"`
	Walls  *bool  `toml:"walls"`
	Plants *bool  `toml:"plants"`
}

type AudioSettings struct {
	SampleRate int      `toml:"sample_rate"`
	Channels   int      `toml:"channels"`
	MaxSeconds int      `toml:"max_seconds"`
	Duck       bool     `toml:"duck"`
	DuckFactor float64  `toml:"duck_factor"`
	DuckSkip   []string `toml:"duck_skip"`
}

type LinkSettings struct {
	URL              string `toml:"url"`
	ReconnectSeconds int    `toml:"reconnect_seconds"`
}

type IPCSettings struct {
	Socket string `toml:"socket"`
}

type NotifySettings struct {
	Beep    string `toml:"beep"`
	Desktop bool   `toml:"desktop"`
}

type TTSSettings struct {
	Enabled bool   `toml:"enabled"`
	Voice   string `toml:"voice"`
}

type AgentSettings struct {
	Listen                    string `toml:"listen"`
	Model                     string `toml:"model"`
	WhisperModel              string `toml:"whisper_model"`
	Language                  string `toml:"language"`
	APIKeyEnvironmentVariable string `toml:"api_key_variable"`
}

const (
	ControllerLights = "lights"
	ControllerWalls  = "walls"
	ControllerPlants = "plants"
)

func Default() Config {
	return Config{
		Backend: BackendSettings{TimeoutSeconds: 120},
		Audio:   AudioSettings{SampleRate: 16000, Channels: 1, MaxSeconds: 30, DuckFactor: 0.3},
		Link:    LinkSettings{ReconnectSeconds: 2},
		IPC:     IPCSettings{Socket: "/tmp/vox.sock"},
		TTS:     TTSSettings{Voice: "en"},
		Agent: AgentSettings{
			Listen:                    "127.0.0.1:8087",
			WhisperModel:              "third_party/whisper.cpp/models/ggml-medium.bin",
			Language:                  "auto",
			APIKeyEnvironmentVariable: "OPENAI_API_KEY",
		},
	}
}

// Load reads filePath over the defaults. A missing file at the default
// location is not an error.
func Load(filePath string) (*Config, error) {
	explicit := filePath != ""
	if !explicit {
		filePath = DefaultConfigFilename
	}

	configuration := Default()

	configFile, err := os.Open(filePath)
	switch {
	case err == nil:
		defer configFile.Close()

		decoder := toml.NewDecoder(configFile)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&configuration); err != nil {
			var strictErr *toml.StrictMissingError
			if errors.As(err, &strictErr) {
				return nil, fmt.Errorf("unknown keys in '%s':\n%s", filePath, strictErr.String())
			}
			return nil, fmt.Errorf("failed to decode TOML configuration: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to open config file '%s': %w", filePath, err)
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// LoadEnv loads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file '%s': %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Backend.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("backend.timeout_seconds must be positive"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}
	if c.Audio.Channels <= 0 {
		errs = append(errs, errors.New("audio.channels must be positive"))
	}
	if c.Audio.MaxSeconds <= 0 {
		errs = append(errs, errors.New("audio.max_seconds must be positive"))
	}
	if c.Audio.DuckFactor < 0 || c.Audio.DuckFactor > 1 {
		errs = append(errs, errors.New("audio.duck_factor must be within [0, 1]"))
	}

	seen := make(map[string]bool, len(c.Scene.Areas))
	for i, a := range c.Scene.Areas {
		key := strings.ToLower(strings.TrimSpace(a.Name))
		if key == "" {
			errs = append(errs, fmt.Errorf("scene.area[%d] has no name", i))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("scene.area %q declared twice", a.Name))
		}
		seen[key] = true
	}

	return errors.Join(errs...)
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) LinkReconnect() time.Duration {
	return time.Duration(c.Link.ReconnectSeconds) * time.Second
}

func (c *Config) MaxRecording() time.Duration {
	return time.Duration(c.Audio.MaxSeconds) * time.Second
}

func (c *Config) GetAPIKey() string {
	return os.Getenv(c.Agent.APIKeyEnvironmentVariable)
}

// AreaNames returns the areas that carry the given controller.
func (c *Config) AreaNames(controller string) []string {
	var names []string
	for _, a := range c.Scene.Areas {
		var flag *bool
		switch controller {
		case ControllerLights:
			flag = a.Lights
		case ControllerWalls:
			flag = a.Walls
		case ControllerPlants:
			flag = a.Plants
		}
		if flag == nil || *flag {
			names = append(names, a.Name)
		}
	}
	return names
}
