package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/opencode-ai/agentchat/pkg/types"
	"github.com/tidwall/jsonc"
)

// Defaults applied after all sources are merged.
const (
	DefaultAgentID  = "assistant"
	DefaultEndpoint = "http://localhost:5678/webhook/chat"
	DefaultSource   = "agentchat"
	DefaultWelcome  = "Hello! How can I help you today?"
	DefaultTitle    = "New Chat"
	DefaultPort     = 4096
)

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// Load loads configuration from multiple sources (priority order):
// 1. .env file in the directory (never overrides the process environment)
// 2. Global config (~/.config/agentchat/)
// 3. Project config (agentchat.json, .agentchat/)
// 4. AGENTCHAT_CONFIG file
// 5. AGENTCHAT_CONFIG_CONTENT inline JSON
// 6. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Agent: make(map[string]types.AgentConfig),
	}

	if directory != "" {
		envFile := filepath.Join(directory, ".env")
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	loaded := make(map[string]bool)
	var loadErr error

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		if err := loadConfigFile(path, config, baseDir); err != nil {
			if loadErr == nil {
				loadErr = fmt.Errorf("load %s: %w", path, err)
			}
			return
		}
		loaded[absPath] = true
	}

	globalPath := GetConfigDir()
	loadOnce(filepath.Join(globalPath, "agentchat.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "agentchat.jsonc"), globalPath)

	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".agentchat")
		loadOnce(filepath.Join(directory, "agentchat.json"), directory)
		loadOnce(filepath.Join(directory, "agentchat.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "agentchat.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "agentchat.jsonc"), projectConfigDir)
	}

	if configPath := os.Getenv("AGENTCHAT_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	if loadErr != nil {
		return nil, loadErr
	}

	if configContent := os.Getenv("AGENTCHAT_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		data := interpolate(jsonc.ToJSON([]byte(configContent)), directory)
		if err := json.Unmarshal(data, &inlineConfig); err != nil {
			return nil, fmt.Errorf("parse AGENTCHAT_CONFIG_CONTENT: %w", err)
		}
		mergeConfig(config, &inlineConfig)
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return jsonEscape(os.Getenv(varName))
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // keep original if file not found
		}
		return jsonEscape(strings.TrimRight(string(content), "\n"))
	})

	return []byte(str)
}

// jsonEscape escapes s for embedding inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.DefaultAgent != "" {
		target.DefaultAgent = source.DefaultAgent
	}

	if source.Agent != nil {
		if target.Agent == nil {
			target.Agent = make(map[string]types.AgentConfig)
		}
		for k, v := range source.Agent {
			target.Agent[k] = mergeAgent(target.Agent[k], v)
		}
	}

	if source.Storage != nil {
		if target.Storage == nil {
			target.Storage = &types.StorageConfig{}
		}
		if source.Storage.Driver != "" {
			target.Storage.Driver = source.Storage.Driver
		}
		if source.Storage.Path != "" {
			target.Storage.Path = source.Storage.Path
		}
	}

	if source.Timeout != nil {
		if target.Timeout == nil {
			target.Timeout = &types.TimeoutConfig{}
		}
		if source.Timeout.Connect != "" {
			target.Timeout.Connect = source.Timeout.Connect
		}
		if source.Timeout.FirstByte != "" {
			target.Timeout.FirstByte = source.Timeout.FirstByte
		}
	}

	if source.Server != nil {
		if target.Server == nil {
			target.Server = &types.ServerConfig{}
		}
		if source.Server.Port != 0 {
			target.Server.Port = source.Server.Port
		}
		if source.Server.CORS != nil {
			target.Server.CORS = source.Server.CORS
		}
	}

	if source.Log != nil {
		target.Log = source.Log
	}
}

// mergeAgent overlays the non-empty fields of src onto dst.
func mergeAgent(dst, src types.AgentConfig) types.AgentConfig {
	if src.Endpoint != "" {
		dst.Endpoint = src.Endpoint
	}
	if src.Namespace != "" {
		dst.Namespace = src.Namespace
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
	if src.Welcome != "" {
		dst.Welcome = src.Welcome
	}
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Headers != nil {
		if dst.Headers == nil {
			dst.Headers = make(map[string]string)
		}
		for k, v := range src.Headers {
			dst.Headers[k] = v
		}
	}
	return dst
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if agent := os.Getenv("AGENTCHAT_AGENT"); agent != "" {
		config.DefaultAgent = agent
	}

	if endpoint := os.Getenv("AGENTCHAT_ENDPOINT"); endpoint != "" {
		id := config.DefaultAgent
		if id == "" {
			id = DefaultAgentID
		}
		a := config.Agent[id]
		a.Endpoint = endpoint
		config.Agent[id] = a
	}

	if driver := os.Getenv("AGENTCHAT_STORAGE_DRIVER"); driver != "" {
		if config.Storage == nil {
			config.Storage = &types.StorageConfig{}
		}
		config.Storage.Driver = driver
	}

	if level := os.Getenv("AGENTCHAT_LOG_LEVEL"); level != "" {
		if config.Log == nil {
			config.Log = &types.LogConfig{}
		}
		config.Log.Level = level
	}

	if port := os.Getenv("AGENTCHAT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			if config.Server == nil {
				config.Server = &types.ServerConfig{}
			}
			config.Server.Port = n
		}
	}
}

// applyDefaults fills in everything the sources left unset.
func applyDefaults(config *types.Config) {
	if config.Agent == nil {
		config.Agent = make(map[string]types.AgentConfig)
	}
	if len(config.Agent) == 0 {
		config.Agent[DefaultAgentID] = types.AgentConfig{}
	}
	if config.DefaultAgent == "" {
		if _, ok := config.Agent[DefaultAgentID]; ok {
			config.DefaultAgent = DefaultAgentID
		} else {
			config.DefaultAgent = AgentIDs(config)[0]
		}
	}

	for id, a := range config.Agent {
		if a.Endpoint == "" {
			a.Endpoint = DefaultEndpoint
		}
		if a.Namespace == "" {
			a.Namespace = id
		}
		if a.Source == "" {
			a.Source = DefaultSource
		}
		if a.Welcome == "" {
			a.Welcome = DefaultWelcome
		}
		if a.Title == "" {
			a.Title = DefaultTitle
		}
		config.Agent[id] = a
	}

	if config.Storage == nil {
		config.Storage = &types.StorageConfig{}
	}
	if config.Storage.Driver == "" {
		config.Storage.Driver = "file"
	}
	if config.Storage.Path == "" {
		if config.Storage.Driver == "sqlite" {
			config.Storage.Path = GetPaths().DatabasePath()
		} else {
			config.Storage.Path = GetPaths().StoragePath()
		}
	}

	if config.Server == nil {
		config.Server = &types.ServerConfig{}
	}
	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}

	if config.Log == nil {
		config.Log = &types.LogConfig{}
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

// Validate reports configuration that cannot be used.
func Validate(config *types.Config) error {
	if _, ok := config.Agent[config.DefaultAgent]; !ok {
		return fmt.Errorf("default agent %q is not configured", config.DefaultAgent)
	}
	seen := make(map[string]string)
	for _, id := range AgentIDs(config) {
		a := config.Agent[id]
		if !validNamespace(a.Namespace) {
			return fmt.Errorf("agent %q: invalid namespace %q", id, a.Namespace)
		}
		if other, dup := seen[a.Namespace]; dup {
			return fmt.Errorf("agents %q and %q share namespace %q", other, id, a.Namespace)
		}
		seen[a.Namespace] = id
	}
	switch config.Storage.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}
	return nil
}

func validNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// AgentIDs returns the configured agent ids, sorted.
func AgentIDs(config *types.Config) []string {
	ids := make([]string, 0, len(config.Agent))
	for id := range config.Agent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Paths locates the per-user directories: Config holds agentchat.json, Data
// the file store or sqlite database, State the log files.
type Paths struct {
	Config string
	Data   string
	State  string
}

// GetPaths resolves Paths from the XDG base directory variables.
func GetPaths() *Paths {
	return &Paths{
		Config: GetConfigDir(),
		Data:   xdgDir("XDG_DATA_HOME", ".local", "share"),
		State:  xdgDir("XDG_STATE_HOME", ".local", "state"),
	}
}

// EnsurePaths creates the directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Config, p.Data, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (p *Paths) StoragePath() string  { return filepath.Join(p.Data, "storage") }
func (p *Paths) DatabasePath() string { return filepath.Join(p.Data, "agentchat.db") }
func (p *Paths) LogPath() string      { return filepath.Join(p.State, "log") }

// GetConfigDir returns AGENTCHAT_CONFIG_DIR when set, otherwise the XDG
// config directory.
func GetConfigDir() string {
	if dir := os.Getenv("AGENTCHAT_CONFIG_DIR"); dir != "" {
		return dir
	}
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// GlobalConfigPath returns the user-wide config file.
func GlobalConfigPath() string {
	return filepath.Join(GetConfigDir(), "agentchat.json")
}

// xdgDir joins "agentchat" onto $env, falling back to $HOME/<home...>, or
// %APPDATA% on Windows.
func xdgDir(env string, home ...string) string {
	base := os.Getenv(env)
	switch {
	case base != "":
	case runtime.GOOS == "windows":
		base = os.Getenv("APPDATA")
	default:
		base = filepath.Join(append([]string{os.Getenv("HOME")}, home...)...)
	}
	return filepath.Join(base, "agentchat")
}
