package jsengine

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是引擎实现使用的运行配置。
type Config struct {
	Name      EngineName `yaml:"name"`
	ModuleDir string     `yaml:"moduleDir"`
	// MemoryLimitBytes 仅对 QuickJS 生效，0 表示不限制。
	MemoryLimitBytes int64 `yaml:"memoryLimitBytes"`
	// LogMode 取 development 或 production，交给 logger.New。
	LogMode string `yaml:"logMode"`
}

// DefaultConfig 返回 goja 引擎、当前目录的默认配置。
func DefaultConfig() Config {
	return Config{
		Name:      EngineGoja,
		ModuleDir: ".",
		LogMode:   "production",
	}
}

// WithDefaults 为空字段补上默认值。
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.ModuleDir == "" {
		c.ModuleDir = def.ModuleDir
	}
	if c.LogMode == "" {
		c.LogMode = def.LogMode
	}
	return c
}

// Validate 检查引擎类型与内存限制。
func (c Config) Validate() error {
	switch c.Name {
	case EngineGoja, EngineQuickJS:
	default:
		return errors.Errorf("unknown engine name: %q", c.Name)
	}
	if c.MemoryLimitBytes < 0 {
		return errors.Errorf("memoryLimitBytes must not be negative: %d", c.MemoryLimitBytes)
	}
	return nil
}

// LoadConfig 从 YAML 文件读取配置并补全默认值。
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 文本。
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
