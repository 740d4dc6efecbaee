package player

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wfunc/slot-simulator/internal/errors"
	"gopkg.in/yaml.v3"
)

// BalanceSpec 初始余额配置
// YAML中既可以是单一数值，也可以是{avg, std, min, max}分布参数
type BalanceSpec struct {
	Avg float64 `yaml:"avg"`
	Std float64 `yaml:"std"`
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// UnmarshalYAML 支持标量和映射两种写法
func (b *BalanceSpec) UnmarshalYAML(value *yaml.Node) error {
	// 标量写法：initial_balance: 5000
	if value.Kind == yaml.ScalarNode {
		var v float64
		if err := value.Decode(&v); err != nil {
			return err
		}
		b.Avg = v
		b.Std = 0
		return nil
	}

	// 映射写法：initial_balance: {avg: 5000, std: 1000, min: 2000, max: 10000}
	type plain BalanceSpec
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*b = BalanceSpec(p)
	return nil
}

// applyDefaults 填充分布参数的缺省边界
func (b *BalanceSpec) applyDefaults() {
	if b.Avg <= 0 {
		b.Avg = 1000.0
	}
	if b.Min <= 0 {
		b.Min = b.Avg * 0.1
	}
	if b.Max <= 0 {
		b.Max = b.Avg * 10.0
	}
}

// RandomEngineConfig 随机决策引擎配置
type RandomEngineConfig struct {
	MinDelay           float64 `yaml:"min_delay"`
	MaxDelay           float64 `yaml:"max_delay"`
	EndProbability     float64 `yaml:"end_probability"`
	MaxSpinsPerSession int64   `yaml:"max_spins_per_session"`
	MaxSessionDuration float64 `yaml:"max_session_duration"`
	// StopLossBalance 余额跌破该值时止损离场，0表示不启用
	StopLossBalance float64 `yaml:"stop_loss_balance"`
}

// FixedEngineConfig 固定决策引擎配置
type FixedEngineConfig struct {
	Bet      float64 `yaml:"bet"`
	Delay    float64 `yaml:"delay"`
	MaxSpins int64   `yaml:"max_spins"`
}

// PlayerConfig 玩家配置
type PlayerConfig struct {
	ID             string             `yaml:"id"`
	Currency       string             `yaml:"currency"`
	ModelVersion   string             `yaml:"model_version"`
	ActiveLines    int                `yaml:"active_lines"`
	InitialBalance BalanceSpec        `yaml:"initial_balance"`
	RandomConfig   RandomEngineConfig `yaml:"model_config_random"`
	FixedConfig    FixedEngineConfig  `yaml:"model_config_fixed"`
}

// applyDefaults 填充缺省配置
func (c *PlayerConfig) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "CNY"
	}
	if c.ModelVersion == "" {
		c.ModelVersion = EngineRandom
	}
	c.InitialBalance.applyDefaults()

	if c.RandomConfig.MaxDelay <= 0 {
		c.RandomConfig.MaxDelay = 5.0
	}
	if c.RandomConfig.EndProbability <= 0 {
		c.RandomConfig.EndProbability = 0.01
	}
	if c.RandomConfig.MaxSpinsPerSession <= 0 {
		c.RandomConfig.MaxSpinsPerSession = 500
	}
	if c.RandomConfig.MaxSessionDuration <= 0 {
		c.RandomConfig.MaxSessionDuration = 3600
	}

	if c.FixedConfig.Bet <= 0 {
		c.FixedConfig.Bet = 1.0
	}
	if c.FixedConfig.MaxSpins <= 0 {
		c.FixedConfig.MaxSpins = 1000
	}
}

// LoadPlayerConfig 从YAML文件加载玩家配置
func LoadPlayerConfig(path string) (*PlayerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取玩家配置文件失败: %s", path)
	}

	cfg := &PlayerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "解析玩家配置文件失败: %s", path)
	}

	if cfg.ID == "" {
		base := filepath.Base(path)
		cfg.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadPlayerDir 加载目录下所有玩家配置
func LoadPlayerDir(dir string) ([]*PlayerConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取玩家配置目录失败: %s", dir)
	}

	var configs []*PlayerConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		cfg, err := LoadPlayerConfig(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return nil, errors.Newf(errors.ErrConfigMissing, "目录 %s 中没有玩家配置文件", dir)
	}

	return configs, nil
}
