package machine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wfunc/slot-simulator/internal/errors"
	"gopkg.in/yaml.v3"
)

// SymbolsConfig 符号分类配置
type SymbolsConfig struct {
	Normal  []int `yaml:"normal"`
	Wild    []int `yaml:"wild"`
	Scatter int   `yaml:"scatter"`
}

// FreeSpinsConfig 免费旋转配置
type FreeSpinsConfig struct {
	Count      int     `yaml:"count"`
	Multiplier float64 `yaml:"multiplier"`
}

// PaylineConfig 支付线配置项
type PaylineConfig struct {
	Indices []int `yaml:"indices"`
}

// PayTableEntry 赔率表配置项
type PayTableEntry struct {
	Symbol  string    `yaml:"symbol"`
	Payouts []float64 `yaml:"payouts"`
}

// BetTableEntry 投注表配置项
type BetTableEntry struct {
	Currency   string    `yaml:"currency"`
	BetOptions []float64 `yaml:"bet_options"`
}

// MachineConfig 机器配置
type MachineConfig struct {
	ID         string                   `yaml:"id"`
	Name       string                   `yaml:"name"`
	WindowSize int                      `yaml:"window_size"`
	Symbols    SymbolsConfig            `yaml:"symbols"`
	FreeSpins  FreeSpinsConfig          `yaml:"free_spins"`
	Reels      map[string]map[string][]int `yaml:"reels"`
	Paylines   []PaylineConfig          `yaml:"paylines"`
	PayTable   []PayTableEntry          `yaml:"pay_table"`
	BetTable   []BetTableEntry          `yaml:"bet_table"`
}

// applyDefaults 填充缺省配置
// 缺失的可选字段回退到默认值，不会构造失败
func (c *MachineConfig) applyDefaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 3
	}
	if len(c.Symbols.Normal) == 0 {
		c.Symbols.Normal = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	}
	if len(c.Symbols.Wild) == 0 {
		c.Symbols.Wild = []int{101}
	}
	if c.Symbols.Scatter == 0 {
		c.Symbols.Scatter = 20
	}
	if c.FreeSpins.Count <= 0 {
		c.FreeSpins.Count = 10
	}
	if c.FreeSpins.Multiplier <= 0 {
		c.FreeSpins.Multiplier = 1
	}
}

// LoadMachineConfig 从YAML文件加载机器配置
func LoadMachineConfig(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取机器配置文件失败: %s", path)
	}

	cfg := &MachineConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "解析机器配置文件失败: %s", path)
	}

	// 文件名作为缺省ID
	if cfg.ID == "" {
		base := filepath.Base(path)
		cfg.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadMachineDir 加载目录下所有机器配置
func LoadMachineDir(dir string) ([]*MachineConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取机器配置目录失败: %s", dir)
	}

	var configs []*MachineConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		cfg, err := LoadMachineConfig(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return nil, errors.Newf(errors.ErrConfigMissing, "目录 %s 中没有机器配置文件", dir)
	}

	return configs, nil
}
