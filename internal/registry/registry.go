package registry

import (
	"sort"
	"sync"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/machine"
	"github.com/wfunc/slot-simulator/internal/player"
	"github.com/wfunc/slot-simulator/internal/rng"
)

// MachineRegistry 机器注册表
// 只存放配置，按需铸造新实例：每个会话持有独立的机器实例，绝不共享可变状态
type MachineRegistry struct {
	mu      sync.RWMutex
	configs map[string]*machine.MachineConfig
}

// NewMachineRegistry 创建机器注册表
func NewMachineRegistry() *MachineRegistry {
	return &MachineRegistry{
		configs: make(map[string]*machine.MachineConfig),
	}
}

// Register 注册机器配置
func (r *MachineRegistry) Register(cfg *machine.MachineConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
}

// LoadDir 从目录批量加载并注册机器配置
func (r *MachineRegistry) LoadDir(dir string) error {
	configs, err := machine.LoadMachineDir(dir)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		r.Register(cfg)
	}
	return nil
}

// IDs 返回已注册的机器ID（排序后）
func (r *MachineRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config 返回指定机器的配置
func (r *MachineRegistry) Config(id string) (*machine.MachineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "机器未注册: %s", id)
	}
	return cfg, nil
}

// Mint 铸造一个全新的机器实例
func (r *MachineRegistry) Mint(id string, seed int64) (*machine.SlotMachine, error) {
	cfg, err := r.Config(id)
	if err != nil {
		return nil, err
	}
	return machine.NewSlotMachine(cfg, rng.NewSeededRNG(seed)), nil
}

// PlayerRegistry 玩家注册表
// 与机器注册表同样只存配置、按需铸造实例
type PlayerRegistry struct {
	mu      sync.RWMutex
	configs map[string]*player.PlayerConfig
}

// NewPlayerRegistry 创建玩家注册表
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{
		configs: make(map[string]*player.PlayerConfig),
	}
}

// Register 注册玩家配置
// 配置引用了未知的决策引擎时立即失败
func (r *PlayerRegistry) Register(cfg *player.PlayerConfig) error {
	// 试铸一次以便在注册时发现引擎配置错误
	if _, err := player.NewPlayer(cfg, rng.NewSeededRNG(0)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
	return nil
}

// LoadDir 从目录批量加载并注册玩家配置
func (r *PlayerRegistry) LoadDir(dir string) error {
	configs, err := player.LoadPlayerDir(dir)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if err := r.Register(cfg); err != nil {
			return err
		}
	}
	return nil
}

// IDs 返回已注册的玩家ID（排序后）
func (r *PlayerRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config 返回指定玩家的配置
func (r *PlayerRegistry) Config(id string) (*player.PlayerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "玩家未注册: %s", id)
	}
	return cfg, nil
}

// Mint 铸造一个全新的玩家实例
func (r *PlayerRegistry) Mint(id string, seed int64) (*player.Player, error) {
	cfg, err := r.Config(id)
	if err != nil {
		return nil, err
	}
	return player.NewPlayer(cfg, rng.NewSeededRNG(seed))
}
