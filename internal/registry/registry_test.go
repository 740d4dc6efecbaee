package registry

import (
	"testing"
	"time"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/machine"
	"github.com/wfunc/slot-simulator/internal/player"
)

func testMachineConfig(id string) *machine.MachineConfig {
	return &machine.MachineConfig{
		ID:         id,
		WindowSize: 3,
		Symbols: machine.SymbolsConfig{
			Normal:  []int{0, 1, 2, 3, 4, 5},
			Wild:    []int{101},
			Scatter: 20,
		},
		FreeSpins: machine.FreeSpinsConfig{Count: 10, Multiplier: 2},
	}
}

func testPlayerConfig(id string) *player.PlayerConfig {
	return &player.PlayerConfig{
		ID:           id,
		ModelVersion: player.EngineFixed,
	}
}

// TestMachineRegistry 机器注册表的注册、查询和铸造
func TestMachineRegistry(t *testing.T) {
	reg := NewMachineRegistry()
	reg.Register(testMachineConfig("slot_b"))
	reg.Register(testMachineConfig("slot_a"))

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "slot_a" || ids[1] != "slot_b" {
		t.Fatalf("ID列表应排序: %v", ids)
	}

	if _, err := reg.Config("slot_a"); err != nil {
		t.Fatalf("查询已注册配置失败: %v", err)
	}
	if _, err := reg.Config("missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("未注册ID应返回ErrNotFound: %v", err)
	}

	m1, err := reg.Mint("slot_a", 1)
	if err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	m2, err := reg.Mint("slot_a", 1)
	if err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	if m1 == m2 {
		t.Fatal("两次铸造应返回不同实例")
	}

	if _, err := reg.Mint("missing", 1); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("铸造未注册机器应返回ErrNotFound: %v", err)
	}
}

// TestPlayerRegistry 玩家注册表的注册校验和铸造
func TestPlayerRegistry(t *testing.T) {
	reg := NewPlayerRegistry()

	if err := reg.Register(testPlayerConfig("casual")); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	bad := testPlayerConfig("bad")
	bad.ModelVersion = "neural_v9"
	if err := reg.Register(bad); !errors.Is(err, errors.ErrUnknownEngine) {
		t.Fatalf("未知引擎应在注册时失败: %v", err)
	}
	if _, err := reg.Config("bad"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatal("注册失败的配置不应进入注册表")
	}

	p1, err := reg.Mint("casual", 7)
	if err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	p2, err := reg.Mint("casual", 7)
	if err != nil {
		t.Fatalf("铸造失败: %v", err)
	}
	if p1 == p2 {
		t.Fatal("两次铸造应返回不同实例")
	}
}

// TestPoolAcquireRelease 实例池的借出与归还
func TestPoolAcquireRelease(t *testing.T) {
	pool := NewPool[int](2)
	if err := pool.Put(1); err != nil {
		t.Fatalf("放入失败: %v", err)
	}
	if err := pool.Put(2); err != nil {
		t.Fatalf("放入失败: %v", err)
	}
	if pool.Size() != 2 {
		t.Fatalf("空闲数应为2: %d", pool.Size())
	}

	lease, err := pool.Acquire(time.Second)
	if err != nil {
		t.Fatalf("借出失败: %v", err)
	}
	if pool.Size() != 1 {
		t.Fatalf("借出后空闲数应为1: %d", pool.Size())
	}

	lease.Release()
	if pool.Size() != 2 {
		t.Fatalf("归还后空闲数应为2: %d", pool.Size())
	}

	// 重复归还是无操作
	lease.Release()
	if pool.Size() != 2 {
		t.Fatalf("重复归还不应改变空闲数: %d", pool.Size())
	}
}

// TestPoolExhausted 池耗尽时借出超时
func TestPoolExhausted(t *testing.T) {
	pool := NewPool[string](1)
	if err := pool.Put("only"); err != nil {
		t.Fatalf("放入失败: %v", err)
	}

	lease, err := pool.Acquire(0)
	if err != nil {
		t.Fatalf("借出失败: %v", err)
	}

	start := time.Now()
	if _, err := pool.Acquire(50 * time.Millisecond); !errors.Is(err, errors.ErrPoolExhausted) {
		t.Fatalf("池耗尽应返回ErrPoolExhausted: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("超时借出应等待满超时时长")
	}

	lease.Release()
	if _, err := pool.Acquire(0); err != nil {
		t.Fatalf("归还后应可再次借出: %v", err)
	}
}

// TestPoolExclusive 同一实例不会被同时借出两次
func TestPoolExclusive(t *testing.T) {
	pool := NewPool[int](1)
	if err := pool.Put(42); err != nil {
		t.Fatalf("放入失败: %v", err)
	}

	first, err := pool.Acquire(0)
	if err != nil {
		t.Fatalf("借出失败: %v", err)
	}
	if first.Value() != 42 {
		t.Fatalf("借出值不符: %d", first.Value())
	}

	if _, err := pool.Acquire(0); !errors.Is(err, errors.ErrPoolExhausted) {
		t.Fatal("实例被独占期间不应再次借出")
	}
}

// TestPoolClosed 关闭后的池拒绝所有操作
func TestPoolClosed(t *testing.T) {
	pool := NewPool[int](1)
	if err := pool.Put(1); err != nil {
		t.Fatalf("放入失败: %v", err)
	}

	pool.Close()
	pool.Close() // 重复关闭是无操作

	if _, err := pool.Acquire(0); !errors.Is(err, errors.ErrPoolClosed) {
		t.Fatalf("关闭后借出应返回ErrPoolClosed: %v", err)
	}
	if err := pool.Put(2); !errors.Is(err, errors.ErrPoolClosed) {
		t.Fatalf("关闭后放入应返回ErrPoolClosed: %v", err)
	}
}
