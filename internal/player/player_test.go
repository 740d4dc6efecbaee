package player

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/rng"
	"github.com/wfunc/slot-simulator/internal/session"
)

func basePlayerConfig(model string) *PlayerConfig {
	cfg := &PlayerConfig{
		ID:           "p1",
		Currency:     "CNY",
		ModelVersion: model,
		InitialBalance: BalanceSpec{
			Avg: 5000, Std: 1000, Min: 2000, Max: 10000,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// TestUnknownEngineFailsFast 测试未知引擎类型在创建时失败
func TestUnknownEngineFailsFast(t *testing.T) {
	cfg := basePlayerConfig("neural_v9")
	_, err := NewPlayer(cfg, rng.NewSeededRNG(1))
	if err == nil {
		t.Fatal("未知引擎类型应立即失败")
	}
	if !apperrors.Is(err, apperrors.ErrUnknownEngine) {
		t.Errorf("期望ErrUnknownEngine, 得到 %v", err)
	}
}

// TestGenerateInitialBalance 测试初始余额生成在边界内
func TestGenerateInitialBalance(t *testing.T) {
	cfg := basePlayerConfig(EngineRandom)
	p, err := NewPlayer(cfg, rng.NewSeededRNG(42))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}

	for i := 0; i < 1000; i++ {
		balance := p.GenerateInitialBalance()
		if balance < 2000 || balance > 10000 {
			t.Fatalf("初始余额%f超出边界[2000, 10000]", balance)
		}
	}
}

// TestGenerateInitialBalanceStatic 测试std为0时使用均值
func TestGenerateInitialBalanceStatic(t *testing.T) {
	cfg := basePlayerConfig(EngineRandom)
	cfg.InitialBalance = BalanceSpec{Avg: 3000}
	cfg.InitialBalance.applyDefaults()

	p, err := NewPlayer(cfg, rng.NewSeededRNG(1))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}
	if balance := p.GenerateInitialBalance(); balance != 3000 {
		t.Errorf("初始余额 = %f, 期望 3000", balance)
	}
}

// TestRandomEngineDecide 测试随机引擎从可用投注中选取
func TestRandomEngineDecide(t *testing.T) {
	cfg := basePlayerConfig(EngineRandom)
	p, err := NewPlayer(cfg, rng.NewSeededRNG(7))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}

	snap := &session.Snapshot{
		CurrentBalance: 10000,
		AvailableBets:  []float64{1.0, 2.0, 5.0},
	}

	valid := map[float64]bool{1.0: true, 2.0: true, 5.0: true}
	for i := 0; i < 100; i++ {
		bet, delay := p.Play("m1", snap)
		if !valid[bet] {
			t.Fatalf("投注额%f不在可用列表中", bet)
		}
		if delay < 0 || delay > 5*time.Second {
			t.Fatalf("延迟%v超出[0, 5s]", delay)
		}
	}
}

// TestPlayRejectsOverBalance 测试投注超过余额时返回-1
func TestPlayRejectsOverBalance(t *testing.T) {
	cfg := basePlayerConfig(EngineFixed)
	cfg.FixedConfig.Bet = 50
	p, err := NewPlayer(cfg, rng.NewSeededRNG(1))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}

	snap := &session.Snapshot{CurrentBalance: 10, AvailableBets: []float64{50}}
	bet, _ := p.Play("m1", snap)
	if bet != -1 {
		t.Errorf("投注超过余额应返回-1, 得到 %f", bet)
	}
}

// TestFixedEngine 测试固定引擎的投注和结束条件
func TestFixedEngine(t *testing.T) {
	cfg := basePlayerConfig(EngineFixed)
	cfg.FixedConfig = FixedEngineConfig{Bet: 2.0, Delay: 1.5, MaxSpins: 100}

	p, err := NewPlayer(cfg, rng.NewSeededRNG(1))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}

	snap := &session.Snapshot{CurrentBalance: 1000, TotalSpins: 50}
	bet, delay := p.Play("m1", snap)
	if bet != 2.0 {
		t.Errorf("投注额 = %f, 期望 2.0", bet)
	}
	if delay != 1500*time.Millisecond {
		t.Errorf("延迟 = %v, 期望 1.5s", delay)
	}
	if p.ShouldEndSession("m1", snap) {
		t.Error("未达上限不应结束")
	}

	snap.TotalSpins = 100
	if !p.ShouldEndSession("m1", snap) {
		t.Error("达到旋转上限应结束")
	}

	if p.GenerateFirstBet(1000) != 2.0 {
		t.Errorf("固定引擎首次投注应为配置值")
	}
}

// TestShouldEndOnZeroBalance 测试余额耗尽时结束
func TestShouldEndOnZeroBalance(t *testing.T) {
	cfg := basePlayerConfig(EngineFixed)
	p, err := NewPlayer(cfg, rng.NewSeededRNG(1))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}

	snap := &session.Snapshot{CurrentBalance: 0}
	if !p.ShouldEndSession("m1", snap) {
		t.Error("余额为0应结束会话")
	}
}

// TestShouldEndOnStopLoss 测试余额跌破止损线时结束
func TestShouldEndOnStopLoss(t *testing.T) {
	cfg := basePlayerConfig(EngineRandom)
	cfg.RandomConfig.EndProbability = 0
	cfg.RandomConfig.StopLossBalance = 100
	p, err := NewPlayer(cfg, rng.NewSeededRNG(1))
	if err != nil {
		t.Fatalf("创建玩家失败: %v", err)
	}

	snap := &session.Snapshot{CurrentBalance: 200, Duration: time.Minute}
	if p.ShouldEndSession("m1", snap) {
		t.Error("余额高于止损线不应结束")
	}

	snap.CurrentBalance = 99
	if !p.ShouldEndSession("m1", snap) {
		t.Error("余额跌破止损线应结束会话")
	}
}

// TestLoadPlayerConfigScalarBalance 测试标量余额写法
func TestLoadPlayerConfigScalarBalance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scalar_player.yaml")
	content := []byte(`
currency: CNY
model_version: fixed
initial_balance: 8888
model_config_fixed:
  bet: 5.0
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadPlayerConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.ID != "scalar_player" {
		t.Errorf("ID = %s, 期望文件名 scalar_player", cfg.ID)
	}
	if cfg.InitialBalance.Avg != 8888 {
		t.Errorf("余额均值 = %f, 期望 8888", cfg.InitialBalance.Avg)
	}
	if cfg.InitialBalance.Std != 0 {
		t.Errorf("标量写法std应为0, 得到 %f", cfg.InitialBalance.Std)
	}
	if cfg.FixedConfig.Bet != 5.0 {
		t.Errorf("固定投注 = %f, 期望 5.0", cfg.FixedConfig.Bet)
	}
}

// TestLoadPlayerConfigMapBalance 测试分布余额写法
func TestLoadPlayerConfigMapBalance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dist_player.yaml")
	content := []byte(`
id: vip_player
currency: USD
model_version: random
active_lines: 5
initial_balance:
  avg: 5000
  std: 1000
  min: 2000
  max: 10000
model_config_random:
  min_delay: 0.5
  max_delay: 3.0
  end_probability: 0.02
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := LoadPlayerConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.ID != "vip_player" {
		t.Errorf("ID = %s, 期望 vip_player", cfg.ID)
	}
	if cfg.InitialBalance.Std != 1000 {
		t.Errorf("std = %f, 期望 1000", cfg.InitialBalance.Std)
	}
	if cfg.ActiveLines != 5 {
		t.Errorf("active_lines = %d, 期望 5", cfg.ActiveLines)
	}
	if cfg.RandomConfig.EndProbability != 0.02 {
		t.Errorf("end_probability = %f, 期望 0.02", cfg.RandomConfig.EndProbability)
	}
}
