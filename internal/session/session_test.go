package session

import (
	"math"
	"testing"
	"time"

	apperrors "github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/events"
	"github.com/wfunc/slot-simulator/internal/machine"
	"github.com/wfunc/slot-simulator/internal/rng"
)

// stubPlayer 测试用玩家，通过函数字段注入决策行为
type stubPlayer struct {
	id             string
	currency       string
	initialBalance float64
	firstBet       float64
	playFn         func(snap *Snapshot) (float64, time.Duration)
	shouldEndFn    func(snap *Snapshot) bool
}

func (p *stubPlayer) ID() string                      { return p.id }
func (p *stubPlayer) Currency() string                { return p.currency }
func (p *stubPlayer) ActiveLines() int                { return 0 }
func (p *stubPlayer) GenerateInitialBalance() float64 { return p.initialBalance }
func (p *stubPlayer) GenerateFirstBet(balance float64) float64 {
	return p.firstBet
}

func (p *stubPlayer) Play(machineID string, snap *Snapshot) (float64, time.Duration) {
	if p.playFn != nil {
		return p.playFn(snap)
	}
	return p.firstBet, time.Second
}

func (p *stubPlayer) ShouldEndSession(machineID string, snap *Snapshot) bool {
	if p.shouldEndFn != nil {
		return p.shouldEndFn(snap)
	}
	return false
}

func newStubPlayer(balance float64) *stubPlayer {
	return &stubPlayer{
		id:             "test_player",
		currency:       "CNY",
		initialBalance: balance,
		firstBet:       1.0,
	}
}

// neverWinMachine 每个卷轴单一且互不相同的符号，任何支付线都不可能中奖
func neverWinMachine() *machine.SlotMachine {
	cfg := &machine.MachineConfig{
		ID:         "never_win",
		WindowSize: 3,
		Symbols: machine.SymbolsConfig{
			Normal:  []int{1, 2, 3, 4, 5},
			Wild:    []int{101},
			Scatter: 20,
		},
		FreeSpins: machine.FreeSpinsConfig{Count: 5, Multiplier: 2},
		Reels: map[string]map[string][]int{
			"normal": {
				"reel1": {1},
				"reel2": {2},
				"reel3": {3},
				"reel4": {4},
				"reel5": {5},
			},
		},
		Paylines: []machine.PaylineConfig{
			{Indices: []int{0, 1, 2, 3, 4}},
		},
		PayTable: []machine.PayTableEntry{
			{Symbol: "1", Payouts: []float64{5, 20, 100}},
		},
		BetTable: []machine.BetTableEntry{
			{Currency: "CNY", BetOptions: []float64{1.0, 10.0}},
		},
	}
	return machine.NewSlotMachine(cfg, rng.NewSeededRNG(1))
}

// alwaysWinMachine 全部卷轴都是符号0，每次旋转都五连中奖
func alwaysWinMachine() *machine.SlotMachine {
	cfg := &machine.MachineConfig{
		ID:         "always_win",
		WindowSize: 3,
		Symbols: machine.SymbolsConfig{
			Normal:  []int{0},
			Wild:    []int{101},
			Scatter: 20,
		},
		FreeSpins: machine.FreeSpinsConfig{Count: 5, Multiplier: 2},
		Reels: map[string]map[string][]int{
			"normal": {
				"reel1": {0},
				"reel2": {0},
				"reel3": {0},
				"reel4": {0},
				"reel5": {0},
			},
		},
		Paylines: []machine.PaylineConfig{
			{Indices: []int{0, 1, 2, 3, 4}},
		},
		PayTable: []machine.PayTableEntry{
			{Symbol: "0", Payouts: []float64{5, 20, 100}},
		},
		BetTable: []machine.BetTableEntry{
			{Currency: "CNY", BetOptions: []float64{1.0}},
		},
	}
	return machine.NewSlotMachine(cfg, rng.NewSeededRNG(1))
}

// scatterMachine 前三卷轴全是scatter，普通旋转必触发免费旋转
func scatterMachine() *machine.SlotMachine {
	cfg := &machine.MachineConfig{
		ID:         "scatter_machine",
		WindowSize: 3,
		Symbols: machine.SymbolsConfig{
			Normal:  []int{1, 2, 3, 4, 5},
			Wild:    []int{101},
			Scatter: 20,
		},
		FreeSpins: machine.FreeSpinsConfig{Count: 3, Multiplier: 2},
		Reels: map[string]map[string][]int{
			"normal": {
				"reel1": {20},
				"reel2": {20},
				"reel3": {20},
				"reel4": {4},
				"reel5": {5},
			},
		},
		Paylines: []machine.PaylineConfig{
			{Indices: []int{0, 1, 2, 3, 4}},
		},
		PayTable: []machine.PayTableEntry{
			{Symbol: "1", Payouts: []float64{5, 20, 100}},
			{Symbol: "20", Payouts: []float64{5, 10, 20}},
		},
		BetTable: []machine.BetTableEntry{
			{Currency: "CNY", BetOptions: []float64{1.0, 2.0}},
		},
	}
	return machine.NewSlotMachine(cfg, rng.NewSeededRNG(1))
}

// TestSessionLifecycle 测试状态机转换约束
func TestSessionLifecycle(t *testing.T) {
	s := NewGamingSession("s1", newStubPlayer(100), neverWinMachine(), nil, nil)

	if s.State() != StateNotStarted {
		t.Fatalf("初始状态 = %s, 期望 not_started", s.State())
	}

	// 未开始时不能旋转也不能结束
	if _, err := s.ExecuteSpin(1.0); !apperrors.Is(err, apperrors.ErrSessionNotActive) {
		t.Errorf("未开始旋转应返回ErrSessionNotActive, 得到 %v", err)
	}
	if err := s.End(); !apperrors.Is(err, apperrors.ErrSessionEnded) {
		t.Errorf("未开始结束应返回错误, 得到 %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	if s.State() != StateActive {
		t.Errorf("启动后状态 = %s, 期望 active", s.State())
	}

	// 重复启动被拒绝
	if err := s.Start(); err == nil {
		t.Error("重复启动应返回错误")
	}

	if err := s.End(); err != nil {
		t.Fatalf("结束失败: %v", err)
	}
	if s.State() != StateEnded {
		t.Errorf("结束后状态 = %s, 期望 ended", s.State())
	}

	// 结束后不能再旋转或结束
	if _, err := s.ExecuteSpin(1.0); err == nil {
		t.Error("结束后旋转应返回错误")
	}
	if err := s.End(); err == nil {
		t.Error("重复结束应返回错误")
	}
}

// TestExecuteSpinValidation 测试投注校验
func TestExecuteSpinValidation(t *testing.T) {
	s := NewGamingSession("s2", newStubPlayer(100), neverWinMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	tests := []struct {
		name string
		bet  float64
		code apperrors.ErrorCode
	}{
		{"零投注", 0, apperrors.ErrInvalidBet},
		{"负投注", -5, apperrors.ErrInvalidBet},
		{"超出余额", 100.01, apperrors.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ExecuteSpin(tt.bet)
			if !apperrors.Is(err, tt.code) {
				t.Errorf("期望错误码 %d, 得到 %v", tt.code, err)
			}
		})
	}

	// 投注等于余额是允许的
	if _, err := s.ExecuteSpin(100); err != nil {
		t.Errorf("投注等于余额应被允许, 得到 %v", err)
	}
}

// TestSpinBalanceAndStreak 测试规定场景：100余额投注10无中奖
func TestSpinBalanceAndStreak(t *testing.T) {
	player := newStubPlayer(100)
	s := NewGamingSession("s3", player, neverWinMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	result, err := s.ExecuteSpin(10)
	if err != nil {
		t.Fatalf("旋转失败: %v", err)
	}

	if result.Payout != 0 {
		t.Errorf("中奖 = %f, 期望 0", result.Payout)
	}
	if s.Balance() != 90 {
		t.Errorf("余额 = %f, 期望 90", s.Balance())
	}
	if s.Stats().TotalSpins != 1 {
		t.Errorf("总旋转 = %d, 期望 1", s.Stats().TotalSpins)
	}
	if s.Stats().WinCount != 0 {
		t.Errorf("中奖次数 = %d, 期望 0", s.Stats().WinCount)
	}
	if result.Streak != -1 {
		t.Errorf("streak = %d, 期望 -1", result.Streak)
	}
}

// TestStreakAccumulation 测试连败与连胜的streak累计
func TestStreakAccumulation(t *testing.T) {
	// 连败机器
	s := NewGamingSession("s4", newStubPlayer(100), neverWinMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	wantLose := []int{-1, -2, -3}
	for i, want := range wantLose {
		result, err := s.ExecuteSpin(1)
		if err != nil {
			t.Fatalf("旋转%d失败: %v", i, err)
		}
		if result.Streak != want {
			t.Errorf("第%d次streak = %d, 期望 %d", i+1, result.Streak, want)
		}
	}

	// 连胜机器
	s2 := NewGamingSession("s5", newStubPlayer(100), alwaysWinMachine(), nil, nil)
	if err := s2.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	wantWin := []int{1, 2, 3}
	for i, want := range wantWin {
		result, err := s2.ExecuteSpin(1)
		if err != nil {
			t.Fatalf("旋转%d失败: %v", i, err)
		}
		if result.Streak != want {
			t.Errorf("第%d次streak = %d, 期望 %d", i+1, result.Streak, want)
		}
	}
}

// TestBigWinStats 测试大奖阈值和统计
func TestBigWinStats(t *testing.T) {
	s := NewGamingSession("s6", newStubPlayer(100), alwaysWinMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	// 五连0赔100倍，单线启用 → 赔率100 ≥ 10
	result, err := s.ExecuteSpin(1)
	if err != nil {
		t.Fatalf("旋转失败: %v", err)
	}
	if !result.BigWin {
		t.Error("赔率100应标记为大奖")
	}
	if s.Stats().BigWinCount != 1 {
		t.Errorf("大奖计数 = %d, 期望 1", s.Stats().BigWinCount)
	}
}

// TestFreeSpinsFlow 测试免费旋转触发、基础投注覆盖和投注统计排除
func TestFreeSpinsFlow(t *testing.T) {
	s := NewGamingSession("s7", newStubPlayer(100), scatterMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	// 触发旋转
	result, err := s.ExecuteSpin(2.0)
	if err != nil {
		t.Fatalf("旋转失败: %v", err)
	}
	if !result.FreeSpinsTriggered {
		t.Fatal("应触发免费旋转")
	}
	if !s.InFreeSpins() {
		t.Fatal("会话应进入免费旋转状态")
	}
	if s.FreeSpinsRemaining() != 3 {
		t.Errorf("剩余免费旋转 = %d, 期望 3", s.FreeSpinsRemaining())
	}

	betAfterTrigger := s.Stats().TotalBet

	// 免费旋转：传入的投注额被基础投注覆盖，且不计入total_bet
	freeResult, err := s.ExecuteSpin(999)
	if err != nil {
		t.Fatalf("免费旋转失败: %v", err)
	}
	if freeResult.Bet != 2.0 {
		t.Errorf("免费旋转投注 = %f, 期望基础投注 2.0", freeResult.Bet)
	}
	if s.Stats().TotalBet != betAfterTrigger {
		t.Errorf("免费旋转不应计入total_bet: %f != %f", s.Stats().TotalBet, betAfterTrigger)
	}
	if s.Stats().FreeSpinsCount != 1 {
		t.Errorf("免费旋转计数 = %d, 期望 1", s.Stats().FreeSpinsCount)
	}

	// 执行剩余免费旋转直到序列结束
	for s.InFreeSpins() {
		if _, err := s.ExecuteSpin(0); err != nil {
			t.Fatalf("免费旋转失败: %v", err)
		}
	}
	if s.State() != StateActive {
		t.Errorf("免费旋转结束后状态 = %s, 期望 active", s.State())
	}
}

// TestBalanceConservation 测试余额守恒
// 最终余额 = 初始余额 - 计费投注 + 全部中奖
func TestBalanceConservation(t *testing.T) {
	s := NewGamingSession("s8", newStubPlayer(1000), scatterMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	var chargedBets, totalPayouts float64
	for i := 0; i < 50; i++ {
		wasFree := s.InFreeSpins()
		result, err := s.ExecuteSpin(2.0)
		if err != nil {
			t.Fatalf("旋转%d失败: %v", i, err)
		}
		if !wasFree {
			chargedBets += result.Bet
		}
		totalPayouts += result.Payout
	}

	want := 1000 - chargedBets + totalPayouts
	if math.Abs(s.Balance()-want) > 1e-9 {
		t.Errorf("余额 = %f, 期望 %f", s.Balance(), want)
	}
	if math.Abs(s.Stats().TotalBet-chargedBets) > 1e-9 {
		t.Errorf("total_bet = %f, 期望 %f", s.Stats().TotalBet, chargedBets)
	}
}

// TestSnapshotRecentResults 测试快照只携带最近的旋转结果
func TestSnapshotRecentResults(t *testing.T) {
	s := NewGamingSession("s9", newStubPlayer(1000), neverWinMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	for i := 0; i < 15; i++ {
		if _, err := s.ExecuteSpin(1); err != nil {
			t.Fatalf("旋转%d失败: %v", i, err)
		}
	}

	snap := s.Snapshot()
	if len(snap.RecentResults) != NumTrackBack {
		t.Errorf("快照结果数 = %d, 期望 %d", len(snap.RecentResults), NumTrackBack)
	}
	// 应是最近的结果
	last := snap.RecentResults[len(snap.RecentResults)-1]
	if last.SpinNumber != 15 {
		t.Errorf("最后结果序号 = %d, 期望 15", last.SpinNumber)
	}
	if snap.CurrentBalance != s.Balance() {
		t.Errorf("快照余额 = %f, 期望 %f", snap.CurrentBalance, s.Balance())
	}
}

// TestSessionEvents 测试会话事件派发
func TestSessionEvents(t *testing.T) {
	d := events.NewDispatcher()
	var received []events.EventType
	d.SubscribeAll(func(e events.Event) {
		received = append(received, e.Type)
	})

	s := NewGamingSession("s10", newStubPlayer(100), scatterMachine(), d, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	if _, err := s.ExecuteSpin(1); err != nil {
		t.Fatalf("旋转失败: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("结束失败: %v", err)
	}

	want := map[events.EventType]bool{
		events.SessionStarted:     true,
		events.FreeSpinsTriggered: true,
		events.SpinCompleted:      true,
		events.SessionEnded:       true,
	}
	got := make(map[events.EventType]bool)
	for _, et := range received {
		got[et] = true
	}
	for et := range want {
		if !got[et] {
			t.Errorf("缺少事件: %s", et)
		}
	}
}

// TestStatsToMap 测试统计摘要键名
func TestStatsToMap(t *testing.T) {
	s := NewGamingSession("s11", newStubPlayer(100), alwaysWinMachine(), nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	if _, err := s.ExecuteSpin(1); err != nil {
		t.Fatalf("旋转失败: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("结束失败: %v", err)
	}

	m := s.Stats().ToMap()
	wantKeys := []string{
		"session_id", "player_id", "machine_id", "total_spins", "win_count",
		"win_rate", "total_bet", "total_win", "total_profit", "base_game_win",
		"free_game_win", "return_to_player", "bonus_triggered",
		"free_spins_count", "big_win_count", "start_balance", "end_balance",
		"balance_change",
	}
	for _, k := range wantKeys {
		if _, ok := m[k]; !ok {
			t.Errorf("摘要缺少键: %s", k)
		}
	}

	if m["total_spins"].(int64) != 1 {
		t.Errorf("total_spins = %v, 期望 1", m["total_spins"])
	}
	if m["return_to_player"].(float64) != 100.0 {
		t.Errorf("return_to_player = %v, 期望 100", m["return_to_player"])
	}
}
