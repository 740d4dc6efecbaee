package config

import (
	"testing"
	"time"
)

// TestInitDefaults 测试无配置文件时使用默认值
func TestInitDefaults(t *testing.T) {
	if err := Init(""); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}

	cfg := Get()
	if cfg == nil {
		t.Fatal("配置实例为空")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, 期望 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database.driver = %s, 期望 sqlite", cfg.Database.Driver)
	}
	if cfg.WebSocket.Path != "/ws/progress" {
		t.Errorf("websocket.path = %s, 期望 /ws/progress", cfg.WebSocket.Path)
	}
	if cfg.Simulator.SessionsPerPair != 1 {
		t.Errorf("sessions_per_pair = %d, 期望 1", cfg.Simulator.SessionsPerPair)
	}
	if cfg.Simulator.Pool.Size != 8 {
		t.Errorf("pool.size = %d, 期望 8", cfg.Simulator.Pool.Size)
	}
	if cfg.Simulator.Pool.AcquireTimeout != 5*time.Second {
		t.Errorf("pool.acquire_timeout = %v, 期望 5s", cfg.Simulator.Pool.AcquireTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %s, 期望 info", cfg.Log.Level)
	}
}

// TestRunnerDefaultsUnlimited 测试运行器限制默认不设上限
func TestRunnerDefaultsUnlimited(t *testing.T) {
	if err := Init(""); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}

	r := Get().Simulator.Runner
	if r.MaxSpins != 0 || r.MaxSimDuration != 0 || r.MaxPlayerDuration != 0 {
		t.Errorf("运行器限制默认应为0（不限制）, 得到 %+v", r)
	}
}
