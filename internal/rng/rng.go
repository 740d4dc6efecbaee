package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
)

// Strategy 随机数策略接口
// 机器和玩家通过该接口取随机数，便于测试时注入固定序列
type Strategy interface {
	// GetRandomInt 返回[min, max]区间内的随机整数（含两端）
	GetRandomInt(min, max int) int
	// GetRandomFloat 返回[0.0, 1.0)区间内的随机浮点数
	GetRandomFloat() float64
	// Normal 返回服从正态分布N(mean, std)的随机数
	Normal(mean, std float64) float64
	// Seed 重置随机种子
	Seed(seed int64)
}

// SeededRNG 可重现的伪随机数策略
type SeededRNG struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededRNG 创建指定种子的随机数策略
func NewSeededRNG(seed int64) *SeededRNG {
	return &SeededRNG{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GetRandomInt 返回[min, max]区间内的随机整数
func (r *SeededRNG) GetRandomInt(min, max int) int {
	if min >= max {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.Intn(max-min+1)
}

// GetRandomFloat 返回[0.0, 1.0)区间内的随机浮点数
func (r *SeededRNG) GetRandomFloat() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Normal 返回服从正态分布的随机数
func (r *SeededRNG) Normal(mean, std float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.NormFloat64()*std + mean
}

// Seed 重置随机种子
func (r *SeededRNG) Seed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng = rand.New(rand.NewSource(seed))
}

// CryptoRNG 基于crypto/rand的随机数策略
// 不可重现，种子调用被忽略
type CryptoRNG struct{}

// NewCryptoRNG 创建加密级随机数策略
func NewCryptoRNG() *CryptoRNG {
	return &CryptoRNG{}
}

// GetRandomInt 返回[min, max]区间内的随机整数
func (r *CryptoRNG) GetRandomInt(min, max int) int {
	if min >= max {
		return min
	}
	span := uint64(max - min + 1)
	return min + int(r.randUint64()%span)
}

// GetRandomFloat 返回[0.0, 1.0)区间内的随机浮点数
func (r *CryptoRNG) GetRandomFloat() float64 {
	// 取53位尾数精度
	return float64(r.randUint64()>>11) / float64(1<<53)
}

// Normal 返回服从正态分布的随机数（Box-Muller变换）
func (r *CryptoRNG) Normal(mean, std float64) float64 {
	u1 := r.GetRandomFloat()
	u2 := r.GetRandomFloat()
	for u1 == 0 {
		u1 = r.GetRandomFloat()
	}
	z := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
	return z*std + mean
}

// Seed 无操作，加密随机数不接受种子
func (r *CryptoRNG) Seed(seed int64) {}

func (r *CryptoRNG) randUint64() uint64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// crypto/rand读失败时退化为math/rand
		return rand.Uint64()
	}
	return binary.LittleEndian.Uint64(buf[:])
}
