package idgen

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// Generator 递增 ID 生成器
// 使用 Sonyflake 算法生成全局唯一且递增的 ID
type Generator struct {
	sf *sonyflake.Sonyflake
}

var (
	defaultGenerator     *Generator
	defaultGeneratorOnce sync.Once
)

// DefaultGenerator 返回默认的 ID 生成器
func DefaultGenerator() *Generator {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = New()
	})
	return defaultGenerator
}

// New 创建新的 ID 生成器
func New() *Generator {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if sf == nil {
		// 没有私有 IP 时无法推导机器 ID，退化为使用进程号
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			MachineID: func() (uint16, error) {
				return uint16(os.Getpid()), nil
			},
		})
	}

	return &Generator{
		sf: sf,
	}
}

// generateIDWithPrefix 生成带前缀的 ID
func (g *Generator) generateIDWithPrefix(prefix, errorMsg string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errorMsg, err)
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// GenerateRequestID 生成请求 ID（格式：req-{递增 ID}）
func (g *Generator) GenerateRequestID() (string, error) {
	return g.generateIDWithPrefix("req", "generate request ID")
}

// GenerateSweepID 生成完整性巡检批次 ID（格式：sweep-{递增 ID}）
func (g *Generator) GenerateSweepID() (string, error) {
	return g.generateIDWithPrefix("sweep", "generate sweep ID")
}

// GenerateID 生成通用递增 ID
func (g *Generator) GenerateID() (uint64, error) {
	return g.sf.NextID()
}

// GenerateRequestID 使用默认生成器生成请求 ID
func GenerateRequestID() (string, error) {
	return DefaultGenerator().GenerateRequestID()
}

// GenerateSweepID 使用默认生成器生成巡检批次 ID
func GenerateSweepID() (string, error) {
	return DefaultGenerator().GenerateSweepID()
}

// GenerateID 使用默认生成器生成通用递增 ID
func GenerateID() (uint64, error) {
	return DefaultGenerator().GenerateID()
}
