// internal/service/flashsale/infrastructure/adapter/ledger_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"pulsecart/internal/pkg/redis"
	"pulsecart/internal/service/flashsale/domain"
)

const adjustScriptName = "stock_adjust"

// 调整脚本：Key 不存在时报错而不是从 0 开始计数，
// 防止未播种的商品被 INCRBY 凭空创造出库存。
const adjustScript = `
local v = redis.call('GET', KEYS[1])
if not v then
  return redis.error_reply('UNINITIALIZED')
end
return redis.call('INCRBY', KEYS[1], ARGV[1])
`

// RedisLedger 是 port.StockLedger 的 Redis 实现。
// Lua 脚本在 Redis 单线程模型下天然满足"调整即读取"的原子契约，
// 也正因为如此，这个账本只能指向单个串行化的 Redis 实例——
// 换成弱一致的多副本存储，无超卖不变量就不再成立。
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	_ = client.LoadScriptFromContent(adjustScriptName, adjustScript)
	return &RedisLedger{client: client}
}

func stockKey(productID string) string {
	// hash tag 保证同一商品的 Key 在集群模式下落在同一槽位
	return fmt.Sprintf("flashsale:stock:{%s}", productID)
}

func (l *RedisLedger) Get(ctx context.Context, productID string) (int64, error) {
	val, err := l.client.GetClient().Get(ctx, stockKey(productID)).Int64()
	if err == goredis.Nil {
		return 0, domain.ErrStockNotInitialized
	}
	if err != nil {
		if _, convErr := l.client.GetClient().Get(ctx, stockKey(productID)).Result(); convErr == nil {
			// Key 存在但不是整数，计数器已不可信
			return 0, errors.Wrapf(domain.ErrLedgerCorrupted, "non-numeric stock value for %s", productID)
		}
		return 0, errors.Wrap(err, "redis ledger get failed")
	}
	return val, nil
}

// Seed 用 SETNX 实现幂等播种。
func (l *RedisLedger) Seed(ctx context.Context, productID string, quantity int64) error {
	if err := l.client.GetClient().SetNX(ctx, stockKey(productID), quantity, 0).Err(); err != nil {
		return errors.Wrap(err, "redis ledger seed failed")
	}
	return nil
}

func (l *RedisLedger) Reset(ctx context.Context, productID string, quantity int64) error {
	if err := l.client.GetClient().Set(ctx, stockKey(productID), quantity, 0).Err(); err != nil {
		return errors.Wrap(err, "redis ledger reset failed")
	}
	return nil
}

// AtomicAdjust 执行调整脚本，返回调整后的值。
func (l *RedisLedger) AtomicAdjust(ctx context.Context, productID string, delta int64) (int64, error) {
	res, err := l.client.RunScript(ctx, adjustScriptName, []string{stockKey(productID)}, delta)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "UNINITIALIZED"):
			return 0, domain.ErrStockNotInitialized
		case strings.Contains(err.Error(), "not an integer"):
			return 0, errors.Wrapf(domain.ErrLedgerCorrupted, "non-numeric stock value for %s", productID)
		default:
			return 0, errors.Wrap(err, "redis ledger adjust failed")
		}
	}
	val, ok := res.(int64)
	if !ok {
		return 0, errors.Wrapf(domain.ErrLedgerCorrupted, "unexpected script result %T for %s", res, productID)
	}
	return val, nil
}
