// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 客户端，并维护了一个 Lua 脚本注册表。
// 脚本在加载时预先 SCRIPT LOAD，运行时通过 EVALSHA 执行，降低网络开销。
type Client struct {
	rdb *goredis.Client

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 创建一个新的 Redis 客户端包装。
func NewClient(addr, password string, db int) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{
		rdb:     rdb,
		scripts: make(map[string]*goredis.Script),
	}
}

// GetClient 暴露底层客户端，供需要 pipeline 等高级操作的调用方使用。
func (c *Client) GetClient() *goredis.Client {
	return c.rdb
}

// LoadScriptFromContent 注册一段 Lua 脚本，后续可以用名字执行。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if content == "" {
		return fmt.Errorf("empty script content for %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// RunScript 按名字执行已注册的脚本。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %q is not registered", name)
	}
	return script.Run(ctx, c.rdb, keys, args...).Result()
}

// Ping 检查连接可用性。
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}
