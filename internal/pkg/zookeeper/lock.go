// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/pulsecart/locks"

// Conn 封装了一个 ZooKeeper 会话。
type Conn struct {
	conn *zk.Conn
}

// Connect 建立到 ZooKeeper 集群的会话。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Close 关闭会话，会话上持有的临时节点（包括锁）随之释放。
func (c *Conn) Close() {
	c.conn.Close()
}

// DistributedLock 是基于临时顺序节点的分布式互斥锁。
// 对账任务用它保证同一时刻只有一个实例在回写数据库。
type DistributedLock struct {
	lock *zk.Lock
}

// NewDistributedLock 为指定资源创建一把锁。
// resourceID 会成为锁路径的一部分，例如 /pulsecart/locks/stock-reconcile。
func NewDistributedLock(conn *Conn, resourceID string) *DistributedLock {
	path := lockRoot + "/" + resourceID
	return &DistributedLock{
		lock: zk.NewLock(conn.conn, path, zk.WorldACL(zk.PermAll)),
	}
}

// Lock 阻塞直到获取锁。
func (l *DistributedLock) Lock() error {
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire zookeeper lock: %w", err)
	}
	return nil
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil && err != zk.ErrNotLocked {
		return fmt.Errorf("failed to release zookeeper lock: %w", err)
	}
	return nil
}
