package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"crewboard/backend/config"
)

// Client Redis 客户端封装
// 当前用于系列编辑会话标记与速率限制；后续可扩展缓存等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 系列编辑会话标记 ──
//
// 对系列成员发起编辑时，前端需要弹出"仅此次/整个系列"的范围选择。
// 这里按 用户+实例 记录一次性标记，保证同一次编辑尝试内不重复弹窗。
// 标记是纯会话态，带 TTL，不落库。

const editPromptPrefix = "series:edit-prompt:"

func editPromptKey(userID, practiceID string) string {
	return editPromptPrefix + userID + ":" + practiceID
}

// MarkEditPrompted 记录"已向该用户展示过范围选择"，TTL 过期后自动失效
func (c *Client) MarkEditPrompted(ctx context.Context, userID, practiceID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, editPromptKey(userID, practiceID), "1", ttl).Err()
}

// WasEditPrompted 查询当前编辑尝试中是否已展示过范围选择
func (c *Client) WasEditPrompted(ctx context.Context, userID, practiceID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, editPromptKey(userID, practiceID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearEditPrompted 编辑落定后清除标记，下一次编辑尝试重新弹窗
func (c *Client) ClearEditPrompted(ctx context.Context, userID, practiceID string) error {
	return c.rdb.Del(ctx, editPromptKey(userID, practiceID)).Err()
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数器限流
// 返回 true 表示放行；第一次计数时设置窗口过期
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
