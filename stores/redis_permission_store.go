package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/unionhall/policy/utils"
)

// RedisPermissionStore keeps each user's granted permission patterns in a
// Redis set (key: perm:{userID}). Exact keys are answered with SISMEMBER;
// wildcard patterns force a full SMEMBERS scan.
type RedisPermissionStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "perm:%s"
}

func NewRedisPermissionStore(client *redis.Client) *RedisPermissionStore {
	return &RedisPermissionStore{client: client, keyFmt: "perm:%s"}
}

func (r *RedisPermissionStore) key(userID string) string {
	return fmt.Sprintf(r.keyFmt, userID)
}

func (r *RedisPermissionStore) Grant(ctx context.Context, userID, permission string) error {
	return r.client.SAdd(ctx, r.key(userID), permission).Err()
}

func (r *RedisPermissionStore) Revoke(ctx context.Context, userID, permission string) error {
	return r.client.SRem(ctx, r.key(userID), permission).Err()
}

func (r *RedisPermissionStore) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(userID), permission).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	patterns, err := r.client.SMembers(ctx, r.key(userID)).Result()
	if err != nil {
		return false, err
	}
	for _, pattern := range patterns {
		if utils.MatchPermission(permission, pattern) {
			return true, nil
		}
	}
	return false, nil
}

func (r *RedisPermissionStore) Permissions(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, r.key(userID)).Result()
}
