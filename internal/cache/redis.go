package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedis connects to redis and checks the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2, // Connection protocol
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logrus.Infof("connected to redis at %s", addr)

	return client, nil
}
