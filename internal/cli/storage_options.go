package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/internal/config"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/store/memory"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/store/redis"
)

// storageOptions carries the backend flags shared by serve. Flags the
// user did not set fall back to whatever the config file loaded.
type storageOptions struct {
	backend           string
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
}

func (o *storageOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.backend, "storage", "", "storage backend (memory, redis)")
	cmd.Flags().StringVar(&o.redisHost, "redis-host", "", "redis host (or host:port)")
	cmd.Flags().IntVar(&o.redisPort, "redis-port", 0, "redis port")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	cmd.Flags().StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
}

// apply overlays the explicitly set flags onto cfg.
func (o *storageOptions) apply(cmd *cobra.Command, cfg *config.StorageConfig) error {
	if cmd.Flags().Changed("storage") {
		cfg.Backend = o.backend
	}
	if cmd.Flags().Changed("redis-host") {
		host, port, err := splitRedisHostPort(o.redisHost, cfg.Redis.Port)
		if err != nil {
			return err
		}
		cfg.Redis.Host = host
		cfg.Redis.Port = port
	}
	if cmd.Flags().Changed("redis-port") {
		cfg.Redis.Port = o.redisPort
	}
	if cmd.Flags().Changed("redis-password") {
		cfg.Redis.Password = o.redisPassword
	}
	if cmd.Flags().Changed("redis-db") {
		cfg.Redis.DB = o.redisDB
	}
	if cmd.Flags().Changed("redis-cluster") {
		cfg.Redis.Cluster = o.redisCluster
	}
	if cmd.Flags().Changed("redis-cluster-nodes") {
		cfg.Redis.ClusterNodes = append([]string(nil), o.redisClusterNodes...)
	}
	return nil
}

// openStore builds the configured store. The returned closer is a
// no-op for backends without connections.
func openStore(cfg config.StorageConfig) (limiter.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), func() error { return nil }, nil
	case config.BackendRedis:
		st, err := redis.New(&redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Cluster:      cfg.Redis.Cluster,
			ClusterNodes: cfg.Redis.ClusterNodes,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func splitRedisHostPort(host string, fallbackPort int) (string, int, error) {
	port := fallbackPort
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	return host, port, nil
}
