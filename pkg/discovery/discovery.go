package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/preorder/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const leaseTTL = 30 // seconds

// Registry announces the web service in etcd under a lease that lives as long
// as the process keeps it alive.
type Registry struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// AdvertiseHost picks the host to publish for an instance listening on
// listenHost. An explicit advertise host wins; a wildcard or empty listen
// host cannot be dialed by peers and yields false.
func AdvertiseHost(listenHost, advertise string) (string, bool) {
	if h := strings.TrimSpace(advertise); h != "" {
		return h, true
	}
	switch strings.TrimSpace(listenHost) {
	case "", "0.0.0.0", "::", "[::]":
		return "", false
	}
	return listenHost, true
}

// Key returns the etcd key an instance is registered under.
func Key(prefix string, instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", prefix, instance.Name, instance.Addr())
}

func NewRegistry(cfg *config.EtcdConfig, logger *zap.Logger) (*Registry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &Registry{
		client: cli,
		config: cfg,
		logger: logger,
	}, nil
}

// Register puts the instance key and keeps its lease alive until ctx is done.
func (r *Registry) Register(ctx context.Context, instance *ServiceInstance) error {
	lease, err := r.client.Grant(ctx, leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = r.client.Put(ctx, Key(r.config.Prefix, instance), instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}

	go func() {
		for range ch {
		}
		r.logger.Info("etcd lease keep-alive ended", zap.String("service", instance.Name))
	}()

	return nil
}

func (r *Registry) Deregister(ctx context.Context, instance *ServiceInstance) error {
	_, err := r.client.Delete(ctx, Key(r.config.Prefix, instance))
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (r *Registry) Close() error {
	return r.client.Close()
}
