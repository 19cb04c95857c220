package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/thedomainai/agentic-stack/internal/config"
)

const secretPrefix = "/secrets/"

// EtcdStore keeps secrets as JSON blobs under a dedicated etcd key prefix.
type EtcdStore struct {
	cli *clientv3.Client
}

var _ Store = (*EtcdStore)(nil)

// NewEtcdStore connects to the etcd cluster holding the secrets.
func NewEtcdStore(cfg *config.EtcdConfig) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to etcd: %w", err)
	}
	return &EtcdStore{cli: cli}, nil
}

func (s *EtcdStore) Get(ctx context.Context, path string) (map[string]string, error) {
	resp, err := s.cli.Get(ctx, secretPrefix+path)
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", path, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	var secret map[string]string
	if err := json.Unmarshal(resp.Kvs[0].Value, &secret); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", path, err)
	}
	return secret, nil
}

func (s *EtcdStore) Set(ctx context.Context, path string, secret map[string]string) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("encode secret %s: %w", path, err)
	}
	if _, err := s.cli.Put(ctx, secretPrefix+path, string(data)); err != nil {
		return fmt.Errorf("store secret %s: %w", path, err)
	}
	return nil
}

func (s *EtcdStore) Delete(ctx context.Context, path string) error {
	if _, err := s.cli.Delete(ctx, secretPrefix+path); err != nil {
		return fmt.Errorf("delete secret %s: %w", path, err)
	}
	return nil
}

func (s *EtcdStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if len(s.cli.Endpoints()) == 0 {
		return fmt.Errorf("no etcd endpoints configured")
	}
	_, err := s.cli.Status(ctx, s.cli.Endpoints()[0])
	return err
}

func (s *EtcdStore) Close() error {
	return s.cli.Close()
}
