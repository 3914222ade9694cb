// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package provider defines where storefront reads its configuration from.
//
// A source is either a local file or a key in a remote store (Consul KV,
// etcd, ZooKeeper). Every source can be watched; the watch channel fires
// once per observed change and is closed when the context ends.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type identifies a configuration source.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a CLI/env string into a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown config source %q (valid: file, consul, etcd, zookeeper)", s)
	}
}

// Provider loads raw configuration bytes and signals changes.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Type() Type

	// Load returns the current configuration document.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the document changes.
	// The channel is closed when ctx is done or the provider is closed.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// Options selects and configures a Provider.
type Options struct {
	Type Type

	// Path is a file path for TypeFile and a key for remote stores.
	Path string

	// Endpoints lists remote store addresses.
	Endpoints []string

	// DialTimeout bounds the initial connection to a remote store.
	DialTimeout time.Duration
}

const defaultDialTimeout = 10 * time.Second

// New builds the Provider described by opts.
func New(opts Options) (Provider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	switch opts.Type {
	case TypeFile, "":
		return NewFileProvider(opts.Path)
	case TypeConsul:
		return NewConsulProvider(opts.Endpoints, opts.Path)
	case TypeEtcd:
		return NewEtcdProvider(opts.Endpoints, opts.Path, opts.DialTimeout)
	case TypeZookeeper:
		return NewZookeeperProvider(opts.Endpoints, opts.Path, opts.DialTimeout)
	default:
		return nil, fmt.Errorf("unknown config source: %s", opts.Type)
	}
}

// notify performs a non-blocking send; a pending signal already covers the change.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
