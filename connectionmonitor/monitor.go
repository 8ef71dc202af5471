// Package connectionmonitor keeps a long-lived RPC connection healthy by
// periodically pinging it and reconnecting when the ping fails.
package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// healthCheckInterval defines interval between endpoint health checks
	healthCheckInterval = 30 * time.Second
	// reconnectTimeout defines timeout between reconnection attempts
	reconnectTimeout = 5 * time.Second
	// maxReconnectAttempts defines maximum number of reconnection attempts
	maxReconnectAttempts = 3
)

// EndpointMonitor represents endpoint health monitoring interface
type EndpointMonitor interface {
	// Start starts endpoint monitoring
	Start(ctx context.Context) error
	// Stop stops endpoint monitoring
	Stop()
}

// Endpoint represents a monitorable RPC endpoint
type Endpoint interface {
	// CheckConnection checks if the endpoint is reachable and healthy
	CheckConnection(ctx context.Context) error
	// Reconnect rebuilds the underlying connection
	Reconnect(ctx context.Context) error
}

type endpointMonitor struct {
	endpoint     Endpoint
	logger       *logrus.Logger
	name         string
	stopChan     chan struct{}
	isMonitoring bool
	monitorMutex sync.RWMutex
}

// NewEndpointMonitor creates a monitor for the named endpoint.
func NewEndpointMonitor(endpoint Endpoint, logger *logrus.Logger, name string) EndpointMonitor {
	return &endpointMonitor{
		endpoint: endpoint,
		logger:   logger,
		name:     name,
		stopChan: make(chan struct{}),
	}
}

// Start starts endpoint monitoring in a background goroutine.
func (m *endpointMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	if m.isMonitoring {
		m.monitorMutex.Unlock()
		return errors.Errorf("monitor is already running for endpoint %s", m.name)
	}
	m.isMonitoring = true
	m.monitorMutex.Unlock()

	go m.monitorEndpoint(ctx)
	return nil
}

// Stop stops endpoint monitoring.
func (m *endpointMonitor) Stop() {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if !m.isMonitoring {
		return
	}

	close(m.stopChan)
	m.isMonitoring = false
}

func (m *endpointMonitor) monitorEndpoint(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("endpoint", m.name).Info("Endpoint monitoring stopped due to context cancellation")
			return

		case <-m.stopChan:
			m.logger.WithField("endpoint", m.name).Info("Endpoint monitoring stopped")
			return

		case <-ticker.C:
			if err := m.checkAndReconnect(ctx); err != nil {
				m.logger.WithFields(logrus.Fields{
					"endpoint": m.name,
					"error":    err,
				}).Error("Failed to check or reconnect")
			}
		}
	}
}

// checkAndReconnect pings the endpoint and retries reconnection with a fixed
// delay when the ping fails.
func (m *endpointMonitor) checkAndReconnect(ctx context.Context) error {
	if err := m.endpoint.CheckConnection(ctx); err != nil {
		m.logger.WithFields(logrus.Fields{
			"endpoint": m.name,
			"error":    err,
		}).Warn("Health check failed, attempting to reconnect")

		for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
			if err := m.endpoint.Reconnect(ctx); err != nil {
				m.logger.WithFields(logrus.Fields{
					"endpoint": m.name,
					"attempt":  attempt,
					"error":    err,
				}).Error("Reconnection attempt failed")

				if attempt == maxReconnectAttempts {
					return errors.Wrapf(err, "failed to reconnect to endpoint %s", m.name)
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectTimeout):
					continue
				}
			}

			m.logger.WithFields(logrus.Fields{
				"endpoint": m.name,
				"attempt":  attempt,
			}).Info("Endpoint successfully reconnected")
			return nil
		}
	}

	return nil
}
