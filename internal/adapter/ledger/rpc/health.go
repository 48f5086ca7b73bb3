package rpc

import (
	"context"
	"fmt"
)

// HealthCheck pings the node with getHealth.
type HealthCheck struct {
	client *Client
}

func NewHealthCheck(client *Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var status string
	if err := h.client.write(ctx, "getHealth", nil, &status); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("node reports %q", status)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "ledger"
}
