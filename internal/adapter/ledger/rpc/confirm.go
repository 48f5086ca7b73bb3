package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/pkg/apperror"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var commitmentRank = map[string]int{
	"processed": 0,
	"confirmed": 1,
	"finalized": 2,
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// ConfirmTransaction waits for signature to reach the configured commitment.
// With a websocket endpoint it subscribes to signature notifications and
// falls back to polling getSignatureStatuses if the subscription breaks.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string) (domain.TransferStatus, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	var (
		status domain.TransferStatus
		err    error
	)
	if c.wsEndpoint != "" {
		status, err = c.subscribeSignature(ctx, signature)
		if err == nil {
			return status, nil
		}
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Str("signature", signature).Msg("signature subscription failed, polling instead")
			status, err = c.pollSignature(ctx, signature)
		}
	} else {
		status, err = c.pollSignature(ctx, signature)
	}
	if err == nil {
		return status, nil
	}

	if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", apperror.ErrTimedOut("confirmTransaction", c.confirmTimeout)
	}
	return "", apperror.ErrRPC("confirmTransaction", err)
}

func (c *Client) pollSignature(ctx context.Context, signature string) (domain.TransferStatus, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, done, err := c.signatureStatus(ctx, signature)
		if err != nil {
			c.log.Debug().Err(err).Str("signature", signature).Msg("signature status poll failed")
		} else if done {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// signatureStatus reports the terminal status of signature once it has
// reached the configured commitment.
func (c *Client) signatureStatus(ctx context.Context, signature string) (domain.TransferStatus, bool, error) {
	var res valueResult[[]*signatureStatus]
	params := []any{[]string{signature}, map[string]bool{"searchTransactionHistory": true}}
	if err := c.read(ctx, "getSignatureStatuses", params, &res); err != nil {
		return "", false, err
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return "", false, nil
	}

	st := res.Value[0]
	if failed(st.Err) {
		return domain.TransferStatusFailed, true, nil
	}
	if commitmentRank[st.ConfirmationStatus] < commitmentRank[c.commitment] {
		return "", false, nil
	}
	return domain.TransferStatusConfirmed, true, nil
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *NodeError      `json:"error"`
	Params *struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		Subscription int64 `json:"subscription"`
	} `json:"params"`
}

type signatureNotification struct {
	Err json.RawMessage `json:"err"`
}

func (c *Client) subscribeSignature(ctx context.Context, signature string) (domain.TransferStatus, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	id := c.requestID.Add(1)
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "signatureSubscribe",
		Params:  []any{signature, commitmentConfig{c.commitment}},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("write subscribe: %w", err)
	}

	var subscription int64
	subscribed := false
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read websocket: %w", err)
		}

		switch {
		case msg.ID == id:
			if msg.Error != nil {
				return "", msg.Error
			}
			if err := json.Unmarshal(msg.Result, &subscription); err != nil {
				return "", fmt.Errorf("parse subscription id: %w", err)
			}
			subscribed = true
			c.log.Debug().Int64("subscription", subscription).Str("signature", signature).Msg("subscribed to signature")

			// The signature may have landed before the subscription existed.
			if status, done, err := c.signatureStatus(ctx, signature); err == nil && done {
				return status, nil
			}

		case subscribed && msg.Method == "signatureNotification" && msg.Params != nil && msg.Params.Subscription == subscription:
			var note signatureNotification
			if err := json.Unmarshal(msg.Params.Result.Value, &note); err != nil {
				return "", fmt.Errorf("parse notification: %w", err)
			}
			if failed(note.Err) {
				return domain.TransferStatusFailed, nil
			}
			return domain.TransferStatusConfirmed, nil
		}
	}
}
