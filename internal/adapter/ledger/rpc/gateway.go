package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/solana"
	"social-custody-gateway/pkg/apperror"
)

type commitmentConfig struct {
	Commitment string `json:"commitment,omitempty"`
}

type accountConfig struct {
	Commitment string `json:"commitment,omitempty"`
	Encoding   string `json:"encoding"`
}

type transactionConfig struct {
	Commitment                     string `json:"commitment,omitempty"`
	Encoding                       string `json:"encoding"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
}

type sendConfig struct {
	Encoding            string `json:"encoding"`
	PreflightCommitment string `json:"preflightCommitment,omitempty"`
}

type valueResult[T any] struct {
	Value T `json:"value"`
}

type accountValue struct {
	Lamports   uint64    `json:"lamports"`
	Owner      string    `json:"owner"`
	Data       [2]string `json:"data"`
	Executable bool      `json:"executable"`
}

type transactionResult struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err         json.RawMessage `json:"err"`
		Fee         uint64          `json:"fee"`
		LogMessages []string        `json:"logMessages"`
	} `json:"meta"`
}

type keyedAccount struct {
	Pubkey string `json:"pubkey"`
}

type blockhashValue struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

func validAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return apperror.ErrInvalidAddress(address)
	}
	return nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := validAddress(address); err != nil {
		return 0, err
	}
	var res valueResult[uint64]
	if err := c.read(ctx, "getBalance", []any{address, commitmentConfig{c.commitment}}, &res); err != nil {
		return 0, apperror.ErrRPC("getBalance", err)
	}
	return res.Value, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, address string) (*domain.AccountInfo, error) {
	if err := validAddress(address); err != nil {
		return nil, err
	}
	var res valueResult[*accountValue]
	params := []any{address, accountConfig{Commitment: c.commitment, Encoding: "base64"}}
	if err := c.read(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, apperror.ErrRPC("getAccountInfo", err)
	}
	if res.Value == nil {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
	if err != nil {
		return nil, apperror.ErrRPC("getAccountInfo", fmt.Errorf("decode account data: %w", err))
	}
	return &domain.AccountInfo{
		Address:    address,
		Owner:      res.Value.Owner,
		Lamports:   res.Value.Lamports,
		Executable: res.Value.Executable,
		DataSize:   len(data),
	}, nil
}

func (c *Client) GetTransaction(ctx context.Context, signature string) (*domain.TransactionInfo, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, apperror.ErrInvalidParameters(fmt.Sprintf("invalid signature: %q", signature))
	}
	var res *transactionResult
	params := []any{signature, transactionConfig{Commitment: c.commitment, Encoding: "json"}}
	if err := c.read(ctx, "getTransaction", params, &res); err != nil {
		return nil, apperror.ErrRPC("getTransaction", err)
	}
	if res == nil {
		return nil, nil
	}

	info := &domain.TransactionInfo{
		Signature: signature,
		Status:    domain.TransferStatusConfirmed,
		Slot:      res.Slot,
		BlockTime: res.BlockTime,
	}
	if res.Meta != nil {
		info.Fee = res.Meta.Fee
		info.Logs = res.Meta.LogMessages
		if failed(res.Meta.Err) {
			info.Status = domain.TransferStatusFailed
			info.Err = string(res.Meta.Err)
		}
	}
	return info, nil
}

func (c *Client) GetHoldingAccountsByOwner(ctx context.Context, owner, mint string) ([]string, error) {
	if err := validAddress(owner); err != nil {
		return nil, err
	}
	if err := validAddress(mint); err != nil {
		return nil, err
	}
	var res valueResult[[]keyedAccount]
	params := []any{
		owner,
		map[string]string{"mint": mint},
		accountConfig{Commitment: c.commitment, Encoding: "base64"},
	}
	if err := c.read(ctx, "getTokenAccountsByOwner", params, &res); err != nil {
		return nil, apperror.ErrRPC("getTokenAccountsByOwner", err)
	}

	accounts := make([]string, 0, len(res.Value))
	for _, a := range res.Value {
		accounts = append(accounts, a.Pubkey)
	}
	return accounts, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	var res valueResult[blockhashValue]
	if err := c.read(ctx, "getLatestBlockhash", []any{commitmentConfig{c.commitment}}, &res); err != nil {
		return "", apperror.ErrRPC("getLatestBlockhash", err)
	}
	if res.Value.Blockhash == "" {
		return "", apperror.ErrRPC("getLatestBlockhash", fmt.Errorf("empty blockhash"))
	}
	return res.Value.Blockhash, nil
}

// SubmitRawTransaction makes exactly one attempt.
func (c *Client) SubmitRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var signature string
	params := []any{
		base64.StdEncoding.EncodeToString(raw),
		sendConfig{Encoding: "base64", PreflightCommitment: c.commitment},
	}
	if err := c.write(ctx, "sendTransaction", params, &signature); err != nil {
		return "", apperror.ErrRPC("sendTransaction", err)
	}
	return signature, nil
}

// failed reports whether a transaction error field is set.
func failed(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
