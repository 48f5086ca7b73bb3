package dispatch

import (
	"context"
	"strings"
	"time"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/solana"
	"social-custody-gateway/pkg/apperror"
)

// Deps are the services the operation table calls into.
type Deps struct {
	Vault     ports.VaultService
	Transfers ports.TransferService
	Ledger    ports.LedgerGateway
}

type walletView struct {
	*domain.Wallet
	LinkedAccounts  []domain.Identity `json:"linked_accounts,omitempty"`
	BalanceLamports *uint64           `json:"balance_lamports,omitempty"`
	BalanceSOL      string            `json:"balance_sol,omitempty"`
}

type balanceView struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

type transferView struct {
	Signature string                `json:"signature"`
	Status    domain.TransferStatus `json:"status"`
	From      string                `json:"from"`
	To        string                `json:"to"`
	Amount    string                `json:"amount"`
	Mint      string                `json:"mint,omitempty"`
}

type identityTransferView struct {
	transferView
	RecipientAddress string `json:"recipient_address"`
	WalletCreated    bool   `json:"wallet_created"`
}

var identityParams = []Param{
	required("platform", TypeString, "social platform: twitter, discord or telegram"),
	required("platform_id", TypeString, "user id on the platform"),
}

func withIdentity(extra ...Param) []Param {
	return append(append([]Param{}, identityParams...), extra...)
}

// Operations returns the full dispatch table.
func Operations(deps Deps) []Operation {
	h := &handlers{Deps: deps}
	return []Operation{
		{
			Name:        "create_wallet",
			Description: "Create a custodial wallet bound to a social identity",
			Params:      withIdentity(optional("label", TypeString, "free-form wallet label")),
			Handler:     h.createWallet,
		},
		{
			Name:        "get_wallet",
			Description: "Show the wallet bound to a social identity with its balance",
			Params:      identityParams,
			Handler:     h.getWallet,
		},
		{
			Name:        "link_account",
			Description: "Bind another social identity to an existing wallet",
			Params:      withIdentity(required("public_key", TypeString, "wallet address to link to")),
			Handler:     h.linkAccount,
		},
		{
			Name:        "unlink_account",
			Description: "Remove a social identity binding",
			Params:      identityParams,
			Handler:     h.unlinkAccount,
		},
		{
			Name:        "get_balance",
			Description: "Native balance of an address or of the wallet bound to an identity",
			Params: []Param{
				optional("address", TypeString, "account address"),
				optional("platform", TypeString, "social platform, used when address is absent"),
				optional("platform_id", TypeString, "user id on the platform"),
			},
			Handler: h.getBalance,
		},
		{
			Name:        "get_token_accounts",
			Description: "Token holding accounts of an owner for one mint",
			Params: []Param{
				required("owner", TypeString, "owner address"),
				required("mint", TypeString, "token mint address"),
			},
			Handler: h.getTokenAccounts,
		},
		{
			Name:        "get_account_info",
			Description: "Ledger account metadata",
			Params:      []Param{required("address", TypeString, "account address")},
			Handler:     h.getAccountInfo,
		},
		{
			Name:        "get_transaction",
			Description: "Look up a transaction and settle its transfer record",
			Params:      []Param{required("signature", TypeString, "transaction signature")},
			Handler:     h.getTransaction,
		},
		{
			Name:        "transfer_sol",
			Description: "Send native SOL from an identity's wallet",
			Params: withIdentity(
				required("to_address", TypeString, "recipient address"),
				required("amount", TypeNumber, "amount in SOL"),
			),
			Handler: h.transferSOL,
		},
		{
			Name:        "transfer_token",
			Description: "Send SPL tokens from an identity's wallet",
			Params: withIdentity(
				required("to_address", TypeString, "recipient wallet address"),
				required("mint", TypeString, "token mint address"),
				required("amount", TypeNumber, "amount in token units"),
				required("decimals", TypeInteger, "mint decimals"),
			),
			Handler: h.transferToken,
		},
		{
			Name:        "send_to_identity",
			Description: "Send SOL or tokens to a social identity, creating its wallet if needed",
			Params: []Param{
				required("sender_platform", TypeString, "sender's social platform"),
				required("sender_id", TypeString, "sender's user id"),
				required("recipient_platform", TypeString, "recipient's social platform"),
				required("recipient_id", TypeString, "recipient's user id"),
				required("amount", TypeNumber, "amount in SOL or token units"),
				optional("mint", TypeString, "token mint; omit for SOL"),
				optional("decimals", TypeInteger, "mint decimals, required with mint"),
			},
			Handler: h.sendToIdentity,
		},
		{
			Name:        "list_transfers",
			Description: "Recent transfers sent from an identity's wallet",
			Params:      withIdentity(optional("limit", TypeInteger, "maximum records, default 20, at most 100")),
			Handler:     h.listTransfers,
		},
		{
			Name:        "export_private_key",
			Description: "Reveal the base58 secret key of an identity's wallet",
			Params:      identityParams,
			Handler:     h.exportPrivateKey,
		},
	}
}

type handlers struct {
	Deps
}

// boundWallet resolves an identity to its wallet or fails with WalletNotFound.
func (h *handlers) boundWallet(ctx context.Context, id domain.Identity) (*domain.Wallet, error) {
	wallet, err := h.Vault.GetWalletForIdentity(ctx, id.Platform, id.PlatformID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(id.String())
	}
	return wallet, nil
}

func (h *handlers) walletByArgs(ctx context.Context, a Args) (*domain.Wallet, error) {
	id, err := a.Identity("platform", "platform_id")
	if err != nil {
		return nil, err
	}
	return h.boundWallet(ctx, id)
}

func (h *handlers) createWallet(ctx context.Context, a Args) (any, error) {
	id, err := a.Identity("platform", "platform_id")
	if err != nil {
		return nil, err
	}
	wallet, err := h.Vault.CreateWallet(ctx, id.Platform, id.PlatformID, a.OptString("label"))
	if err != nil {
		return nil, err
	}
	return walletView{Wallet: wallet, LinkedAccounts: []domain.Identity{id}}, nil
}

func (h *handlers) getWallet(ctx context.Context, a Args) (any, error) {
	wallet, err := h.walletByArgs(ctx, a)
	if err != nil {
		return nil, err
	}
	bindings, err := h.Vault.ListBindings(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	balance, err := h.Ledger.GetBalance(ctx, wallet.PublicKey)
	if err != nil {
		return nil, err
	}

	view := walletView{
		Wallet:          wallet,
		BalanceLamports: &balance,
		BalanceSOL:      lamportsToSOL(balance),
	}
	for _, b := range bindings {
		view.LinkedAccounts = append(view.LinkedAccounts, b.Identity())
	}
	return view, nil
}

func (h *handlers) linkAccount(ctx context.Context, a Args) (any, error) {
	id, err := a.Identity("platform", "platform_id")
	if err != nil {
		return nil, err
	}
	wallet, err := h.Vault.LinkIdentity(ctx, id.Platform, id.PlatformID, a.String("public_key"))
	if err != nil {
		return nil, err
	}
	return walletView{Wallet: wallet, LinkedAccounts: []domain.Identity{id}}, nil
}

func (h *handlers) unlinkAccount(ctx context.Context, a Args) (any, error) {
	id, err := a.Identity("platform", "platform_id")
	if err != nil {
		return nil, err
	}
	removed, err := h.Vault.UnlinkIdentity(ctx, id.Platform, id.PlatformID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"platform": id.Platform, "platform_id": id.PlatformID, "unlinked": removed}, nil
}

func (h *handlers) getBalance(ctx context.Context, a Args) (any, error) {
	address := strings.TrimSpace(a.String("address"))
	if address == "" {
		if !a.Has("platform") || !a.Has("platform_id") {
			return nil, apperror.ErrInvalidParameters("either address or platform and platform_id is required")
		}
		wallet, err := h.walletByArgs(ctx, a)
		if err != nil {
			return nil, err
		}
		address = wallet.PublicKey
	}

	lamports, err := h.Ledger.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	return balanceView{Address: address, Lamports: lamports, SOL: lamportsToSOL(lamports)}, nil
}

func (h *handlers) getTokenAccounts(ctx context.Context, a Args) (any, error) {
	owner, mint := a.String("owner"), a.String("mint")
	accounts, err := h.Ledger.GetHoldingAccountsByOwner(ctx, owner, mint)
	if err != nil {
		return nil, err
	}
	return map[string]any{"owner": owner, "mint": mint, "accounts": accounts}, nil
}

func (h *handlers) getAccountInfo(ctx context.Context, a Args) (any, error) {
	address := a.String("address")
	info, err := h.Ledger.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return map[string]any{"address": address, "exists": false}, nil
	}
	return info, nil
}

func (h *handlers) getTransaction(ctx context.Context, a Args) (any, error) {
	signature := a.String("signature")
	record, info, err := h.Transfers.RefreshTransfer(ctx, signature)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return map[string]any{"signature": signature, "found": false, "transfer": record}, nil
	}
	return map[string]any{"signature": signature, "found": true, "transaction": info, "transfer": record}, nil
}

func (h *handlers) transferSOL(ctx context.Context, a Args) (any, error) {
	wallet, err := h.walletByArgs(ctx, a)
	if err != nil {
		return nil, err
	}
	to, amount := a.String("to_address"), a.Decimal("amount")

	res, err := h.Transfers.TransferNative(ctx, wallet.PublicKey, to, amount)
	if err != nil {
		return nil, err
	}
	return transferView{Signature: res.Signature, Status: res.Status, From: wallet.PublicKey, To: to, Amount: amount.String()}, nil
}

func (h *handlers) transferToken(ctx context.Context, a Args) (any, error) {
	wallet, err := h.walletByArgs(ctx, a)
	if err != nil {
		return nil, err
	}
	decimals, err := a.Decimals("decimals")
	if err != nil {
		return nil, err
	}
	req := ports.TokenTransferRequest{
		FromPublicKey: wallet.PublicKey,
		ToAddress:     a.String("to_address"),
		Mint:          a.String("mint"),
		Amount:        a.Decimal("amount"),
		Decimals:      decimals,
	}

	res, err := h.Transfers.TransferToken(ctx, req)
	if err != nil {
		return nil, err
	}
	return transferView{
		Signature: res.Signature, Status: res.Status, From: wallet.PublicKey,
		To: req.ToAddress, Amount: req.Amount.String(), Mint: req.Mint,
	}, nil
}

func (h *handlers) sendToIdentity(ctx context.Context, a Args) (any, error) {
	sender, err := a.Identity("sender_platform", "sender_id")
	if err != nil {
		return nil, err
	}
	recipient, err := a.Identity("recipient_platform", "recipient_id")
	if err != nil {
		return nil, err
	}
	req := ports.IdentityTransferRequest{
		Sender:    sender,
		Recipient: recipient,
		Amount:    a.Decimal("amount"),
		Mint:      a.OptString("mint"),
	}
	if req.Mint != nil {
		if req.Decimals, err = a.Decimals("decimals"); err != nil {
			return nil, err
		}
	}

	res, err := h.Transfers.TransferToIdentity(ctx, req)
	if err != nil {
		return nil, err
	}
	view := identityTransferView{
		transferView: transferView{
			Signature: res.Signature,
			Status:    res.Status,
			To:        res.RecipientAddress,
			Amount:    req.Amount.String(),
		},
		RecipientAddress: res.RecipientAddress,
		WalletCreated:    res.WalletCreated,
	}
	if req.Mint != nil {
		view.Mint = *req.Mint
	}
	return view, nil
}

func (h *handlers) listTransfers(ctx context.Context, a Args) (any, error) {
	wallet, err := h.walletByArgs(ctx, a)
	if err != nil {
		return nil, err
	}
	limit, _ := a.Int("limit")

	records, err := h.Transfers.ListTransfers(ctx, wallet.ID, int(limit))
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.TransferRecord{}
	}
	return map[string]any{"wallet": wallet.PublicKey, "transfers": records}, nil
}

func (h *handlers) exportPrivateKey(ctx context.Context, a Args) (any, error) {
	wallet, err := h.walletByArgs(ctx, a)
	if err != nil {
		return nil, err
	}
	secret, err := h.Vault.ExportSecret(ctx, wallet.PublicKey)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"public_key":  wallet.PublicKey,
		"secret_key":  secret,
		"exported_at": time.Now().UTC(),
		"warning":     "anyone holding this key controls the wallet",
	}, nil
}

func lamportsToSOL(lamports uint64) string {
	return solana.FromBaseUnits(lamports, domain.NativeDecimals).String()
}
