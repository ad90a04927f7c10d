package solana

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrVaultNotConfigured is returned when SALE_VAULT_OWNER or TOKEN_MINT is unset
var ErrVaultNotConfigured = errors.New("sale vault not configured")

// tokenAccountClient is the part of the RPC client the balance source needs
type tokenAccountClient interface {
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// VaultBalanceSource reads the sale vault's token balance from chain
type VaultBalanceSource struct {
	client tokenAccountClient
	owner  solana.PublicKey
	mint   solana.PublicKey
}

// NewVaultBalanceSource creates a balance source for the mint held by owner
func NewVaultBalanceSource(client tokenAccountClient, owner, mint string) (*VaultBalanceSource, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid vault owner %q: %w", owner, err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint %q: %w", mint, err)
	}
	return &VaultBalanceSource{client: client, owner: ownerKey, mint: mintKey}, nil
}

// NewVaultBalanceSourceFromEnv reads SOLANA_RPC_URL, SALE_VAULT_OWNER and TOKEN_MINT
func NewVaultBalanceSourceFromEnv() (*VaultBalanceSource, error) {
	owner, mint := os.Getenv("SALE_VAULT_OWNER"), os.Getenv("TOKEN_MINT")
	if owner == "" || mint == "" {
		return nil, ErrVaultNotConfigured
	}
	endpoint := os.Getenv("SOLANA_RPC_URL")
	if endpoint == "" {
		endpoint = rpc.MainNetBeta_RPC
	}
	return NewVaultBalanceSource(rpc.New(endpoint), owner, mint)
}

// VaultBalance sums every token account of the vault owner for the mint, in
// whole tokens. Any failing account fails the read; a partial sum would
// understate the vault.
func (s *VaultBalanceSource) VaultBalance(ctx context.Context) (decimal.Decimal, error) {
	resp, err := s.client.GetTokenAccountsByOwner(ctx, s.owner, &rpc.GetTokenAccountsConfig{
		Mint: &s.mint,
	}, &rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64})
	if err != nil {
		return decimal.Zero, fmt.Errorf("查询 owner %s 的 token 账户失败: %w", s.owner, err)
	}
	if resp == nil {
		return decimal.Zero, nil
	}

	total := decimal.Zero
	for _, account := range resp.Value {
		if account == nil {
			continue
		}
		bal, err := s.client.GetTokenAccountBalance(ctx, account.Pubkey, rpc.CommitmentFinalized)
		if err != nil {
			return decimal.Zero, fmt.Errorf("查询 account %s 的余额失败: %w", account.Pubkey, err)
		}
		if bal == nil || bal.Value == nil {
			return decimal.Zero, fmt.Errorf("account %s returned an empty balance", account.Pubkey)
		}
		raw, err := decimal.NewFromString(bal.Value.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("解析余额 %q 失败: %w", bal.Value.Amount, err)
		}
		total = total.Add(raw.Shift(-int32(bal.Value.Decimals)))
	}
	log.WithFields(log.Fields{
		"owner":    s.owner.String(),
		"mint":     s.mint.String(),
		"accounts": len(resp.Value),
		"balance":  total.String(),
	}).Debug("vault balance read")
	return total, nil
}
