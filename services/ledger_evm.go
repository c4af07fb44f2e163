// services/ledger_evm.go
package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Identity registry contract ABI (the subset the core uses).
const registryABI = `[
  {"inputs":[],"name":"ADMIN_ROLE","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"role","type":"bytes32"},{"internalType":"address","name":"account","type":"address"}],"name":"hasRole","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"member","type":"address"}],"name":"getMemberData","outputs":[{"internalType":"uint256","name":"xp","type":"uint256"},{"internalType":"uint8","name":"tier","type":"uint8"},{"internalType":"bool","name":"hasNFT","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"member","type":"address"},{"internalType":"uint256","name":"xpAmount","type":"uint256"}],"name":"updateXP","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"address","name":"member","type":"address"},{"internalType":"string","name":"tokenURI","type":"string"}],"name":"mintIdentityNFT","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const receiptPollInterval = 2 * time.Second

// EVMLedgerGateway implements LedgerGateway against the identity registry
// contract via an Ethereum RPC endpoint. The operator key must hold the
// contract's ADMIN_ROLE for updateXP to succeed.
type EVMLedgerGateway struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	chainID  *big.Int

	// Serializes transaction construction so concurrent sends (XP grant vs
	// mint) don't race on the operator account nonce.
	txMu sync.Mutex
}

// NewEVMLedgerGateway dials the RPC endpoint and binds the registry contract.
func NewEVMLedgerGateway(ctx context.Context, rpcURL, contractAddress, operatorKeyHex string) (*EVMLedgerGateway, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("ledger RPC URL required")
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger RPC: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	return &EVMLedgerGateway{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client, client, client),
		abi:      parsed,
		key:      key,
		chainID:  chainID,
	}, nil
}

func (g *EVMLedgerGateway) ReadMember(ctx context.Context, address string) (MemberLedgerRecord, error) {
	if !common.IsHexAddress(address) {
		return MemberLedgerRecord{}, fmt.Errorf("%w: malformed address %q", ErrInvalidInput, address)
	}

	var out []interface{}
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getMemberData", common.HexToAddress(address))
	if err != nil {
		return MemberLedgerRecord{}, fmt.Errorf("getMemberData call failed: %w", err)
	}
	if len(out) != 3 {
		return MemberLedgerRecord{}, fmt.Errorf("getMemberData returned %d values, want 3", len(out))
	}

	xpBig, ok := out[0].(*big.Int)
	if !ok || xpBig == nil {
		return MemberLedgerRecord{}, fmt.Errorf("getMemberData: unexpected xp type %T", out[0])
	}
	// Catalog rewards are small; an XP value outside int64 means a corrupt
	// or hostile contract, not a member we can serve.
	if !xpBig.IsInt64() {
		return MemberLedgerRecord{}, fmt.Errorf("member xp %s overflows int64", xpBig.String())
	}
	tier, ok := out[1].(uint8)
	if !ok {
		return MemberLedgerRecord{}, fmt.Errorf("getMemberData: unexpected tier type %T", out[1])
	}
	hasNFT, ok := out[2].(bool)
	if !ok {
		return MemberLedgerRecord{}, fmt.Errorf("getMemberData: unexpected hasNFT type %T", out[2])
	}

	return MemberLedgerRecord{XP: xpBig.Int64(), Tier: tier, HasNFT: hasNFT}, nil
}

func (g *EVMLedgerGateway) SendXPIncrement(ctx context.Context, address string, amount int64) (TxHandle, error) {
	if amount <= 0 {
		return TxHandle{}, fmt.Errorf("%w: xp amount must be positive", ErrInvalidInput)
	}
	return g.transact(ctx, "updateXP", common.HexToAddress(address), big.NewInt(amount))
}

func (g *EVMLedgerGateway) SendMint(ctx context.Context, address string, metadataURI string) (TxHandle, error) {
	return g.transact(ctx, "mintIdentityNFT", common.HexToAddress(address), metadataURI)
}

func (g *EVMLedgerGateway) transact(ctx context.Context, method string, args ...interface{}) (TxHandle, error) {
	g.txMu.Lock()
	defer g.txMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(g.key, g.chainID)
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := g.contract.Transact(opts, method, args...)
	if err != nil {
		reason := mapRevertReason(err)
		log.Printf("❌ [LEDGER] %s rejected (reason=%s): %v", method, reason, err)
		return TxHandle{}, &LedgerRejectedError{Reason: reason}
	}

	log.Printf("📤 [LEDGER] %s sent: %s", method, tx.Hash().Hex())
	return TxHandle{Hash: tx.Hash().Hex()}, nil
}

// AwaitConfirmation polls for the receipt until the transaction is mined or
// the timeout elapses. A timeout means the outcome is UNKNOWN — callers must
// re-read ledger state, never assume failure.
func (g *EVMLedgerGateway) AwaitConfirmation(ctx context.Context, tx TxHandle, timeout time.Duration) (ConfirmationStatus, error) {
	hash := common.HexToHash(tx.Hash)
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == gethtypes.ReceiptStatusSuccessful {
				return TxConfirmed, nil
			}
			return TxFailed, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return TxTimedOut, fmt.Errorf("fetch receipt: %w", err)
		}

		if time.Now().After(deadline) {
			return TxTimedOut, nil
		}

		select {
		case <-ctx.Done():
			return TxTimedOut, ctx.Err()
		case <-ticker.C:
		}
	}
}

// revertReasonMap matches contract revert text (lowercased) to the fixed
// taxonomy of reason codes. Order matters: more specific phrases first.
var revertReasonMap = []struct {
	needle string
	code   string
}{
	{"already minted", ReasonAlreadyMinted},
	{"already has", ReasonAlreadyMinted},
	{"minting not allowed", ReasonMintingNotAllowed},
	{"minting disabled", ReasonMintingNotAllowed},
	{"tier not met", ReasonTierNotMet},
	{"invalid tier", ReasonInvalidTier},
	{"insufficient xp", ReasonInsufficientXP},
	{"not registered", ReasonNotRegistered},
	{"not eligible", ReasonNotEligible},
	{"missing role", ReasonUnauthorized},
	{"accesscontrol", ReasonUnauthorized},
	{"unauthorized", ReasonUnauthorized},
	{"caller is not", ReasonUnauthorized},
}

func mapRevertReason(err error) string {
	if err == nil {
		return ReasonLedgerRejected
	}
	msg := strings.ToLower(err.Error())
	for _, entry := range revertReasonMap {
		if strings.Contains(msg, entry.needle) {
			return entry.code
		}
	}
	return ReasonLedgerRejected
}
