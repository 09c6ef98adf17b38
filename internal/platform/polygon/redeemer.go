// Package polygon settles winning positions on chain by calling the
// ConditionalTokens contract, either directly from the trading EOA or
// through the Polymarket proxy-wallet factory or a Gnosis Safe.
package polygon

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// Polygon mainnet contracts.
const (
	usdcAddressHex         = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	ctfAddressHex          = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	proxyFactoryAddressHex = "0xaB45c5A4B0c941a2F231C04C3f49182e1A254052"
)

const (
	// redeemPositions gas when sent straight from the EOA.
	gasLimitDirect = 300_000
	// Outer gas when the call is wrapped by the factory or a Safe.
	gasLimitWrapped = 400_000
	// Inner gas forwarded by Safe.execTransaction. Zero makes some
	// Safes starve the inner call, so it is pinned non-zero.
	safeTxGas = 300_000

	minedTimeout = 3 * time.Minute
)

const ctfABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"collateralToken","type":"address"},
    {"internalType":"bytes32","name":"parentCollectionId","type":"bytes32"},
    {"internalType":"bytes32","name":"conditionId","type":"bytes32"},
    {"internalType":"uint256[]","name":"indexSets","type":"uint256[]"}
  ],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const safeABIJSON = `[
  {"inputs":[],"name":"nonce","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getThreshold","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getOwners","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[
    {"internalType":"address","name":"to","type":"address"},
    {"internalType":"uint256","name":"value","type":"uint256"},
    {"internalType":"bytes","name":"data","type":"bytes"},
    {"internalType":"uint8","name":"operation","type":"uint8"},
    {"internalType":"uint256","name":"safeTxGas","type":"uint256"},
    {"internalType":"uint256","name":"baseGas","type":"uint256"},
    {"internalType":"uint256","name":"gasPrice","type":"uint256"},
    {"internalType":"address","name":"gasToken","type":"address"},
    {"internalType":"address","name":"refundReceiver","type":"address"},
    {"internalType":"uint256","name":"nonce","type":"uint256"}
  ],"name":"getTransactionHash","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
  {"inputs":[
    {"internalType":"address","name":"to","type":"address"},
    {"internalType":"uint256","name":"value","type":"uint256"},
    {"internalType":"bytes","name":"data","type":"bytes"},
    {"internalType":"uint8","name":"operation","type":"uint8"},
    {"internalType":"uint256","name":"safeTxGas","type":"uint256"},
    {"internalType":"uint256","name":"baseGas","type":"uint256"},
    {"internalType":"uint256","name":"gasPrice","type":"uint256"},
    {"internalType":"address","name":"gasToken","type":"address"},
    {"internalType":"address","name":"refundReceiver","type":"address"},
    {"internalType":"bytes","name":"signatures","type":"bytes"}
  ],"name":"execTransaction","outputs":[{"internalType":"bool","name":"success","type":"bool"}],"stateMutability":"payable","type":"function"}
]`

const factoryABIJSON = `[
  {"inputs":[{"components":[
    {"internalType":"uint8","name":"typeCode","type":"uint8"},
    {"internalType":"address","name":"to","type":"address"},
    {"internalType":"uint256","name":"value","type":"uint256"},
    {"internalType":"bytes","name":"data","type":"bytes"}
  ],"internalType":"struct ProxyWalletFactory.Call[]","name":"calls","type":"tuple[]"}],
  "name":"proxy","outputs":[],"stateMutability":"payable","type":"function"}
]`

// payoutRedemptionTopic is the CTF PayoutRedemption event signature. A
// Safe execTransaction can succeed while the inner redeem reverts, so
// the receipt is checked for this log.
var payoutRedemptionTopic = crypto.Keccak256Hash(
	[]byte("PayoutRedemption(address,address,bytes32,bytes32,uint256[],uint256)"))

// proxyCall is one factory.proxy inner call.
type proxyCall struct {
	TypeCode uint8          `abi:"typeCode"`
	To       common.Address `abi:"to"`
	Value    *big.Int       `abi:"value"`
	Data     []byte         `abi:"data"`
}

// Backend is the JSON-RPC surface the redeemer uses. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
	bind.DeployBackend
}

// Config selects the execution path for redemptions.
type Config struct {
	RPCURL  string
	ChainID int64
	// SignatureType matches the CLOB wallet type: 0 EOA, 1 proxy
	// wallet, 2 Gnosis Safe. Types 1 and 2 require FunderAddress.
	SignatureType int
	FunderAddress string
}

// Redeemer claims winning conditional tokens for USDC.
type Redeemer struct {
	backend Backend
	key     *ecdsa.PrivateKey
	signer  common.Address
	funder  common.Address
	sigType int
	chainID *big.Int
	logger  *slog.Logger

	ctfABI     abi.ABI
	safeABI    abi.ABI
	factoryABI abi.ABI

	usdc    common.Address
	ctf     common.Address
	factory common.Address
}

var _ domain.SettlementGateway = (*Redeemer)(nil)

// New creates a redeemer over an existing backend.
func New(backend Backend, key *ecdsa.PrivateKey, cfg Config, logger *slog.Logger) (*Redeemer, error) {
	if key == nil {
		return nil, fmt.Errorf("polygon: redeemer: %w", domain.ErrNotConfigured)
	}
	if cfg.SignatureType != 0 && cfg.FunderAddress == "" {
		return nil, fmt.Errorf("polygon: signature type %d requires a funder address", cfg.SignatureType)
	}

	ctfABI, err := abi.JSON(strings.NewReader(ctfABIJSON))
	if err != nil {
		return nil, fmt.Errorf("polygon: ctf abi: %w", err)
	}
	safeABI, err := abi.JSON(strings.NewReader(safeABIJSON))
	if err != nil {
		return nil, fmt.Errorf("polygon: safe abi: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("polygon: factory abi: %w", err)
	}

	var funder common.Address
	if cfg.FunderAddress != "" {
		if !common.IsHexAddress(cfg.FunderAddress) {
			return nil, fmt.Errorf("polygon: invalid funder address %q", cfg.FunderAddress)
		}
		funder = common.HexToAddress(cfg.FunderAddress)
	}

	return &Redeemer{
		backend:    backend,
		key:        key,
		signer:     crypto.PubkeyToAddress(key.PublicKey),
		funder:     funder,
		sigType:    cfg.SignatureType,
		chainID:    big.NewInt(cfg.ChainID),
		logger:     logger.With(slog.String("component", "redeemer")),
		ctfABI:     ctfABI,
		safeABI:    safeABI,
		factoryABI: factoryABI,
		usdc:       common.HexToAddress(usdcAddressHex),
		ctf:        common.HexToAddress(ctfAddressHex),
		factory:    common.HexToAddress(proxyFactoryAddressHex),
	}, nil
}

// Dial connects to the configured RPC endpoint and wraps it in a
// Redeemer.
func Dial(ctx context.Context, key *ecdsa.PrivateKey, cfg Config, logger *slog.Logger) (*Redeemer, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("polygon: dial %s: %w", cfg.RPCURL, err)
	}
	return New(client, key, cfg, logger)
}

// Redeem claims the winning side of one condition and blocks until the
// transaction is mined. It returns the transaction hash. Redeeming a
// position twice reverts on chain and surfaces here as an error; the
// caller logs it and moves on.
func (r *Redeemer) Redeem(ctx context.Context, target domain.RedemptionTarget) (string, error) {
	conditionID, err := parseConditionID(target.ConditionID)
	if err != nil {
		return "", fmt.Errorf("polygon: %w", err)
	}
	indexSets := []*big.Int{indexSetFor(target.Outcome)}
	if target.Outcome == "" {
		// Unknown side. Claim both; the losing set transfers nothing.
		indexSets = []*big.Int{big.NewInt(1), big.NewInt(2)}
	}

	r.logger.Info("redeeming position",
		slog.String("condition_id", target.ConditionID),
		slog.String("outcome", target.Outcome),
		slog.Int("signature_type", r.sigType))

	var tx *types.Transaction
	safePath := false
	switch r.sigType {
	case 1:
		tx, err = r.sendViaFactory(ctx, conditionID, indexSets)
	case 2:
		// The Safe holds both sides of past rounds, so claim both
		// index sets in one call.
		safePath = true
		tx, err = r.sendViaSafe(ctx, conditionID, []*big.Int{big.NewInt(1), big.NewInt(2)})
	default:
		tx, err = r.sendDirect(ctx, conditionID, indexSets)
	}
	if err != nil {
		return "", err
	}

	receipt, err := r.waitMined(ctx, tx)
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("polygon: wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("polygon: redemption reverted, tx %s", tx.Hash().Hex())
	}
	if safePath && !r.hasPayoutRedemption(receipt) {
		return tx.Hash().Hex(), fmt.Errorf(
			"polygon: safe call mined but inner redeem reverted (no PayoutRedemption), tx %s", tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}

// sendDirect sends redeemPositions from the EOA that holds the tokens.
func (r *Redeemer) sendDirect(ctx context.Context, conditionID common.Hash, indexSets []*big.Int) (*types.Transaction, error) {
	opts, err := r.transactOpts(ctx, gasLimitDirect)
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(r.ctf, r.ctfABI, r.backend, r.backend, nil)
	tx, err := contract.Transact(opts, "redeemPositions", r.usdc, [32]byte{}, [32]byte(conditionID), indexSets)
	if err != nil {
		return nil, fmt.Errorf("polygon: redeem direct: %w", err)
	}
	return tx, nil
}

// sendViaFactory wraps redeemPositions in a proxy-wallet factory call,
// which executes it from the user's Polymarket proxy.
func (r *Redeemer) sendViaFactory(ctx context.Context, conditionID common.Hash, indexSets []*big.Int) (*types.Transaction, error) {
	inner, err := r.redeemCalldata(conditionID, indexSets)
	if err != nil {
		return nil, err
	}
	opts, err := r.transactOpts(ctx, gasLimitWrapped)
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(r.factory, r.factoryABI, r.backend, r.backend, nil)
	tx, err := contract.Transact(opts, "proxy", []proxyCall{{
		TypeCode: 1, // CALL
		To:       r.ctf,
		Value:    big.NewInt(0),
		Data:     inner,
	}})
	if err != nil {
		return nil, fmt.Errorf("polygon: redeem via factory: %w", err)
	}
	return tx, nil
}

// sendViaSafe executes redeemPositions through Gnosis Safe
// execTransaction, signed by the Safe owner key.
func (r *Redeemer) sendViaSafe(ctx context.Context, conditionID common.Hash, indexSets []*big.Int) (*types.Transaction, error) {
	inner, err := r.redeemCalldata(conditionID, indexSets)
	if err != nil {
		return nil, err
	}

	if err := r.checkSafeOwner(ctx); err != nil {
		return nil, err
	}

	// Preflight the inner call as the Safe. A revert here means the
	// Safe holds nothing to redeem (or already redeemed) and saves the
	// outer transaction's gas.
	if _, err := r.backend.CallContract(ctx, ethereum.CallMsg{
		From: r.funder,
		To:   &r.ctf,
		Data: inner,
	}, nil); err != nil {
		return nil, fmt.Errorf("polygon: safe redeem preflight: %w", err)
	}

	nonce, err := r.safeNonce(ctx)
	if err != nil {
		return nil, err
	}

	txHash, err := r.safeTransactionHash(ctx, inner, nonce)
	if err != nil {
		return nil, err
	}

	signature, err := r.signSafeHash(txHash)
	if err != nil {
		return nil, err
	}
	if threshold, err := r.safeThreshold(ctx); err != nil {
		return nil, err
	} else if threshold.Cmp(big.NewInt(1)) > 0 {
		// Multi-sig encoding prefixes the owner address.
		signature = append(r.signer.Bytes(), signature...)
	}

	opts, err := r.transactOpts(ctx, gasLimitWrapped)
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(r.funder, r.safeABI, r.backend, r.backend, nil)
	tx, err := contract.Transact(opts, "execTransaction",
		r.ctf,
		big.NewInt(0),
		inner,
		uint8(0), // CALL
		big.NewInt(safeTxGas),
		big.NewInt(0),
		big.NewInt(0),
		common.Address{},
		common.Address{},
		signature,
	)
	if err != nil {
		return nil, fmt.Errorf("polygon: safe exec: %w", err)
	}
	return tx, nil
}

func (r *Redeemer) redeemCalldata(conditionID common.Hash, indexSets []*big.Int) ([]byte, error) {
	data, err := r.ctfABI.Pack("redeemPositions", r.usdc, [32]byte{}, [32]byte(conditionID), indexSets)
	if err != nil {
		return nil, fmt.Errorf("polygon: pack redeem: %w", err)
	}
	return data, nil
}

func (r *Redeemer) transactOpts(ctx context.Context, gasLimit uint64) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(r.key, r.chainID)
	if err != nil {
		return nil, fmt.Errorf("polygon: transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gasLimit
	return opts, nil
}

func (r *Redeemer) checkSafeOwner(ctx context.Context) error {
	vals, err := r.callSafe(ctx, "getOwners")
	if err != nil {
		return fmt.Errorf("polygon: safe owners: %w", err)
	}
	owners, ok := vals[0].([]common.Address)
	if !ok {
		return fmt.Errorf("polygon: safe owners: unexpected type %T", vals[0])
	}
	for _, owner := range owners {
		if owner == r.signer {
			return nil
		}
	}
	return fmt.Errorf("polygon: signer %s is not an owner of safe %s", r.signer.Hex(), r.funder.Hex())
}

func (r *Redeemer) safeNonce(ctx context.Context) (*big.Int, error) {
	vals, err := r.callSafe(ctx, "nonce")
	if err != nil {
		return nil, fmt.Errorf("polygon: safe nonce: %w", err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("polygon: safe nonce: unexpected type %T", vals[0])
	}
	return n, nil
}

func (r *Redeemer) safeThreshold(ctx context.Context) (*big.Int, error) {
	vals, err := r.callSafe(ctx, "getThreshold")
	if err != nil {
		return nil, fmt.Errorf("polygon: safe threshold: %w", err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("polygon: safe threshold: unexpected type %T", vals[0])
	}
	return n, nil
}

func (r *Redeemer) safeTransactionHash(ctx context.Context, data []byte, nonce *big.Int) ([32]byte, error) {
	vals, err := r.callSafe(ctx, "getTransactionHash",
		r.ctf,
		big.NewInt(0),
		data,
		uint8(0),
		big.NewInt(safeTxGas),
		big.NewInt(0),
		big.NewInt(0),
		common.Address{},
		common.Address{},
		nonce,
	)
	if err != nil {
		return [32]byte{}, fmt.Errorf("polygon: safe tx hash: %w", err)
	}
	switch v := vals[0].(type) {
	case [32]byte:
		return v, nil
	case common.Hash:
		return v, nil
	default:
		return [32]byte{}, fmt.Errorf("polygon: safe tx hash: unexpected type %T", vals[0])
	}
}

func (r *Redeemer) callSafe(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.safeABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &r.funder, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := r.safeABI.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unexpected result arity %d", len(vals))
	}
	return vals, nil
}

// signSafeHash signs the Safe transaction hash eth_sign style: the hash
// is wrapped in the EIP-191 personal-message envelope, and the
// signature's v carries the Safe's +4 eth_sign marker on top of the
// usual 27.
func (r *Redeemer) signSafeHash(txHash [32]byte) ([]byte, error) {
	wrapped := crypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n32"), txHash[:])
	sig, err := crypto.Sign(wrapped, r.key)
	if err != nil {
		return nil, fmt.Errorf("polygon: sign safe hash: %w", err)
	}
	sig[64] += 31
	return sig, nil
}

func (r *Redeemer) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, minedTimeout)
	defer cancel()
	return bind.WaitMined(waitCtx, r.backend, tx)
}

func (r *Redeemer) hasPayoutRedemption(receipt *types.Receipt) bool {
	for _, lg := range receipt.Logs {
		if lg.Address == r.ctf && len(lg.Topics) > 0 && lg.Topics[0] == payoutRedemptionTopic {
			return true
		}
	}
	return false
}

// indexSetFor maps an up/down outcome label to its CTF partition index
// set: outcome slot 0 (Up / "1") is bit 1, slot 1 (Down / "0") is bit 2.
func indexSetFor(outcome string) *big.Int {
	if strings.Contains(strings.ToUpper(outcome), "UP") || outcome == "1" {
		return big.NewInt(1)
	}
	return big.NewInt(2)
}

func parseConditionID(raw string) (common.Hash, error) {
	s := strings.TrimSpace(raw)
	hexStr := strings.TrimPrefix(s, "0x")
	if len(hexStr) != 64 {
		return common.Hash{}, fmt.Errorf("condition id %q: want 32 bytes", raw)
	}
	if _, err := hex.DecodeString(hexStr); err != nil {
		return common.Hash{}, fmt.Errorf("condition id %q: %w", raw, err)
	}
	return common.HexToHash(s), nil
}
