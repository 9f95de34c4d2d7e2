// Package chain publishes ID chain requests to the DID contract of an EVM
// side chain.
package chain

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/pilacorp/go-did-sdk/config"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/signer"
)

var logger = log.New("did-chain")

const publishMethod = "publishDidTransaction"

//go:embed contract/did_publisher_abi.json
var contractABIJSON []byte

var (
	parsedABI    abi.ABI
	parseABIOnce sync.Once
	errParseABI  error
)

// loadABI parses the embedded contract ABI once.
func loadABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(contractABIJSON, &artifact); err != nil {
			errParseABI = fmt.Errorf("failed to unmarshal contract artifact: %w", err)
			return
		}
		parsedABI, errParseABI = abi.JSON(bytes.NewReader(artifact.ABI))
	})

	return parsedABI, errParseABI
}

// Client is the part of an EVM node client used to publish transactions.
// *ethclient.Client implements it.
type Client interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ClientConfig holds the contract and fee settings of an Adapter.
type ClientConfig struct {
	ContractAddress string
	ChainID         int64
	// GasPrice is suggested by the node when nil.
	GasPrice *big.Int
	GasLimit uint64
}

// SubmitTxResult is a signed, serialized publish transaction.
type SubmitTxResult struct {
	TxHex  string // Hex-encoded RLP transaction
	TxHash string
}

// Adapter publishes ID chain requests through the DID contract. It
// implements backend.ChainAdapter.
type Adapter struct {
	contract     *bind.BoundContract
	client       Client
	provider     signer.SignerProvider
	chainID      *big.Int
	contractAddr common.Address
	gasPrice     *big.Int
	gasLimit     uint64
}

// NewAdapter creates an adapter sending through client and paying with the
// account of provider.
func NewAdapter(client Client, cfg ClientConfig, provider signer.SignerProvider) (*Adapter, error) {
	if cfg.ContractAddress == "" {
		return nil, errors.New("contract address is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}
	if provider == nil {
		return nil, errors.New("signer provider is required")
	}

	contractABI, err := loadABI()
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(cfg.ContractAddress)

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = config.DefaultGasLimit
	}

	return &Adapter{
		contract:     bind.NewBoundContract(addr, contractABI, nil, nil, nil),
		client:       client,
		provider:     provider,
		chainID:      big.NewInt(cfg.ChainID),
		contractAddr: addr,
		gasPrice:     cfg.GasPrice,
		gasLimit:     gasLimit,
	}, nil
}

// Dial connects to the side chain node of cfg and creates an adapter.
func Dial(ctx context.Context, cfg config.Config, provider signer.SignerProvider) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.RPC, err)
	}

	return NewAdapter(client, ClientConfig{
		ContractAddress: cfg.ContractAddress,
		ChainID:         cfg.ChainID,
		GasLimit:        cfg.GasLimit,
	}, provider)
}

// BuildPublishTx builds and signs, without sending, the transaction that
// publishes payload with the given nonce.
func (a *Adapter) BuildPublishTx(ctx context.Context, payload string, nonce uint64) (*SubmitTxResult, error) {
	tx, err := a.buildTx(ctx, payload, nonce)
	if err != nil {
		return nil, err
	}

	return serializeTx(tx)
}

// CreateIDTransaction publishes payload in a contract call. The memo is not
// stored on chain.
func (a *Adapter) CreateIDTransaction(ctx context.Context, payload, _ string) error {
	if payload == "" {
		return errors.New("payload is required")
	}
	if a.client == nil {
		return errors.New("no chain client")
	}

	from := common.HexToAddress(a.provider.GetAddress())

	nonce, err := a.client.PendingNonceAt(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to get nonce of %s: %w", from.Hex(), err)
	}

	tx, err := a.buildTx(ctx, payload, nonce)
	if err != nil {
		return err
	}

	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction %s: %w", tx.Hash().Hex(), err)
	}

	logger.Debug("Published ID transaction", logfields.WithTxID(tx.Hash().Hex()),
		logfields.WithContractAddress(a.contractAddr.Hex()), logfields.WithSize(len(payload)))

	return nil
}

func (a *Adapter) buildTx(ctx context.Context, payload string, nonce uint64) (*types.Transaction, error) {
	gasPrice := a.gasPrice
	if gasPrice == nil {
		if a.client == nil {
			gasPrice = big.NewInt(0)
		} else {
			suggested, err := a.client.SuggestGasPrice(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to suggest gas price: %w", err)
			}
			gasPrice = suggested
		}
	}

	auth := &bind.TransactOpts{
		From:     common.HexToAddress(a.provider.GetAddress()),
		Nonce:    new(big.Int).SetUint64(nonce),
		Value:    big.NewInt(0),
		GasLimit: a.gasLimit,
		GasPrice: gasPrice,
		Context:  ctx,
		Signer:   signer.TxSignerFn(ctx, a.chainID, a.provider),
		NoSend:   true,
	}

	tx, err := a.contract.Transact(auth, publishMethod, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s tx: %w", publishMethod, err)
	}

	return tx, nil
}

// DecodePayload returns the payload published by tx, which must be a call of
// the DID contract.
func DecodePayload(tx *types.Transaction) (string, error) {
	contractABI, err := loadABI()
	if err != nil {
		return "", err
	}

	data := tx.Data()
	if len(data) < 4 {
		return "", errors.New("transaction has no call data")
	}

	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", fmt.Errorf("unknown contract method: %w", err)
	}
	if method.Name != publishMethod {
		return "", fmt.Errorf("unexpected contract method %s", method.Name)
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", fmt.Errorf("failed to unpack %s: %w", publishMethod, err)
	}

	payload, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("invalid %s argument", publishMethod)
	}

	return payload, nil
}

// TxFromHex decodes a hex RLP transaction.
func TxFromHex(rawTxHex string) (*types.Transaction, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(rawTxHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex string: %w", err)
	}

	var tx types.Transaction
	if err := rlp.DecodeBytes(b, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode RLP: %w", err)
	}

	return &tx, nil
}

func serializeTx(tx *types.Transaction) (*SubmitTxResult, error) {
	var buf bytes.Buffer
	if err := rlp.Encode(&buf, tx); err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return &SubmitTxResult{
		TxHex:  hex.EncodeToString(buf.Bytes()),
		TxHash: tx.Hash().Hex(),
	}, nil
}
