// Package blockchain 提供链上交易预言机
package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

var (
	ErrTxNotFound         = errors.New("transaction not found on chain")
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// weiDecimals 原生币小数位
const weiDecimals = 18

// TransactionDetails 链上交易的已验证事实
type TransactionDetails struct {
	TxHash          string          `json:"tx_hash"`
	Network         string          `json:"network"`
	Value           decimal.Decimal `json:"value"` // 原生币计价
	Confirmations   int64           `json:"confirmations"`
	BlockNumber     int64           `json:"block_number"`
	BlockHash       string          `json:"block_hash"`
	ContractAddress string          `json:"contract_address"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Fee             decimal.Decimal `json:"fee"`
	Timestamp       int64           `json:"timestamp"` // 区块时间, unix 秒
}

// Oracle 链上预言机接口
//
// 对账引擎把它当作可信数据源，但必须处理其退化输出 (零金额)。
type Oracle interface {
	// FetchTransactionDetails 按哈希读取已上链交易
	FetchTransactionDetails(ctx context.Context, txHash, network string) (*TransactionDetails, error)
	// Healthy 探测网络端点是否可用，有界等待
	Healthy(ctx context.Context, network string) bool
}

// EthOracle 基于 ethclient 的预言机实现
type EthOracle struct {
	rpcURLs map[string]string

	mu      sync.Mutex
	clients map[string]*ethclient.Client

	fetchTimeout time.Duration
}

// NewEthOracle 创建预言机
func NewEthOracle(rpcURLs map[string]string, fetchTimeout time.Duration) *EthOracle {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &EthOracle{
		rpcURLs:      rpcURLs,
		clients:      make(map[string]*ethclient.Client),
		fetchTimeout: fetchTimeout,
	}
}

// client 按网络惰性建立连接
func (o *EthOracle) client(ctx context.Context, network string) (*ethclient.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.clients[network]; ok {
		return c, nil
	}

	url, ok := o.rpcURLs[network]
	if !ok {
		return nil, ErrUnsupportedNetwork
	}

	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	o.clients[network] = c
	return c, nil
}

// FetchTransactionDetails 读取交易、回执与区块头，组装已验证记录。
// 超时由调用方或 fetchTimeout 约束，超时不返回部分结果。
func (o *EthOracle) FetchTransactionDetails(ctx context.Context, txHash, network string) (*TransactionDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()

	client, err := o.client(ctx, network)
	if err != nil {
		return nil, err
	}

	hash := common.HexToHash(txHash)

	tx, isPending, err := client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, err
	}

	details := &TransactionDetails{
		TxHash:  txHash,
		Network: network,
		Value:   weiToDecimal(tx.Value()),
	}

	if from, serr := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); serr == nil {
		details.From = from.Hex()
	}
	if to := tx.To(); to != nil {
		details.To = to.Hex()
		details.ContractAddress = to.Hex()
	}

	if isPending {
		return details, nil
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		// 刚广播、尚未入块
		return details, nil
	}
	if err != nil {
		return nil, err
	}

	details.BlockNumber = receipt.BlockNumber.Int64()
	details.BlockHash = receipt.BlockHash.Hex()
	if (receipt.ContractAddress != common.Address{}) {
		details.ContractAddress = receipt.ContractAddress.Hex()
	}
	if receipt.EffectiveGasPrice != nil {
		fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
		details.Fee = weiToDecimal(fee)
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	details.Confirmations = confirmations(int64(head), receipt.BlockNumber.Int64())

	header, err := client.HeaderByHash(ctx, receipt.BlockHash)
	if err != nil {
		logger.Warn("fetch block header failed",
			zap.String("tx_hash", txHash),
			zap.String("network", network),
			zap.Error(err))
	} else {
		details.Timestamp = int64(header.Time)
	}

	return details, nil
}

// Healthy 探测端点连通性
func (o *EthOracle) Healthy(ctx context.Context, network string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	client, err := o.client(ctx, network)
	if err != nil {
		return false
	}
	_, err = client.BlockNumber(ctx)
	return err == nil
}

// Close 关闭全部连接
func (o *EthOracle) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, c := range o.clients {
		c.Close()
	}
	o.clients = make(map[string]*ethclient.Client)
}

// weiToDecimal wei 转原生币
func weiToDecimal(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiDecimals)
}

// confirmations 计算确认数, 未入块为 0
func confirmations(head, txBlock int64) int64 {
	if txBlock <= 0 || head < txBlock {
		return 0
	}
	return head - txBlock + 1
}
