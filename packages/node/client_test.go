package node_test

import (
	"context"
	"math/big"
	"testing"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/okx/txprop/packages/node"
	"github.com/okx/txprop/packages/node/nodetest"
)

func signedTx(t *testing.T, chainID int64, nonce uint64) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := ethcmn.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	tx := types.NewTransaction(nonce, to, big.NewInt(10), 21000, big.NewInt(1_000_000_000), nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chainID)), key)
	require.NoError(t, err)
	return signed
}

func TestTxStatus(t *testing.T) {
	ctx := context.Background()
	backend := nodetest.NewBackend(1337)
	cli := node.NewClient(backend.Dial())
	defer cli.Close()

	tx := signedTx(t, 1337, 0)

	status, err := cli.TxStatus(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	require.Equal(t, node.StatusUnknown, status)

	backend.AddToPool(tx)
	status, err = cli.TxStatus(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	require.Equal(t, node.StatusPending, status)

	inPool, err := cli.InPool(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	require.True(t, inPool)

	backend.Mine(tx.Hash())
	status, err = cli.TxStatus(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	require.Equal(t, node.StatusMined, status)

	inPool, err = cli.InPool(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	require.False(t, inPool)
}

func TestTxStatusAcceptsBareHex(t *testing.T) {
	backend := nodetest.NewBackend(1337)
	cli := node.NewClient(backend.Dial())
	defer cli.Close()

	tx := signedTx(t, 1337, 0)
	backend.AddToPool(tx)

	status, err := cli.TxStatus(context.Background(), tx.Hash().Hex()[2:])
	require.NoError(t, err)
	require.Equal(t, node.StatusPending, status)
}

func TestTxStatusInvalidID(t *testing.T) {
	backend := nodetest.NewBackend(1337)
	cli := node.NewClient(backend.Dial())
	defer cli.Close()

	for _, id := range []string{"", "0x1234", "not-a-hash"} {
		_, err := cli.TxStatus(context.Background(), id)
		require.Error(t, err, id)
	}
}

func TestPoolStatus(t *testing.T) {
	backend := nodetest.NewBackend(1337)
	cli := node.NewClient(backend.Dial())
	defer cli.Close()

	backend.AddToPool(signedTx(t, 1337, 0))
	backend.AddToPool(signedTx(t, 1337, 1))

	pending, queued, err := cli.PoolStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), pending)
	require.Equal(t, uint64(0), queued)
}

func TestDialAndSend(t *testing.T) {
	ctx := context.Background()
	backend := nodetest.NewBackend(1337)
	url, stop := backend.Serve()
	defer stop()

	cli, err := node.Dial(ctx, url)
	require.NoError(t, err)
	defer cli.Close()

	chainID, err := cli.ChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1337), chainID.Int64())

	tx := signedTx(t, 1337, 0)
	hash, err := cli.SendRaw(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), hash)
	require.Len(t, backend.Sent(), 1)

	inPool, err := cli.InPool(ctx, hash.Hex())
	require.NoError(t, err)
	require.True(t, inPool)
}

func TestAccount(t *testing.T) {
	backend := nodetest.NewBackend(1337)
	cli := node.NewClient(backend.Dial())
	defer cli.Close()

	addr := ethcmn.HexToAddress("0xAed6892D56AAB5DA8FBcd85b924C3bE63c74Cc29")
	backend.Fund(addr, big.NewInt(5000))
	backend.SetNonce(addr, 7)

	nonce, balance, err := cli.Account(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)
	require.Equal(t, int64(5000), balance.Int64())
}

func TestDialEmptyAddress(t *testing.T) {
	_, err := node.Dial(context.Background(), "")
	require.Error(t, err)
}
