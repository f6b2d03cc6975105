package records

import (
	"os"
	"path/filepath"
	"testing"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadPayments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.csv")
	writeFile(t, path, "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC,0.5\n\n0xAed6892D56AAB5DA8FBcd85b924C3bE63c74Cc29,,1.25\n")

	payments, err := ReadPayments(path)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, ethcmn.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), payments[0].Address)
	require.Equal(t, "0.5", payments[0].Amount)
	require.Equal(t, "1.25", payments[1].Amount)
}

func TestReadPaymentsBadLine(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"one-token":   "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC\n",
		"three-token": "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC,1,2\n",
		"bad-address": "alice,1\n",
	} {
		path := filepath.Join(dir, name)
		writeFile(t, path, content)
		_, err := ReadPayments(path)
		require.Error(t, err, name)
		require.Contains(t, err.Error(), "error parsing payment", name)
	}
}

func TestReadPaymentsMissingFile(t *testing.T) {
	_, err := ReadPayments(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestTxRecordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent.csv")
	in := []TxRecord{{"0xaa", 1700000000000}, {"0xbb", 1700000000123}}
	require.NoError(t, WriteTxRecords(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0xaa,1700000000000\n0xbb,1700000000123\n", string(raw))

	out, err := ReadTxRecords(path)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestReadTxRecordsBadTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent.csv")
	writeFile(t, path, "0xaa,yesterday\n")
	_, err := ReadTxRecords(path)
	require.Error(t, err)
}

func TestTxHashesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.txt")
	require.NoError(t, WriteTxHashes(path, []string{"0x01", "0x02"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0x01\n0x02\n", string(raw))

	writeFile(t, path, "0x01\n\n  0x02 \n")
	hashes, err := ReadTxHashes(path)
	require.NoError(t, err)
	require.Equal(t, []string{"0x01", "0x02"}, hashes)
}

func TestWriteEmptyHashList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.txt")
	require.NoError(t, WriteTxHashes(path, nil))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestFindTxFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "0xaa.gtx"), "x")
	writeFile(t, filepath.Join(root, "nested", "deeper", "0xbb.gtx"), "x")
	writeFile(t, filepath.Join(root, "0xcc.gtx.unsigned"), "x")
	writeFile(t, filepath.Join(root, "notes.txt"), "x")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.gtx"), 0755))

	files, err := FindTxFiles(root)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "0xaa.gtx"),
		filepath.Join(root, "nested", "deeper", "0xbb.gtx"),
	}, files)

	require.Equal(t, "0xbb", TxIDFromPath(files[1]))
}

func TestFindTxFilesBadRoot(t *testing.T) {
	root := t.TempDir()
	_, err := FindTxFiles(filepath.Join(root, "missing"))
	require.Error(t, err)

	file := filepath.Join(root, "file.gtx")
	writeFile(t, file, "x")
	_, err = FindTxFiles(file)
	require.Error(t, err)
}
