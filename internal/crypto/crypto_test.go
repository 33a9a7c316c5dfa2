package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestSealOpenKey(t *testing.T) {
	key, err := ethcrypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := SealKey(key, "correct horse")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	if strings.Contains(string(blob), testKeyHex) {
		t.Fatal("sealed file contains the raw key")
	}

	opened, err := OpenKey(blob, "correct horse")
	if err != nil {
		t.Fatalf("OpenKey: %v", err)
	}
	if opened.D.Cmp(key.D) != 0 {
		t.Fatal("opened key differs")
	}
	if _, err := OpenKey(blob, "wrong"); err == nil {
		t.Fatal("OpenKey accepted a wrong passphrase")
	}
	if _, err := SealKey(key, ""); err == nil {
		t.Fatal("SealKey accepted an empty passphrase")
	}
}

func TestLoadKey(t *testing.T) {
	key, _ := ethcrypto.HexToECDSA(testKeyHex)
	want := ethcrypto.PubkeyToAddress(key.PublicKey)

	raw, err := LoadKey(KeySource{RawHex: "0x" + testKeyHex})
	if err != nil || ethcrypto.PubkeyToAddress(raw.PublicKey) != want {
		t.Fatalf("raw LoadKey = %v", err)
	}

	blob, err := SealKey(key, "pw")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}
	fromFile, err := LoadKey(KeySource{FilePath: path, Passphrase: "pw"})
	if err != nil || ethcrypto.PubkeyToAddress(fromFile.PublicKey) != want {
		t.Fatalf("file LoadKey = %v", err)
	}

	if _, err := LoadKey(KeySource{}); err == nil {
		t.Fatal("LoadKey with no source succeeded")
	}
	if _, err := LoadKey(KeySource{RawHex: "zz"}); err == nil {
		t.Fatal("LoadKey accepted invalid hex")
	}
}

func TestSignTxRecoversSender(t *testing.T) {
	key, _ := ethcrypto.HexToECDSA(testKeyHex)
	s := NewSigner(key, big.NewInt(1))

	to := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tx := types.NewTx(&types.LegacyTx{Nonce: 3, To: &to, Gas: 21_000, GasPrice: big.NewInt(1)})
	signed, err := s.SignTx(tx)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), signed)
	if err != nil {
		t.Fatal(err)
	}
	if from != s.Address() {
		t.Fatalf("sender = %s, want %s", from.Hex(), s.Address().Hex())
	}
}
