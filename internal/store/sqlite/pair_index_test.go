package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

func TestPairIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pairs.db")
	idx, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	a := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	b := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	pool := common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")

	if _, err := idx.Lookup(ctx, factory, a, b); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Lookup on empty index: err = %v, want ErrNotFound", err)
	}
	if err := idx.Save(ctx, factory, a, b, pool); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := idx.Save(ctx, factory, b, a, common.HexToAddress("0x01")); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := idx.Lookup(ctx, factory, b, a)
	if err != nil || got != pool {
		t.Fatalf("Lookup = (%s, %v), want %s", got.Hex(), err, pool.Hex())
	}
	if n, err := idx.Count(ctx); err != nil || n != 1 {
		t.Fatalf("Count = (%d, %v), want 1", n, err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got, err := reopened.Lookup(ctx, factory, a, b); err != nil || got != pool {
		t.Fatalf("Lookup after reopen = (%s, %v)", got.Hex(), err)
	}
}
