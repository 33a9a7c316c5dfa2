package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var unitExponents = []struct {
	suffix string
	exp    int32
}{
	{"ether", 18},
	{"gwei", 9},
	{"wei", 0},
}

// Wei is an integer amount in the smallest unit. In TOML and environment
// variables it accepts a plain integer ("1000") or a decimal with an
// ether, gwei or wei suffix ("0.5ether", "30gwei").
type Wei struct {
	*big.Int
}

// ParseWei parses s as described on Wei.
func ParseWei(s string) (Wei, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Wei{}, nil
	}
	var exp int32
	for _, u := range unitExponents {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			exp = u.exp
			break
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Wei{}, fmt.Errorf("config: parse wei %q: %w", s, err)
	}
	if d.IsNegative() {
		return Wei{}, fmt.Errorf("config: parse wei %q: negative amount", s)
	}
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Wei{}, fmt.Errorf("config: parse wei %q: fractional wei", s)
	}
	return Wei{Int: scaled.BigInt()}, nil
}

// MustWei is ParseWei for constants; it panics on error.
func MustWei(s string) Wei {
	w, err := ParseWei(s)
	if err != nil {
		panic(err)
	}
	return w
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Wei) UnmarshalText(text []byte) error {
	parsed, err := ParseWei(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (w Wei) MarshalText() ([]byte, error) {
	if w.Int == nil {
		return []byte("0"), nil
	}
	return []byte(w.Int.String()), nil
}

// Big returns a copy of the amount, or nil when unset.
func (w Wei) Big() *big.Int {
	if w.Int == nil {
		return nil
	}
	return new(big.Int).Set(w.Int)
}
