package amm

import "math/big"

func bump(v *big.Int, bps uint32) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(v, big.NewInt(int64(10_000+bps)))
	return out.Quo(out, bpsDenominator)
}

// GasPrice returns the front-running bid max(victim*1.15, network*1.10)
// capped at MaxGasPrice, and whether that bid still outbids the victim and
// meets the network price.
func (o *Optimizer) GasPrice(victim, network *big.Int) (*big.Int, bool) {
	target := bump(victim, o.cfg.VictimGasBumpBps)
	if n := bump(network, o.cfg.NetGasBumpBps); n.Cmp(target) > 0 {
		target = n
	}
	if o.cfg.MaxGasPrice != nil && o.cfg.MaxGasPrice.Sign() > 0 && target.Cmp(o.cfg.MaxGasPrice) > 0 {
		target = new(big.Int).Set(o.cfg.MaxGasPrice)
	}
	return target, target.Cmp(minimumBid(victim, network)) >= 0
}

// minimumBid is the lowest price that still lands ahead of the victim:
// one wei above its bid and no lower than the network price.
func minimumBid(victim, network *big.Int) *big.Int {
	needed := big.NewInt(1)
	if victim != nil {
		needed.Add(needed, victim)
	}
	if network != nil && network.Cmp(needed) > 0 {
		needed = new(big.Int).Set(network)
	}
	return needed
}

// AboveMax reports whether the network price alone exceeds the configured
// maximum.
func (o *Optimizer) AboveMax(network *big.Int) bool {
	return o.cfg.MaxGasPrice != nil && o.cfg.MaxGasPrice.Sign() > 0 && network != nil && network.Cmp(o.cfg.MaxGasPrice) > 0
}
