package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestSupplyCollateralTracksAssetsIn(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	bob := makeAddress(0x11)

	if err := h.engine.SupplyCollateral(bob, coll, big.NewInt(5_000_000)); err != nil {
		t.Fatalf("supply collateral: %v", err)
	}
	pos := h.position(bob)
	if !pos.HasAsset(0) {
		t.Fatalf("assetsIn bit not set")
	}
	if pos.Collateral[0].Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("unexpected collateral: %s", pos.Collateral[0])
	}
	if h.market().TotalSupplyAsset[0].Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("unexpected asset total: %s", h.market().TotalSupplyAsset[0])
	}

	balance, err := h.engine.CollateralBalanceOf(bob, coll)
	if err != nil {
		t.Fatalf("collateral balance: %v", err)
	}
	if balance.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}

	if err := h.engine.WithdrawCollateral(bob, coll, big.NewInt(5_000_000)); err != nil {
		t.Fatalf("withdraw collateral: %v", err)
	}
	pos = h.position(bob)
	if pos.HasAsset(0) {
		t.Fatalf("assetsIn bit should clear on a zeroed balance")
	}
}

func TestSupplyCollateralUnknownAsset(t *testing.T) {
	h := newTestHarness(testAssetConfig(makeAddress(0xaa)))
	bob := makeAddress(0x11)
	if err := h.engine.SupplyCollateral(bob, makeAddress(0xbb), big.NewInt(100)); err != ErrInvalidAssetIndex {
		t.Fatalf("expected invalid asset index, got %v", err)
	}
}

func TestSupplyCollateralCap(t *testing.T) {
	coll := makeAddress(0xaa)
	cfg := testAssetConfig(coll)
	cfg.SupplyCap = big.NewInt(1_000_000)
	h := newTestHarness(cfg)
	bob := makeAddress(0x11)

	if err := h.engine.SupplyCollateral(bob, coll, big.NewInt(800_000)); err != nil {
		t.Fatalf("supply under cap: %v", err)
	}
	if err := h.engine.SupplyCollateral(bob, coll, big.NewInt(300_000)); err != ErrSupplyCapExceeded {
		t.Fatalf("expected cap exceeded, got %v", err)
	}
	if err := h.engine.SupplyCollateral(bob, coll, big.NewInt(200_000)); err != nil {
		t.Fatalf("supply to cap: %v", err)
	}
}

func TestWithdrawCollateralKeepsPositionCollateralized(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	alice := makeAddress(0x10)
	bob := makeAddress(0x11)

	if err := h.engine.Supply(alice, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if err := h.engine.SupplyCollateral(bob, coll, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("supply collateral: %v", err)
	}
	if err := h.engine.Withdraw(bob, big.NewInt(2_000_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// The full debt is backed by exactly all collateral at borrowCF, so any
	// withdrawal breaks the check.
	if err := h.engine.WithdrawCollateral(bob, coll, big.NewInt(1)); !errors.Is(err, ErrNotCollateralized) {
		t.Fatalf("expected not collateralized, got %v", err)
	}

	if err := h.engine.WithdrawCollateral(bob, coll, big.NewInt(20_000_000)); err != ErrInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestTransferCollateral(t *testing.T) {
	coll := makeAddress(0xaa)
	h := newTestHarness(testAssetConfig(coll))
	bob := makeAddress(0x11)
	carol := makeAddress(0x12)

	if err := h.engine.SupplyCollateral(bob, coll, big.NewInt(500)); err != nil {
		t.Fatalf("supply collateral: %v", err)
	}
	if err := h.engine.TransferCollateral(bob, bob, coll, big.NewInt(100)); err != ErrSelfTransfer {
		t.Fatalf("expected self transfer error, got %v", err)
	}
	if err := h.engine.TransferCollateral(bob, carol, coll, big.NewInt(200)); err != nil {
		t.Fatalf("transfer collateral: %v", err)
	}

	bobPos := h.position(bob)
	carolPos := h.position(carol)
	if bobPos.Collateral[0].Cmp(big.NewInt(300)) != 0 || carolPos.Collateral[0].Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected balances: %s/%s", bobPos.Collateral[0], carolPos.Collateral[0])
	}
	if !carolPos.HasAsset(0) {
		t.Fatalf("recipient assetsIn bit not set")
	}
	// Totals are untouched by internal moves.
	if h.market().TotalSupplyAsset[0].Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("asset total changed: %s", h.market().TotalSupplyAsset[0])
	}
}
