package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	nativecommon "moneta/native/common"
	"moneta/native/market"
	"moneta/observability/metrics"
	"moneta/oracle"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// marketRoutes exposes the engine operation set over HTTP. Engine calls are
// serialized behind a mutex: the engine itself is single-writer.
type marketRoutes struct {
	engine  *market.Engine
	store   market.State
	board   *oracle.Board
	logger  *slog.Logger
	metrics *metrics.MarketMetrics
	clock   func() uint64

	mu sync.Mutex
}

func newMarketRoutes(engine *market.Engine, store market.State, board *oracle.Board, logger *slog.Logger, m *metrics.MarketMetrics) *marketRoutes {
	if logger == nil {
		logger = slog.Default()
	}
	return &marketRoutes{
		engine:  engine,
		store:   store,
		board:   board,
		logger:  logger,
		metrics: m,
		clock:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

func (mr *marketRoutes) mountPublic(r chi.Router) {
	r.Get("/market", mr.getMarket)
	r.Get("/positions/{address}", mr.getPosition)
	r.Get("/points/{address}", mr.getPoints)
	r.Get("/rewards/{address}", mr.getRewardOwed)
	r.Get("/collateral/quote", mr.quoteCollateral)

	r.Post("/allow", mr.allow)
	r.Post("/supply", mr.supply)
	r.Post("/withdraw", mr.withdraw)
	r.Post("/transfer", mr.transfer)
	r.Post("/collateral/supply", mr.supplyCollateral)
	r.Post("/collateral/withdraw", mr.withdrawCollateral)
	r.Post("/collateral/transfer", mr.transferCollateral)
	r.Post("/collateral/buy", mr.buyCollateral)
	r.Post("/absorb", mr.absorb)
	r.Post("/absorb/partial", mr.absorbPartial)
	r.Post("/rewards/claim", mr.claimReward)
	if mr.board != nil {
		r.Get("/oracle/prices", mr.getOraclePrices)
	}
}

func (mr *marketRoutes) mountAdmin(r chi.Router) {
	if mr.board != nil {
		r.Post("/oracle/prices", mr.postOraclePrice)
	}
	r.Post("/reserves/withdraw", mr.withdrawReserves)
	r.Post("/pauses", mr.setPause)
	r.Post("/governance/factory", mr.setFactory)
	r.Post("/governance/assets", mr.addAsset)
	r.Post("/governance/price-feed", mr.updatePriceFeed)
	r.Post("/governance/factors", mr.updateFactor)
	r.Post("/governance/apply", mr.applyConfig)
}

// run serializes a mutating engine call and stamps the engine clock first.
func (mr *marketRoutes) run(name string, fn func() error) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.engine.SetTimestamp(mr.clock())
	err := fn()
	mr.metrics.ObserveOperation(name, err)
	if err != nil {
		mr.logger.Info("operation rejected", "component", "gateway", "operation", name, "error", err)
	}
	return err
}

// view serializes a read-only engine call without counting it as an operation.
func (mr *marketRoutes) view(fn func() error) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.engine.SetTimestamp(mr.clock())
	return fn()
}

type assetView struct {
	Asset                     string `json:"asset"`
	PriceFeed                 string `json:"priceFeed"`
	Decimals                  uint8  `json:"decimals"`
	BorrowCollateralFactor    string `json:"borrowCollateralFactor"`
	LiquidateCollateralFactor string `json:"liquidateCollateralFactor"`
	LiquidationFactor         string `json:"liquidationFactor"`
	SupplyCap                 string `json:"supplyCap"`
	TotalSupply               string `json:"totalSupply"`
	ProtocolHeld              string `json:"protocolHeld"`
}

type marketView struct {
	TotalSupplyBase     string      `json:"totalSupplyBase"`
	TotalBorrowBase     string      `json:"totalBorrowBase"`
	BaseSupplyIndex     string      `json:"baseSupplyIndex"`
	BaseBorrowIndex     string      `json:"baseBorrowIndex"`
	TrackingSupplyIndex string      `json:"trackingSupplyIndex"`
	TrackingBorrowIndex string      `json:"trackingBorrowIndex"`
	LastAccrualTime     uint64      `json:"lastAccrualTime"`
	Utilization         string      `json:"utilization"`
	Reserves            string      `json:"reserves"`
	BaseHeld            string      `json:"baseHeld"`
	PendingUpdates      int         `json:"pendingUpdates"`
	Assets              []assetView `json:"assets"`
}

func (mr *marketRoutes) getMarket(w http.ResponseWriter, r *http.Request) {
	var (
		state    *market.MarketState
		reserves *big.Int
	)
	err := mr.view(func() error {
		var err error
		if state, err = mr.store.GetMarket(); err != nil {
			return err
		}
		if state == nil {
			return market.ErrNilMarket
		}
		reserves, err = mr.engine.Reserves()
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := marketView{
		TotalSupplyBase:     bigString(state.TotalSupplyBase),
		TotalBorrowBase:     bigString(state.TotalBorrowBase),
		BaseSupplyIndex:     bigString(state.BaseSupplyIndex),
		BaseBorrowIndex:     bigString(state.BaseBorrowIndex),
		TrackingSupplyIndex: bigString(state.TrackingSupplyIndex),
		TrackingBorrowIndex: bigString(state.TrackingBorrowIndex),
		LastAccrualTime:     state.LastAccrualTime,
		Utilization:         bigString(state.Utilization()),
		Reserves:            bigString(reserves),
		BaseHeld:            bigString(state.BaseHeld),
		PendingUpdates:      len(state.PendingUpdates),
	}
	for i, asset := range state.Assets {
		out.Assets = append(out.Assets, assetView{
			Asset:                     asset.Asset.Hex(),
			PriceFeed:                 asset.PriceFeed,
			Decimals:                  asset.Decimals,
			BorrowCollateralFactor:    bigString(asset.BorrowCollateralFactor),
			LiquidateCollateralFactor: bigString(asset.LiquidateCollateralFactor),
			LiquidationFactor:         bigString(asset.LiquidationFactor),
			SupplyCap:                 bigString(asset.SupplyCap),
			TotalSupply:               bigString(state.TotalSupplyAsset[i]),
			ProtocolHeld:              bigString(state.ProtocolCollateral[i]),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type positionView struct {
	Address              string            `json:"address"`
	Principal            string            `json:"principal"`
	Balance              string            `json:"balance"`
	BorrowBalance        string            `json:"borrowBalance"`
	Collateral           map[string]string `json:"collateral"`
	BorrowCollateralized bool              `json:"borrowCollateralized"`
	Liquidatable         bool              `json:"liquidatable"`
	PartiallyAbsorbable  bool              `json:"partiallyAbsorbable"`
	BadDebt              bool              `json:"badDebt"`
}

func (mr *marketRoutes) getPosition(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	out := positionView{Address: addr.Hex(), Collateral: map[string]string{}}
	err = mr.view(func() error {
		state, err := mr.store.GetMarket()
		if err != nil {
			return err
		}
		if state == nil {
			return market.ErrNilMarket
		}
		pos, err := mr.store.GetPosition(addr)
		if err != nil {
			return err
		}
		if pos != nil {
			out.Principal = bigString(pos.Principal)
			for i, balance := range pos.Collateral {
				if balance != nil && balance.Sign() > 0 && i < len(state.Assets) {
					out.Collateral[state.Assets[i].Asset.Hex()] = balance.String()
				}
			}
		} else {
			out.Principal = "0"
		}
		balance, err := mr.engine.BalanceOf(addr)
		if err != nil {
			return err
		}
		out.Balance = bigString(balance)
		borrow, err := mr.engine.BorrowBalanceOf(addr)
		if err != nil {
			return err
		}
		out.BorrowBalance = bigString(borrow)
		if out.BorrowCollateralized, err = mr.engine.IsBorrowCollateralized(addr); err != nil {
			return err
		}
		if out.Liquidatable, err = mr.engine.IsLiquidatable(addr); err != nil {
			return err
		}
		if out.PartiallyAbsorbable, err = mr.engine.IsPartiallyLiquidatable(addr); err != nil {
			return err
		}
		out.BadDebt, err = mr.engine.IsBadDebt(addr)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (mr *marketRoutes) getPoints(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	points, err := mr.store.GetLiquidatorPoints(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if points == nil {
		points = &market.LiquidatorPoints{ApproxSpend: big.NewInt(0)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":     addr.Hex(),
		"numAbsorbs":  points.NumAbsorbs,
		"numAbsorbed": points.NumAbsorbed,
		"approxSpend": bigString(points.ApproxSpend),
	})
}

func (mr *marketRoutes) getRewardOwed(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var owed *big.Int
	err = mr.view(func() error {
		var err error
		owed, err = mr.engine.RewardOwed(addr)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"owed":    bigString(owed),
	})
}

func (mr *marketRoutes) quoteCollateral(w http.ResponseWriter, r *http.Request) {
	asset, err := queryAddress(r, "asset")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	baseAmount, err := parseAmount("baseAmount", r.URL.Query().Get("baseAmount"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var quote *big.Int
	err = mr.view(func() error {
		var err error
		quote, err = mr.engine.QuoteCollateral(asset, baseAmount)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":      asset.Hex(),
		"baseAmount": baseAmount.String(),
		"quote":      bigString(quote),
	})
}

type allowRequest struct {
	Owner   string `json:"owner"`
	Manager string `json:"manager"`
	Allowed bool   `json:"allowed"`
}

func (mr *marketRoutes) allow(w http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	manager, err := parseAddress("manager", req.Manager)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("allow", func() error {
		return mr.engine.Allow(owner, manager, req.Allowed)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type baseRequest struct {
	Operator string `json:"operator,omitempty"`
	From     string `json:"from,omitempty"`
	Src      string `json:"src,omitempty"`
	Dst      string `json:"dst,omitempty"`
	To       string `json:"to,omitempty"`
	Amount   string `json:"amount"`
}

func (mr *marketRoutes) supply(w http.ResponseWriter, r *http.Request) {
	var req baseRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dst := from
	if req.Dst != "" {
		if dst, err = parseAddress("dst", req.Dst); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	err = mr.run("supply", func() error {
		if req.Operator != "" {
			operator, err := parseAddress("operator", req.Operator)
			if err != nil {
				return err
			}
			return mr.engine.SupplyFrom(operator, from, dst, amount)
		}
		return mr.engine.SupplyTo(from, dst, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

func (mr *marketRoutes) withdraw(w http.ResponseWriter, r *http.Request) {
	var req baseRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	src, err := parseAddress("src", req.Src)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	to := src
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	err = mr.run("withdraw", func() error {
		if req.Operator != "" {
			operator, err := parseAddress("operator", req.Operator)
			if err != nil {
				return err
			}
			return mr.engine.WithdrawFrom(operator, src, to, amount)
		}
		return mr.engine.WithdrawTo(src, to, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

func (mr *marketRoutes) transfer(w http.ResponseWriter, r *http.Request) {
	var req baseRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dst, err := parseAddress("dst", req.Dst)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = mr.run("transfer", func() error {
		if req.Operator != "" {
			operator, err := parseAddress("operator", req.Operator)
			if err != nil {
				return err
			}
			return mr.engine.TransferFrom(operator, from, dst, amount)
		}
		return mr.engine.Transfer(from, dst, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type collateralRequest struct {
	Operator string `json:"operator,omitempty"`
	From     string `json:"from,omitempty"`
	Src      string `json:"src,omitempty"`
	Dst      string `json:"dst,omitempty"`
	To       string `json:"to,omitempty"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

func (mr *marketRoutes) supplyCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dst := from
	if req.Dst != "" {
		if dst, err = parseAddress("dst", req.Dst); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	err = mr.run("supply_collateral", func() error {
		if req.Operator != "" {
			operator, err := parseAddress("operator", req.Operator)
			if err != nil {
				return err
			}
			return mr.engine.SupplyCollateralFrom(operator, from, dst, asset, amount)
		}
		return mr.engine.SupplyCollateralTo(from, dst, asset, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

func (mr *marketRoutes) withdrawCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	src, err := parseAddress("src", req.Src)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	to := src
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	err = mr.run("withdraw_collateral", func() error {
		if req.Operator != "" {
			operator, err := parseAddress("operator", req.Operator)
			if err != nil {
				return err
			}
			return mr.engine.WithdrawCollateralFrom(operator, src, to, asset, amount)
		}
		return mr.engine.WithdrawCollateralTo(src, to, asset, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

func (mr *marketRoutes) transferCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dst, err := parseAddress("dst", req.Dst)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = mr.run("transfer_collateral", func() error {
		if req.Operator != "" {
			operator, err := parseAddress("operator", req.Operator)
			if err != nil {
				return err
			}
			return mr.engine.TransferCollateralFrom(operator, from, dst, asset, amount)
		}
		return mr.engine.TransferCollateral(from, dst, asset, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type buyCollateralRequest struct {
	Buyer      string `json:"buyer"`
	Recipient  string `json:"recipient,omitempty"`
	Asset      string `json:"asset"`
	BaseAmount string `json:"baseAmount"`
	MinAmount  string `json:"minAmount,omitempty"`
}

func (mr *marketRoutes) buyCollateral(w http.ResponseWriter, r *http.Request) {
	var req buyCollateralRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	baseAmount, err := parseAmount("baseAmount", req.BaseAmount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	minAmount := big.NewInt(0)
	if req.MinAmount != "" {
		if minAmount, err = parseAmount("minAmount", req.MinAmount); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	recipient := buyer
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	var bought *big.Int
	err = mr.run("buy_collateral", func() error {
		var err error
		bought, err = mr.engine.BuyCollateral(buyer, recipient, asset, baseAmount, minAmount)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	mr.metrics.IncCollateralSale()
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":            asset.Hex(),
		"collateralAmount": bigString(bought),
	})
}

type absorbRequest struct {
	Absorber string   `json:"absorber"`
	Accounts []string `json:"accounts"`
}

func (mr *marketRoutes) absorb(w http.ResponseWriter, r *http.Request) {
	var req absorbRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	absorber, err := parseAddress("absorber", req.Absorber)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if len(req.Accounts) == 0 {
		writeBadRequest(w, fmt.Errorf("accounts must not be empty"))
		return
	}
	accounts := make([]common.Address, 0, len(req.Accounts))
	for i, raw := range req.Accounts {
		addr, err := parseAddress(fmt.Sprintf("accounts[%d]", i), raw)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		accounts = append(accounts, addr)
	}
	if err := mr.run("absorb", func() error {
		return mr.engine.Absorb(absorber, accounts)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	mr.metrics.AddAbsorbedAccounts(len(accounts))
	writeOK(w)
}

type absorbPartialRequest struct {
	Absorber string `json:"absorber"`
	Account  string `json:"account"`
}

func (mr *marketRoutes) absorbPartial(w http.ResponseWriter, r *http.Request) {
	var req absorbPartialRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	absorber, err := parseAddress("absorber", req.Absorber)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("absorb_partial", func() error {
		return mr.engine.AbsorbPartial(absorber, account)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	mr.metrics.AddAbsorbedAccounts(1)
	writeOK(w)
}

type claimRewardRequest struct {
	Account   string `json:"account"`
	Recipient string `json:"recipient,omitempty"`
}

func (mr *marketRoutes) claimReward(w http.ResponseWriter, r *http.Request) {
	var req claimRewardRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	recipient := account
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	var claimed *big.Int
	err = mr.run("claim_reward", func() error {
		var err error
		claimed, err = mr.engine.ClaimReward(account, recipient)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account": account.Hex(),
		"claimed": bigString(claimed),
	})
}

type withdrawReservesRequest struct {
	Actor  string `json:"actor"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (mr *marketRoutes) withdrawReserves(w http.ResponseWriter, r *http.Request) {
	var req withdrawReservesRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("withdraw_reserves", func() error {
		return mr.engine.WithdrawReserves(actor, to, amount)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type pauseRequest struct {
	Actor  string `json:"actor"`
	Flag   string `json:"flag"`
	Offset *int   `json:"offset,omitempty"`
	Paused bool   `json:"paused"`
}

func (mr *marketRoutes) setPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	toggle, err := pauseToggle(mr.engine, req.Flag, req.Offset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("pause", func() error {
		return toggle(actor, req.Paused)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	mr.metrics.SetPaused(pauseMetricLabel(req.Flag, req.Offset), req.Paused)
	writeOK(w)
}

func pauseToggle(engine *market.Engine, flag string, offset *int) (func(common.Address, bool) error, error) {
	// The collateral flags double as per-asset toggles when an offset is
	// supplied.
	if offset != nil {
		idx := *offset
		var fn func(common.Address, int, bool) error
		switch flag {
		case market.FlagCollateralSupply:
			fn = engine.PauseCollateralAssetSupply
		case market.FlagCollateralWithdraw:
			fn = engine.PauseCollateralAssetWithdraw
		case market.FlagCollateralTransfer:
			fn = engine.PauseCollateralAssetTransfer
		default:
			return nil, fmt.Errorf("flag %q does not take an offset", flag)
		}
		return func(actor common.Address, paused bool) error {
			return fn(actor, idx, paused)
		}, nil
	}
	switch flag {
	case market.FlagSupply:
		return engine.PauseSupply, nil
	case market.FlagWithdraw:
		return engine.PauseWithdraw, nil
	case market.FlagTransfer:
		return engine.PauseTransfer, nil
	case market.FlagAbsorb:
		return engine.PauseAbsorb, nil
	case market.FlagBuy:
		return engine.PauseBuy, nil
	case market.FlagLendersWithdraw:
		return engine.PauseLendersWithdraw, nil
	case market.FlagBorrowersWithdraw:
		return engine.PauseBorrowersWithdraw, nil
	case market.FlagLendersTransfer:
		return engine.PauseLendersTransfer, nil
	case market.FlagBorrowersTransfer:
		return engine.PauseBorrowersTransfer, nil
	case market.FlagCollateralSupply:
		return engine.PauseCollateralSupply, nil
	case market.FlagCollateralWithdraw:
		return engine.PauseCollateralWithdraw, nil
	case market.FlagCollateralTransfer:
		return engine.PauseCollateralTransfer, nil
	default:
		return nil, fmt.Errorf("unknown pause flag %q", flag)
	}
}

func pauseMetricLabel(flag string, offset *int) string {
	if offset == nil {
		return flag
	}
	return flag + "/" + strconv.Itoa(*offset)
}

type factoryRequest struct {
	Actor   string `json:"actor"`
	Factory string `json:"factory"`
}

func (mr *marketRoutes) setFactory(w http.ResponseWriter, r *http.Request) {
	var req factoryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	factory, err := parseAddress("factory", req.Factory)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("set_factory", func() error {
		return mr.engine.SetFactory(actor, factory)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type addAssetRequest struct {
	Actor                     string `json:"actor"`
	Asset                     string `json:"asset"`
	PriceFeed                 string `json:"priceFeed"`
	Decimals                  uint8  `json:"decimals"`
	BorrowCollateralFactor    string `json:"borrowCollateralFactor"`
	LiquidateCollateralFactor string `json:"liquidateCollateralFactor"`
	LiquidationFactor         string `json:"liquidationFactor"`
	SupplyCap                 string `json:"supplyCap"`
}

func (mr *marketRoutes) addAsset(w http.ResponseWriter, r *http.Request) {
	var req addAssetRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	cfg := market.AssetConfig{
		PriceFeed: req.PriceFeed,
		Decimals:  req.Decimals,
	}
	if cfg.Asset, err = parseAddress("asset", req.Asset); err != nil {
		writeBadRequest(w, err)
		return
	}
	if cfg.BorrowCollateralFactor, err = parseAmount("borrowCollateralFactor", req.BorrowCollateralFactor); err != nil {
		writeBadRequest(w, err)
		return
	}
	if cfg.LiquidateCollateralFactor, err = parseAmount("liquidateCollateralFactor", req.LiquidateCollateralFactor); err != nil {
		writeBadRequest(w, err)
		return
	}
	if cfg.LiquidationFactor, err = parseAmount("liquidationFactor", req.LiquidationFactor); err != nil {
		writeBadRequest(w, err)
		return
	}
	if cfg.SupplyCap, err = parseAmount("supplyCap", req.SupplyCap); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("add_asset", func() error {
		return mr.engine.AddAsset(actor, cfg)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type priceFeedRequest struct {
	Actor string `json:"actor"`
	Asset string `json:"asset"`
	Feed  string `json:"feed"`
}

func (mr *marketRoutes) updatePriceFeed(w http.ResponseWriter, r *http.Request) {
	var req priceFeedRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("update_price_feed", func() error {
		return mr.engine.UpdateAssetPriceFeed(actor, asset, req.Feed)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

type factorRequest struct {
	Actor  string `json:"actor"`
	Asset  string `json:"asset"`
	Kind   string `json:"kind"`
	Factor string `json:"factor"`
}

func (mr *marketRoutes) updateFactor(w http.ResponseWriter, r *http.Request) {
	var req factorRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	factor, err := parseAmount("factor", req.Factor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var update func() error
	switch req.Kind {
	case "liquidation":
		update = func() error { return mr.engine.UpdateAssetLiquidationFactor(actor, asset, factor) }
	case "borrowCollateral":
		update = func() error { return mr.engine.UpdateAssetBorrowCollateralFactor(actor, asset, factor) }
	default:
		writeBadRequest(w, fmt.Errorf("unknown factor kind %q", req.Kind))
		return
	}
	if err := mr.run("update_factor", update); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

func (mr *marketRoutes) getOraclePrices(w http.ResponseWriter, r *http.Request) {
	snapshot := mr.board.Snapshot()
	out := make(map[string]string, len(snapshot))
	for feed, price := range snapshot {
		out[feed] = price.String()
	}
	writeJSON(w, http.StatusOK, out)
}

type oraclePostRequest struct {
	Feed  string `json:"feed"`
	Price string `json:"price"`
}

func (mr *marketRoutes) postOraclePrice(w http.ResponseWriter, r *http.Request) {
	var req oraclePostRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.board.Post(req.Feed, price); err != nil {
		writeBadRequest(w, err)
		return
	}
	writeOK(w)
}

type applyConfigRequest struct {
	Actor string `json:"actor"`
}

func (mr *marketRoutes) applyConfig(w http.ResponseWriter, r *http.Request) {
	var req applyConfigRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := mr.run("apply_config", func() error {
		return mr.engine.ApplyPendingConfig(actor)
	}); err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w)
}

func decodeRequest(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestBodyLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func pathAddress(r *http.Request, param string) (common.Address, error) {
	return parseAddress(param, chi.URLParam(r, param))
}

func queryAddress(r *http.Request, param string) (common.Address, error) {
	return parseAddress(param, r.URL.Query().Get(param))
}

func parseAmount(field, value string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid decimal amount %q", field, value)
	}
	return out, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrInvalidUInt128),
		errors.Is(err, market.ErrInvalidAssetIndex),
		errors.Is(err, market.ErrBadConfig),
		errors.Is(err, market.ErrSelfTransfer),
		errors.Is(err, market.ErrBorrowTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrPaused),
		errors.Is(err, market.ErrLendersWithdrawPaused),
		errors.Is(err, market.ErrBorrowersWithdrawPaused),
		errors.Is(err, market.ErrLendersTransferPaused),
		errors.Is(err, market.ErrBorrowersTransferPaused),
		errors.Is(err, market.ErrCollateralSupplyPaused),
		errors.Is(err, market.ErrCollateralWithdrawPaused),
		errors.Is(err, market.ErrCollateralTransferPaused),
		errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusLocked
	case errors.Is(err, market.ErrNotCollateralized),
		errors.Is(err, market.ErrNotLiquidatable),
		errors.Is(err, market.ErrInsufficientBalance),
		errors.Is(err, market.ErrInsufficientLiquidity),
		errors.Is(err, market.ErrSupplyCapExceeded),
		errors.Is(err, market.ErrQuoteBelowMinimum),
		errors.Is(err, market.ErrAlreadySet),
		errors.Is(err, market.ErrCollateralAssetAlreadySet),
		errors.Is(err, market.ErrAssetAlreadyListed),
		errors.Is(err, market.ErrMaxAssets):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
