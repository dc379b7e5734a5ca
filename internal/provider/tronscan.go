package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nao1215/tokentrail/internal/metrics"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/shopspring/decimal"
)

const tronscanTransfersPath = "/api/token_trc20/transfers"

// TronScanOptions configures NewTronScan.
type TronScanOptions struct {
	BaseURL string
	// APIKeys are used round-robin, one per request. The public API also
	// answers without a key at a lower rate.
	APIKeys           []string
	RequestsPerSecond float64
	// TokenDecimals scales the raw integer quantities into token units.
	TokenDecimals int32
	HTTPClient    *http.Client
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// TronScan is the client of the TronScan TRC-20 transfer API.
type TronScan struct {
	req      *requester
	keys     *keyRing
	decimals int32
}

// NewTronScan returns a TronScan client.
func NewTronScan(opts TronScanOptions) *TronScan {
	return &TronScan{
		req:      newRequester("tronscan", opts.BaseURL, opts.HTTPClient, opts.RequestsPerSecond, opts.Metrics, opts.Logger),
		keys:     newKeyRing(opts.APIKeys),
		decimals: opts.TokenDecimals,
	}
}

// Name returns "tronscan".
func (c *TronScan) Name() string {
	return "tronscan"
}

// Layout reports LayoutPerTransaction.
func (c *TronScan) Layout() model.Layout {
	return model.LayoutPerTransaction
}

type tronscanTransfers struct {
	Total     int64 `json:"total"`
	Transfers []struct {
		TransactionID string `json:"transaction_id"`
		Block         int64  `json:"block"`
		BlockTS       int64  `json:"block_ts"`
		FromAddress   string `json:"from_address"`
		ToAddress     string `json:"to_address"`
		Quant         string `json:"quant"`
		FromTag       *struct {
			Tag string `json:"from_address_tag"`
		} `json:"from_address_tag"`
		ToTag *struct {
			Tag string `json:"to_address_tag"`
		} `json:"to_address_tag"`
		FromIsContract bool `json:"fromAddressIsContract"`
		ToIsContract   bool `json:"toAddressIsContract"`
	} `json:"token_transfers"`
}

// Transfers returns one page of individual transfers in ascending block
// time, starting at q.Since when set.
func (c *TronScan) Transfers(ctx context.Context, q Query) (*Page, error) {
	params := url.Values{
		"start":            {strconv.FormatInt(q.Offset, 10)},
		"limit":            {strconv.Itoa(q.limit())},
		"contract_address": {q.Token},
		"sort":             {"timestamp"},
	}
	if q.Direction == model.TransferIn {
		params.Set("toAddress", q.Address)
	} else {
		params.Set("fromAddress", q.Address)
	}
	if q.Since > 0 {
		params.Set("start_timestamp", strconv.FormatInt(q.Since, 10))
	}

	header := http.Header{}
	if key := c.keys.Next(); key != "" {
		header.Set("TRON-PRO-API-KEY", key)
	}

	var resp tronscanTransfers
	if err := c.req.getJSON(ctx, "transfers", tronscanTransfersPath, params, header, &resp); err != nil {
		return nil, err
	}

	page := &Page{Total: resp.Total, Transfers: make([]model.Transfer, 0, len(resp.Transfers))}
	for _, t := range resp.Transfers {
		amount, err := c.amount(t.Quant)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quantity of %s: %w", t.TransactionID, err)
		}
		tr := model.Transfer{
			TransferEdge: model.TransferEdge{
				From:       t.FromAddress,
				To:         t.ToAddress,
				TotalValue: amount,
				TxnCount:   1,
				FirstTxnTS: t.BlockTS,
				LastTxnTS:  t.BlockTS,
			},
			TxnHash:  t.TransactionID,
			Block:    t.Block,
			FromHint: &model.AddressHint{IsContract: t.FromIsContract},
			ToHint:   &model.AddressHint{IsContract: t.ToIsContract},
		}
		if t.FromTag != nil {
			tr.FromHint.EntityTag = t.FromTag.Tag
		}
		if t.ToTag != nil {
			tr.ToHint.EntityTag = t.ToTag.Tag
		}
		page.Transfers = append(page.Transfers, tr)
	}
	return page, nil
}

// amount converts a raw integer quantity into token units.
func (c *TronScan) amount(quant string) (float64, error) {
	if quant == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(quant)
	if err != nil {
		return 0, err
	}
	return d.Shift(-c.decimals).InexactFloat64(), nil
}
