package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nao1215/tokentrail/internal/metrics"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/shopspring/decimal"
)

// OKLink API paths.
const (
	oklinkMoneyFlowPath = "/api/tracker/c/v1/address/moneyFlow/v1"
	oklinkDetailPath    = "/api/tracker/c/v1/r1/address/detail"
	oklinkHealthPath    = "/api/tracker/c/v1/r1/healthy/scoreV3"
	oklinkInfoPath      = "/api/tracker/c/v1/address/info/v1"
)

// oklinkContractTagType marks contract vertices in money-flow responses.
const oklinkContractTagType = 3

// OKLinkOptions configures NewOKLink.
type OKLinkOptions struct {
	BaseURL string
	APIKey  string
	// Chain is the OKLink chain short name, e.g. "TRX" or "ETH".
	Chain             string
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// OKLink is the client of the OKLink compliance tracker API. It is both an
// aggregated TransferSource and a MetadataSource.
type OKLink struct {
	req    *requester
	apiKey string
	chain  string
}

// NewOKLink returns an OKLink client. An API key is required.
func NewOKLink(opts OKLinkOptions) (*OKLink, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("oklink: %w", ErrMissingAPIKey)
	}
	return &OKLink{
		req:    newRequester("oklink", opts.BaseURL, opts.HTTPClient, opts.RequestsPerSecond, opts.Metrics, opts.Logger),
		apiKey: opts.APIKey,
		chain:  opts.Chain,
	}, nil
}

// Name returns "oklink".
func (c *OKLink) Name() string {
	return "oklink"
}

// Layout reports LayoutAggregated.
func (c *OKLink) Layout() model.Layout {
	return model.LayoutAggregated
}

// oklinkEnvelope is the common response wrapper. Code is 0 on success
// and may arrive as a number or a string.
type oklinkEnvelope struct {
	Code json.Number     `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type oklinkMoneyFlow struct {
	Edge []struct {
		From       string          `json:"from"`
		To         string          `json:"to"`
		TotalValue decimal.Decimal `json:"totalValue"`
		TxCount    json.Number     `json:"txCount"`
		FirstTime  json.Number     `json:"firstTransactionTime"`
		LastTime   json.Number     `json:"lastTransactionTime"`
		FromTag    string          `json:"fromTag"`
		ToTag      string          `json:"toTag"`
	} `json:"edge"`
	Vertex []struct {
		Address        string `json:"address"`
		AddressTagType int    `json:"addressTagType"`
	} `json:"vertex"`
}

type oklinkDetail struct {
	AddressTag *struct {
		Tag string `json:"tag"`
	} `json:"addressTag"`
	Contract  bool            `json:"contract"`
	TagInfoVo json.RawMessage `json:"tagInfoVo"`
}

type oklinkHealth struct {
	Score *float64 `json:"score"`
}

// Transfers returns one page of aggregated money-flow edges, ordered by
// first transaction time.
func (c *OKLink) Transfers(ctx context.Context, q Query) (*Page, error) {
	flowType := "2"
	if q.Direction == model.TransferIn {
		flowType = "1"
	}
	params := url.Values{
		"address":              {q.Address},
		"chain":                {c.chain},
		"tokenContractAddress": {q.Token},
		"flowType":             {flowType},
		"sort":                 {"firstTransactionTime,asc"},
		"offset":               {strconv.FormatInt(q.Offset, 10)},
		"limit":                {strconv.Itoa(q.limit())},
	}

	var flow oklinkMoneyFlow
	if err := c.call(ctx, "moneyFlow", oklinkMoneyFlowPath, params, &flow); err != nil {
		return nil, err
	}

	contracts := make(map[string]bool, len(flow.Vertex))
	for _, v := range flow.Vertex {
		contracts[v.Address] = v.AddressTagType == oklinkContractTagType
	}

	page := &Page{Transfers: make([]model.Transfer, 0, len(flow.Edge))}
	for _, e := range flow.Edge {
		page.Transfers = append(page.Transfers, model.Transfer{
			TransferEdge: model.TransferEdge{
				From:       e.From,
				To:         e.To,
				TotalValue: e.TotalValue.InexactFloat64(),
				TxnCount:   numberInt(e.TxCount),
				FirstTxnTS: numberInt(e.FirstTime),
				LastTxnTS:  numberInt(e.LastTime),
			},
			FromHint: &model.AddressHint{IsContract: contracts[e.From], EntityTag: e.FromTag},
			ToHint:   &model.AddressHint{IsContract: contracts[e.To], EntityTag: e.ToTag},
		})
	}
	return page, nil
}

// AddressInfo fetches the address detail and the health score of address.
// Raw payloads are kept on the returned record.
func (c *OKLink) AddressInfo(ctx context.Context, token, address string) (*model.Address, error) {
	var detailRaw json.RawMessage
	err := c.call(ctx, "detail", oklinkDetailPath, url.Values{
		"address":              {address},
		"chain":                {c.chain},
		"tokenContractAddress": {token},
	}, &detailRaw)
	if err != nil {
		return nil, err
	}

	var healthRaw json.RawMessage
	err = c.call(ctx, "healthScore", oklinkHealthPath, url.Values{
		"address": {address},
		"chain":   {c.chain},
	}, &healthRaw)
	if err != nil {
		return nil, err
	}

	a := &model.Address{Address: address}
	if hasPayload(detailRaw) {
		var d oklinkDetail
		if err := json.Unmarshal(detailRaw, &d); err != nil {
			return nil, fmt.Errorf("failed to decode oklink address detail: %w", err)
		}
		if d.AddressTag != nil {
			a.EntityTag = d.AddressTag.Tag
		}
		a.IsContract = d.Contract
		if hasPayload(d.TagInfoVo) {
			a.TagInfo = d.TagInfoVo
		}
		a.Statistics = detailRaw
	}
	if hasPayload(healthRaw) {
		var h oklinkHealth
		if err := json.Unmarshal(healthRaw, &h); err != nil {
			return nil, fmt.Errorf("failed to decode oklink health score: %w", err)
		}
		a.HealthScore = h.Score
		a.HealthInfo = healthRaw
	}
	return a, nil
}

// AddressTag fetches only the entity tag and contract flag of address.
func (c *OKLink) AddressTag(ctx context.Context, token, address string) (*model.AddressHint, error) {
	var d oklinkDetail
	err := c.call(ctx, "info", oklinkInfoPath, url.Values{
		"address":              {address},
		"chain":                {c.chain},
		"tokenContractAddress": {token},
	}, &d)
	if err != nil {
		return nil, err
	}
	hint := &model.AddressHint{IsContract: d.Contract}
	if d.AddressTag != nil {
		hint.EntityTag = d.AddressTag.Tag
	}
	return hint, nil
}

// call issues one request and unwraps the envelope into out.
func (c *OKLink) call(ctx context.Context, label, path string, params url.Values, out any) error {
	header := http.Header{}
	header.Set("x-apikey", c.apiKey)

	var env oklinkEnvelope
	if err := c.req.getJSON(ctx, label, path, params, header, &env); err != nil {
		return err
	}
	if code := env.Code.String(); code != "0" {
		return &StatusError{Provider: c.Name(), Endpoint: label, HTTPStatus: http.StatusOK, Code: code, Message: env.Msg}
	}
	if !hasPayload(env.Data) {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], env.Data...)
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode oklink %s data: %w", label, err)
	}
	return nil
}

func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func numberInt(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return int64(f)
}
