package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// knownExchanges lists the exchange names recognised inside entity tags.
// Order matters: the first name contained in a tag wins.
var knownExchanges = []string{
	"MaskEX", "Binance", "Kucoin", "Huobi", "Coinbase", "Kraken", "OKX", "OKEX",
	"Bitstamp", "Bitfinex", "Hotbit", "Gemini", "Yobit", "Bybit", "Gate", "MXC",
	"MEXC", "Bitget", "FTX", "CoinEX", "Poloniex", "Bitex", "ZB", "Bitmax",
	"Crypto.com", "HitBTC", "Btse", "Cointiger", "Pionex", "BingX", "KickEX",
	"CITEX", "BKEX", "BitoEX", "Bitbee", "Bibox", "Nexo", "Bittrex", "CEX.io",
}

// exchangeAliases maps whole-tag spellings onto a canonical exchange name.
var exchangeAliases = map[string]string{
	"okx":  "OKX",
	"okex": "OKX",
	"mxc":  "MXC",
	"mexc": "MXC",
}

// DefaultTrackedExchanges are the exchanges that get dedicated flow statements.
var DefaultTrackedExchanges = []string{"Binance", "Kucoin", "Huobi", "OKX", "MXC"}

// IdentifyExchange returns the exchange an entity tag belongs to.
func IdentifyExchange(entityTag string) (string, bool) {
	if entityTag == "" {
		return "", false
	}
	fold := cases.Fold()
	tag := fold.String(strings.TrimSpace(entityTag))
	if name, ok := exchangeAliases[tag]; ok {
		return name, true
	}
	for _, name := range knownExchanges {
		if strings.Contains(tag, fold.String(name)) {
			return name, true
		}
	}
	return "", false
}
