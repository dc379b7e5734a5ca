// Package provider talks to the remote transaction-history APIs.
//
// Two data sources are supported. OKLink returns aggregated money-flow
// edges per counterparty and pages with a numeric offset; it also serves
// address metadata (entity tag, contract flag, health score). TronScan
// returns individual TRC-20 transfers and is paged from a block-timestamp
// watermark.
//
// Every client paces its requests with a token-bucket limiter and can be
// routed through a SOCKS5 proxy. Non-success responses are reported as
// *StatusError values that match ErrStatus.
package provider
