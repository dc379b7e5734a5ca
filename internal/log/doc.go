// Package log provides secure logging built on log/slog.
//
// SecureHandler masks sensitive attributes before they reach the sink:
//   - provider API keys (x-apikey, TRON-PRO-API-KEY, api_keys)
//   - HTTP credentials (Authorization, Cookie)
//   - passwords, secrets, wallet seeds and private keys
//
// Public chain data (addresses, token contracts, transaction hashes) is
// passed through unchanged.
//
// # Usage
//
//	level, _ := log.ParseLevel("info")
//	logger := log.NewSecureLogger(os.Stderr, level)
//	logger.Info("crawl started", "token", token, "address", addr, "x-apikey", key) // key is masked
package log
