// Package crawler pulls the transfer history of one address in one
// direction from a data source and reconciles it with the local store.
//
// A crawl resumes from the persisted cursor of (address, direction). Each
// fetched page is stored together with the new cursor in one database
// transaction, so an interrupted crawl never loses or skips a page.
// Transient provider failures are retried at a fixed delay. Once paging is
// done, per-counterparty statistics are computed over everything known
// about the address and the counterparties are handed to the Observer,
// which decides what to crawl next.
//
// Two storage layouts are handled:
//
//   - aggregated sources (OKLink) return one cumulative row per
//     counterparty and are paged with a numeric offset;
//   - per-transaction sources (TronScan) return individual transfers and
//     are paged from a block-timestamp watermark.
//
// # Usage
//
//	c, err := crawler.New(source, edges, addresses,
//		crawler.WithMetadataSource(oklink),
//		crawler.WithRetry(1500*time.Millisecond, time.Second, 0),
//	)
//	c.SetObserver(tracker)
//	err = c.Crawl(ctx, model.CrawlTask{Token: token, Address: addr})
package crawler
