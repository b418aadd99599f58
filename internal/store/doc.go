// Package store owns all persisted prospector state: deduplicated leads, the
// connect queue, crawl run audit rows and JSON settings. Every operation is a
// local SQLite call; nothing here touches the network or the browser.
package store
