// Package checkpoint remembers where an interrupted crawl stopped.
//
// After every fully ingested page the crawler saves the cursor of the next
// page, so a resumed run never skips a partially processed one. Replaying a
// page is harmless because the ledger ignores IDs it already holds. The file
// is deleted once the feed has been exhausted.
//
// Checkpoints live in the platform data directory:
//   - Linux: $XDG_DATA_HOME/weibocrawl/checkpoints/ or ~/.local/share/weibocrawl/checkpoints/
//   - macOS: ~/Library/Application Support/weibocrawl/checkpoints/
//   - Windows: %APPDATA%/weibocrawl/checkpoints/
package checkpoint
