// Package poller implements the live session ingestion loop.
//
// A Poller owns one session:
//   - Connect resolves the session page into Metadata (access key, client
//     version and continuation) and starts the poll loop
//   - every interval the loop fetches the next chat update and emits the raw
//     response body on the event bus under ports.EventChat
//   - Stop cancels the loop; the cancellation is observed at the next tick
//
// ExtractMetadata is a pure function over the page text so that marker
// handling can be tested from fixtures. The health monitor tracks how long
// ago the last successful poll happened.
package poller
