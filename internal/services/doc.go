// Package services coordinates a full disposal-watch run and keeps the most
// recent report for the HTTP layer.
//
// ScanService gathers the trading calendar, today's attention bulletin, the
// known disposal periods and the stored citation log, hands them to the
// evaluation engine and then fans the result out to the report sink, the
// notifier and the in-memory ReportService. Only one scan runs at a time.
//
// Collaborator failures are handled per step:
//
//   - bulletin ingestion and disposal refresh failures are logged and the scan
//     continues on what the store already holds
//   - calendar, store and engine failures abort the scan
//   - notification failures are logged after the report is written
package services
