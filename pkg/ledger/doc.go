// Package ledger persists probe progress so that an interrupted run resumes
// without repeating finished work.
//
// The tried set lives behind the Store interface, with a JSON file backend
// (tried_codes.json, rewritten atomically) and an SQLite backend. Accepted
// codes go to a SuccessLog, one JSON file per UTC day
// (success_codes_YYYYMMDD.json); an undated success_codes.json from older
// runs is merged into the current day's file on first access and removed.
package ledger
