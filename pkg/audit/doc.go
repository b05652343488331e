// Package audit persists a local trail of issued tickets and websocket
// sessions to sqlite. Recording is best-effort by contract: a broken audit
// database degrades to log warnings, it never blocks terminal sessions.
package audit
