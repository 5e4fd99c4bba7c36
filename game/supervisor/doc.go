// Package supervisor drives the periodic sweeps of the game service: a short
// timeout sweep that forfeits games whose clock ran out, and a longer archive
// sweep that retries failed settlements and retires finished sessions.
package supervisor
