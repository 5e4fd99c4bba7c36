// Package matchmaking pairs waiting players first come, first served within
// a stake tier.
//
// Queue keeps one FIFO per tier. Joining a tier removes the player from any
// other tier first. Sweep hands the two oldest entries to a callback that
// checks connections and balances and creates the match; the queue lock is
// released during the callback so slow storage never blocks joins.
package matchmaking
