// Package settlement transfers stakes and updates ratings when a match ends.
//
// The pot is half the match's total amount at risk. The winner is credited
// that stake less the house tip, rounded up; the loser's escrow is kept.
// Ratings follow an Elo-like curve on a 2000 point scale whose step size
// shrinks from 20 to 4 over a player's first 400 rounds.
//
// Service.Settle applies all of a match's changes to both users in a single
// UserStore.Save so a failure never leaves one side paid and the other not.
package settlement
