// Package csrf implements double-submit cookie protection.
//
// A Guard issues a random token into a SameSite=Strict cookie and expects
// every state-changing request to echo the same value in a header or form
// field. Safe methods and the routes listed in the skip table are exempt.
// Every skip entry carries the reason it exists so the table can be
// reviewed as a whole.
package csrf
