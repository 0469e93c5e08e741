// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunVerifyTwoFactorLogin, RunStepUp, etc.)
// takes a typed dependency struct and touches the outside world only through
// it. The Engine builds the dependencies once and stays thin.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import skyAuth (the root package aliases the types defined here).
//   - Talk to Redis, SQL or the network directly.
package flows
