// Package test holds black-box tests that drive the public skyAuth API
// against the memory credential store and a miniredis challenge backend.
package test
