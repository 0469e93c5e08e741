// Package jwt issues and verifies the access and refresh tokens of a
// session pair. Both kinds carry a typ claim and the user's token version;
// verification reports ErrExpired or ErrInvalid only.
package jwt
