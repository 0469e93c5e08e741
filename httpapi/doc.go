// Package httpapi serves the skyAuth engine over HTTP with a chi router.
//
// Handlers decode JSON, call one Engine operation, and render either the
// result or an [AppError]. Engine errors are mapped to stable codes by
// [FromEngineError]; messages for credential failures stay generic so a
// response never tells an unknown user apart from a wrong password.
package httpapi
