// Package sanitize cleans decoded JSON trees before they reach business
// logic. Value never mutates its input; it returns a new tree plus a Report
// of what it found. HTML is stripped with a bluemonday strict policy, SQL
// keyword sequences are flagged, and document-store operator keys ($where,
// dotted paths) are dropped.
package sanitize
