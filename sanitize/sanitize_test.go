package sanitize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestValueStripsMarkupWithoutMutatingInput(t *testing.T) {
	s := New(DefaultOptions())
	in := decode(t, `{"displayName":"<script>alert(1)</script>Ada","tags":["<b>vip</b>","plain"]}`)

	out, rep := s.Value(in)

	m := out.(map[string]any)
	require.Equal(t, "Ada", m["displayName"])
	require.Equal(t, []any{"vip", "plain"}, m["tags"])
	require.False(t, rep.Injection())
	require.ElementsMatch(t, []string{"displayName", "tags[0]"}, rep.Paths())

	orig := in.(map[string]any)
	require.Equal(t, "<script>alert(1)</script>Ada", orig["displayName"])
}

func TestValueFlagsSQL(t *testing.T) {
	s := New(DefaultOptions())
	out, rep := s.Value(decode(t, `{"identifier":"x' OR '1'='1","note":"1; DROP TABLE users; --"}`))

	require.True(t, rep.Injection())
	require.ElementsMatch(t, []string{"identifier", "note"}, rep.Paths())
	// Flagged strings are reported, not rewritten.
	require.Equal(t, "x' OR '1'='1", out.(map[string]any)["identifier"])
}

func TestValueDropsOperatorKeys(t *testing.T) {
	s := New(DefaultOptions())
	out, rep := s.Value(decode(t, `{"identifier":{"$ne":null},"profile.role":"admin","ok":1}`))

	m := out.(map[string]any)
	require.Equal(t, map[string]any{}, m["identifier"])
	require.NotContains(t, m, "profile.role")
	require.Equal(t, float64(1), m["ok"])
	require.ElementsMatch(t, []string{"identifier.$ne", "profile.role"}, rep.Paths())
	require.True(t, rep.Injection())
}

func TestPreservedKeysPassVerbatim(t *testing.T) {
	s := New(DefaultOptions())
	out, rep := s.Value(decode(t, `{"password":"p<a>ss&word","code":"123456"}`))

	m := out.(map[string]any)
	require.Equal(t, "p<a>ss&word", m["password"])
	require.True(t, rep.Clean())
}

func TestStrictCheckRejects(t *testing.T) {
	strict := New(Options{Strict: true})
	_, rep, err := strict.Check(decode(t, `{"q":"1 UNION SELECT password FROM users"}`))
	require.ErrorIs(t, err, ErrRejected)
	require.True(t, rep.Injection())

	// Markup alone is cleaned even in strict mode.
	out, _, err := strict.Check(decode(t, `{"q":"<i>hello</i>"}`))
	require.NoError(t, err)
	require.Equal(t, "hello", out.(map[string]any)["q"])
}

func TestDepthLimit(t *testing.T) {
	s := New(Options{MaxDepth: 2})
	_, rep := s.Value(decode(t, `{"a":{"b":{"c":{"d":1}}}}`))
	require.Equal(t, []Finding{{Path: "a.b.c", Kind: KindDepth}}, rep.Findings)
}

func TestStringLeavesPlainTextAlone(t *testing.T) {
	s := New(DefaultOptions())
	out, kinds := s.String("Tom & Jerry's flight")
	require.Equal(t, "Tom & Jerry's flight", out)
	require.Empty(t, kinds)
}
