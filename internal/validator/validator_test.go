package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingCheckerSkips(t *testing.T) {
	v := New("definitely-not-a-real-binary-luamixer", time.Second)
	res, err := v.Check(context.Background(), "print(1)")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Raw, "not found")
}

func TestDefaults(t *testing.T) {
	v := New("", 0)
	assert.Equal(t, "luau-compile", v.CompilerPath)
	assert.Equal(t, DefaultTimeout, v.Timeout)
}

func TestParseDiagnosticColonForm(t *testing.T) {
	d := parseDiagnostic("out.lua:12:5: Expected 'end' (to close 'function' at line 3)")
	require.NotNil(t, d)
	assert.Equal(t, 12, d.Line)
	assert.Equal(t, 5, d.Column)
	assert.Contains(t, d.Message, "Expected 'end'")
}

func TestParseDiagnosticParenForm(t *testing.T) {
	d := parseDiagnostic("out.lua(7,33): Malformed number")
	require.NotNil(t, d)
	assert.Equal(t, 7, d.Line)
	assert.Equal(t, 33, d.Column)
	assert.Equal(t, "Malformed number", d.Message)
}

func TestParseDiagnosticLineOnlyForm(t *testing.T) {
	d := parseDiagnostic("syntax error near line 42")
	require.NotNil(t, d)
	assert.Equal(t, 42, d.Line)
	assert.Equal(t, 0, d.Column)
}

func TestParseDiagnosticFirstOfSeveral(t *testing.T) {
	stderr := "out.lua:3:1: first problem\nout.lua:9:2: second problem"
	d := parseDiagnostic(stderr)
	require.NotNil(t, d)
	assert.Equal(t, 3, d.Line)
	assert.Contains(t, d.Message, "first problem")
}

func TestParseDiagnosticFallback(t *testing.T) {
	d := parseDiagnostic("")
	require.NotNil(t, d)
	assert.NotEmpty(t, d.Message)

	d = parseDiagnostic("totally freeform complaint")
	require.NotNil(t, d)
	assert.Equal(t, "totally freeform complaint", d.Message)
}

func TestCheckWithRealShellAsChecker(t *testing.T) {
	// `true` exits 0 for any input, standing in for an accepting checker.
	v := New("true", time.Second)
	res, err := v.Check(context.Background(), "local x = 1")
	require.NoError(t, err)
	if res.Skipped {
		t.Skip("no `true` binary on PATH")
	}
	assert.True(t, res.Valid)

	// `false` exits 1, standing in for a rejecting checker.
	v = New("false", time.Second)
	res, err = v.Check(context.Background(), "local x = =")
	require.NoError(t, err)
	if res.Skipped {
		t.Skip("no `false` binary on PATH")
	}
	assert.False(t, res.Valid)
	require.NotNil(t, res.Diagnostic)
	assert.NotEmpty(t, res.Diagnostic.Message)
}
