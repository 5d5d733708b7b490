package stimuli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/aospan/internal/sampling"
)

func evalStatement(t *testing.T, expr string) (int, int) {
	t.Helper()
	var a, b, c, shown int
	var op1, op2 rune
	if _, err := fmt.Sscanf(expr, "(%d%c%d)%c%d=%d", &a, &op1, &b, &op2, &c, &shown); err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	var v int
	switch op1 {
	case '*':
		v = a * b
	case '/':
		if a%b != 0 {
			t.Fatalf("non-integer division in %q", expr)
		}
		v = a / b
	default:
		t.Fatalf("unexpected operator %q in %q", op1, expr)
	}
	if op2 == '+' {
		v += c
	} else {
		v -= c
	}
	return v, shown
}

func TestGenerateMathKeysMatchArithmetic(t *testing.T) {
	stmts := GenerateMath(sampling.NewSeeded(11), 200)
	if len(stmts) != 200 {
		t.Fatalf("expected 200 statements, got %d", len(stmts))
	}
	trueCount := 0
	for _, s := range stmts {
		v, shown := evalStatement(t, s.Expr)
		if (v == shown) != s.Key {
			t.Fatalf("key mismatch for %q: key=%v", s.Expr, s.Key)
		}
		if shown < 0 {
			t.Fatalf("negative result in %q", s.Expr)
		}
		if s.Key {
			trueCount++
		}
	}
	if trueCount == 0 || trueCount == len(stmts) {
		t.Fatalf("expected a mix of true and false statements, got %d true", trueCount)
	}
}

func TestWritePoolsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stmts := GenerateMath(sampling.NewSeeded(5), 20)
	if err := WritePools(dir, DefaultLetters(), stmts, false); err != nil {
		t.Fatalf("write pools: %v", err)
	}
	pools := Load(dir)
	if pools.LettersSource != SourceFile || pools.MathSource != SourceFile {
		t.Fatalf("expected pools from files, errs %v", pools.Errs)
	}
	if diff := cmp.Diff(stmts, pools.Math); diff != "" {
		t.Fatalf("math pool mismatch (-want +got):\n%s", diff)
	}

	err := WritePools(dir, DefaultLetters(), stmts, false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}
	if err := WritePools(dir, DefaultLetters(), stmts, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}

func TestWritePoolsLeavesDirUntouchedWhenAnyFileExists(t *testing.T) {
	dir := t.TempDir()
	mathPath := filepath.Join(dir, MathPoolFile)
	if err := os.WriteFile(mathPath, []byte("[]"), 0o644); err != nil {
		t.Fatalf("seed math pool: %v", err)
	}
	err := WritePools(dir, DefaultLetters(), GenerateMath(sampling.NewSeeded(5), 4), false)
	if err == nil || !strings.Contains(err.Error(), MathPoolFile) {
		t.Fatalf("expected error naming %s, got %v", MathPoolFile, err)
	}
	if _, err := os.Stat(filepath.Join(dir, LettersFile)); !os.IsNotExist(err) {
		t.Fatalf("expected %s not to be written, stat err %v", LettersFile, err)
	}
	data, err := os.ReadFile(mathPath)
	if err != nil || string(data) != "[]" {
		t.Fatalf("expected existing math pool kept, got %q (%v)", data, err)
	}
}
