package stimuli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/sampling"
)

// GenerateMath builds count statements of the form "(a*b)+c=d" or "(a/b)-c=d".
// Roughly half of them are true.
func GenerateMath(src sampling.Source, count int) []model.MathStatement {
	out := make([]model.MathStatement, 0, count)
	seen := map[string]struct{}{}
	for len(out) < count {
		stmt := generateStatement(src)
		if _, ok := seen[stmt.Expr]; ok && len(seen) < 4096 {
			continue
		}
		seen[stmt.Expr] = struct{}{}
		out = append(out, stmt)
	}
	return out
}

func generateStatement(src sampling.Source) model.MathStatement {
	var left string
	var value int
	if src.IntN(2) == 0 {
		a, b := 2+src.IntN(8), 2+src.IntN(8)
		left = fmt.Sprintf("(%d*%d)", a, b)
		value = a * b
	} else {
		b, q := 2+src.IntN(8), 1+src.IntN(9)
		left = fmt.Sprintf("(%d/%d)", b*q, b)
		value = q
	}
	c := 1 + src.IntN(9)
	op := '+'
	if src.IntN(2) == 0 && value-c >= 0 {
		op = '-'
		value -= c
	} else {
		value += c
	}

	key := src.IntN(2) == 0
	shown := value
	if !key {
		delta := 1 + src.IntN(3)
		if src.IntN(2) == 0 && value-delta >= 0 {
			shown = value - delta
		} else {
			shown = value + delta
		}
	}
	return model.MathStatement{
		Expr: fmt.Sprintf("%s%c%d=%d", left, op, c, shown),
		Key:  key,
	}
}

// WritePools writes letters.json and math_pool.json into dir.
// Existing files are kept unless force is set.
func WritePools(dir string, letters []string, stmts []model.MathStatement, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	files := map[string]any{
		LettersFile:  letters,
		MathPoolFile: stmts,
	}
	names := []string{LettersFile, MathPoolFile}
	if !force {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("pool file already exists: %s (use --force to overwrite)", path)
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("failed to stat pool file: %w", err)
			}
		}
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := writeJSON(path, files[name]); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "pool-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
