// Package stimuli loads the letter and arithmetic-statement pools.
package stimuli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/aospan/internal/model"
)

// File names inside a data directory.
const (
	LettersFile  = "letters.json"
	MathPoolFile = "math_pool.json"
)

// MinLetters is the smallest acceptable letter pool.
const MinLetters = 12

// Source records where a pool came from.
type Source string

// Pool sources.
const (
	SourceFile     Source = "file"
	SourceFallback Source = "fallback"
)

// Pools holds the read-only stimulus pools for a session.
type Pools struct {
	Letters       []string
	Math          []model.MathStatement
	LettersSource Source
	MathSource    Source
	// Dropped counts malformed math entries filtered out of the file.
	Dropped int
	// Errs lists the load problems that caused a fallback.
	Errs []error
}

// DefaultLetters returns the built-in letter pool.
func DefaultLetters() []string {
	return []string{"F", "H", "J", "K", "L", "N", "P", "Q", "R", "S", "T", "Y"}
}

// DefaultMath returns the built-in arithmetic pool.
func DefaultMath() []model.MathStatement {
	return []model.MathStatement{
		{Expr: "(6*2)-5=7", Key: true},
		{Expr: "(8/2)+1=5", Key: true},
		{Expr: "3+4=9", Key: false},
		{Expr: "5-3=2", Key: true},
		{Expr: "2*3=7", Key: false},
	}
}

// Load reads both pools from dir, substituting built-in pools on failure.
func Load(dir string) Pools {
	pools := Pools{}

	letters, err := LoadLetters(filepath.Join(dir, LettersFile))
	if err != nil {
		pools.Letters = DefaultLetters()
		pools.LettersSource = SourceFallback
		pools.Errs = append(pools.Errs, err)
	} else {
		pools.Letters = letters
		pools.LettersSource = SourceFile
	}

	stmts, dropped, err := LoadMath(filepath.Join(dir, MathPoolFile))
	if err != nil {
		pools.Math = DefaultMath()
		pools.MathSource = SourceFallback
		pools.Errs = append(pools.Errs, err)
	} else {
		pools.Math = stmts
		pools.MathSource = SourceFile
	}
	pools.Dropped = dropped
	return pools
}

// LoadLetters reads a JSON array of unique single-character letters.
func LoadLetters(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read letters: %w", err)
	}
	var letters []string
	if err := json.Unmarshal(data, &letters); err != nil {
		return nil, fmt.Errorf("failed to decode letters: %w", err)
	}
	if err := ValidateLetters(letters); err != nil {
		return nil, err
	}
	return letters, nil
}

// LoadMath reads a JSON array of statements, dropping malformed entries.
// It fails when the file is unreadable or no valid entry remains.
func LoadMath(path string) ([]model.MathStatement, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read math pool: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("failed to decode math pool: %w", err)
	}
	stmts := make([]model.MathStatement, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		stmt, ok := decodeStatement(item)
		if !ok {
			dropped++
			continue
		}
		stmts = append(stmts, stmt)
	}
	if len(stmts) == 0 {
		return nil, dropped, fmt.Errorf("math pool has no valid entries")
	}
	return stmts, dropped, nil
}
