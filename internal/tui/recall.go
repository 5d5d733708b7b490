package tui

import (
	"strings"

	"github.com/verte-zerg/aospan/internal/model"
)

// RecallBuffer collects an ordered letter recall of fixed length.
type RecallBuffer struct {
	length int
	pool   []string
	picks  []string
}

// NewRecallBuffer starts an empty recall of length letters from pool.
func NewRecallBuffer(length int, pool []string) *RecallBuffer {
	return &RecallBuffer{length: length, pool: pool}
}

// Pick appends letter if it is in the pool, not yet picked and the buffer
// is not full. An exact match wins over a case-insensitive one.
func (b *RecallBuffer) Pick(letter string) bool {
	canon, ok := b.lookup(letter)
	if !ok || b.Full() || b.Picked(canon) {
		return false
	}
	b.picks = append(b.picks, canon)
	return true
}

// lookup prefers an exact match so pools holding both cases stay pickable.
func (b *RecallBuffer) lookup(letter string) (string, bool) {
	for _, l := range b.pool {
		if l == letter {
			return l, true
		}
	}
	for _, l := range b.pool {
		if strings.EqualFold(l, letter) {
			return l, true
		}
	}
	return "", false
}

// Picked reports whether letter is already in the recall.
func (b *RecallBuffer) Picked(letter string) bool {
	for _, p := range b.picks {
		if p == letter {
			return true
		}
	}
	return false
}

// Undo removes the last pick.
func (b *RecallBuffer) Undo() {
	if len(b.picks) > 0 {
		b.picks = b.picks[:len(b.picks)-1]
	}
}

// Clear removes every pick.
func (b *RecallBuffer) Clear() {
	b.picks = nil
}

// Full reports whether every slot is filled.
func (b *RecallBuffer) Full() bool {
	return len(b.picks) >= b.length
}

// Slots returns the picks padded with NoAnswer to the target length.
func (b *RecallBuffer) Slots() []string {
	out := make([]string, b.length)
	copy(out, b.picks)
	return out
}

// Pool returns the selectable letters in display order.
func (b *RecallBuffer) Pool() []string {
	return b.pool
}

func slotLabel(s string) string {
	if s == model.NoAnswer {
		return "_"
	}
	return s
}
