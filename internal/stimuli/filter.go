package stimuli

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/aospan/internal/model"
)

// statementEntry mirrors a math pool item. Key is a pointer so a missing key
// fails validation instead of decoding as false.
type statementEntry struct {
	Expr *string `json:"expr" validate:"required,min=1"`
	Key  *bool   `json:"key" validate:"required"`
}

var entryValidate = validator.New()

func decodeStatement(raw json.RawMessage) (model.MathStatement, bool) {
	var entry statementEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.MathStatement{}, false
	}
	if err := entryValidate.Struct(entry); err != nil {
		return model.MathStatement{}, false
	}
	return model.MathStatement{Expr: *entry.Expr, Key: *entry.Key}, true
}

// ValidateLetters checks the pool size and that entries are unique single characters.
func ValidateLetters(letters []string) error {
	if len(letters) < MinLetters {
		return fmt.Errorf("letter pool has %d entries, need at least %d", len(letters), MinLetters)
	}
	seen := make(map[string]struct{}, len(letters))
	for _, l := range letters {
		if utf8.RuneCountInString(l) != 1 {
			return fmt.Errorf("letter %q is not a single character", l)
		}
		if _, ok := seen[l]; ok {
			return fmt.Errorf("letter %q is duplicated", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}
