// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxLabelLength is the maximum number of characters in a key label.
const MaxLabelLength = 65

// ValidateLabel checks a key label: it must contain something other than
// whitespace, no newline or tab, and at most MaxLabelLength characters.
// Uniqueness is the Keychain's concern.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return &LabelInvalidError{Label: label, Reason: "label can't be empty or whitespace only"}
	}
	if strings.ContainsAny(label, "\n\t") {
		return &LabelInvalidError{Label: label, Reason: "label can't contain newline or tab"}
	}
	if n := utf8.RuneCountInString(label); n > MaxLabelLength {
		return &LabelInvalidError{
			Label:  label,
			Reason: fmt.Sprintf("label exceeds max length: %d/%d", n, MaxLabelLength),
		}
	}
	return nil
}
