package browser

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/net/html"
)

// MarksValidationError reports a file rejected by a marks zone.
//
// Marks files are HTML documents carrying exactly one table, one row per
// student; the table constraint is what lets the platform extract a single
// student's row later.
type MarksValidationError struct {
	Tables int
}

func (e *MarksValidationError) Error() string {
	return fmt.Sprintf("marks file must contain exactly one table, found %d", e.Tables)
}

// ValidateMarks checks that r is an HTML document with exactly one table
// element. Tokenization, not full parsing: malformed markup beyond the
// table structure is accepted the way browsers accept it.
func ValidateMarks(r io.Reader) error {
	z := html.NewTokenizer(r)
	tables := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return fmt.Errorf("failed to parse marks file: %w", err)
			}
			if tables != 1 {
				return &MarksValidationError{Tables: tables}
			}
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "table" {
				tables++
			}
		}
	}
}

// validateMarksFile applies ValidateMarks to a file on disk.
func validateMarksFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ValidateMarks(f)
}
