package expression

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmpty               = errors.New("expression is empty")
	ErrUnbalancedParens    = errors.New("unbalanced parentheses")
	ErrUnterminatedLiteral = errors.New("unterminated string literal")
)

// Function is one entry of the derived-column function catalogue.
type Function struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Syntax      string `json:"syntax"`
}

var catalogue = []Function{
	{Name: "SUM", Category: "Arithmetic", Description: "Adds up the values", Syntax: "SUM(field1, field2, ...)"},
	{Name: "AVG", Category: "Arithmetic", Description: "Calculates the average of the values", Syntax: "AVG(field1, field2, ...)"},
	{Name: "IF", Category: "Logical", Description: "Conditional statement", Syntax: "IF(condition, value_if_true, value_if_false)"},
	{Name: "AND", Category: "Logical", Description: "Logical AND", Syntax: "AND(condition1, condition2, ...)"},
	{Name: "OR", Category: "Logical", Description: "Logical OR", Syntax: "OR(condition1, condition2, ...)"},
	{Name: "CONCAT", Category: "Text", Description: "Concatenates two or more strings", Syntax: "CONCAT(text1, text2, ...)"},
	{Name: "REGEXP_EXTRACT", Category: "Text", Description: "Extracts a pattern from a string", Syntax: "REGEXP_EXTRACT(field, 'pattern')"},
	{Name: "REGEXP_REPLACE", Category: "Text", Description: "Replaces a pattern in a string", Syntax: "REGEXP_REPLACE(field, 'pattern', 'replacement')"},
	{Name: "DATE_DIFF", Category: "Date", Description: "Calculates the difference between two dates", Syntax: "DATE_DIFF(date1, date2, 'unit')"},
	{Name: "DATE_ADD", Category: "Date", Description: "Adds a specified time interval to a date", Syntax: "DATE_ADD(date, interval, 'unit')"},
}

var functionNames = func() map[string]bool {
	m := make(map[string]bool, len(catalogue))
	for _, f := range catalogue {
		m[f.Name] = true
	}
	return m
}()

var identifierRegex = regexp.MustCompile(`[a-zA-Z_]\w*`)

// Functions returns the catalogue grouped by category, in display order.
func Functions() map[string][]Function {
	out := make(map[string][]Function)
	for _, f := range catalogue {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}

// InvalidIdentifiersError lists names that are neither a selected field nor a function.
type InvalidIdentifiersError struct {
	Names []string
}

func (e *InvalidIdentifiersError) Error() string {
	return fmt.Sprintf("invalid fields or functions: %s", strings.Join(e.Names, ", "))
}

// Validate checks that parentheses balance and that every identifier outside a
// single-quoted literal is one of fields or a catalogue function.
func Validate(expr string, fields []string) error {
	if strings.TrimSpace(expr) == "" {
		return ErrEmpty
	}

	code, err := stripLiterals(expr)
	if err != nil {
		return err
	}

	depth := 0
	for _, r := range code {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return ErrUnbalancedParens
			}
		}
	}
	if depth != 0 {
		return ErrUnbalancedParens
	}

	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}

	var invalid []string
	seen := make(map[string]bool)
	for _, name := range identifierRegex.FindAllString(code, -1) {
		if allowed[name] || functionNames[name] || seen[name] {
			continue
		}
		seen[name] = true
		invalid = append(invalid, name)
	}
	if len(invalid) > 0 {
		return &InvalidIdentifiersError{Names: invalid}
	}
	return nil
}

// stripLiterals blanks out single-quoted literals so patterns and units are
// not read as identifiers. A doubled quote inside a literal is an escape.
func stripLiterals(expr string) (string, error) {
	var b strings.Builder
	b.Grow(len(expr))

	inLiteral := false
	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\'' {
			if inLiteral {
				b.WriteRune(' ')
			} else {
				b.WriteRune(r)
			}
			continue
		}
		if inLiteral && i+1 < len(runes) && runes[i+1] == '\'' {
			b.WriteString("  ")
			i++
			continue
		}
		inLiteral = !inLiteral
		b.WriteRune(' ')
	}
	if inLiteral {
		return "", ErrUnterminatedLiteral
	}
	return b.String(), nil
}
