package golden

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// DirPlaceholder replaces the per test working directory in normalized text.
const DirPlaceholder = "$DIR"

//nolint:gochecknoglobals // Compiled once
var (
	locationLine  = regexp.MustCompile(`^(\s*)(-->|:::) (.*)$`)
	locationLnCol = regexp.MustCompile(`^(\s*)(-->|:::) (.+?):\d+:\d+$`)
	numberGutter  = regexp.MustCompile(`^\d+\s+(\|)`)
	blankGutter   = regexp.MustCompile(`^ +( [|=])`)
)

// Replacement is a user supplied regular expression rewrite applied after
// every built in normalization step.
type Replacement struct {
	Pattern *regexp.Regexp
	With    string
}

// ParseReplacement compiles pattern into a [Replacement].
func ParseReplacement(pattern, with string) (Replacement, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Replacement{}, fmt.Errorf("invalid replacement pattern %q: %w", pattern, err)
	}

	return Replacement{Pattern: re, With: with}, nil
}

// Normalizer turns golden and actual transcripts into a canonical form so that
// incidental differences (line endings, temporary directories, path separators
// and trailing whitespace) never cause a mismatch.
//
// The same Normalizer must be applied to both sides of a comparison.
type Normalizer struct {
	// Dir is the test's working directory, every occurrence is replaced with
	// [DirPlaceholder].
	Dir string

	// Replacements are applied in order, last.
	Replacements []Replacement

	// TrimTrailing trims trailing whitespace from every line and drops trailing
	// blank lines.
	TrimTrailing bool

	// SlashPaths converts backslashes to forward slashes in location lines
	// ("--> file:line:col").
	SlashPaths bool

	// ColumnInsensitive replaces line and column numbers in locations and
	// source gutters with LL and CC.
	ColumnInsensitive bool
}

// NewNormalizer returns a [Normalizer] for dir with the default steps enabled.
func NewNormalizer(dir string) Normalizer {
	return Normalizer{
		Dir:          dir,
		TrimTrailing: true,
		SlashPaths:   true,
	}
}

// Normalize returns the normalized form of text.
//
// Non-empty results always end in exactly one newline.
func (n Normalizer) Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if n.Dir != "" {
		text = strings.ReplaceAll(text, n.Dir, DirPlaceholder)
		if slashed := filepath.ToSlash(n.Dir); slashed != n.Dir {
			text = strings.ReplaceAll(text, slashed, DirPlaceholder)
		}
	}

	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if n.SlashPaths {
			line = locationLine.ReplaceAllStringFunc(line, func(s string) string {
				return strings.ReplaceAll(s, `\`, "/")
			})
		}

		if n.TrimTrailing {
			line = strings.TrimRight(line, " \t")
		}

		if n.ColumnInsensitive {
			line = locationLnCol.ReplaceAllString(line, "  $2 $3:LL:CC")
			line = numberGutter.ReplaceAllString(line, "LL $1")
			line = blankGutter.ReplaceAllString(line, "  $1")
		}

		lines[i] = line
	}

	if n.TrimTrailing {
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
	}

	text = strings.Join(lines, "\n")

	for _, replacement := range n.Replacements {
		text = replacement.Pattern.ReplaceAllString(text, replacement.With)
	}

	if text == "" {
		return ""
	}

	return strings.TrimRight(text, "\n") + "\n"
}
