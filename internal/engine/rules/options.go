package rules

import "strconv"

// AliasPreference selects which spelling of a built-in type is preferred.
type AliasPreference string

const (
	// PreferKeyword flags Int32 and System.Int32 in favour of int.
	PreferKeyword AliasPreference = "keyword"
	// PreferCanonical flags int in favour of Int32.
	PreferCanonical AliasPreference = "canonical"
)

// DefaultMinNameLength is the shortest accepted declared name.
const DefaultMinNameLength = 2

// Options configures an Analyzer.
type Options struct {
	Disabled        map[RuleID]bool
	MinNameLength   int
	AliasPreference AliasPreference
}

// DefaultOptions enables every rule.
func DefaultOptions() Options {
	return Options{
		MinNameLength:   DefaultMinNameLength,
		AliasPreference: PreferKeyword,
	}
}

// Enabled reports whether rule id runs.
func (o Options) Enabled(id RuleID) bool {
	return !o.Disabled[id]
}

func (o Options) minLength() int {
	if o.MinNameLength <= 0 {
		return DefaultMinNameLength
	}
	return o.MinNameLength
}

func (o Options) minLengthArg() string {
	return strconv.Itoa(o.minLength())
}

func (o Options) preference() AliasPreference {
	if o.AliasPreference == PreferCanonical {
		return PreferCanonical
	}
	return PreferKeyword
}
