package syntax

// TokenID addresses a token in the tree's token arena.
type TokenID int32

// NoToken marks an absent token reference.
const NoToken TokenID = -1

// TokenKind is the lexical classification of a token.
type TokenKind uint8

const (
	TokenOther TokenKind = iota
	TokenWhiteSpace
	TokenEndOfLine
	TokenSingleLineComment
	TokenMultiLineComment
	TokenPreprocessor
	TokenIdentifier
	TokenKeyword
	TokenOperator
	TokenPunctuation
	TokenNumber
	TokenString
)

var tokenKindNames = [...]string{
	TokenOther:             "other",
	TokenWhiteSpace:        "whitespace",
	TokenEndOfLine:         "end_of_line",
	TokenSingleLineComment: "single_line_comment",
	TokenMultiLineComment:  "multi_line_comment",
	TokenPreprocessor:      "preprocessor",
	TokenIdentifier:        "identifier",
	TokenKeyword:           "keyword",
	TokenOperator:          "operator",
	TokenPunctuation:       "punctuation",
	TokenNumber:            "number",
	TokenString:            "string",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "unknown"
}

// IsTrivia reports whether the token carries no syntactic meaning for
// predecessor lookups.
func (k TokenKind) IsTrivia() bool {
	switch k {
	case TokenWhiteSpace, TokenEndOfLine, TokenSingleLineComment, TokenMultiLineComment:
		return true
	}
	return false
}

// TokenClass distinguishes type-reference tokens from plain tokens.
type TokenClass uint8

const (
	ClassPlain TokenClass = iota
	ClassType
	ClassGenericType
)

// IsType reports whether the class is a plain or generic type reference.
func (c TokenClass) IsType() bool {
	return c == ClassType || c == ClassGenericType
}

// OperatorKind identifies the operators the rules care about.
type OperatorKind uint8

const (
	OpNone OperatorKind = iota
	OpMemberAccess
	OpPointer
	OpQualifiedAlias
	OpAssignment
	OpColon
	OpOther
)

// IsQualifier reports whether the operator qualifies the name that follows it.
func (o OperatorKind) IsQualifier() bool {
	return o == OpMemberAccess || o == OpPointer || o == OpQualifiedAlias
}

// OperatorKindOf classifies operator spelling.
func OperatorKindOf(text string) OperatorKind {
	switch text {
	case ".", "?.":
		return OpMemberAccess
	case "->":
		return OpPointer
	case "::":
		return OpQualifiedAlias
	case "=":
		return OpAssignment
	case ":":
		return OpColon
	}
	return OpOther
}

// Token is one element of the lexical stream. Type tokens own a child list
// describing a possibly qualified or generic type reference; their children
// are not part of the top-level stream.
type Token struct {
	Kind     TokenKind
	Class    TokenClass
	Operator OperatorKind
	Text     string
	Pos      Position
	// Owner is the innermost node whose source range contains the token.
	Owner NodeID
	// Parent is the enclosing type token, or NoToken for stream tokens.
	Parent   TokenID
	Children []TokenID
	// Query marks LINQ query keywords.
	Query bool

	index int
}

// IsType reports whether the token is a type reference.
func (t *Token) IsType() bool {
	return t.Class.IsType()
}

var queryKeywords = map[string]struct{}{
	"from":       {},
	"select":     {},
	"where":      {},
	"orderby":    {},
	"ascending":  {},
	"descending": {},
	"in":         {},
	"into":       {},
	"join":       {},
	"let":        {},
	"group":      {},
	"by":         {},
	"on":         {},
	"equals":     {},
}

// IsQueryKeyword reports whether text is a contextual keyword of LINQ query
// syntax.
func IsQueryKeyword(text string) bool {
	_, ok := queryKeywords[text]
	return ok
}
