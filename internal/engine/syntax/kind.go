package syntax

// Category partitions node kinds into the three tree layers.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryElement
	CategoryStatement
	CategoryExpression
)

func (c Category) String() string {
	switch c {
	case CategoryElement:
		return "element"
	case CategoryStatement:
		return "statement"
	case CategoryExpression:
		return "expression"
	default:
		return "none"
	}
}

// Kind is the closed set of node kinds. Ranges are ordered by category so
// Category() is a comparison, not a lookup.
type Kind uint8

const (
	KindInvalid Kind = iota

	ElementRoot
	ElementNamespace
	ElementUsing
	ElementClass
	ElementStruct
	ElementInterface
	ElementEnum
	ElementEnumItem
	ElementDelegate
	ElementField
	ElementProperty
	ElementIndexer
	ElementEvent
	ElementMethod
	ElementConstructor
	ElementDestructor
	ElementOperator
	ElementAccessor
	elementEnd

	StatementBlock
	StatementExpression
	StatementVariableDeclaration
	StatementIf
	StatementElse
	StatementWhile
	StatementDo
	StatementFor
	StatementForeach
	StatementReturn
	StatementThrow
	StatementSwitch
	StatementSwitchSection
	StatementTry
	StatementCatch
	StatementFinally
	StatementUsing
	StatementLock
	StatementFixed
	StatementYield
	StatementLocalFunction
	StatementOther
	statementEnd

	ExpressionLiteral
	ExpressionConstant
	ExpressionMemberAccess
	ExpressionAssignment
	ExpressionMethodInvocation
	ExpressionElementAccess
	ExpressionObjectCreation
	ExpressionArrayCreation
	ExpressionObjectInitializer
	ExpressionCollectionInitializer
	ExpressionAnonymousMethod
	ExpressionLambda
	ExpressionVariableDeclaration
	ExpressionVariableDeclarator
	ExpressionQuery
	ExpressionUnary
	ExpressionBinary
	ExpressionConditional
	ExpressionCast
	ExpressionTypeof
	ExpressionParenthesized
	ExpressionOther
	expressionEnd
)

var kindNames = map[Kind]string{
	ElementRoot:        "root",
	ElementNamespace:   "namespace",
	ElementUsing:       "using",
	ElementClass:       "class",
	ElementStruct:      "struct",
	ElementInterface:   "interface",
	ElementEnum:        "enum",
	ElementEnumItem:    "enum_item",
	ElementDelegate:    "delegate",
	ElementField:       "field",
	ElementProperty:    "property",
	ElementIndexer:     "indexer",
	ElementEvent:       "event",
	ElementMethod:      "method",
	ElementConstructor: "constructor",
	ElementDestructor:  "destructor",
	ElementOperator:    "operator",
	ElementAccessor:    "accessor",

	StatementBlock:               "block",
	StatementExpression:          "expression_statement",
	StatementVariableDeclaration: "variable_declaration_statement",
	StatementIf:                  "if",
	StatementElse:                "else",
	StatementWhile:               "while",
	StatementDo:                  "do",
	StatementFor:                 "for",
	StatementForeach:             "foreach",
	StatementReturn:              "return",
	StatementThrow:               "throw",
	StatementSwitch:              "switch",
	StatementSwitchSection:       "switch_section",
	StatementTry:                 "try",
	StatementCatch:               "catch",
	StatementFinally:             "finally",
	StatementUsing:               "using_statement",
	StatementLock:                "lock",
	StatementFixed:               "fixed",
	StatementYield:               "yield",
	StatementLocalFunction:       "local_function",
	StatementOther:               "statement",

	ExpressionLiteral:               "literal",
	ExpressionConstant:              "constant",
	ExpressionMemberAccess:          "member_access",
	ExpressionAssignment:            "assignment",
	ExpressionMethodInvocation:      "method_invocation",
	ExpressionElementAccess:         "element_access",
	ExpressionObjectCreation:        "object_creation",
	ExpressionArrayCreation:         "array_creation",
	ExpressionObjectInitializer:     "object_initializer",
	ExpressionCollectionInitializer: "collection_initializer",
	ExpressionAnonymousMethod:       "anonymous_method",
	ExpressionLambda:                "lambda",
	ExpressionVariableDeclaration:   "variable_declaration",
	ExpressionVariableDeclarator:    "variable_declarator",
	ExpressionQuery:                 "query",
	ExpressionUnary:                 "unary",
	ExpressionBinary:                "binary",
	ExpressionConditional:           "conditional",
	ExpressionCast:                  "cast",
	ExpressionTypeof:                "typeof",
	ExpressionParenthesized:         "parenthesized",
	ExpressionOther:                 "expression",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

func (k Kind) Category() Category {
	switch {
	case k > KindInvalid && k < elementEnd:
		return CategoryElement
	case k > elementEnd && k < statementEnd:
		return CategoryStatement
	case k > statementEnd && k < expressionEnd:
		return CategoryExpression
	default:
		return CategoryNone
	}
}

// IsTypeContainer reports whether the element kind opens a new member scope.
func (k Kind) IsTypeContainer() bool {
	return k == ElementClass || k == ElementStruct || k == ElementInterface
}

// IsTypeDeclaration reports whether the element kind declares a type rather
// than a member that can be referenced through an instance.
func (k Kind) IsTypeDeclaration() bool {
	switch k {
	case ElementClass, ElementStruct, ElementInterface, ElementEnum, ElementDelegate:
		return true
	}
	return false
}

// IsAnonymousFunction reports whether the expression kind carries a body of
// statements.
func (k Kind) IsAnonymousFunction() bool {
	return k == ExpressionAnonymousMethod || k == ExpressionLambda
}

// IsInitializer reports whether the expression kind is an object or
// collection initializer.
func (k Kind) IsInitializer() bool {
	return k == ExpressionObjectInitializer || k == ExpressionCollectionInitializer
}
