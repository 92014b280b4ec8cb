package facade

import ts "github.com/tree-sitter/go-tree-sitter"

// DeclarationKind classifies a syntax node the analyzer treats as an
// AstDeclaration site (§3: "class, interface, enum, namespace, function,
// method, property, signature, variable, type-alias, constructor,
// index/call signature, enum member"). Everything else — blocks,
// statement lists, expressions — is skipped when building parent/child
// nesting.
type DeclarationKind string

const (
	DeclClass                DeclarationKind = "class"
	DeclInterface            DeclarationKind = "interface"
	DeclEnum                 DeclarationKind = "enum"
	DeclEnumMember           DeclarationKind = "enumMember"
	DeclNamespace            DeclarationKind = "namespace"
	DeclFunction             DeclarationKind = "function"
	DeclMethod               DeclarationKind = "method"
	DeclMethodSignature      DeclarationKind = "methodSignature"
	DeclProperty             DeclarationKind = "property"
	DeclPropertySignature    DeclarationKind = "propertySignature"
	DeclVariable             DeclarationKind = "variable"
	DeclTypeAlias            DeclarationKind = "typeAlias"
	DeclConstructor          DeclarationKind = "constructor"
	DeclConstructSignature   DeclarationKind = "constructSignature"
	DeclIndexSignature       DeclarationKind = "indexSignature"
	DeclCallSignature        DeclarationKind = "callSignature"
)

// grammarToKind maps tree-sitter grammar names to DeclarationKind for the
// nodes that are unambiguous regardless of context. enum_body's two member
// forms ("property_identifier" for a bare member, "enum_assignment" for
// "name = value") both count as enum members.
var grammarToKind = map[string]DeclarationKind{
	"class_declaration":              DeclClass,
	"abstract_class_declaration":     DeclClass,
	"interface_declaration":          DeclInterface,
	"enum_declaration":               DeclEnum,
	"enum_assignment":                DeclEnumMember,
	"internal_module":                DeclNamespace, // `namespace X { }` / `module X { }`
	"module_declaration":             DeclNamespace,
	"function_declaration":           DeclFunction,
	"generator_function_declaration": DeclFunction,
	"method_definition":              DeclMethod,
	"method_signature":               DeclMethodSignature,
	"public_field_definition":        DeclProperty,
	"property_signature":             DeclPropertySignature,
	"variable_declarator":            DeclVariable,
	"type_alias_declaration":         DeclTypeAlias,
	"index_signature":                DeclIndexSignature,
	"call_signature":                 DeclCallSignature,
	"construct_signature":            DeclConstructSignature,
}

// IsDeclarationNode reports whether node is an isAstDeclaration-eligible
// syntax kind per §3.
func IsDeclarationNode(node *ts.Node) bool {
	_, ok := declarationKindOf(node)
	return ok
}

func declarationKindOf(node *ts.Node) (DeclarationKind, bool) {
	if node == nil {
		return "", false
	}
	if node.GrammarName() == "class_body" {
		return "", false
	}
	if k, ok := grammarToKind[node.GrammarName()]; ok {
		return k, true
	}
	// A bare enum member (`A` with no assignment) is a property_identifier
	// whose parent is the enum_body — every other property_identifier is
	// part of some larger construct with its own declaration kind.
	if node.GrammarName() == "property_identifier" && node.Parent() != nil && node.Parent().GrammarName() == "enum_body" {
		return DeclEnumMember, true
	}
	return "", false
}

// DeclarationName extracts the declared identifier text for a
// declaration-eligible node, plus its symbol namespace (value/type). ok
// is false for anonymous or unsupported nodes (e.g. an index/call
// signature, which has no name).
func DeclarationName(node *ts.Node, source []byte) (name string, kind SymbolKind, ok bool) {
	if node == nil {
		return "", 0, false
	}
	switch node.GrammarName() {
	case "class_declaration", "abstract_class_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	case "interface_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindType, true
		}
	case "enum_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	case "enum_assignment":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	case "property_identifier":
		// A bare enum member ("A" with no assignment) is the identifier
		// node itself, not a wrapper with a "name" field.
		return string(node.Utf8Text(source)), SymbolKindValue, true
	case "internal_module", "module_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindNamespace, true
		}
	case "function_declaration", "generator_function_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	case "method_definition", "method_signature":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	case "public_field_definition", "property_signature":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	case "type_alias_declaration":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindType, true
		}
	case "variable_declarator":
		if n := node.ChildByFieldName("name"); n != nil {
			return string(n.Utf8Text(source)), SymbolKindValue, true
		}
	}
	return "", 0, false
}

// DeclarationListKeyword returns the literal "var"/"let"/"const" keyword
// token from the enclosing lexical_declaration/variable_declaration of a
// variable_declarator node, taken verbatim from source per §4.7's rule
// that the review generator must not infer this keyword.
func DeclarationListKeyword(declarator *ts.Node, source []byte) string {
	if declarator == nil {
		return "let"
	}
	parent := declarator.Parent()
	if parent == nil {
		return "let"
	}
	if first := parent.Child(0); first != nil && !first.IsNamed() {
		return string(first.Utf8Text(source))
	}
	return "let"
}

// IsConstructor reports whether a method_definition node is a class
// constructor (name literally "constructor").
func IsConstructor(node *ts.Node, source []byte) bool {
	if node == nil || node.GrammarName() != "method_definition" {
		return false
	}
	n := node.ChildByFieldName("name")
	return n != nil && string(n.Utf8Text(source)) == "constructor"
}
