package parameters

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	identifierCode
	openSquareBracketCode
	closeSquareBracketCode
	kindCode
	textCode
	exprOpenCode
	exprCloseCode
	dotCode
)

// Token definitions
var (
	whitespaceToken         = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	identifierToken         = parsly.NewToken(identifierCode, "Identifier", newIdentifierMatcher())
	openSquareBracketToken  = parsly.NewToken(openSquareBracketCode, "[", matcher.NewByte('['))
	closeSquareBracketToken = parsly.NewToken(closeSquareBracketCode, "]", matcher.NewByte(']'))
	kindToken               = parsly.NewToken(kindCode, "Kind", newKindMatcher())
	textToken               = parsly.NewToken(textCode, "Text", newTextMatcher())
	exprOpenToken           = parsly.NewToken(exprOpenCode, "${", newFragmentMatcher("${"))
	exprCloseToken          = parsly.NewToken(exprCloseCode, "}", matcher.NewByte('}'))
	dotToken                = parsly.NewToken(dotCode, ".", matcher.NewByte('.'))
)

func newIdentifierMatcher() parsly.Matcher {
	return &identifierMatcher{}
}

func newKindMatcher() parsly.Matcher {
	return &kindMatcher{}
}

func newTextMatcher() parsly.Matcher {
	return &textMatcher{}
}

func newFragmentMatcher(fragment string) parsly.Matcher {
	return &fragmentMatcher{fragment: []byte(fragment)}
}

// identifierMatcher matches stage, output and parameter names
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	// First character must be a letter or underscore
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' || input[i] == '-' {
			matched++
			continue
		}
		break
	}
	return matched
}

// kindMatcher matches a kind name up to the closing square bracket
type kindMatcher struct{}

func (m *kindMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if !isLetter(input[i]) {
			break
		}
		matched++
	}
	return matched
}

// textMatcher matches literal text up to the next expression opening
type textMatcher struct{}

func (m *textMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if input[i] == '$' && i+1 < cursor.InputSize && input[i+1] == '{' {
			break
		}
		matched++
	}
	return matched
}

type fragmentMatcher struct {
	fragment []byte
}

func (m *fragmentMatcher) Match(cursor *parsly.Cursor) int {
	if cursor.Pos+len(m.fragment) > cursor.InputSize {
		return 0
	}
	for i, b := range m.fragment {
		if cursor.Input[cursor.Pos+i] != b {
			return 0
		}
	}
	return len(m.fragment)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
