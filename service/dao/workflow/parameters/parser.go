package parameters

import (
	"fmt"
	"strings"

	"github.com/viant/chemflow/model/state"
	"github.com/viant/parsly"
)

// Parse parses a parameter key in the format: name or name[kind], where kind is
// one of string, number, path.
func Parse(input []byte) (*state.Parameter, error) {
	cursor := parsly.NewCursor("", input, 0)
	parameter := &state.Parameter{}

	matched := cursor.MatchAfterOptional(whitespaceToken, identifierToken)
	if matched.Code != identifierToken.Code {
		return nil, cursor.NewError(identifierToken)
	}
	parameter.Name = matched.Text(cursor)

	matched = cursor.MatchOne(openSquareBracketToken)
	if matched.Code != openSquareBracketToken.Code {
		if cursor.Pos < cursor.InputSize && strings.TrimSpace(string(input[cursor.Pos:])) != "" {
			return nil, cursor.NewError(openSquareBracketToken)
		}
		return parameter, nil
	}

	matched = cursor.MatchOne(kindToken)
	if matched.Code != kindToken.Code {
		return nil, cursor.NewError(kindToken)
	}
	kind := strings.ToLower(matched.Text(cursor))
	switch kind {
	case state.KindString, state.KindNumber, state.KindPath:
		parameter.Kind = kind
	default:
		return nil, fmt.Errorf("parameter %s: unsupported kind %q", parameter.Name, kind)
	}

	matched = cursor.MatchOne(closeSquareBracketToken)
	if matched.Code != closeSquareBracketToken.Code {
		return nil, cursor.NewError(closeSquareBracketToken)
	}
	if cursor.Pos < cursor.InputSize {
		return nil, fmt.Errorf("parameter %s: unexpected trailing text %q", parameter.Name, input[cursor.Pos:])
	}
	return parameter, nil
}

// ParseReferences extracts ${stage.output} and ${name} references from text.
func ParseReferences(text string) ([]*state.Reference, error) {
	cursor := parsly.NewCursor("", []byte(text), 0)
	var result []*state.Reference
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(exprOpenToken, textToken)
		switch matched.Code {
		case textToken.Code:
			continue
		case exprOpenToken.Code:
		default:
			return nil, cursor.NewError(exprOpenToken)
		}
		start := cursor.Pos - 2

		matched = cursor.MatchAfterOptional(whitespaceToken, identifierToken)
		if matched.Code != identifierToken.Code {
			return nil, cursor.NewError(identifierToken)
		}
		first := matched.Text(cursor)
		second := ""

		matched = cursor.MatchAny(dotToken, exprCloseToken)
		switch matched.Code {
		case dotToken.Code:
			matched = cursor.MatchOne(identifierToken)
			if matched.Code != identifierToken.Code {
				return nil, cursor.NewError(identifierToken)
			}
			second = matched.Text(cursor)
			matched = cursor.MatchAfterOptional(whitespaceToken, exprCloseToken)
			if matched.Code != exprCloseToken.Code {
				return nil, cursor.NewError(exprCloseToken)
			}
		case exprCloseToken.Code:
		default:
			return nil, cursor.NewError(exprCloseToken)
		}
		expr := text[start:cursor.Pos]
		if second == "" {
			result = append(result, state.NewInitReference(expr, first))
		} else {
			result = append(result, state.NewOutputReference(expr, first, second))
		}
	}
	return result, nil
}
