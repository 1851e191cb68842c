// Line parsing for the interactive shell: whitespace tokenization with
// quoted-string support, plus the alternate dotted-call syntax
// Kind.verb(args). Both forms reduce to the same command shape before
// dispatch.
package console

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// attrPair is one attribute assignment from an update command, in the order
// the user gave it.
type attrPair struct {
	name  string
	value any
}

// command is the canonical verb+args shape every input line reduces to.
type command struct {
	verb  string
	args  []string
	pairs []attrPair // update only; populated by the dotted mapping form
}

var errBadSyntax = errors.New("bad syntax")

// dottedRe matches the alternate call form: <KindName>.<verb>(<args>).
var dottedRe = regexp.MustCompile(`^([A-Za-z_]\w*)\.(\w+)\((.*)\)$`)

// parseLine reduces an input line to a command. The dotted-call form is
// checked first; otherwise the line is tokenized on whitespace.
func parseLine(line string) (command, error) {
	if m := dottedRe.FindStringSubmatch(line); m != nil {
		return parseDotted(m[1], m[2], m[3])
	}

	tokens := tokenize(line)
	if len(tokens) == 0 {
		return command{}, errBadSyntax
	}
	cmd := command{verb: tokens[0], args: tokens[1:]}
	if cmd.verb == "update" && len(cmd.args) >= 4 {
		cmd.pairs = []attrPair{{name: cmd.args[2], value: cmd.args[3]}}
	}
	return cmd, nil
}

// parseDotted translates Kind.verb(args) into the canonical shape. Accepted
// argument forms: none, a quoted identity, identity plus attribute/value,
// and identity plus an inline attribute mapping.
func parseDotted(kind, verb, rawArgs string) (command, error) {
	cmd := command{verb: verb, args: []string{kind}}

	rawArgs = strings.TrimSpace(rawArgs)
	if rawArgs == "" {
		return cmd, nil
	}

	parts, err := splitArgs(rawArgs)
	if err != nil {
		return command{}, err
	}

	for i, part := range parts {
		if strings.HasPrefix(part, "{") {
			if i != 1 || verb != "update" {
				return command{}, errBadSyntax
			}
			pairs, err := parseMapping(part)
			if err != nil {
				return command{}, err
			}
			cmd.pairs = pairs
			return cmd, nil
		}
		cmd.args = append(cmd.args, unquoteArg(part))
	}

	if verb == "update" && len(cmd.args) >= 4 {
		cmd.pairs = []attrPair{{name: cmd.args[2], value: cmd.args[3]}}
	}
	return cmd, nil
}

// splitArgs splits an argument list on top-level commas, respecting quoted
// strings and brace nesting.
func splitArgs(s string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	escaped := false

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == '"':
			cur.WriteRune(r)
			inQuote = !inQuote
		case inQuote:
			cur.WriteRune(r)
		case r == '{':
			depth++
			cur.WriteRune(r)
		case r == '}':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote || depth != 0 {
		return nil, errBadSyntax
	}
	if trimmed := strings.TrimSpace(cur.String()); trimmed != "" {
		parts = append(parts, trimmed)
	}
	return parts, nil
}

// parseMapping reads an inline attribute mapping, preserving the order the
// pairs were given in. Single-quoted keys and values are tolerated since the
// dotted form is frequently pasted from other tools.
func parseMapping(s string) ([]attrPair, error) {
	s = normalizeQuotes(s)

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errBadSyntax
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errBadSyntax
	}

	var pairs []attrPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errBadSyntax
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errBadSyntax
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, errBadSyntax
		}
		pairs = append(pairs, attrPair{name: key, value: normalizeValue(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, errBadSyntax
	}
	// Nothing may follow the closing brace.
	if _, err := dec.Token(); err != io.EOF {
		return nil, errBadSyntax
	}
	return pairs, nil
}

// normalizeQuotes rewrites single-quoted strings to double-quoted ones so
// the mapping parses as JSON. Quotes inside double-quoted strings are left
// alone.
func normalizeQuotes(s string) string {
	var b strings.Builder
	inDouble := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case inDouble && r == '\\':
			b.WriteRune(r)
			escaped = true
		case r == '"':
			inDouble = !inDouble
			b.WriteRune(r)
		case r == '\'' && !inDouble:
			b.WriteRune('"')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeValue converts decoded mapping values to the attribute value
// domain: json.Number becomes int64 or float64, everything else passes
// through.
func normalizeValue(raw any) any {
	if num, ok := raw.(json.Number); ok {
		if n, err := num.Int64(); err == nil {
			return n
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
		return num.String()
	}
	return raw
}

// unquoteArg strips surrounding double or single quotes from a dotted-call
// argument, resolving backslash escapes in the double-quoted form.
func unquoteArg(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
		return s[1 : len(s)-1]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// tokenize splits a line on whitespace, treating a double-quoted segment
// (with backslash escapes) as a single token even when it contains spaces.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	pending := false // a token is being built, possibly empty

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			pending = true
		case !inQuote && (r == ' ' || r == '\t'):
			if pending {
				tokens = append(tokens, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
