package expr

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Func implements one XLSForm function. args have already been evaluated;
// ctx gives access to interpreter state for functions that need it
// (position, pulldata).
type Func func(ctx Context, args []any) (any, error)

// Functions is the supported XLSForm function table (§4.2). Names are the
// bare XLSForm names (dashes and colons already replaced by underscores,
// matching what rewriteFunctionCalls produces minus its "fn_" prefix).
// loadtxt and pycall are deliberately absent: both read arbitrary files or
// code off the host and have no place in a formula evaluated against
// untrusted respondent input.
var Functions = map[string]Func{
	"if":          fnIf,
	"selected":    fnSelected,
	"selected_at": fnSelectedAt,
	"position":    fnPosition,
	"escape":      fnEscape,
	"str2int":     fnStr2Int,
	"randint":     fnRandint,
	"pulldata":    fnPulldata,
}

func fnIf(_ Context, args []any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("if() takes 3 arguments, got %d", len(args))
	}
	if toBool(args[0]) {
		return args[1], nil
	}
	return args[2], nil
}

// fnSelected reports whether value appears among the space-separated
// options in list, matching XLSForm's selected() for select_all_that_apply
// responses.
func fnSelected(_ Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("selected() takes 2 arguments, got %d", len(args))
	}
	list := toString(args[0])
	value := toString(args[1])
	for _, opt := range strings.Fields(list) {
		if opt == value {
			return true, nil
		}
	}
	return false, nil
}

// fnSelectedAt returns the option at the given 0-based position within a
// space-separated option list, or "" if the index is out of range.
func fnSelectedAt(_ Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("selected_at() takes 2 arguments, got %d", len(args))
	}
	list := strings.Fields(toString(args[0]))
	idx := int(toFloat(args[1]))
	if idx < 0 || idx >= len(list) {
		return "", nil
	}
	return list[idx], nil
}

func fnPosition(ctx Context, args []any) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("position() takes no arguments, got %d", len(args))
	}
	return float64(ctx.Position()), nil
}

func fnEscape(_ Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("escape() takes 1 argument, got %d", len(args))
	}
	s := toString(args[0])
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\t", "\\t",
	)
	return replacer.Replace(s), nil
}

func fnStr2Int(_ Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str2int() takes 1 argument, got %d", len(args))
	}
	s := strings.TrimSpace(toString(args[0]))
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("str2int(%q): %w", s, err)
	}
	return float64(n), nil
}

// fnRandint draws a uniform integer in [low, high], inclusive, matching
// Python's random.randint used by the original implementation.
func fnRandint(_ Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("randint() takes 2 arguments, got %d", len(args))
	}
	low := int(toFloat(args[0]))
	high := int(toFloat(args[1]))
	if high < low {
		return nil, fmt.Errorf("randint(%d, %d): high below low", low, high)
	}
	return float64(low + rand.Intn(high-low+1)), nil
}

// fnPulldata looks up a roster-derived attribute of the current
// respondent by column name, falling back to the caller-supplied default
// when the attribute is missing, matching xlsform_functions.py's
// _pulldata(column, default). ODK's pulldata
// reads an arbitrary CSV by filename and searches it by a key column;
// here the search is always "this respondent's roster row", since that
// is the only use the surveys this engine runs ever make of it.
func fnPulldata(ctx Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("pulldata() takes 2 arguments, got %d", len(args))
	}
	column := toString(args[0])
	def := args[1]
	v, ok := ctx.RespondentAttr(column)
	if !ok {
		return def, nil
	}
	return v, nil
}
