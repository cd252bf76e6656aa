package mapping

import (
	"fmt"
	"strconv"

	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/hdate"
)

// MacroContext is what a macro sees: the source being mapped and the
// metadata accumulated so far. Macros must be pure with respect to it.
type MacroContext struct {
	Source *graph.Source
	Meta   map[string]string
}

// Macro is a named pure function callable from a template placeholder as
// {name:arg0,arg1,...}. Returning ok=false means the macro resolved to
// null: the enclosing assertion is skipped with a warning, siblings
// continue. An error likewise degrades only the enclosing assertion.
type Macro func(mc *MacroContext, args []string) (value string, ok bool, err error)

// MacroSet is a static macro registry, populated at process start.
type MacroSet struct {
	macros map[string]Macro
}

// NewMacroSet returns a registry holding the built-in macros.
func NewMacroSet() *MacroSet {
	s := &MacroSet{macros: map[string]Macro{}}
	s.macros["substring"] = macroSubstring
	s.macros["hdate"] = macroHdate
	return s
}

// Register adds a macro. Registering an empty or duplicate name is a
// load-time configuration error.
func (s *MacroSet) Register(name string, m Macro) error {
	if name == "" || m == nil {
		return fmt.Errorf("mapping: empty macro registration: %w", graph.ErrConfiguration)
	}
	if _, dup := s.macros[name]; dup {
		return fmt.Errorf("mapping: duplicate macro %q: %w", name, graph.ErrConfiguration)
	}
	s.macros[name] = m
	return nil
}

// lookup returns nil for unknown names; callers turn that into a null.
func (s *MacroSet) lookup(name string) Macro { return s.macros[name] }

// macroSubstring extracts args[0][start:start+length] with slice semantics:
// {substring:value,start} or {substring:value,start,length}. An out-of-range
// start or length is an index error, not a silent truncation.
func macroSubstring(_ *MacroContext, args []string) (string, bool, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", false, fmt.Errorf("substring: want 2 or 3 args, got %d", len(args))
	}
	value := []rune(args[0])
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return "", false, fmt.Errorf("substring: bad start %q", args[1])
	}
	end := len(value)
	if len(args) == 3 {
		length, err := strconv.Atoi(args[2])
		if err != nil {
			return "", false, fmt.Errorf("substring: bad length %q", args[2])
		}
		end = start + length
	}
	if start < 0 || end < start || end > len(value) {
		return "", false, fmt.Errorf("substring: [%d:%d] of %d runes: %w",
			start, end, len(value), graph.ErrIndex)
	}
	return string(value[start:end]), true, nil
}

// macroHdate normalizes a historical date payload: {hdate:payload} yields
// the comparable numeric sort key, {hdate:payload,text} the human-readable
// text. A malformed payload resolves to null rather than failing the run.
func macroHdate(_ *MacroContext, args []string) (string, bool, error) {
	if len(args) == 0 || args[0] == "" {
		return "", false, nil
	}
	d, err := hdate.Parse([]byte(args[0]))
	if err != nil {
		return "", false, nil
	}
	if len(args) > 1 && args[1] == "text" {
		return d.String(), true, nil
	}
	return hdate.FormatSortValue(d.SortValue()), true, nil
}
