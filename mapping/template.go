package mapping

import (
	"fmt"
	"strings"
)

// errNull marks an assertion degraded by a macro that resolved to null.
// It is reported as a warning, never as a run failure.
type errNull struct{ macro string }

func (e errNull) Error() string { return fmt.Sprintf("macro %q resolved to null", e.macro) }

// render substitutes a template string against the metadata and macro set.
//
// Placeholders:
//
//	{key}              metadata value; a missing key renders as ""
//	{name:arg0,arg1}   macro invocation; each argument is first looked up
//	                   in the metadata and otherwise taken literally
//
// A macro error or null degrades the whole assertion: render returns the
// error and the caller skips the triple.
func render(tmpl string, mc *MacroContext, macros *MacroSet) (string, error) {
	if !strings.ContainsRune(tmpl, '{') {
		return tmpl, nil
	}
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			b.WriteByte(tmpl[i])
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			// Unterminated brace: kept literally, tolerant of partial data.
			b.WriteString(tmpl[i:])
			break
		}
		token := tmpl[i+1 : i+end]
		i += end

		name, argStr, isMacro := strings.Cut(token, ":")
		if !isMacro {
			b.WriteString(mc.Meta[token])
			continue
		}

		m := macros.lookup(name)
		if m == nil {
			return "", errNull{macro: name}
		}
		args := strings.Split(argStr, ",")
		for j, a := range args {
			a = strings.TrimSpace(a)
			if v, ok := mc.Meta[a]; ok {
				args[j] = v
			} else {
				args[j] = a
			}
		}
		v, ok, err := m(mc, args)
		if err != nil {
			return "", fmt.Errorf("macro %q: %w", name, err)
		}
		if !ok {
			return "", errNull{macro: name}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
