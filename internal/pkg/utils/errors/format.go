package errors

import (
	"strings"
)

const (
	Indent = "  "
	Bullet = "- "
)

// Format converts the error to a human-readable string.
// Prefixed and multi errors are written as an indented bullet list.
func Format(err error) string {
	w := &writer{}
	w.writeError(0, err)
	return w.out.String()
}

type writer struct {
	out strings.Builder
}

func (w *writer) writeError(level int, err error) {
	switch v := err.(type) { // nolint: errorlint
	case *nestedError:
		w.writeNested(level, v)
	case *multiError:
		w.writeList(level, v.errs)
	default:
		lines := strings.Split(v.Error(), "\n")
		w.write(lines[0])
		for _, line := range lines[1:] {
			w.write("\n" + strings.Repeat(Indent, level) + line)
		}
	}
}

func (w *writer) writeNested(level int, e *nestedError) {
	prefix := strings.TrimRight(e.main.Error(), ".,:") + ":"
	if len(e.subs) == 0 {
		w.write(e.main.Error())
		return
	}

	sub := &writer{}
	sub.writeList(level, e.subs)
	subStr := sub.out.String()

	w.write(prefix)
	if len(e.subs) == 1 && len(prefix)+len(subStr) <= 60 && !strings.Contains(subStr, "\n") {
		w.write(" " + subStr)
		return
	}

	w.write("\n")
	if len(e.subs) == 1 {
		w.write(strings.Repeat(Indent, level) + Bullet)
		w.writeError(level+1, e.subs[0])
		return
	}
	w.writeList(level, e.subs)
}

func (w *writer) writeList(level int, errs []error) {
	bullets := len(errs) > 1
	for i, err := range errs {
		if bullets {
			w.write(strings.Repeat(Indent, level) + Bullet)
		}
		w.writeError(level+1, err)
		if i != len(errs)-1 {
			w.write("\n")
		}
	}
}

func (w *writer) write(s string) {
	_, _ = w.out.WriteString(s)
}
