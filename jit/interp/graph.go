package interp

import (
	"fmt"
	"strings"

	"github.com/ajroetker/go-vcall/jit"
)

// Graph returns a textual dump of the program: one line per variable, then
// one line per recorded call and per pending side effect.
func (b *Backend) Graph() string {
	var sb strings.Builder
	for i := 1; i < len(b.nodes); i++ {
		n := b.nodes[i]
		fmt.Fprintf(&sb, "%%%d = %s %s[%d]", i, n.op, n.typ, n.size)
		switch n.op {
		case opLiteral, opArange:
			fmt.Fprintf(&sb, " %g", n.lit)
		case opCallOutput:
			fmt.Fprintf(&sb, " %s#%d", n.call.ID, n.slot)
		}
		for _, a := range n.args {
			fmt.Fprintf(&sb, " %%%d", a)
		}
		if n.data != nil {
			sb.WriteString(" (evaluated)")
		}
		if n.label != "" {
			fmt.Fprintf(&sb, " ; %s", n.label)
		}
		sb.WriteByte('\n')
	}
	for _, c := range b.calls {
		state := "pending"
		if c.retired {
			state = "retired"
		}
		fmt.Fprintf(&sb, "call %s %q self=%%%d instances=%v inputs=%s outputs=%s side_effects=%d %s\n",
			c.ID, c.Label, c.Self, c.IDs, indexList(c.In), indexList(c.Outputs), c.NumSideEffects(), state)
	}
	for i, e := range b.effects {
		if e.kind == effectCall {
			fmt.Fprintf(&sb, "effect %d: call %s\n", i, e.call.ID)
			continue
		}
		fmt.Fprintf(&sb, "effect %d: %s %s value=%%%d index=%%%d mask=%%%d\n",
			i, e.kind, e.buf.name, e.value, e.index, e.mask)
	}
	return sb.String()
}

func indexList(idx []jit.Index) string {
	parts := make([]string, len(idx))
	for i, x := range idx {
		parts[i] = fmt.Sprintf("%%%d", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
