package cursor

import (
	"strings"

	"github.com/kebukeYi/TrainRecord/interfaces"
)

type explainer struct {
	sb    strings.Builder
	depth int
}

func (e *explainer) VisitEnter(n interfaces.Node) bool {
	e.sb.WriteString(strings.Repeat("  ", e.depth))
	e.sb.WriteString(n.Name())
	e.sb.WriteByte('\n')
	e.depth++
	return true
}

func (e *explainer) VisitLeave(interfaces.Node) bool {
	e.depth--
	return true
}

// Explain renders the cursor tree under n, one node per line.
func Explain(n interfaces.Node) string {
	e := &explainer{}
	n.Accept(e)
	return e.sb.String()
}

// Count returns the number of nodes in the tree under n.
func Count(n interfaces.Node) int {
	c := &counter{}
	n.Accept(c)
	return c.n
}

type counter struct{ n int }

func (c *counter) VisitEnter(interfaces.Node) bool {
	c.n++
	return true
}

func (c *counter) VisitLeave(interfaces.Node) bool { return true }
