package loader

import (
	"fmt"
	"io"

	"github.com/panyam/fsl/decl"
)

// ErrorCollector gathers the failures of a multi file validation.
type ErrorCollector struct {
	Errors []error

	// Max errors before collection stops
	// 0 => no limit
	MaxErrors int
}

func (c *ErrorCollector) HasErrors() bool {
	return len(c.Errors) > 0
}

// Full reports whether MaxErrors has been reached.
func (c *ErrorCollector) Full() bool {
	return c.MaxErrors > 0 && len(c.Errors) >= c.MaxErrors
}

func (c *ErrorCollector) AddErrors(errs ...error) {
	for _, err := range errs {
		if err == nil || c.Full() {
			continue
		}
		c.Errors = append(c.Errors, err)
	}
}

// CountByKind tallies the collected errors by CompileError kind. Errors
// that are not compile errors are counted under "".
func (c *ErrorCollector) CountByKind() map[decl.ErrorKind]int {
	out := map[decl.ErrorKind]int{}
	for _, err := range c.Errors {
		kind, _ := decl.KindOf(err)
		out[kind]++
	}
	return out
}

func (c *ErrorCollector) PrintErrors(w io.Writer) {
	for _, err := range c.Errors {
		fmt.Fprintln(w, err)
	}
}
