// Package natural parses natural-language time expressions ("9am",
// "yesterday 18:30", "in 20 minutes") for the CLI's --at flags.
package natural

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Parser wraps a configured when.Parser with the English rule set the CLI
// exposes to users.
type Parser struct {
	w *when.Parser
}

// New builds a Parser with the combined common + English rule set.
func New() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse resolves expr relative to base and returns the resulting instant
// as a Unix second count, matching model.Entry.Start's representation. It
// returns an error if expr doesn't match any known pattern.
func (p *Parser) Parse(expr string, base time.Time) (int64, error) {
	result, err := p.w.Parse(expr, base)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", expr, err)
	}
	if result == nil {
		return 0, fmt.Errorf("parse %q: no recognizable time expression", expr)
	}
	return result.Time.Unix(), nil
}
