// Package validate runs the compile-time rule table over a template tree.
//
// Each rule is one row of a table: an identifier, a severity, the help
// text shown with every failure, and a check function. The tree is walked
// once, post-order, and every row sees every node. Adding a rule means
// adding a row.
package validate

import (
	"github.com/conneroisu/kiln/internal/ast"
	"github.com/conneroisu/kiln/internal/bind"
	"github.com/conneroisu/kiln/internal/diag"
)

// Rule is one row of the rule table.
type Rule struct {
	ID       string
	Severity diag.Severity
	// Doc is a one-line description listed by "kiln validate --rules".
	Doc   string
	Help  string
	Check func(c *Check, n ast.Node, ancestors []ast.Node)
}

// Options supplies what the validator cannot see in the tree.
type Options struct {
	// Params returns the argument names a called component accepts.
	Params func(call *ast.ComponentCall) ([]string, bool)
	// Binder resolves the type of <form bind={T}>.
	Binder bind.Resolver
	// Rules replaces the default table when set.
	Rules []Rule
}

// Check is handed to a rule's check function.
type Check struct {
	Options *Options
	rule    *Rule
	diags   diag.List
}

// Report records a failure of the current rule using the rule's help.
func (c *Check) Report(span diag.Span, summary string) {
	c.ReportHelp(span, summary, c.rule.Help)
}

// ReportHelp records a failure of the current rule with specific help.
func (c *Check) ReportHelp(span diag.Span, summary, help string) {
	c.diags = append(c.diags, diag.Diagnostic{
		Rule:     c.rule.ID,
		Severity: c.rule.Severity,
		Summary:  summary,
		Help:     help,
		Span:     span,
	})
}

// Add records diagnostics produced by a collaborator.
func (c *Check) Add(ds ...diag.Diagnostic) {
	c.diags = append(c.diags, ds...)
}

// Validate applies the rule table to nodes and returns every failure,
// sorted by position.
func Validate(nodes []ast.Node, opts Options) diag.List {
	rules := opts.Rules
	if rules == nil {
		rules = Rules
	}
	c := &Check{Options: &opts}
	ast.PostOrder(nodes, func(n ast.Node, ancestors []ast.Node) {
		for i := range rules {
			c.rule = &rules[i]
			rules[i].Check(c, n, ancestors)
		}
	})
	c.diags.Sort()
	return c.diags
}

// Lookup returns the rule with the given identifier.
func Lookup(id string) (Rule, bool) {
	for _, r := range Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
