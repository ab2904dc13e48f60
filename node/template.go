package node

import (
	"bytes"
	"context"
	"text/template"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/taskctx"
)

// TemplateNode renders a named text/template against the current task
// context's inputs and node outputs and writes the rendered string under
// its output key. Templates reference required inputs as bare
// identifiers (for example "Hello, {{name}}!") rather than the
// text/template-idiomatic "{{.name}}", so each declared input is bound
// as a zero-argument template function instead of a dot-field. No
// third-party templating engine is wired for this: the pack never
// reaches for one for plain string interpolation, so text/template stays
// the grounded choice (see DESIGN.md).
type TemplateNode struct {
	name           string
	requiredInputs []string
	outputKey      string
	tmpl           *template.Template
	bindings       map[string]*any
}

// NewTemplateNode parses text as a text/template and returns a node that
// renders it against values bound from requiredInputs (read from either
// run inputs or ancestor node outputs) plus a "prev" alias for the single
// upstream node, when exactly one required input is declared.
func NewTemplateNode(name string, requiredInputs []string, outputKey, text string) (*TemplateNode, error) {
	if name == "" {
		return nil, errs.New(errs.Validation, "template node: name is required")
	}
	if outputKey == "" {
		return nil, errs.New(errs.Validation, "template node: output key is required")
	}
	bindings, funcs := newBindings(requiredInputs)
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "template node: parse template", err).WithNode(name)
	}
	return &TemplateNode{name: name, requiredInputs: requiredInputs, outputKey: outputKey, tmpl: tmpl, bindings: bindings}, nil
}

// Name returns the node's stable identifier.
func (n *TemplateNode) Name() string { return n.name }

// RequiredInputs returns the declared input keys this node reads.
func (n *TemplateNode) RequiredInputs() []string { return n.requiredInputs }

// OutputKey returns the context key this node writes its rendered string
// under.
func (n *TemplateNode) OutputKey() string { return n.outputKey }

// Process renders the template against the current context and writes the
// result under OutputKey. Missing required inputs are a Validation error;
// template execution failures are a Processing error.
func (n *TemplateNode) Process(_ context.Context, tc *taskctx.Context) error {
	var prev any
	for _, key := range n.requiredInputs {
		v, ok := tc.GetInput(key)
		if !ok {
			v, ok = tc.GetOutput(key)
		}
		if !ok {
			return errs.Newf(errs.Validation, "missing required input %q", key).WithNode(n.name)
		}
		*n.bindings[key] = v
		prev = v
	}
	if len(n.requiredInputs) == 1 {
		*n.bindings["prev"] = prev
	}
	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, nil); err != nil {
		return errs.Wrap(errs.Processing, "render template", err).WithNode(n.name)
	}
	return tc.SetOutput(n.outputKey, buf.String())
}

// newBindings builds a FuncMap where every declared input key (plus,
// always, "prev") resolves to a boxed value Process fills in before each
// Execute call.
func newBindings(requiredInputs []string) (map[string]*any, template.FuncMap) {
	bindings := make(map[string]*any, len(requiredInputs)+1)
	funcs := make(template.FuncMap, len(requiredInputs)+1)
	for _, key := range requiredInputs {
		box := new(any)
		bindings[key] = box
		funcs[key] = func() any { return *box }
	}
	prevBox := new(any)
	bindings["prev"] = prevBox
	funcs["prev"] = func() any { return *prevBox }
	return bindings, funcs
}
