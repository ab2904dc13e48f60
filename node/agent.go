package node

import (
	"bytes"
	"context"
	"errors"
	"text/template"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/model"
	"github.com/flowcraft/core/taskctx"
)

// AgentNode builds a prompt from the task context and a template, calls an
// AI provider through the provider-agnostic model.Client interface, writes
// the response under the node's output key, and records token usage in
// metadata.
type AgentNode struct {
	name           string
	requiredInputs []string
	outputKey      string
	promptTmpl     *template.Template
	bindings       map[string]*any
	client         model.Client
	modelID        string
	maxTokens      int
	temperature    float32
	tools          []model.ToolDefinition
}

// AgentNodeConfig configures an AgentNode at construction time.
type AgentNodeConfig struct {
	Name           string
	RequiredInputs []string
	OutputKey      string
	PromptTemplate string
	Client         model.Client
	Model          string
	MaxTokens      int
	Temperature    float32
	Tools          []model.ToolDefinition
}

// NewAgentNode validates cfg and returns a ready-to-run AgentNode.
func NewAgentNode(cfg AgentNodeConfig) (*AgentNode, error) {
	if cfg.Name == "" {
		return nil, errs.New(errs.Validation, "agent node: name is required")
	}
	if cfg.OutputKey == "" {
		return nil, errs.New(errs.Validation, "agent node: output key is required")
	}
	if cfg.Client == nil {
		return nil, errs.New(errs.Validation, "agent node: model client is required").WithNode(cfg.Name)
	}
	bindings, funcs := newBindings(cfg.RequiredInputs)
	tmpl, err := template.New(cfg.Name).Funcs(funcs).Parse(cfg.PromptTemplate)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "agent node: parse prompt template", err).WithNode(cfg.Name)
	}
	return &AgentNode{
		name:           cfg.Name,
		requiredInputs: cfg.RequiredInputs,
		outputKey:      cfg.OutputKey,
		promptTmpl:     tmpl,
		bindings:       bindings,
		client:         cfg.Client,
		modelID:        cfg.Model,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		tools:          cfg.Tools,
	}, nil
}

// Name returns the node's stable identifier.
func (n *AgentNode) Name() string { return n.name }

// RequiredInputs returns the declared input keys this node reads.
func (n *AgentNode) RequiredInputs() []string { return n.requiredInputs }

// OutputKey returns the context key this node writes its response under.
func (n *AgentNode) OutputKey() string { return n.outputKey }

// Process renders the prompt, calls the configured provider, and writes the
// response text under OutputKey. Missing prompt inputs fail Validation;
// provider failures are classified by the provider adapter (typically a
// Transient or Processing *errs.ProviderError) and propagated as-is so the
// scheduler's retry logic can act on the embedded class.
func (n *AgentNode) Process(ctx context.Context, tc *taskctx.Context) error {
	for _, key := range n.requiredInputs {
		v, ok := tc.GetInput(key)
		if !ok {
			v, ok = tc.GetOutput(key)
		}
		if !ok {
			return errs.Newf(errs.Validation, "missing required input %q", key).WithNode(n.name)
		}
		*n.bindings[key] = v
	}
	var buf bytes.Buffer
	if err := n.promptTmpl.Execute(&buf, nil); err != nil {
		return errs.Wrap(errs.Validation, "agent node: render prompt", err).WithNode(n.name)
	}
	req := &model.Request{
		Model:       n.modelID,
		MaxTokens:   n.maxTokens,
		Temperature: n.temperature,
		Tools:       n.tools,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: buf.String()}}},
		},
	}
	resp, err := n.client.Complete(ctx, req)
	if err != nil {
		return annotateNode(err, n.name)
	}
	tc.PutMetadata("tokens:"+n.name, resp.Usage)
	return tc.SetOutput(n.outputKey, resp.Content)
}

func annotateNode(err error, name string) error {
	var pe *errs.ProviderError
	if errors.As(err, &pe) {
		pe.Classified = pe.Classified.WithNode(name)
		return pe
	}
	if e, ok := errs.Of(err); ok {
		return e.WithNode(name)
	}
	return errs.Wrap(errs.Processing, "", err).WithNode(name)
}
