package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/llm"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/notify"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/ratelimit"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/voice"
)

// Input is one user submission to a flow.
type Input struct {
	Text   string
	User   flowdeck.User
	FlowID string
}

// Outcome is the result of a dispatch.
type Outcome struct {
	// Rule is the rule that decided the run.
	Rule Rule

	// Output is the answer to surface, for the completion rules.
	Output string

	// CallID is the started call, for the telephone rule.
	CallID string

	// Selected is the node the editor should select, for validation failures.
	Selected string
}

// Dispatcher routes runs of a flow to collaborators. It is safe for
// concurrent use; the graphs it is given must not be mutated during a call.
type Dispatcher struct {
	prompt    PromptCompleter
	knowledge KnowledgeQuerier
	chat      llm.Client
	caller    voice.Caller
	documents DocumentSource
	limits    *ratelimit.Checker

	notifier notify.Notifier
	sessions *voice.Registry
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager

	structureCheck bool
}

// New creates a dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifier: notify.Discard,
		sessions: voice.NewRegistry(),
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch evaluates the rule table against g and runs the first rule that
// matches.
func (d *Dispatcher) Dispatch(ctx context.Context, g *flowdeck.Graph, in Input) (out Outcome, err error) {
	ctx, span := d.spans.StartDispatchSpan(ctx, in.FlowID, in.User.ID)
	defer func() { d.spans.EndSpanWithError(span, err) }()

	logger := observability.EnrichLogger(d.logger, in.FlowID, in.User.ID)
	observability.LogDispatchStart(logger, g.Len())
	elapsed := observability.TimedOperation()
	start := time.Now()

	out, err = d.evaluate(ctx, g, in)

	d.metrics.RecordDispatch(ctx, string(out.Rule), time.Since(start), err)
	if err != nil {
		observability.LogDispatchError(logger, string(out.Rule), err, elapsed())
		d.notifyError(ctx, in.User.ID, out.Selected, err)
		return out, err
	}
	observability.LogDispatchComplete(logger, string(out.Rule), elapsed())
	return out, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, g *flowdeck.Graph, in Input) (Outcome, error) {
	if d.structureCheck {
		if out, err := checkStructure(g); err != nil {
			out.Rule = RuleStructure
			return out, err
		}
	}

	p := &plan{d: d, graph: g, in: in}
	for _, r := range table {
		ok, err := r.match(ctx, p)
		if err != nil {
			return Outcome{Rule: r.name}, err
		}
		if !ok {
			continue
		}
		d.spans.AddSpanEvent(ctx, "rule.matched", attribute.String("rule", string(r.name)))

		if r.gated {
			if err := d.authorize(ctx, in.User); err != nil {
				return Outcome{Rule: r.name}, err
			}
		}
		out, err := r.run(ctx, p)
		out.Rule = r.name
		return out, err
	}
	return Outcome{}, fmt.Errorf("no dispatch rule matched")
}

// authorize requires a signed-in user within the flow quota.
func (d *Dispatcher) authorize(ctx context.Context, user flowdeck.User) error {
	if user.Anonymous() {
		return fderrors.ErrUnauthenticated
	}
	if d.limits == nil {
		return nil
	}
	_, err := d.limits.Check(ctx, ratelimit.KindFlow, ratelimit.Key(ratelimit.KindFlow, user.ID))
	return err
}

// checkStructure requires Start and END nodes and no unconnected node
// besides Start.
func checkStructure(g *flowdeck.Graph) (Outcome, error) {
	starts := g.NodesOfType(flowdeck.TypeStart)
	if len(starts) == 0 || !g.HasType(flowdeck.TypeEnd) {
		return Outcome{}, fderrors.Validation("", "nodes", "Flow must contain both Start and Output nodes.")
	}
	for _, n := range g.Nodes() {
		if n.ID == starts[0].ID {
			continue
		}
		if !g.Connected(n.ID) {
			return Outcome{Selected: n.ID}, fderrors.Validation(n.ID, "edges", "All nodes must be connected in the flow.")
		}
	}
	return Outcome{}, nil
}

// completePrompt applies a custom-prompt node to input.
func (d *Dispatcher) completePrompt(ctx context.Context, input string, n flowdeck.Node) (string, error) {
	if d.prompt == nil {
		return "", fmt.Errorf("%w: %s", ErrCollaboratorMissing, collaboratorPrompt)
	}
	cfg, _ := n.Config.(flowdeck.PromptConfig)
	return d.callCollaborator(ctx, collaboratorPrompt, func(ctx context.Context) (string, error) {
		return d.prompt.CompleteWithPrompt(ctx, input, cfg.Prompt)
	})
}

// callCollaborator runs fn in a collaborator span. Errors that are not
// already classified become ServiceErrors.
func (d *Dispatcher) callCollaborator(ctx context.Context, name string, fn func(context.Context) (string, error)) (out string, err error) {
	ctx, span := d.spans.StartCollaboratorSpan(ctx, name)
	defer func() { d.spans.EndSpanWithError(span, err) }()

	out, err = fn(ctx)
	if err != nil {
		return "", asServiceError(name, err)
	}
	return out, nil
}

func asServiceError(name string, err error) error {
	var svcErr *fderrors.ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &fderrors.ServiceError{Service: name, Message: err.Error(), Err: err}
}

func (d *Dispatcher) userHasDocument(ctx context.Context, user flowdeck.User) (bool, error) {
	if d.documents == nil || user.Anonymous() {
		return false, nil
	}
	docs, err := d.documents.ListDocuments(ctx, user.ID, 1)
	if err != nil {
		return false, fmt.Errorf("list documents: %w", err)
	}
	return len(docs) > 0, nil
}

// resolveDocument loads the node's document, or else the user's most recent
// one. Returns store.ErrNotFound when there is none.
func (d *Dispatcher) resolveDocument(ctx context.Context, user flowdeck.User, cfg flowdeck.DocumentConfig) (store.Document, error) {
	if d.documents == nil {
		return store.Document{}, fmt.Errorf("document: %w", store.ErrNotFound)
	}
	id := cfg.DocumentID
	if id == "" {
		docs, err := d.documents.ListDocuments(ctx, user.ID, 1)
		if err != nil {
			return store.Document{}, fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			return store.Document{}, fmt.Errorf("document: %w", store.ErrNotFound)
		}
		id = docs[0].ID
	}
	return d.documents.GetDocument(ctx, id)
}

func (d *Dispatcher) notifyError(ctx context.Context, userID, nodeID string, err error) {
	title, msg := "Error", fderrors.UserMessage(err)
	switch {
	case fderrors.Categorize(err) == fderrors.CategoryRateLimited:
		title = "Rate limit exceeded"
	case errors.Is(err, voice.ErrCallInProgress):
		msg = "A call is already in progress."
	}
	d.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelError,
		Title:   title,
		Message: msg,
		UserID:  userID,
		NodeID:  nodeID,
		At:      time.Now(),
	})
}
