package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/llm"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
)

// Rule names a dispatch decision.
type Rule string

// Rules in evaluation order.
const (
	RuleKnowledgeURLMissing      Rule = "knowledge-url-missing"
	RuleKnowledgeDocumentMissing Rule = "knowledge-document-missing"
	RuleTelephone                Rule = "telephone"
	RulePromptChain              Rule = "prompt-chain"
	RulePromptSingle             Rule = "prompt-single"
	RuleKnowledgeLLM             Rule = "knowledge-llm"
	RuleChatFallback             Rule = "chat-fallback"
)

// RuleStructure reports a failed structural check. It is not part of the
// table: the check runs before it when enabled.
const RuleStructure Rule = "structure"

// ChatUnsupportedReply is the fallback answer when no chat collaborator is set.
const ChatUnsupportedReply = "This node type doesn't support chat functionality."

// Collaborator names used in spans and errors.
const (
	collaboratorPrompt    = "prompt"
	collaboratorKnowledge = "knowledge"
	collaboratorChat      = "chat"
	collaboratorVoice     = "voice"
)

// ErrCollaboratorMissing is returned when the winning rule needs a
// collaborator the dispatcher was not given.
var ErrCollaboratorMissing = errors.New("collaborator not configured")

// plan is the evaluation of one run.
type plan struct {
	d     *Dispatcher
	graph *flowdeck.Graph
	in    Input
}

type rule struct {
	name Rule

	// match reports whether the rule applies. It may consult collaborators.
	match func(ctx context.Context, p *plan) (bool, error)

	// gated rules run only for a signed-in user within the flow quota.
	gated bool

	run func(ctx context.Context, p *plan) (Outcome, error)
}

// table is the ordered rule table. The last rule always matches.
var table = []rule{
	{name: RuleKnowledgeURLMissing, match: matchURLMissing, run: runURLMissing},
	{name: RuleKnowledgeDocumentMissing, match: matchDocumentMissing, run: runDocumentMissing},
	{name: RuleTelephone, match: hasType(flowdeck.TypeTelephone), gated: true, run: runTelephone},
	{name: RulePromptChain, match: promptCount(2), gated: true, run: runPromptChain},
	{name: RulePromptSingle, match: promptCount(1), gated: true, run: runPromptSingle},
	{name: RuleKnowledgeLLM, match: hasType(flowdeck.TypeKnowledgeLLM), gated: true, run: runKnowledgeLLM},
	{name: RuleChatFallback, match: always, gated: true, run: runChatFallback},
}

// Rules returns the rule names in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(table))
	for i, r := range table {
		out[i] = r.name
	}
	return out
}

func always(context.Context, *plan) (bool, error) { return true, nil }

func hasType(t flowdeck.NodeType) func(context.Context, *plan) (bool, error) {
	return func(_ context.Context, p *plan) (bool, error) {
		return p.graph.HasType(t), nil
	}
}

func promptCount(n int) func(context.Context, *plan) (bool, error) {
	return func(_ context.Context, p *plan) (bool, error) {
		return len(p.graph.NodesOfType(flowdeck.TypeCustomPrompt)) == n, nil
	}
}

// emptyURLNode returns the first Knowledge URL node without a URL.
func emptyURLNode(g *flowdeck.Graph) (flowdeck.Node, bool) {
	for _, n := range g.NodesOfType(flowdeck.TypeURL) {
		cfg, _ := n.Config.(flowdeck.URLConfig)
		if strings.TrimSpace(cfg.URL) == "" {
			return n, true
		}
	}
	return flowdeck.Node{}, false
}

func matchURLMissing(_ context.Context, p *plan) (bool, error) {
	_, ok := emptyURLNode(p.graph)
	return ok, nil
}

func runURLMissing(_ context.Context, p *plan) (Outcome, error) {
	n, _ := emptyURLNode(p.graph)
	return Outcome{Selected: n.ID}, fderrors.Validation(n.ID, "url", "Please input a URL")
}

// missingDocumentNode returns the first Knowledge Document node without a
// file when the user has no ingested document either.
func missingDocumentNode(ctx context.Context, p *plan) (flowdeck.Node, bool, error) {
	for _, n := range p.graph.NodesOfType(flowdeck.TypeDocument) {
		cfg, _ := n.Config.(flowdeck.DocumentConfig)
		if cfg.HasFile() {
			continue
		}
		has, err := p.d.userHasDocument(ctx, p.in.User)
		if err != nil {
			return flowdeck.Node{}, false, err
		}
		if !has {
			return n, true, nil
		}
	}
	return flowdeck.Node{}, false, nil
}

func matchDocumentMissing(ctx context.Context, p *plan) (bool, error) {
	_, ok, err := missingDocumentNode(ctx, p)
	return ok, err
}

func runDocumentMissing(ctx context.Context, p *plan) (Outcome, error) {
	n, _, err := missingDocumentNode(ctx, p)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Selected: n.ID}, fderrors.Validation(n.ID, "file", "Please upload a document before running.")
}

func runTelephone(ctx context.Context, p *plan) (Outcome, error) {
	n := p.graph.NodesOfType(flowdeck.TypeTelephone)[0]
	cfg, _ := n.Config.(flowdeck.TelephoneConfig)

	callID, err := p.d.startCall(ctx, p.in, cfg)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{CallID: callID}, nil
}

// chainOrder orders two prompt nodes along the edges: a node that reaches
// the other runs first. Otherwise insertion order holds.
func chainOrder(g *flowdeck.Graph, a, b flowdeck.Node) (flowdeck.Node, flowdeck.Node) {
	if g.Reaches(b.ID, a.ID) && !g.Reaches(a.ID, b.ID) {
		return b, a
	}
	return a, b
}

func runPromptChain(ctx context.Context, p *plan) (Outcome, error) {
	nodes := p.graph.NodesOfType(flowdeck.TypeCustomPrompt)
	first, second := chainOrder(p.graph, nodes[0], nodes[1])

	intermediate, err := p.d.completePrompt(ctx, p.in.Text, first)
	if err != nil {
		return Outcome{}, err
	}
	out, err := p.d.completePrompt(ctx, intermediate, second)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: out}, nil
}

func runPromptSingle(ctx context.Context, p *plan) (Outcome, error) {
	n := p.graph.NodesOfType(flowdeck.TypeCustomPrompt)[0]
	out, err := p.d.completePrompt(ctx, p.in.Text, n)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: out}, nil
}

// knowledgeSource returns the first Knowledge Document or Knowledge URL node.
func knowledgeSource(g *flowdeck.Graph) (flowdeck.Node, bool) {
	for _, n := range g.Nodes() {
		if n.Type.IsKnowledge() {
			return n, true
		}
	}
	return flowdeck.Node{}, false
}

func runKnowledgeLLM(ctx context.Context, p *plan) (Outcome, error) {
	llmNode := p.graph.NodesOfType(flowdeck.TypeKnowledgeLLM)[0]
	src, ok := knowledgeSource(p.graph)
	if !ok {
		return Outcome{Selected: llmNode.ID}, fderrors.Validation(llmNode.ID, "knowledge",
			"Add a Knowledge Document or Knowledge URL node.")
	}
	if p.d.knowledge == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrCollaboratorMissing, collaboratorKnowledge)
	}

	index := llm.IndexName(p.in.User.Name)
	var answer string
	var err error

	switch cfg := src.Config.(type) {
	case flowdeck.URLConfig:
		answer, err = p.d.callCollaborator(ctx, collaboratorKnowledge, func(ctx context.Context) (string, error) {
			return p.d.knowledge.QueryURL(ctx, llm.URLQuery{Question: p.in.Text, URL: cfg.URL, Index: index})
		})
	case flowdeck.DocumentConfig:
		doc, derr := p.d.resolveDocument(ctx, p.in.User, cfg)
		if derr != nil {
			if errors.Is(derr, store.ErrNotFound) {
				return Outcome{Selected: src.ID}, fderrors.Validation(src.ID, "file", "Please upload a document before running.")
			}
			return Outcome{}, derr
		}
		answer, err = p.d.callCollaborator(ctx, collaboratorKnowledge, func(ctx context.Context) (string, error) {
			return p.d.knowledge.QueryDocument(ctx, llm.DocumentQuery{
				Question:    p.in.Text,
				FileName:    doc.FileName,
				ContentType: doc.ContentType,
				Data:        doc.Data,
				Index:       index,
				CSV:         doc.IsCSV(),
			})
		})
	default:
		return Outcome{Selected: src.ID}, fderrors.Validation(src.ID, "nodeType", "unsupported knowledge source")
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: answer}, nil
}

func runChatFallback(ctx context.Context, p *plan) (Outcome, error) {
	if p.d.chat == nil {
		return Outcome{Output: ChatUnsupportedReply}, nil
	}
	out, err := p.d.callCollaborator(ctx, collaboratorChat, func(ctx context.Context) (string, error) {
		resp, err := p.d.chat.Complete(ctx, llm.CompletionRequest{
			Messages: []llm.Message{{Role: llm.RoleUser, Content: p.in.Text}},
			User:     p.in.User.ID,
		})
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: out}, nil
}
