// Package dispatch decides which external collaborator answers a run of a
// flow, and calls it.
//
// The decision is an ordered rule table (see [Rules]): the first rule whose
// condition holds for the graph wins. Validation rules come first, so a
// flow with a missing Knowledge URL never places a call even when it also
// has a Telephone node.
//
//	d := dispatch.New(
//	    dispatch.WithPrompt(flowise),
//	    dispatch.WithKnowledge(flowise),
//	    dispatch.WithCaller(caller),
//	    dispatch.WithRateLimit(checker),
//	)
//	out, err := d.Dispatch(ctx, flow.Graph, dispatch.Input{Text: "hi", User: user})
//
// Dispatch only reads the graph. Failures are returned, logged and sent to
// the notifier; nothing is retried.
package dispatch
