package node

import (
	"context"
	"fmt"

	"github.com/barktree/bark/internal/bark/async"
	"github.com/barktree/bark/internal/bark/values"
)

// GetEmbedding resolves Text, embeds it through the facade's embedding
// backend, and stores the resulting vector in Target.
type GetEmbedding struct {
	Text   values.TextValue
	Target values.VariableID

	handle *async.Handle[[]float32]
}

func (n *GetEmbedding) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.handle == nil {
		text, err := rc.Controller.GetText(n.Text)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(Failed)
			return Failed
		}
		embedder := rc.Facade.Embedder
		n.handle = async.Spawn(rc.Ctx, func(ctx context.Context) ([]float32, error) {
			return embedder.Embed(ctx, text)
		})
		return Waiting
	}

	vec, err, ok := n.handle.TryPoll()
	if !ok {
		return Waiting
	}
	n.handle = nil
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	if !rc.SpendGas(0) {
		rc.Exit(WaitingForGas)
		return WaitingForGas
	}
	rc.Controller.SetEmbedding(n.Target, vec)
	rc.Exit(Complete)
	return Complete
}

func (n *GetEmbedding) Reset() {
	if n.handle != nil {
		n.handle.Drop()
		n.handle = nil
	}
}

// PushSimpleEmbedding embeds Text and pushes it into the named vector
// database with no key/value sidecar.
type PushSimpleEmbedding struct {
	DB   string
	Text values.TextValue

	embed  GetEmbedding
	phase  int
	text   string
}

func (n *PushSimpleEmbedding) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.phase == 0 {
		text, err := rc.Controller.GetText(n.Text)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(Failed)
			return Failed
		}
		n.text = text
		n.embed.Text = values.TextSimple{Value: text}
		n.embed.Target = values.Accumulator
		n.phase = 1
	}

	if n.phase == 1 {
		state := n.embed.ResumeWith(rc.Child("embed", "get_embedding"))
		if state != Complete {
			return state
		}
		n.phase = 2
	}

	db, ok := rc.Facade.VectorDB(n.DB)
	if !ok {
		rc.Mark(fmt.Sprintf("push_simple_embedding: unknown db %q", n.DB))
		rc.Exit(Failed)
		return Failed
	}
	vec, _ := rc.Controller.Embedding(values.Accumulator)
	if err := db.Push(rc.Ctx, n.text, vec, nil); err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Exit(Complete)
	return Complete
}

func (n *PushSimpleEmbedding) Reset() {
	n.embed.Reset()
	n.phase = 0
	n.text = ""
}

// PushValuedEmbedding is PushSimpleEmbedding plus an attached free-form
// key/value sidecar, each value resolved as a TextValue.
type PushValuedEmbedding struct {
	DB   string
	Text values.TextValue
	KVs  map[string]values.TextValue

	embed GetEmbedding
	phase int
	text  string
}

func (n *PushValuedEmbedding) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.phase == 0 {
		text, err := rc.Controller.GetText(n.Text)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(Failed)
			return Failed
		}
		n.text = text
		n.embed.Text = values.TextSimple{Value: text}
		n.embed.Target = values.Accumulator
		n.phase = 1
	}

	if n.phase == 1 {
		state := n.embed.ResumeWith(rc.Child("embed", "get_embedding"))
		if state != Complete {
			return state
		}
		n.phase = 2
	}

	db, ok := rc.Facade.VectorDB(n.DB)
	if !ok {
		rc.Mark(fmt.Sprintf("push_valued_embedding: unknown db %q", n.DB))
		rc.Exit(Failed)
		return Failed
	}
	kv := make(map[string]string, len(n.KVs))
	for k, tv := range n.KVs {
		resolved, err := rc.Controller.GetText(tv)
		if err != nil {
			rc.Mark(err.Error())
			rc.Exit(Failed)
			return Failed
		}
		kv[k] = resolved
	}
	vec, _ := rc.Controller.Embedding(values.Accumulator)
	if err := db.Push(rc.Ctx, n.text, vec, kv); err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Exit(Complete)
	return Complete
}

func (n *PushValuedEmbedding) Reset() {
	n.embed.Reset()
	n.phase = 0
	n.text = ""
}

// PullBestScored embeds Text, queries the named vector database for its
// nearest neighbor, and stores the best match's text in Target. An empty
// result set fails.
type PullBestScored struct {
	DB     string
	Text   values.TextValue
	Target values.VariableID

	embed GetEmbedding
	phase int
}

func (n *PullBestScored) ResumeWith(rc ResumeContext) State {
	rc.Enter()

	if n.phase == 0 {
		n.embed.Text = n.Text
		n.embed.Target = values.Accumulator
		n.phase = 1
	}

	if n.phase == 1 {
		state := n.embed.ResumeWith(rc.Child("embed", "get_embedding"))
		if state != Complete {
			return state
		}
		n.phase = 2
	}

	db, ok := rc.Facade.VectorDB(n.DB)
	if !ok {
		rc.Mark(fmt.Sprintf("pull_best_scored: unknown db %q", n.DB))
		rc.Exit(Failed)
		return Failed
	}
	vec, _ := rc.Controller.Embedding(values.Accumulator)
	matches, err := db.PullBestScored(rc.Ctx, vec, 1)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	if len(matches) == 0 {
		rc.Mark("pull_best_scored: empty result")
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, matches[0].Text)
	rc.Exit(Complete)
	return Complete
}

func (n *PullBestScored) Reset() {
	n.embed.Reset()
	n.phase = 0
}
