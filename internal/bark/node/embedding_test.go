package node

import (
	"context"
	"testing"

	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/model"
	"github.com/barktree/bark/internal/bark/values"
	"github.com/barktree/bark/internal/bark/vectordb"
)

type fakeEmbeddingBackend struct {
	vec  []float32
	dims int
}

func (b *fakeEmbeddingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.vec, nil
}

func (b *fakeEmbeddingBackend) Dimensions() int { return b.dims }

func TestGetEmbeddingStoresVector(t *testing.T) {
	c := controller.New("")
	rc := newTestRC(c)
	rc.Facade.Embedder = &fakeEmbeddingBackend{vec: []float32{1, 2, 3}, dims: 3}

	n := &GetEmbedding{Text: values.TextSimple{Value: "hello"}, Target: values.Named("v")}
	if state := tickUntilTerminal(t, n, rc); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}
	vec, ok := c.Embedding(values.Named("v"))
	if !ok || len(vec) != 3 {
		t.Fatalf("got %+v, %v", vec, ok)
	}
}

func TestPushAndPullBestScoredRoundTrip(t *testing.T) {
	db, err := vectordb.Open(":memory:", 3)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	c := controller.New("")
	rc := newTestRC(c)
	rc.Facade.Embedder = &fakeEmbeddingBackend{vec: []float32{1, 0, 0}, dims: 3}
	rc.Facade.VectorDBs = map[string]*vectordb.DB{"notes": db}

	push := &PushSimpleEmbedding{DB: "notes", Text: values.TextSimple{Value: "first note"}}
	if state := tickUntilTerminal(t, push, rc); state != Complete {
		t.Fatalf("push: got %v, want Complete", state)
	}

	pull := &PullBestScored{DB: "notes", Text: values.TextSimple{Value: "first note"}, Target: values.Named("best")}
	if state := tickUntilTerminal(t, pull, rc); state != Complete {
		t.Fatalf("pull: got %v, want Complete", state)
	}
	got, _ := c.RawText(values.Named("best"))
	if got != "first note" {
		t.Fatalf("got %q", got)
	}
}

func TestPullBestScoredFailsOnEmptyDB(t *testing.T) {
	db, err := vectordb.Open(":memory:", 3)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	c := controller.New("")
	rc := newTestRC(c)
	rc.Facade.Embedder = &fakeEmbeddingBackend{vec: []float32{1, 0, 0}, dims: 3}
	rc.Facade.VectorDBs = map[string]*vectordb.DB{"notes": db}

	pull := &PullBestScored{DB: "notes", Text: values.TextSimple{Value: "anything"}, Target: values.Named("best")}
	if state := tickUntilTerminal(t, pull, rc); state != Failed {
		t.Fatalf("got %v, want Failed", state)
	}
}

func TestPushValuedEmbeddingStoresKVs(t *testing.T) {
	db, err := vectordb.Open(":memory:", 3)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	c := controller.New("")
	rc := newTestRC(c)
	rc.Facade.Embedder = &fakeEmbeddingBackend{vec: []float32{0, 1, 0}, dims: 3}
	rc.Facade.VectorDBs = map[string]*vectordb.DB{"notes": db}

	push := &PushValuedEmbedding{
		DB:   "notes",
		Text: values.TextSimple{Value: "tagged note"},
		KVs:  map[string]values.TextValue{"tag": values.TextSimple{Value: "important"}},
	}
	if state := tickUntilTerminal(t, push, rc); state != Complete {
		t.Fatalf("got %v, want Complete", state)
	}

	matches, err := db.PullBestScored(context.Background(), []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].KeyValues["tag"] != "important" {
		t.Fatalf("got %+v", matches)
	}
}

var _ model.EmbeddingBackend = (*fakeEmbeddingBackend)(nil)
