package controller

import (
	"testing"
	"time"

	"github.com/barktree/bark/internal/bark/values"
)

func TestGetTextVariants(t *testing.T) {
	c := New("query: ")

	c.SetText(values.Named("greeting"), "hello")
	c.SetText(values.Named("empty"), "")
	c.SetText(values.Named("withThink"), "<think>plan A</think>final answer")

	cases := []struct {
		name string
		tv   values.TextValue
		want string
	}{
		{"simple", values.TextSimple{Value: "literal"}, "literal"},
		{"variable set", values.TextVariable{ID: values.Named("greeting")}, "hello"},
		{"variable unset", values.TextVariable{ID: values.Named("missing")}, ""},
		{"default used when unset", values.TextDefault{ID: values.Named("missing"), Default: "fallback"}, "fallback"},
		{"default used when empty", values.TextDefault{ID: values.Named("empty"), Default: "fallback"}, "fallback"},
		{"default skipped when present", values.TextDefault{ID: values.Named("greeting"), Default: "fallback"}, "hello"},
		{"thoughts extracted", values.TextThoughts{ID: values.Named("withThink")}, "plan A"},
		{"without thoughts", values.TextWithoutThoughts{ID: values.Named("withThink")}, "final answer"},
		{"multi concatenates", values.TextMulti{Parts: []values.TextValue{
			values.TextSimple{Value: "a"},
			values.TextVariable{ID: values.Named("greeting")},
		}}, "ahello"},
		{"pre_embed reserved default", values.TextVariable{ID: values.PreEmbed}, "query: "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.GetText(tc.tv)
			if err != nil {
				t.Fatalf("GetText: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGetTextStructuredDeterministicOrder(t *testing.T) {
	c := New("")
	c.SetText(values.Named("a"), "1")
	c.SetText(values.Named("b"), "2")

	tv := values.TextStructured{Fields: map[string]values.TextValue{
		"zeta":  values.TextVariable{ID: values.Named("b")},
		"alpha": values.TextVariable{ID: values.Named("a")},
	}}

	for i := 0; i < 5; i++ {
		got, err := c.GetText(tv)
		if err != nil {
			t.Fatalf("GetText: %v", err)
		}
		want := `{"alpha":"1","zeta":"2"}`
		if got != want {
			t.Fatalf("run %d: got %q, want %q", i, got, want)
		}
	}
}

func TestTextMatches(t *testing.T) {
	c := New("")
	cases := []struct {
		name string
		text string
		m    values.TextMatcher
		want bool
	}{
		{"exact case-insensitive", "  Yes  ", values.MatchExact{Value: "yes"}, true},
		{"contains", "hello world", values.MatchContains{Value: "wor"}, true},
		{"starts with", "hello world", values.MatchStartsWith{Value: "hello"}, true},
		{"ends with", "hello world", values.MatchEndsWith{Value: "world"}, true},
		{"not inverts", "hello", values.MatchNot{Inner: values.MatchExact{Value: "hello"}}, false},
		{"any true if one matches", "hello", values.MatchAny{Matchers: []values.TextMatcher{
			values.MatchExact{Value: "nope"},
			values.MatchContains{Value: "ell"},
		}}, true},
		{"all false if one fails", "hello", values.MatchAll{Matchers: []values.TextMatcher{
			values.MatchContains{Value: "ell"},
			values.MatchExact{Value: "nope"},
		}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.TextMatches(tc.text, tc.m); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReplaceTemplateVariablesBasic(t *testing.T) {
	c := New("")
	c.SetText(values.Named("name"), "world")

	got, err := c.ReplaceTemplateVariables("hello {{name}}!")
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	if got != "hello world!" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceTemplateVariablesDefault(t *testing.T) {
	c := New("")
	got, err := c.ReplaceTemplateVariables("hi {{missing|stranger}}")
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	if got != "hi stranger" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceTemplateVariablesDefaultAppliesToEmptyExpansion(t *testing.T) {
	c := New("")
	c.SetText(values.Named("known"), "{{unset}}")

	got, err := c.ReplaceTemplateVariables("{{known|default}}")
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	if got != "default" {
		t.Errorf("got %q, want %q: fallback must trigger on empty expansion, not just an empty raw value", got, "default")
	}
}

func TestReplaceTemplateVariablesAltKey(t *testing.T) {
	c := New("")
	c.SetText(values.Named("backup"), "secondhand")

	got, err := c.ReplaceTemplateVariables("value: {{primary|=backup}}")
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	if got != "value: secondhand" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceTemplateVariablesRecursiveExpansion(t *testing.T) {
	c := New("")
	c.SetText(values.Named("inner"), "deep")
	c.SetText(values.Named("outer"), "wraps {{inner}}")

	got, err := c.ReplaceTemplateVariables("{{outer}}")
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	if got != "wraps deep" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceTemplateVariablesCycleTerminates(t *testing.T) {
	c := New("")
	c.SetText(values.Named("a"), "{{b}}")
	c.SetText(values.Named("b"), "{{a}}")

	done := make(chan struct{})
	var got string
	var err error
	go func() {
		got, err = c.ReplaceTemplateVariables("{{a}}")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReplaceTemplateVariables did not terminate on a cyclic reference")
	}
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	if got != loopSentinel {
		t.Errorf("got %q, want loop sentinel", got)
	}
}

func TestReplaceTemplateVariablesSelfCycle(t *testing.T) {
	c := New("")
	c.SetText(values.Named("a"), "before {{a}} after")

	got, err := c.ReplaceTemplateVariables("{{a}}")
	if err != nil {
		t.Fatalf("ReplaceTemplateVariables: %v", err)
	}
	want := "before " + loopSentinel + " after"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func systemPrompt(text string) values.PromptValue {
	return values.PromptChat{Messages: []values.MessageValue{
		values.MessageLiteral{Role: values.RoleSystem, Text: values.TextSimple{Value: text}},
	}}
}

func TestAppendAndReplaceSystemPrompt(t *testing.T) {
	c := New("")
	id := values.Named("history")

	c.AppendPrompt(id, values.ChatMessage{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}})
	if err := c.ReplaceSystemPrompt(id, systemPrompt("be terse")); err != nil {
		t.Fatal(err)
	}
	c.AppendPrompt(id, values.ChatMessage{Role: values.RoleAssistant, Content: values.ContentText{Text: "ok"}})

	msgs, ok := c.RawPrompt(id)
	if !ok || len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != values.RoleSystem || msgs[0].Text() != "be terse" {
		t.Errorf("system prompt not prepended first: %+v", msgs[0])
	}
	if msgs[1].Role != values.RoleUser || msgs[2].Role != values.RoleAssistant {
		t.Errorf("non-system messages should keep their original order: %+v", msgs)
	}

	if err := c.ReplaceSystemPrompt(id, systemPrompt("be verbose")); err != nil {
		t.Fatal(err)
	}
	msgs, _ = c.RawPrompt(id)
	if len(msgs) != 3 || msgs[0].Text() != "be verbose" {
		t.Errorf("system prompt not replaced, old system message should be dropped not kept: %+v", msgs)
	}
}

func TestReplaceSystemPromptDropsEveryExistingSystemMessage(t *testing.T) {
	c := New("")
	id := values.Named("history")

	c.AppendPrompt(id, values.ChatMessage{Role: values.RoleSystem, Content: values.ContentText{Text: "old 1"}})
	c.AppendPrompt(id, values.ChatMessage{Role: values.RoleUser, Content: values.ContentText{Text: "hi"}})
	c.AppendPrompt(id, values.ChatMessage{Role: values.RoleSystem, Content: values.ContentText{Text: "old 2"}})

	if err := c.ReplaceSystemPrompt(id, systemPrompt("new")); err != nil {
		t.Fatal(err)
	}

	msgs, _ := c.RawPrompt(id)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (new system + preserved user)", len(msgs))
	}
	if msgs[0].Role != values.RoleSystem || msgs[0].Text() != "new" {
		t.Errorf("new system message should be the prefix: %+v", msgs[0])
	}
	if msgs[1].Role != values.RoleUser || msgs[1].Text() != "hi" {
		t.Errorf("non-system message should be preserved: %+v", msgs[1])
	}
}

func TestGetPromptJoined(t *testing.T) {
	c := New("")
	c.SetText(values.Named("topic"), "go")

	pv := values.PromptJoined{Parts: []values.PromptValue{
		values.PromptQuick{Text: "intro"},
		values.PromptChat{Messages: []values.MessageValue{
			values.MessageLiteral{Role: values.RoleUser, Text: values.TextVariable{ID: values.Named("topic")}},
		}},
	}}

	msgs, err := c.GetPrompt(pv)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text() != "intro" || msgs[1].Text() != "go" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestGetTemplateExpandsAgainstTexts(t *testing.T) {
	c := New("")
	c.SetTemplate(values.Named("greet"), "hello {{who|friend}}")

	got, err := c.GetTemplate(values.Named("greet"))
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got != "hello friend" {
		t.Errorf("got %q", got)
	}

	c.SetText(values.Named("who"), "Ada")
	got, err = c.GetTemplate(values.Named("greet"))
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got != "hello Ada" {
		t.Errorf("got %q", got)
	}
}
