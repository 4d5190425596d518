package fingerprint

import "testing"

func base() Input {
	return Input{
		SiteID:         "site-1",
		Slug:           "hello-world",
		Title:          "Hello World",
		BodyMarkdown:   "# Hello\n\nBody text.",
		SEOTitle:       "Hello World — Blog",
		SEODescription: "A greeting.",
		Tags:           []string{"go", "intro"},
	}
}

func TestDeterministic(t *testing.T) {
	// WHAT: Identical input always yields an identical token.
	// WHY: The token is the change-detection oracle; flapping would
	// cause consumers to re-process unchanged posts forever.
	a := Compute(base())
	b := Compute(base())
	if a != b {
		t.Errorf("not deterministic: %s vs %s", a, b)
	}
}

func TestTagOrderInsensitive(t *testing.T) {
	// WHAT: Reordering the tag collection does not change the token.
	// WHY: Tag sets have no meaningful order; storage may return them
	// in any order.
	in := base()
	in.Tags = []string{"intro", "go"}
	if Compute(base()) != Compute(in) {
		t.Error("tag order changed the fingerprint")
	}
}

func TestWhitespaceNormalized(t *testing.T) {
	// WHAT: Leading/trailing whitespace on fields is ignored.
	// WHY: Editors routinely save titles with stray whitespace.
	in := base()
	in.Title = "  Hello World  "
	if Compute(base()) != Compute(in) {
		t.Error("surrounding whitespace changed the fingerprint")
	}
}

func TestAnyFieldChangeChangesToken(t *testing.T) {
	// WHAT: A single-character change to any covered field yields a
	// different token.
	// WHY: Missed changes mean stale content on every subscriber.
	orig := Compute(base())

	mutations := map[string]func(*Input){
		"site":     func(in *Input) { in.SiteID = "site-2" },
		"slug":     func(in *Input) { in.Slug = "hello-world-2" },
		"title":    func(in *Input) { in.Title = "Hello World!" },
		"body":     func(in *Input) { in.BodyMarkdown = "# Hello\n\nBody text?" },
		"seoTitle": func(in *Input) { in.SEOTitle = "Hello" },
		"seoDesc":  func(in *Input) { in.SEODescription = "A greeting!" },
		"tags":     func(in *Input) { in.Tags = []string{"go", "intro", "new"} },
	}
	for name, mutate := range mutations {
		in := base()
		mutate(&in)
		if Compute(in) == orig {
			t.Errorf("%s change did not change the fingerprint", name)
		}
	}
}

func TestEmptyOptionalsStable(t *testing.T) {
	// WHAT: nil tags and empty optionals produce the same token as
	// explicit zero values.
	// WHY: Callers build Input from nullable DB columns.
	a := Input{SiteID: "s", Slug: "p", Title: "T", BodyMarkdown: "b"}
	b := Input{SiteID: "s", Slug: "p", Title: "T", BodyMarkdown: "b", Tags: []string{}}
	if Compute(a) != Compute(b) {
		t.Error("nil vs empty tags diverged")
	}
}

func TestTokenIsUUID(t *testing.T) {
	// WHAT: The token has canonical UUID shape.
	// WHY: Downstream systems store it in UUID-typed columns.
	tok := Compute(base())
	if len(tok) != 36 {
		t.Errorf("token %q is not a canonical UUID string", tok)
	}
}
