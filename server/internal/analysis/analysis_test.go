package analysis_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/server/internal/analysis"
	"github.com/contextcommerce/contextcommerce/server/internal/catalog"
)

func TestKeywords(t *testing.T) {
	content := `<p>겨울 코트 <b>코트</b> 추천</p> a 니트 겨울 부츠 백팩 셔츠`
	got := analysis.Keywords(content, 5)
	want := []string{"겨울", "코트", "추천", "니트", "부츠"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywords_Empty(t *testing.T) {
	if got := analysis.Keywords("  <br/> a b ", 5); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestAnalyze_Placeholders(t *testing.T) {
	a := analysis.New(nil, 5, 120)
	content := "오늘은 여행 가방 이야기"
	got := a.Analyze(analysis.ArticleRequest{Content: content})

	want := []types.Match{
		{ID: "m1", ArticleID: "demo_article", ProductID: "p1", MatchedKeyword: "오늘은", ContextSentence: content, ContextScore: 95, IsApproved: true, ReasonLabel: "LLM stub"},
		{ID: "m2", ArticleID: "demo_article", ProductID: "p2", MatchedKeyword: "여행", ContextSentence: content, ContextScore: 90, IsApproved: true, ReasonLabel: "LLM stub"},
		{ID: "m3", ArticleID: "demo_article", ProductID: "p3", MatchedKeyword: "가방", ContextSentence: content, ContextScore: 85, IsApproved: true, ReasonLabel: "LLM stub"},
		{ID: "m4", ArticleID: "demo_article", ProductID: "p4", MatchedKeyword: "이야기", ContextSentence: content, ContextScore: 80, IsApproved: true, ReasonLabel: "LLM stub"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_CatalogLinks(t *testing.T) {
	a := analysis.New(catalog.NewSeeded(), 5, 120)
	got := a.Analyze(analysis.ArticleRequest{ArticleID: "a-1", Content: "이번 겨울 코트 트렌드"})

	if len(got) != 4 {
		t.Fatalf("matches: got %d, want 4", len(got))
	}
	// "겨울" is a tag and "코트" a name token of p-seed-1.
	for _, i := range []int{1, 2} {
		if got[i].ProductID != "p-seed-1" || got[i].ReasonLabel != "catalog match" {
			t.Errorf("match %d: got %+v", i, got[i])
		}
	}
	if got[0].ProductID != "p1" {
		t.Errorf("match 0: got product %q, want placeholder p1", got[0].ProductID)
	}
	if got[0].ArticleID != "a-1" {
		t.Errorf("ArticleID: got %q", got[0].ArticleID)
	}
}

func TestAnalyze_ScoreFloorAndContext(t *testing.T) {
	words := make([]string, 12)
	for i := range words {
		words[i] = "단어" + strings.Repeat("가", i+1)
	}
	content := strings.Join(words, " ")
	a := analysis.New(nil, 10, 8)
	got := a.Analyze(analysis.ArticleRequest{Content: content})

	if len(got) != 10 {
		t.Fatalf("matches: got %d, want 10", len(got))
	}
	if got[9].ContextScore != 60 {
		t.Errorf("score floor: got %v, want 60", got[9].ContextScore)
	}
	if got[6].ContextScore != 65 {
		t.Errorf("score[6]: got %v, want 65", got[6].ContextScore)
	}
	if got[0].ContextSentence != "단어가 단어가가" {
		t.Errorf("context truncated to 8 runes: got %q", got[0].ContextSentence)
	}
}

func TestAnalyze_EmptyContent(t *testing.T) {
	a := analysis.New(nil, 5, 120)
	got := a.Analyze(analysis.ArticleRequest{})
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}
