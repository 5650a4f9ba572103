package attribution

import (
	"testing"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

func TestFromURL(t *testing.T) {
	cases := []struct {
		raw  string
		want types.Attribution
	}{
		{"https://shop.example.com/?utm_source=naver&utm_medium=cpc&utm_campaign=summer",
			types.Attribution{UTMSource: "naver", UTMMedium: "cpc", UTMCampaign: "summer"}},
		{"https://shop.example.com/a?utm_source=insta", types.Attribution{UTMSource: "insta"}},
		{"https://shop.example.com/?utm_source=&utm_medium=email", types.Attribution{UTMMedium: "email"}},
		{"https://shop.example.com/", types.Attribution{}},
		{"", types.Attribution{}},
		{"://bad", types.Attribution{}},
	}
	for _, c := range cases {
		if got := FromURL(c.raw); got != c.want {
			t.Errorf("FromURL(%q): got %+v, want %+v", c.raw, got, c.want)
		}
	}
}

func TestSession_StoresFirstCapture(t *testing.T) {
	s := NewSession("https://x/?utm_source=naver")
	if got := s.Get(); got.UTMSource != "naver" {
		t.Fatalf("first Get: got %+v", got)
	}
	s.SetLanding("https://x/?utm_source=google")
	if got := s.Get(); got.UTMSource != "naver" {
		t.Errorf("stored attribution should stick, got %+v", got)
	}
}

func TestSession_EmptyNotStored(t *testing.T) {
	s := NewSession("https://x/")
	if got := s.Get(); !got.IsZero() {
		t.Fatalf("Get: got %+v, want zero", got)
	}
	s.SetLanding("https://x/?utm_campaign=late")
	if got := s.Get(); got.UTMCampaign != "late" {
		t.Errorf("capture after empty landing: got %+v", got)
	}
}
