package notify

import (
	"testing"

	"github.com/haulcommand/dispatchd/core/model"
)

func f64(v float64) *float64 { return &v }

func TestBuild(t *testing.T) {
	load := model.Load{
		ID:          "ld-1",
		OriginState: "TX",
		DestState:   "OK",
		EstMiles:    f64(123),
		RateAmount:  f64(1500),
	}
	offer := model.MatchOffer{EscortID: "esc-1", Wave: 2, Rank: 3}

	n := Build(load, offer)
	if n.EscortID != "esc-1" || n.LoadID != "ld-1" {
		t.Fatalf("unexpected ids %+v", n)
	}
	if n.Title != "Load Offer" {
		t.Errorf("title = %q", n.Title)
	}
	if want := "123mi TX→OK • $1500"; n.Body != want {
		t.Errorf("body = %q, want %q", n.Body, want)
	}
	if n.DeepLink != "haulcommand://offers/ld-1" {
		t.Errorf("deep link = %q", n.DeepLink)
	}
	if n.Wave != 2 || n.Rank != 3 || n.Rate != 1500 {
		t.Errorf("unexpected payload %+v", n)
	}
}

func TestBuild_MissingOptionalFields(t *testing.T) {
	load := model.Load{ID: "ld-2", OriginState: "TX", DestState: "OK"}
	n := Build(load, model.MatchOffer{EscortID: "esc-1"})
	if want := "?mi TX→OK • $?"; n.Body != want {
		t.Errorf("body = %q, want %q", n.Body, want)
	}
	if n.Rate != 0 {
		t.Errorf("rate = %v, want 0", n.Rate)
	}
}
