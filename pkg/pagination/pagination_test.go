package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest("GET", "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=5&offset=10", 5, 10},
		{"limit=0", DefaultLimit, 0},
		{"limit=-3&offset=-1", DefaultLimit, 0},
		{"limit=500", MaxLimit, 0},
		{"limit=abc", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := paramsFor(t, tc.query)
		if p.Limit != tc.wantLimit || p.Offset != tc.wantOffset {
			t.Errorf("query %q: got %+v, want limit=%d offset=%d", tc.query, p, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestWindow(t *testing.T) {
	p := Params{Limit: 10, Offset: 15}
	if lo, hi := p.Window(40); lo != 15 || hi != 25 {
		t.Fatalf("Window(40) = %d,%d", lo, hi)
	}
	if lo, hi := p.Window(18); lo != 15 || hi != 18 {
		t.Fatalf("Window(18) = %d,%d", lo, hi)
	}
	if lo, hi := p.Window(5); lo != 5 || hi != 5 {
		t.Fatalf("Window(5) = %d,%d", lo, hi)
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(11) || p.HasNext(10) {
		t.Fatal("HasNext boundary wrong")
	}
}
