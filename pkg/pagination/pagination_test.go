package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "/?limit=30&skip=10")
	if p.Limit != 30 || p.Offset != 10 {
		t.Errorf("expected 30/10, got %d/%d", p.Limit, p.Offset)
	}

	p = paramsFor(t, "/?limit=30&offset=7")
	if p.Offset != 7 {
		t.Errorf("expected offset fallback 7, got %d", p.Offset)
	}
}

func TestFromContext_Clamping(t *testing.T) {
	tests := []struct {
		target string
		limit  int
		offset int
	}{
		{"/?limit=1000", MaxLimit, 0},
		{"/?limit=0", DefaultLimit, 0},
		{"/?limit=-5&skip=-3", DefaultLimit, 0},
		{"/?limit=abc&skip=xyz", DefaultLimit, 0},
		{"/?limit=1", 1, 0},
	}
	for _, tt := range tests {
		p := paramsFor(t, tt.target)
		if p.Limit != tt.limit || p.Offset != tt.offset {
			t.Errorf("%s: expected %d/%d, got %d/%d", tt.target, tt.limit, tt.offset, p.Limit, p.Offset)
		}
	}
}

func TestParams_HasNext(t *testing.T) {
	p := New(10, 20)
	if !p.HasNext(10) {
		t.Error("a full page may have a successor")
	}
	if p.HasNext(9) {
		t.Error("a short page is the last")
	}
	if p.NextOffset() != 30 {
		t.Errorf("expected next offset 30, got %d", p.NextOffset())
	}
}
