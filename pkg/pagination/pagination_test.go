package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.Size != DefaultSize {
		t.Errorf("expected default size %d, got %d", DefaultSize, p.Size)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&size=25", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.Size != 25 {
		t.Errorf("expected size 25, got %d", p.Size)
	}
}

func TestFromContext_MaxSize(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?size=500", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Size != MaxSize {
		t.Errorf("expected size capped at %d, got %d", MaxSize, p.Size)
	}
}

func TestFromContext_NegativePage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=-2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected page clamped to 1, got %d", p.Page)
	}
}

func TestParams_Offset(t *testing.T) {
	p := Params{Page: 3, Size: 10}
	if p.Offset() != 20 {
		t.Errorf("expected offset 20, got %d", p.Offset())
	}
	if p.Limit() != 10 {
		t.Errorf("expected limit 10, got %d", p.Limit())
	}
}

func TestParams_SQL(t *testing.T) {
	p := Params{Page: 2, Size: 15}
	got := p.SQL()
	if got != "LIMIT 15 OFFSET 15" {
		t.Errorf("unexpected SQL clause: %s", got)
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Page: 1, Size: 10}
	if !p.HasNext(25) {
		t.Error("expected HasNext true with 25 total")
	}
	if p.HasNext(10) {
		t.Error("expected HasNext false with 10 total")
	}
}

func TestNewResponse_Pages(t *testing.T) {
	r := NewResponse([]string{"a"}, 21, Params{Page: 1, Size: 10})
	if r.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", r.Pages)
	}
	if r.Total != 21 {
		t.Errorf("expected total 21, got %d", r.Total)
	}
}
