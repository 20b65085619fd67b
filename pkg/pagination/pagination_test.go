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
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "/", DefaultLimit, 0},
		{"custom", "/?limit=25&offset=10", 25, 10},
		{"max limit", "/?limit=5000", MaxLimit, 0},
		{"negative offset", "/?offset=-4", DefaultLimit, 0},
		{"garbage", "/?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(t, tt.target)
			if p.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, p.Limit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, p.Offset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 10, Params{Limit: 2, Offset: 0})
	if r.Total != 10 || r.Limit != 2 || r.Offset != 0 {
		t.Errorf("unexpected response: %+v", r)
	}
	if !r.HasMore {
		t.Error("expected hasMore on first page")
	}

	last := NewResponse([]string{"j"}, 10, Params{Limit: 2, Offset: 8})
	if last.HasMore {
		t.Error("expected no more results on last page")
	}
}
