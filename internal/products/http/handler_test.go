package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"expiry-tracker/internal/products"
	"expiry-tracker/internal/products/repository"
	"expiry-tracker/internal/products/store"

	"github.com/gin-gonic/gin"
)

var testToday = products.NewDate(2024, time.January, 5)

type stubService struct {
	addFn       func(ctx context.Context, name, productionDate, shelfLifeDays string) (products.Product, error)
	updateFn    func(ctx context.Context, id int64, name, productionDate, shelfLifeDays string) (products.Product, error)
	deleteFn    func(ctx context.Context, id int64) error
	getFn       func(ctx context.Context, id int64) (products.Product, error)
	listFn      func(ctx context.Context) ([]products.View, error)
	subscribeFn func(ctx context.Context) (*store.Subscription, error)
}

func (s *stubService) AddFromInput(ctx context.Context, name, productionDate, shelfLifeDays string) (products.Product, error) {
	return s.addFn(ctx, name, productionDate, shelfLifeDays)
}
func (s *stubService) UpdateFromInput(ctx context.Context, id int64, name, productionDate, shelfLifeDays string) (products.Product, error) {
	return s.updateFn(ctx, id, name, productionDate, shelfLifeDays)
}
func (s *stubService) DeleteByID(ctx context.Context, id int64) error {
	return s.deleteFn(ctx, id)
}
func (s *stubService) Get(ctx context.Context, id int64) (products.Product, error) {
	return s.getFn(ctx, id)
}
func (s *stubService) List(ctx context.Context) ([]products.View, error) {
	return s.listFn(ctx)
}
func (s *stubService) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return s.subscribeFn(ctx)
}
func (s *stubService) Today() products.Date { return testToday }

type stubFeed struct {
	body []byte
	err  error
}

func (f stubFeed) Feed(context.Context) ([]byte, error) { return f.body, f.err }

// closeNotifyingRecorder lets c.Stream run against a recorder.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool { return r.closed }

func setupRouter(svc ProductService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	r.POST("/products", h.CreateProduct)
	r.GET("/products", h.ListProducts)
	r.GET("/products/stream", h.StreamProducts)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
	return r
}

func milk() products.Product {
	prod := products.NewDate(2024, time.January, 1)
	return products.Product{ID: 1, Name: "Milk", ProductionDate: prod, ShelfLifeDays: 7, ExpiryDate: prod.AddDays(7)}
}

func bread() products.Product {
	prod := products.NewDate(2023, time.December, 31)
	return products.Product{ID: 2, Name: "Bread", ProductionDate: prod, ShelfLifeDays: 3, ExpiryDate: prod.AddDays(3)}
}

func TestHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantField  string
	}{
		{
			name:       "success",
			body:       `{"name":"Milk","production_date":"2024-01-01","shelf_life_days":"7"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid json",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing name",
			body:       `{"production_date":"2024-01-01","shelf_life_days":"7"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  products.FieldName,
		},
		{
			name:       "validation error",
			body:       `{"name":"Milk","production_date":"2024-01-01","shelf_life_days":"abc"}`,
			svcErr:     products.NewValidationError(products.FieldShelfLifeDays, "shelf life must be a positive whole number"),
			wantStatus: http.StatusBadRequest,
			wantField:  products.FieldShelfLifeDays,
		},
		{
			name:       "store failure",
			body:       `{"name":"Milk","production_date":"2024-01-01","shelf_life_days":"7"}`,
			svcErr:     errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				addFn: func(_ context.Context, name, date, days string) (products.Product, error) {
					if tt.svcErr != nil {
						return products.Product{}, tt.svcErr
					}
					if name != "Milk" || date != "2024-01-01" || days != "7" {
						t.Fatalf("unexpected input %q %q %q", name, date, days)
					}
					return milk(), nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			switch w.Code {
			case http.StatusCreated:
				var view products.View
				if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if view.ExpiryDate.String() != "2024-01-08" || view.Status != products.StatusDueSoon || view.DaysUntilExpiry != 3 {
					t.Fatalf("unexpected view: %+v", view)
				}
			case http.StatusBadRequest:
				var resp errorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Field != tt.wantField {
					t.Fatalf("want field %q, got %q", tt.wantField, resp.Field)
				}
			}
		})
	}
}

func TestHandler_GetProduct(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		svcErr     error
		wantStatus int
	}{
		{name: "success", url: "/products/1", wantStatus: http.StatusOK},
		{name: "not found", url: "/products/999", svcErr: products.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid id", url: "/products/abc", wantStatus: http.StatusBadRequest},
		{name: "zero id", url: "/products/0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				getFn: func(_ context.Context, _ int64) (products.Product, error) {
					if tt.svcErr != nil {
						return products.Product{}, tt.svcErr
					}
					return milk(), nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_UpdateProduct(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		body       string
		svcErr     error
		wantStatus int
	}{
		{
			name:       "success",
			url:        "/products/1",
			body:       `{"name":"Milk","production_date":"2024-01-02","shelf_life_days":"7"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "not found",
			url:        "/products/42",
			body:       `{"name":"Milk","production_date":"2024-01-02","shelf_life_days":"7"}`,
			svcErr:     products.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "validation error",
			url:        "/products/1",
			body:       `{"name":"","production_date":"2024-01-02","shelf_life_days":"7"}`,
			svcErr:     products.NewValidationError(products.FieldName, "name is required"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid id",
			url:        "/products/x",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				updateFn: func(_ context.Context, id int64, _, _, _ string) (products.Product, error) {
					if tt.svcErr != nil {
						return products.Product{}, tt.svcErr
					}
					p := milk()
					p.ID = id
					return p, nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, tt.url, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_DeleteProduct(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		svcErr     error
		wantStatus int
	}{
		{
			name:       "success",
			url:        "/products/1",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "not found",
			url:        "/products/999",
			svcErr:     products.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid id",
			url:        "/products/abc",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			url:        "/products/1",
			svcErr:     errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				deleteFn: func(_ context.Context, _ int64) error {
					return tt.svcErr
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_ListProducts(t *testing.T) {
	tests := []struct {
		name       string
		items      []products.Product
		svcErr     error
		wantStatus int
		wantLen    int
	}{
		{
			name:       "returns items",
			items:      []products.Product{milk(), bread()},
			wantStatus: http.StatusOK,
			wantLen:    2,
		},
		{
			name:       "empty list",
			items:      []products.Product{},
			wantStatus: http.StatusOK,
			wantLen:    0,
		},
		{
			name:       "store failure",
			svcErr:     errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				listFn: func(_ context.Context) ([]products.View, error) {
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return products.DescribeAll(tt.items, testToday), nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d", tt.wantStatus, w.Code)
			}
			if w.Code != http.StatusOK {
				return
			}

			var resp listProductsResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if len(resp.Items) != tt.wantLen {
				t.Fatalf("want %d items, got %d", tt.wantLen, len(resp.Items))
			}
			if resp.Today != "2024-01-05" {
				t.Fatalf("want today 2024-01-05, got %q", resp.Today)
			}
		})
	}
}

func TestHandler_StreamProducts(t *testing.T) {
	st := store.New(repository.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(st.Close)
	if _, err := st.Insert(context.Background(), milk()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := &stubService{subscribeFn: st.SubscribeAll}
	r := setupRouter(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/stream", nil).WithContext(ctx))

	body := w.Body.String()
	if !strings.Contains(body, "event:"+sseEventProducts) {
		t.Fatalf("expected products event, got %q", body)
	}
	if !strings.Contains(body, `"name":"Milk"`) || !strings.Contains(body, `"status":"due_soon"`) {
		t.Fatalf("expected described snapshot, got %q", body)
	}
}

func TestHandler_StreamProductsClosedStore(t *testing.T) {
	st := store.New(repository.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	st.Close()

	r := setupRouter(&stubService{subscribeFn: st.SubscribeAll})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/stream", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestCalendarHandler(t *testing.T) {
	tests := []struct {
		name       string
		feed       stubFeed
		wantStatus int
	}{
		{name: "serves feed", feed: stubFeed{body: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")}, wantStatus: http.StatusOK},
		{name: "calendar unavailable", feed: stubFeed{err: errors.New("disk gone")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.GET("/calendar.ics", CalendarHandler(tt.feed))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calendar.ics", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && w.Header().Get("Content-Type") != contentTypeICS {
				t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
			}
		})
	}
}
