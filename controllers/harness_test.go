package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/razorpay"
	"github.com/fameuxarte/fameuxarte-api/routes"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testKeyID     = "rzp_test_1DP5mmOlF5G5ag"
	testKeySecret = "thisisatestsecret"
	testJWTSecret = "super-secret-jwt-token-with-at-least-32-characters"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGateway stands in for the payment gateway's order API.
type fakeGateway struct {
	srv *httptest.Server

	mu        sync.Mutex
	created   []razorpay.OrderParams
	failWith  int
	paid      map[string]bool
	nextOrder int

	// gate, if set, runs before each request is handled and outside mu.
	gate func()
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{paid: map[string]bool{}}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		gate()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if user, pass, ok := r.BasicAuth(); !ok || user != testKeyID || pass != testKeySecret {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/orders":
		if g.failWith != 0 {
			w.WriteHeader(g.failWith)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"secret upstream detail"}}`))
			return
		}
		var params razorpay.OrderParams
		_ = json.NewDecoder(r.Body).Decode(&params)
		g.created = append(g.created, params)
		g.nextOrder++
		_ = json.NewEncoder(w).Encode(razorpay.Order{
			ID:       fmt.Sprintf("order_fake%04d", g.nextOrder),
			Entity:   "order",
			Amount:   params.Amount,
			Currency: params.Currency,
			Receipt:  params.Receipt,
			Status:   "created",
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/orders/"):
		id := strings.TrimPrefix(r.URL.Path, "/orders/")
		status := "attempted"
		if g.paid[id] {
			status = "paid"
		}
		_ = json.NewEncoder(w).Encode(razorpay.Order{ID: id, Status: status, Currency: "INR"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *fakeGateway) calls() []razorpay.OrderParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]razorpay.OrderParams(nil), g.created...)
}

type harness struct {
	t       *testing.T
	router  *gin.Engine
	db      *gorm.DB
	redis   *miniredis.Miniredis
	gateway *fakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	prevDB, prevRedis := initializers.DB, initializers.Redis
	initializers.DB, initializers.Redis = db, client
	t.Cleanup(func() {
		initializers.DB, initializers.Redis = prevDB, prevRedis
		client.Close()
		_ = sqlDB.Close()
	})
	require.NoError(t, initializers.SyncDatabase())

	gateway := newFakeGateway(t)
	t.Setenv("RAZORPAY_KEY_ID", testKeyID)
	t.Setenv("RAZORPAY_KEY_SECRET", testKeySecret)
	t.Setenv("RAZORPAY_API_BASE", gateway.srv.URL)
	t.Setenv("PAYMENT_MODE", "test")
	t.Setenv("SUPABASE_JWT_SECRET", testJWTSecret)
	t.Setenv("SMTP_ADDRESS", "")

	require.NoError(t, db.Create(&[]models.Artwork{
		{ID: "a1", Title: "Dusk", Price: decimal.RequireFromString("150.00")},
		{ID: "a2", Title: "Dawn", Price: decimal.RequireFromString("99.50")},
	}).Error)

	return &harness{
		t:       t,
		router:  routes.NewServer(initializers.NewLogger(io.Discard, "error", "json")),
		db:      db,
		redis:   mr,
		gateway: gateway,
	}
}

func (h *harness) token(userID string, admin bool) string {
	h.t.Helper()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if admin {
		claims["app_metadata"] = map[string]any{"role": "admin"}
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(h.t, err)
	return s
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// placeOrder creates a pending order for user through the orders API.
func (h *harness) placeOrder(userID string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/orders", h.token(userID, false), map[string]any{
		"items":       []map[string]any{{"artworkId": "a1", "quantity": 2, "price": 150}},
		"totalAmount": 300,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(h.t, rec)["id"].(string)
}

func (h *harness) incidents() []string {
	keys, err := h.redis.HKeys("checkout:incidents")
	if err != nil {
		return nil
	}
	sort.Strings(keys)
	return keys
}

func (h *harness) order(id string) models.Order {
	h.t.Helper()
	var order models.Order
	require.NoError(h.t, h.db.Preload("OrderItems").First(&order, "id = ?", id).Error)
	return order
}
