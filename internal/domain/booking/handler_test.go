package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/middleware"
	jwtsvc "github.com/sarvangi2609/criczz/internal/pkg/jwt"
)

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type apiSuite struct {
	*fixture
	router *gin.Engine
	tokens *jwtsvc.Service
}

func setupAPI(t *testing.T) *apiSuite {
	t.Helper()
	f := setup(t)
	tokens := jwtsvc.New("test_secret_key_32_characters_min", time.Hour)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/api/v1")
	h := NewHandler(f.svc)
	h.RegisterPublicRoutes(v1)
	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(tokens))
	h.RegisterProtectedRoutes(protected)

	return &apiSuite{fixture: f, router: r, tokens: tokens}
}

func (s *apiSuite) token(t *testing.T, u *identity.User) string {
	t.Helper()
	tok, err := s.tokens.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)
	return tok
}

func (s *apiSuite) do(t *testing.T, method, path string, body any, token string) (int, testResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestAPI_CreateBookingFlow(t *testing.T) {
	s := setupAPI(t)
	payerToken := s.token(t, s.payer)
	body := CreateBookingRequest{BoxID: s.box.ID, BookingDate: tomorrow, StartTime: "18:00", EndTime: "19:00"}

	code, resp := s.do(t, http.MethodPost, "/api/v1/bookings", body, payerToken)
	require.Equal(t, http.StatusCreated, code)
	var b Booking
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, StatusPending, b.BookingStatus)
	assert.Equal(t, s.payer.ID, b.PayerID)

	code, resp = s.do(t, http.MethodPost, "/api/v1/bookings", body, payerToken)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SLOT_TAKEN", resp.Error.Code)

	code, resp = s.do(t, http.MethodGet, "/api/v1/boxes/"+s.box.ID+"/availability?date="+tomorrow, nil, "")
	require.Equal(t, http.StatusOK, code)
	var av Availability
	require.NoError(t, json.Unmarshal(resp.Data, &av))
	for _, slot := range av.Slots {
		if slot.StartTime == "18:00" {
			assert.False(t, slot.IsAvailable)
		}
	}

	code, _ = s.do(t, http.MethodGet, "/api/v1/bookings/"+b.ID, nil, payerToken)
	assert.Equal(t, http.StatusOK, code)
}

func TestAPI_Rejections(t *testing.T) {
	s := setupAPI(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/bookings", CreateBookingRequest{}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)

	code, resp = s.do(t, http.MethodPost, "/api/v1/bookings", CreateBookingRequest{
		BoxID: s.box.ID, BookingDate: "20-10-2026", StartTime: "18:00", EndTime: "19:00",
	}, s.token(t, s.payer))
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/owner/bookings/offline", OfflineBookingRequest{
		BoxID: s.box.ID, BookingDate: tomorrow, StartTime: "18:00", EndTime: "19:00", CustomerName: "Walk-in",
	}, s.token(t, s.payer))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/boxes/"+s.box.ID+"/availability", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_OwnerOfflineBooking(t *testing.T) {
	s := setupAPI(t)
	code, resp := s.do(t, http.MethodPost, "/api/v1/owner/bookings/offline", OfflineBookingRequest{
		BoxID: s.box.ID, BookingDate: tomorrow, StartTime: "07:00", EndTime: "08:00",
		CustomerName: "Walk-in", AmountCollected: 100000,
	}, s.token(t, s.owner))
	require.Equal(t, http.StatusCreated, code, string(resp.Data))

	var b Booking
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, TypeOffline, b.BookingType)
	assert.Equal(t, StatusConfirmed, b.BookingStatus)
}
