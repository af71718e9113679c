package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiflow-service/internal/adapters/extraction"
	"logiflow-service/internal/adapters/repositories"
	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/capture"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/services"
)

const (
	driver = "ana@x.com"
	admin  = "admin@logiflow.com"

	labelJSON = `{"nome":"Carla Dias","endereco":"Rua das Flores, 10","bairro":"Centro","cidade":"Curitiba","pais":"Brasil","cep":"80010-000","telefone":"(41) 99999-0000","passo_a_passo":"Address validated"}`
)

type testAPI struct {
	handler   http.Handler
	store     *repositories.MemoryStore
	extractor *extraction.MockExtractor
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := repositories.NewMemoryStore()
	x := extraction.NewMockExtractor(labelJSON)
	routes := services.NewRouteService(store)
	accounts := services.NewAccountService(store, admin, 7)

	return &testAPI{
		handler: NewRouter(Deps{
			Accounts: accounts,
			Routes:   routes,
			Captures: services.NewCaptureManager(x, capture.NewPreprocessor(), routes),
		}),
		store:     store,
		extractor: x,
	}
}

func (a *testAPI) do(t *testing.T, method, path, user, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) json(t *testing.T, method, path, user string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return a.do(t, method, path, user, "application/json", body)
}

func (a *testAPI) login(t *testing.T, email string) {
	t.Helper()
	rec := a.json(t, http.MethodPost, "/session", "", dto.LoginRequest{Email: email})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// hugePNG is a tiny PNG whose header claims 30000x30000 pixels.
func hugePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	b := buf.Bytes()
	binary.BigEndian.PutUint32(b[16:20], 30000)
	binary.BigEndian.PutUint32(b[20:24], 30000)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = a.do(t, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestHealthReportsStoreOutage(t *testing.T) {
	h := NewRouter(Deps{
		Accounts: services.NewAccountService(repositories.NewMemoryStore(), admin, 7),
		Routes:   services.NewRouteService(repositories.NewMemoryStore()),
		Ping:     func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	rec := a.json(t, http.MethodPost, "/session", "", dto.LoginRequest{Email: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/session", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.login(t, driver)
	rec = a.do(t, http.MethodGet, "/session", driver, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[domain.UserProfile](t, rec)
	assert.Equal(t, domain.RoleDriver, p.Role)

	rec = a.do(t, http.MethodDelete, "/session", driver, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequiresIdentity(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/routes", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/routes", "stranger@x.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCaptureToRouteFlow(t *testing.T) {
	a := newTestAPI(t)
	a.login(t, driver)

	rec := a.do(t, http.MethodPost, "/routes/import", driver, "text/plain", strings.NewReader("Ana Silva; Rua A, 10\nPedro"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.json(t, http.MethodPost, "/captures/sessions", driver, dto.OpenCaptureRequest{Camera: true, Motion: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decode[dto.CaptureSessionResponse](t, rec)
	assert.Equal(t, 0, sess.Reading.Score)

	rec = a.json(t, http.MethodPost, "/captures/sessions/"+sess.ID+"/motion", driver,
		dto.MotionRequest{Samples: make([]capture.MotionSample, 9)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[capture.Reading](t, rec).Ready)

	rec = a.do(t, http.MethodPost, "/captures/sessions/"+sess.ID+"/frames", driver, "image/png", bytes.NewReader(pngFrame(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	captured := decode[dto.CaptureResponse](t, rec)
	assert.Equal(t, "Carla Dias", captured.Preview.Name)
	assert.Equal(t, "Address validated", captured.Guidance)
	assert.Empty(t, captured.Unresolved)

	rec = a.json(t, http.MethodPatch, "/preview", driver, map[string]string{"telefone": "41 3333-0000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/preview/commit", driver, "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/preview", driver, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, "/captures/sessions/"+sess.ID, driver, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/routes", driver, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.ListDeliveriesResponse](t, rec)
	require.Len(t, list.Deliveries, 3)
	assert.Equal(t, "Carla Dias", list.Deliveries[0].Name)
	assert.Equal(t, "41 3333-0000", list.Deliveries[0].Phone)
	assert.Equal(t, "Ana Silva", list.Deliveries[1].Name)
	assert.Equal(t, services.ImportedName, list.Deliveries[2].Name)
	assert.Equal(t, 3, list.Pending)
}

func TestFrameAsDataURI(t *testing.T) {
	a := newTestAPI(t)
	a.login(t, driver)

	rec := a.json(t, http.MethodPost, "/captures/sessions", driver, dto.OpenCaptureRequest{Camera: true})
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[dto.CaptureSessionResponse](t, rec)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngFrame(t))
	rec = a.json(t, http.MethodPost, "/captures/sessions/"+sess.ID+"/frames", driver, dto.FrameRequest{Image: uri})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/captures/sessions/"+sess.ID+"/frames", driver, "image/jpeg", strings.NewReader("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureErrors(t *testing.T) {
	a := newTestAPI(t)
	a.login(t, driver)

	rec := a.json(t, http.MethodPost, "/captures/sessions", driver, dto.OpenCaptureRequest{Camera: false, Motion: true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/captures/sessions/unknown", driver, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.json(t, http.MethodPost, "/captures/sessions", driver, dto.OpenCaptureRequest{Camera: true})
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[dto.CaptureSessionResponse](t, rec)

	frames := "/captures/sessions/" + sess.ID + "/frames"
	rec = a.do(t, http.MethodPost, frames, driver, "image/png", bytes.NewReader(hugePNG(t)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decode[dto.ErrorResponse](t, rec).Error, "frame too large")

	rec = a.json(t, http.MethodPost, frames, driver, dto.FrameRequest{Image: base64.StdEncoding.EncodeToString(hugePNG(t))})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = a.do(t, http.MethodPost, frames, driver, "image/png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.extractor.Fail(errors.New("upstream 500"))
	rec = a.do(t, http.MethodPost, "/captures/sessions/"+sess.ID+"/frames", driver, "image/png", bytes.NewReader(pngFrame(t)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, domain.ExtractionFailureMessage, decode[dto.ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodGet, "/captures/sessions/"+sess.ID, driver, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "session survives a failed extraction")

	rec = a.do(t, http.MethodGet, "/captures/sessions/"+sess.ID, "other@x.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeliveryActions(t *testing.T) {
	a := newTestAPI(t)
	a.login(t, driver)
	ctx := context.Background()

	require.NoError(t, a.store.Save(ctx, domain.RouteKeyFor(driver), []domain.DeliveryRecord{
		{ID: "LF-1", Name: "Ana", Address: "Rua A, 10", City: "Curitiba", Phone: "(41) 99999-0000", Status: domain.StatusPending},
		{ID: "LF-2", Name: "Bia", Status: domain.StatusDelivered},
	}))

	rec := a.do(t, http.MethodPost, "/deliveries/LF-1/navigate?provider=google", driver, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	nav := decode[dto.NavigateResponse](t, rec)
	assert.Equal(t, domain.StatusOnWay, nav.Delivery.Status)
	assert.True(t, strings.HasPrefix(nav.URL, "https://www.google.com/maps/dir/?api=1&destination="))

	rec = a.do(t, http.MethodPost, "/deliveries/LF-1/navigate?provider=apple", driver, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/deliveries/LF-1/contact", driver, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contact := decode[dto.ContactResponse](t, rec)
	assert.True(t, strings.HasPrefix(contact.WhatsApp, "https://wa.me/41999990000?text="))
	assert.Equal(t, "tel:41999990000", contact.Call)

	rec = a.do(t, http.MethodPost, "/deliveries/LF-1/complete", driver, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[domain.DeliveryRecord](t, rec)
	assert.Equal(t, domain.StatusDelivered, done.Status)
	assert.NotNil(t, done.CompletedAt)

	rec = a.json(t, http.MethodPatch, "/deliveries/LF-2", driver, map[string]string{"nome": "Bianca"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bianca", decode[domain.DeliveryRecord](t, rec).Name)

	rec = a.json(t, http.MethodPatch, "/deliveries/LF-2", driver, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "status is not an editable field")

	rec = a.do(t, http.MethodPost, "/routes/activate", driver, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[dto.ListDeliveriesResponse](t, rec).Pending)

	rec = a.do(t, http.MethodDelete, "/deliveries/LF-2", driver, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, path := range []string{"/deliveries/nope/complete", "/deliveries/nope/navigate"} {
		rec = a.do(t, http.MethodPost, path, driver, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec = a.do(t, http.MethodDelete, "/deliveries/nope", driver, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeliveries(t *testing.T) {
	a := newTestAPI(t)
	a.login(t, driver)
	a.login(t, admin)

	require.NoError(t, a.store.Save(context.Background(), domain.RouteKeyFor(admin), []domain.DeliveryRecord{
		{ID: "LF-X01", Name: "Zilda Maria", PostalCode: "01234-567", Status: domain.StatusPending},
		{ID: "LF-A02", Name: "Alvaro Neto", PostalCode: "01311-200", Status: domain.StatusOnWay},
		{ID: "LF-C03", Name: "Bianca Lima", PostalCode: "01412-000", Status: domain.StatusDelivered},
		{ID: "LF-F06", Name: "Beatriz Silva", PostalCode: "01415-000", Status: domain.StatusPending},
	}))

	rec := a.do(t, http.MethodGet, "/admin/deliveries", driver, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/admin/deliveries", admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[dto.ListDeliveriesResponse](t, rec)
	var got []string
	for _, d := range all.Deliveries {
		got = append(got, d.Name)
	}
	assert.Equal(t, []string{"Beatriz Silva", "Zilda Maria", "Alvaro Neto", "Bianca Lima"}, got)

	rec = a.do(t, http.MethodGet, "/admin/deliveries?status=pending&q=zil", admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[dto.ListDeliveriesResponse](t, rec)
	require.Len(t, filtered.Deliveries, 1)
	assert.Equal(t, "LF-X01", filtered.Deliveries[0].ID)

	rec = a.do(t, http.MethodGet, "/admin/deliveries?status=lost", admin, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionGate(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	require.NoError(t, a.store.SaveProfile(ctx, &domain.UserProfile{
		UID:         "u1",
		Email:       driver,
		Role:        domain.RoleDriver,
		TrialEndsAt: time.Now().Add(-time.Hour).UnixMilli(),
		Status:      domain.SubscriptionCanceled,
	}))

	rec := a.do(t, http.MethodGet, "/routes", driver, "", nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = a.do(t, http.MethodGet, "/session", driver, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
