package router_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"bananaslides/internal/domain"
	"bananaslides/internal/handler"
	"bananaslides/internal/router"
	"bananaslides/mocks"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func setup(mirror handler.Pinger) (*gin.Engine, *mocks.MockConversionService) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(mocks.MockConversionService)
	r := router.Setup(zerolog.Nop(), []string{"*"},
		handler.NewConversionHandler(mockSvc),
		handler.NewHealthHandler(nil, mirror))
	return r, mockSvc
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, http.NoBody)
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r, _ := setup(nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/readyz").Code)
}

func TestRouter_ReadinessFailsWhenMirrorDown(t *testing.T) {
	r, _ := setup(stubPinger{err: errors.New("connection refused")})

	w := serve(r, http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "status mirror")
}

func TestRouter_ConversionStatus(t *testing.T) {
	r, mockSvc := setup(nil)
	id := uuid.New()
	mockSvc.On("Get", mock.Anything, id).Return(&domain.ConversionTask{ID: id, Status: domain.TaskPending}, nil)

	w := serve(r, http.MethodGet, "/api/v1/conversions/"+id.String())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	mockSvc.AssertExpectations(t)
}

func TestRouter_ArtifactRefKeepsSlashes(t *testing.T) {
	r, mockSvc := setup(nil)
	mockSvc.On("Artifact", mock.Anything, "artifacts/2026/deck.zip").Return([]byte("PK"), nil)

	w := serve(r, http.MethodGet, "/api/v1/artifacts/artifacts/2026/deck.zip")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PK", w.Body.String())
	mockSvc.AssertExpectations(t)
}

func TestRouter_VerificationRoutes(t *testing.T) {
	r, mockSvc := setup(nil)
	id := uuid.New()
	mockSvc.On("Verification", mock.Anything, id).Return(nil, domain.ErrVerificationUnavailable)

	w := serve(r, http.MethodGet, "/api/v1/conversions/"+id.String()+"/verification")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/nothing").Code)
}
