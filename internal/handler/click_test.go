package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebhrenchir/granted.gg-sub001/internal/handler"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

func newClickRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")

	gin.SetMode(gin.TestMode)
	router := gin.New()

	h := handler.NewClickHandler(
		repository.NewLinkRepository(db, logger.NewNop()),
		repository.NewActivityRepository(db, logger.NewNop()),
		metrics.New(),
		logger.NewNop(),
	)
	router.POST("/l/:slug/click", h.Record)

	return router, mock, func() { _ = db.Close() }
}

func TestClickRecord(t *testing.T) {
	t.Run("records the click and returns 204", func(t *testing.T) {
		router, mock, cleanup := newClickRouter(t)
		defer cleanup()

		mock.ExpectQuery("SELECT (.+) FROM links WHERE slug").
			WithArgs("my-guide").
			WillReturnRows(linkRow(decimal.NewFromInt(10), false))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO activities").
			WithArgs(sqlmock.AnyArg(), "link-1", "click", nil, nil, nil, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE links SET total_clicks").
			WithArgs("link-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "/l/my-guide/click", nil)
		require.NoError(t, err)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown slug is 404 and records nothing", func(t *testing.T) {
		router, mock, cleanup := newClickRouter(t)
		defer cleanup()

		mock.ExpectQuery("SELECT (.+) FROM links WHERE slug").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		w := httptest.NewRecorder()
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "/l/ghost/click", nil)
		require.NoError(t, err)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
