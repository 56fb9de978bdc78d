package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/pkg/logger"
)

type MockTrackRepository struct {
	mock.Mock
}

func (m *MockTrackRepository) Append(ctx context.Context, s satellite.PositionSample) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockTrackRepository) Recent(ctx context.Context, n int) ([]satellite.PositionSample, error) {
	args := m.Called(ctx, n)
	samples, _ := args.Get(0).([]satellite.PositionSample)
	return samples, args.Error(1)
}

func (m *MockTrackRepository) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestTrackHandler_GroundTrack(t *testing.T) {
	repo := satellite.NewMemoryTrackRepository(10)
	for i, lat := range []float64{10, 11, 12} {
		s, err := satellite.NewPositionSample(lat, 20, 420, 27600, time.Unix(int64(i), 0))
		require.NoError(t, err)
		require.NoError(t, repo.Append(context.Background(), s))
	}
	h := NewTrackHandler(logger.NewNop(), repo)

	var all GroundTrackResponse
	require.Nil(t, decode(t, serve(h.GroundTrack, http.MethodPost, ""), &all))
	require.Len(t, all.Points, 3)
	assert.Equal(t, 10.0, all.Points[0].Latitude)
	assert.Equal(t, 20.0, all.Points[0].Longitude)

	var limited GroundTrackResponse
	body := `{"jsonrpc":"2.0","method":"tracking.GroundTrack","params":{"limit":2},"id":1}`
	require.Nil(t, decode(t, serve(h.GroundTrack, http.MethodPost, body), &limited))
	require.Len(t, limited.Points, 2)
	assert.Equal(t, 11.0, limited.Points[0].Latitude)
}

func TestTrackHandler_EmptyTrack(t *testing.T) {
	h := NewTrackHandler(logger.NewNop(), satellite.NewMemoryTrackRepository(10))

	rr := serve(h.GroundTrack, http.MethodPost, "")
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"points":[]}}`, rr.Body.String())
}

func TestTrackHandler_Errors(t *testing.T) {
	t.Run("bad params", func(t *testing.T) {
		h := NewTrackHandler(logger.NewNop(), &MockTrackRepository{})
		body := `{"jsonrpc":"2.0","method":"tracking.GroundTrack","params":{"limit":-1},"id":1}`
		rpcErr := decode(t, serve(h.GroundTrack, http.MethodPost, body), nil)
		require.NotNil(t, rpcErr)
		assert.Equal(t, jsonrpcx.InvalidParams, rpcErr.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := &MockTrackRepository{}
		repo.On("Recent", mock.Anything, 0).Return(nil, errors.New("redis down"))
		h := NewTrackHandler(logger.NewNop(), repo)

		rpcErr := decode(t, serve(h.GroundTrack, http.MethodPost, ""), nil)
		require.NotNil(t, rpcErr)
		assert.Equal(t, jsonrpcx.InternalError, rpcErr.Code)
		repo.AssertExpectations(t)
	})

	t.Run("wrong method", func(t *testing.T) {
		h := NewTrackHandler(logger.NewNop(), &MockTrackRepository{})
		rpcErr := decode(t, serve(h.GroundTrack, http.MethodGet, ""), nil)
		require.NotNil(t, rpcErr)
		assert.Equal(t, jsonrpcx.MethodNotFound, rpcErr.Code)
	})
}
