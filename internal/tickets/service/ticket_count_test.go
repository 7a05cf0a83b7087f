package tickets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGetTotalTicketsCount(t *testing.T) {
	h := newHarness()
	h.db.On("GetTotalTicketsCount", mock.Anything).Return(42, nil).Once()

	count, err := h.svc.GetTotalTicketsCount(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 42, count)
	h.db.AssertExpectations(t)
}

func TestGetTotalTicketsCount_Error(t *testing.T) {
	h := newHarness()
	h.db.On("GetTotalTicketsCount", mock.Anything).Return(0, errors.New("connection reset")).Once()

	count, err := h.svc.GetTotalTicketsCount(context.Background())

	assert.ErrorContains(t, err, "count tickets")
	assert.Zero(t, count)
}
