package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("store", func(context.Context) error { return nil })

	s := c.Check(context.Background())
	assert.True(t, s.Healthy)
	assert.True(t, s.Checks["store"].Healthy)

	c.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	s = c.Check(context.Background())
	assert.False(t, s.Healthy)
	assert.Equal(t, "connection refused", s.Checks["redis"].Message)
	assert.Contains(t, s.Message, "redis")
}
