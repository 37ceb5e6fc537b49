package controller

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalSinkCapturesResponse(t *testing.T) {
	sink := newEvalSink()
	c := &gin.Context{Writer: sink}
	c.JSON(http.StatusOK, gin.H{"id": "chatcmpl-1"})

	assert.Equal(t, http.StatusOK, sink.Status())
	assert.True(t, sink.Written())
	assert.JSONEq(t, `{"id":"chatcmpl-1"}`, sink.body.String())
	assert.Contains(t, sink.Header().Get("Content-Type"), "application/json")
}

func TestEvalSinkRejectsHijack(t *testing.T) {
	sink := newEvalSink()
	_, _, err := sink.Hijack()
	require.Error(t, err)
}
