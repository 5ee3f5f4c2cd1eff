package debughttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kelp-mesh/kelp"
	"github.com/stretchr/testify/require"
)

func TestHandlerDumpsFacesAndResources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tables := kelp.NewTables()

	face := tables.DeclareSession(kelp.WhatAmIClient, nil)
	require.NoError(t, tables.DeclareSubscription(face, 0, "/demo/a", kelp.SubInfo{Mode: kelp.SubModePush}))

	req := httptest.NewRequest(http.MethodGet, "/debug/tables", nil)
	rec := httptest.NewRecorder()
	Handler(tables).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Faces:")
	require.Contains(t, body, "/demo/a")
}
