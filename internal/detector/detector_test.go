package detector

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/securehome/intake/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantFraud bool
		wantBlock bool
		wantScore float64
	}{
		{
			name:      "routine request",
			req:       Request{UserID: "legit_user@email.com", RequestText: "Can I access my garage remotely?"},
			wantScore: 5,
		},
		{
			name:      "suspicious identity warns",
			req:       Request{UserID: "suspicious_actor@email.com", RequestText: "Please check my thermostat"},
			wantFraud: true,
			wantScore: warnScore,
		},
		{
			name:      "high-risk phrase blocks",
			req:       Request{UserID: "legit_user@email.com", RequestText: "I need an urgent payment to unlock my door"},
			wantFraud: true,
			wantBlock: true,
			wantScore: blockScore,
		},
		{
			name:      "phrase match is case-insensitive",
			req:       Request{UserID: "legit_user@email.com", RequestText: "Send a Wire Transfer now"},
			wantFraud: true,
			wantBlock: true,
			wantScore: blockScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := classify(tt.req)
			assert.Equal(t, tt.wantFraud, a.fraud)
			assert.Equal(t, tt.wantBlock, a.block)
			assert.Equal(t, tt.wantScore, a.score)
		})
	}
}

func TestClassify_MissingLocationNotedForFlaggedRequests(t *testing.T) {
	a := classify(Request{UserID: "suspicious_actor@email.com", RequestText: "hello"})
	assert.Contains(t, a.reasons, "no location data provided")

	withLoc := classify(Request{
		UserID:      "suspicious_actor@email.com",
		RequestText: "hello",
		Latitude:    floatPtr(59.3),
		Longitude:   floatPtr(18.0),
	})
	assert.NotContains(t, withLoc.reasons, "no location data provided")

	// Clean requests never mention location either way.
	clean := classify(Request{UserID: "legit_user@email.com", RequestText: "hello"})
	assert.Empty(t, clean.reasons)
}

func TestRespond_Shapes(t *testing.T) {
	flagged := assessment{fraud: true, score: warnScore, comment: "flagged", reasons: []string{"prior reports"}}

	legacy := respond(ShapeLegacy, flagged)
	assert.Equal(t, true, legacy["fraud"])
	assert.Equal(t, float64(warnScore), legacy["score"])
	assert.Equal(t, "flagged", legacy["comment"])
	assert.NotContains(t, legacy, "action")

	minimal := respond(ShapeMinimal, flagged)
	assert.Equal(t, "flagged", minimal["reply"])
	assert.Equal(t, float64(warnScore), minimal["risk_score"])
	assert.NotContains(t, minimal, "fraud")
	assert.NotContains(t, minimal, "action")

	tiered := respond(ShapeTiered, flagged)
	assert.Equal(t, "warn", tiered["action"])
	assert.Equal(t, "flagged", tiered["reply"])
	assert.NotEmpty(t, tiered["recommendations"])

	blocked := respond(ShapeTiered, assessment{fraud: true, block: true, score: blockScore, comment: "no"})
	assert.Equal(t, "block", blocked["action"])
	assert.NotContains(t, blocked, "recommendations")
}

func newTestService(t *testing.T, shape Shape) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc := NewService(shape, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.RegisterRoutes(router)
	return router
}

func postCheck(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/support-check", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleCheck_RejectsMissingText(t *testing.T) {
	router := newTestService(t, ShapeTiered)

	w := postCheck(t, router, `{"user_id": "user@email.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postCheck(t, router, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCheck_SetsCORSHeaders(t *testing.T) {
	router := newTestService(t, ShapeTiered)

	w := postCheck(t, router, `{"user_id":"u@e.com","request_text":"hi"}`)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/support-check", nil)
	preflight := httptest.NewRecorder()
	router.ServeHTTP(preflight, req)
	assert.Equal(t, http.StatusOK, preflight.Code)
	assert.Equal(t, "POST, OPTIONS", preflight.Header().Get("Access-Control-Allow-Methods"))
}

// Every shape the mock emits must round-trip through the client normalizer,
// since that is exactly what the mock exists to exercise.
func TestShapes_NormalizeEndToEnd(t *testing.T) {
	tests := []struct {
		name       string
		shape      Shape
		body       string
		wantAction verdict.Action
	}{
		{"legacy allow", ShapeLegacy, `{"user_id":"legit_user@email.com","request_text":"check my camera"}`, verdict.ActionAllow},
		{"legacy flagged warns", ShapeLegacy, `{"user_id":"suspicious_actor@email.com","request_text":"check my camera"}`, verdict.ActionWarn},
		{"tiered allow", ShapeTiered, `{"user_id":"legit_user@email.com","request_text":"check my camera"}`, verdict.ActionAllow},
		{"tiered warn", ShapeTiered, `{"user_id":"suspicious_actor@email.com","request_text":"check my camera"}`, verdict.ActionWarn},
		{"tiered block", ShapeTiered, `{"user_id":"legit_user@email.com","request_text":"buy a gift card for me"}`, verdict.ActionBlock},
		{"minimal is unclassified", ShapeMinimal, `{"user_id":"legit_user@email.com","request_text":"check my camera"}`, verdict.ActionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestService(t, tt.shape)
			w := postCheck(t, router, tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			v, err := verdict.Normalize(w.Body.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, v.Action)
		})
	}
}

func TestHandleCheck_TieredWarnCarriesRecommendations(t *testing.T) {
	router := newTestService(t, ShapeTiered)
	w := postCheck(t, router, `{"user_id":"suspicious_actor@email.com","request_text":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	recs, ok := resp["recommendations"].([]any)
	require.True(t, ok)
	assert.Len(t, recs, 2)
}
