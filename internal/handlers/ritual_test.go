package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/requestdata"
	"github.com/sanctuarylabs/sanctuary-backend/internal/services"
	"github.com/sanctuarylabs/sanctuary-backend/internal/types"
)

type fakeRitualService struct {
	mediaParses bool
}

func (f *fakeRitualService) AnalyzeEmotion(ctx context.Context, userID uuid.UUID, text string) services.EmotionalAnalysis {
	return services.EmotionalAnalysis{PrimaryNeed: "rest", WellnessCategory: "general"}
}

func (f *fakeRitualService) CreateRitual(ctx context.Context, userID uuid.UUID, text string, comfortMedia []string, preferences map[string]any) (*types.Ritual, error) {
	if !f.mediaParses {
		return nil, apierr.Validation("Could not identify any media from your input. Please be more specific.")
	}
	return &types.Ritual{ID: uuid.New(), UserID: userID, RitualContent: "Tonight's Ritual: ..."}, nil
}

func (f *fakeRitualService) ListRituals(ctx context.Context, userID uuid.UUID) ([]*types.Ritual, error) {
	return nil, nil
}

func (f *fakeRitualService) SubmitFeedback(ctx context.Context, ritualID uuid.UUID, rating int, comments string) error {
	return apierr.NotFound("Ritual not found")
}

func newRitualTestRouter(t *testing.T, rh *RitualHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Stand-in for the auth middleware: inject an authenticated user.
	router.Use(func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: uuid.New()})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	router.POST("/get-ritual", rh.GetRitual)
	router.POST("/feedback", rh.SubmitFeedback)
	return router
}

func testHandlerLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return log
}

func TestGetRitualEmptyMediaIs400(t *testing.T) {
	rh := NewRitualHandler(testHandlerLogger(t), &fakeRitualService{mediaParses: false}, true, true)
	router := newRitualTestRouter(t, rh)

	w := postJSON(t, router, "/get-ritual", `{"text": "tired", "comfort_media": []}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
	}
	want := "Could not identify any media from your input. Please be more specific."
	if body := w.Body.String(); !strings.Contains(body, want) {
		t.Fatalf("body = %s, want media-identification message", body)
	}
}

func TestGetRitualSucceeds(t *testing.T) {
	rh := NewRitualHandler(testHandlerLogger(t), &fakeRitualService{mediaParses: true}, true, true)
	router := newRitualTestRouter(t, rh)

	w := postJSON(t, router, "/get-ritual", `{"text": "tired", "comfort_media": ["Brian Eno"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !strings.Contains(body, `"success":true`) {
		t.Fatalf("body = %s, want success envelope", body)
	}
}

func TestGetRitualMissingAPIKeysIs500(t *testing.T) {
	cases := []struct {
		name  string
		genai bool
		qloo  bool
	}{
		{name: "no_genai", genai: false, qloo: true},
		{name: "no_qloo", genai: true, qloo: false},
		{name: "neither", genai: false, qloo: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rh := NewRitualHandler(testHandlerLogger(t), &fakeRitualService{mediaParses: true}, tc.genai, tc.qloo)
			router := newRitualTestRouter(t, rh)

			w := postJSON(t, router, "/get-ritual", `{"text": "tired", "comfort_media": ["x"]}`)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}
			if body := w.Body.String(); !strings.Contains(body, "Required API keys not configured") {
				t.Fatalf("body = %s, want keys-not-configured message", body)
			}
		})
	}
}

func TestFeedbackUnknownRitualIs404(t *testing.T) {
	rh := NewRitualHandler(testHandlerLogger(t), &fakeRitualService{}, true, true)
	router := newRitualTestRouter(t, rh)

	w := postJSON(t, router, "/feedback", `{"ritual_id": "`+uuid.NewString()+`", "rating": 5}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body: %s", w.Code, w.Body.String())
	}
}

func TestFeedbackRejectsBadRitualID(t *testing.T) {
	rh := NewRitualHandler(testHandlerLogger(t), &fakeRitualService{}, true, true)
	router := newRitualTestRouter(t, rh)

	w := postJSON(t, router, "/feedback", `{"ritual_id": "not-a-uuid", "rating": 5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

