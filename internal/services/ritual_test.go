package services

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return log
}

type genAIReply struct {
	text string
	err  error
}

type fakeGenAI struct {
	replies []genAIReply
	calls   int
}

func (f *fakeGenAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	if f.calls >= len(f.replies) {
		return "", errors.New("fakeGenAI: no reply scripted")
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply.text, reply.err
}

type fakeTaste struct {
	data       map[string][]TasteItem
	err        error
	called     bool
	gotSeed    []MediaItem
	gotDomains []string
}

func (f *fakeTaste) Recommend(ctx context.Context, seed []MediaItem, domains []string) (map[string][]TasteItem, error) {
	f.called = true
	f.gotSeed = seed
	f.gotDomains = domains
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeRitualRepo struct {
	rituals     map[uuid.UUID]*types.Ritual
	createCalls int
	createErr   error
}

func newFakeRitualRepo() *fakeRitualRepo {
	return &fakeRitualRepo{rituals: map[uuid.UUID]*types.Ritual{}}
}

func (f *fakeRitualRepo) Create(ctx context.Context, tx *gorm.DB, rituals []*types.Ritual) ([]*types.Ritual, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, r := range rituals {
		f.rituals[r.ID] = r
	}
	return rituals, nil
}

func (f *fakeRitualRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ritualIDs []uuid.UUID) ([]*types.Ritual, error) {
	var out []*types.Ritual
	for _, id := range ritualIDs {
		if r, ok := f.rituals[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRitualRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Ritual, error) {
	var out []*types.Ritual
	for _, r := range f.rituals {
		for _, id := range userIDs {
			if r.UserID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeRitualRepo) UpdateRating(ctx context.Context, tx *gorm.DB, ritualID uuid.UUID, rating int) error {
	r, ok := f.rituals[ritualID]
	if !ok {
		return nil
	}
	v := rating
	r.Rating = &v
	return nil
}

const emotionReplyBurnout = `{
	"primary_need": "Peace and quiet",
	"secondary_emotions": ["Overwhelmed", "Lonely"],
	"stress_level": 7,
	"recommended_duration": "30min",
	"urgency": "medium",
	"wellness_category": "burnout"
}`

const mediaReply = "```json\n[{\"type\": \"music/artist\", \"name\": \"Brian Eno\"}, {\"type\": \"book/book\", \"name\": \"The Ocean at the End of the Lane\"}]\n```"

func TestSelectDomains(t *testing.T) {
	cases := []struct {
		name     string
		analysis EmotionalAnalysis
		want     []string
	}{
		{
			name:     "creative_block_overrides_urgency",
			analysis: EmotionalAnalysis{WellnessCategory: "creative_block", Urgency: "high"},
			want:     []string{"music", "book", "film"},
		},
		{
			name:     "creative_block_low_urgency",
			analysis: EmotionalAnalysis{WellnessCategory: "creative_block", Urgency: "low"},
			want:     []string{"music", "book", "film"},
		},
		{
			name:     "high_urgency_quick_access",
			analysis: EmotionalAnalysis{WellnessCategory: "burnout", Urgency: "high"},
			want:     []string{"music", "podcast"},
		},
		{
			name:     "default_full_set",
			analysis: EmotionalAnalysis{WellnessCategory: "general", Urgency: "medium"},
			want:     []string{"music", "book", "film", "podcast"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := selectDomains(tc.analysis)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("selectDomains(%+v) = %v, want %v", tc.analysis, got, tc.want)
			}
		})
	}
}

func TestStagePoliciesMatchContract(t *testing.T) {
	want := map[pipelineStage]failurePolicy{
		stageEmotion:    failSoft,
		stageMediaParse: failHard,
		stageRecommend:  failFallback,
		stageNarrative:  failSoft,
	}
	if !reflect.DeepEqual(stagePolicies, want) {
		t.Fatalf("stagePolicies = %v, want %v", stagePolicies, want)
	}
}

func TestBuildRecommendationsEmptySeedNeverCallsRemote(t *testing.T) {
	taste := &fakeTaste{}
	rs := NewRitualService(newTestLogger(t), newFakeRitualRepo(), &fakeGenAI{}, taste, nil).(*ritualService)

	analysis := EmotionalAnalysis{WellnessCategory: "anxiety"}
	got := rs.buildRecommendations(context.Background(), nil, analysis)

	if taste.called {
		t.Fatal("taste backend was called for an empty seed")
	}
	want := fallbackRecommendations("anxiety")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildRecommendations = %v, want fallback %v", got, want)
	}
}

func TestBuildRecommendationsTransportErrorFallsBack(t *testing.T) {
	taste := &fakeTaste{err: errors.New("timeout")}
	rs := NewRitualService(newTestLogger(t), newFakeRitualRepo(), &fakeGenAI{}, taste, nil).(*ritualService)

	analysis := EmotionalAnalysis{WellnessCategory: "burnout", Urgency: "medium"}
	seed := []MediaItem{{Type: "music/artist", Name: "Brian Eno"}}
	got := rs.buildRecommendations(context.Background(), seed, analysis)

	if !taste.called {
		t.Fatal("taste backend was never called")
	}
	want := fallbackRecommendations("burnout")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildRecommendations = %v, want fallback %v", got, want)
	}
}

func TestBuildRecommendationsFormatsItems(t *testing.T) {
	taste := &fakeTaste{
		data: map[string][]TasteItem{
			"music": {
				{Name: "Immunity", Artist: "Jon Hopkins"},
				{Name: "Ambient 1", Artist: "Brian Eno"},
				{Name: "Should Not Appear", Artist: "Third"},
			},
			"book": {
				{Name: "The Midnight Library", Author: "Matt Haig"},
			},
			"film": {
				{Name: "My Neighbor Totoro"},
			},
		},
	}
	rs := NewRitualService(newTestLogger(t), newFakeRitualRepo(), &fakeGenAI{}, taste, nil).(*ritualService)

	analysis := EmotionalAnalysis{WellnessCategory: "general", Urgency: "medium"}
	seed := []MediaItem{{Type: "music/artist", Name: "Brian Eno"}}
	got := rs.buildRecommendations(context.Background(), seed, analysis)

	want := map[string]string{
		"music":     "'Immunity' by Jon Hopkins",
		"music_alt": "'Ambient 1' by Brian Eno",
		"book":      "'The Midnight Library' by Matt Haig",
		"film":      "'My Neighbor Totoro'",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildRecommendations = %v, want %v", got, want)
	}

	wantDomains := []string{"music", "book", "film", "podcast"}
	if !reflect.DeepEqual(taste.gotDomains, wantDomains) {
		t.Fatalf("requested domains = %v, want %v", taste.gotDomains, wantDomains)
	}
}

func TestAnalyzeEmotionFailsSoft(t *testing.T) {
	cases := []struct {
		name  string
		reply genAIReply
	}{
		{name: "transport_error", reply: genAIReply{err: errors.New("boom")}},
		{name: "unparseable", reply: genAIReply{text: "not json at all"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			genai := &fakeGenAI{replies: []genAIReply{tc.reply}}
			rs := NewRitualService(newTestLogger(t), newFakeRitualRepo(), genai, &fakeTaste{}, nil)

			got := rs.AnalyzeEmotion(context.Background(), uuid.New(), "I feel awful")
			want := defaultEmotionalAnalysis()
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("AnalyzeEmotion = %+v, want default %+v", got, want)
			}
		})
	}
}

func TestAnalyzeEmotionParsesModelReply(t *testing.T) {
	genai := &fakeGenAI{replies: []genAIReply{{text: "```json\n" + emotionReplyBurnout + "\n```"}}}
	rs := NewRitualService(newTestLogger(t), newFakeRitualRepo(), genai, &fakeTaste{}, nil)

	got := rs.AnalyzeEmotion(context.Background(), uuid.New(), "work is crushing me")
	if got.PrimaryNeed != "Peace and quiet" {
		t.Errorf("PrimaryNeed = %q, want %q", got.PrimaryNeed, "Peace and quiet")
	}
	if got.StressLevel != 7 {
		t.Errorf("StressLevel = %d, want 7", got.StressLevel)
	}
	if got.WellnessCategory != "burnout" {
		t.Errorf("WellnessCategory = %q, want burnout", got.WellnessCategory)
	}
}

func TestCreateRitualFullPipeline(t *testing.T) {
	genai := &fakeGenAI{replies: []genAIReply{
		{text: emotionReplyBurnout},
		{text: mediaReply},
		{text: "Tonight's Ritual: A Sanctuary of Stillness\n\nBegin by settling in..."},
	}}
	taste := &fakeTaste{
		data: map[string][]TasteItem{
			"music": {{Name: "Immunity", Artist: "Jon Hopkins"}},
		},
	}
	repo := newFakeRitualRepo()
	rs := NewRitualService(newTestLogger(t), repo, genai, taste, nil)

	userID := uuid.New()
	media := []string{"Brian Eno", "The Ocean at the End of the Lane"}
	ritual, err := rs.CreateRitual(context.Background(), userID, "work is crushing me", media, nil)
	if err != nil {
		t.Fatalf("CreateRitual error: %v", err)
	}

	if ritual.UserID != userID {
		t.Errorf("UserID = %v, want %v", ritual.UserID, userID)
	}
	if ritual.EmotionalNeed != "Peace and quiet" {
		t.Errorf("EmotionalNeed = %q, want %q", ritual.EmotionalNeed, "Peace and quiet")
	}
	if ritual.EstimatedDuration != "30min" {
		t.Errorf("EstimatedDuration = %q, want 30min", ritual.EstimatedDuration)
	}
	if !strings.HasPrefix(ritual.RitualContent, "Tonight's Ritual:") {
		t.Errorf("RitualContent = %q, want generated narrative", ritual.RitualContent)
	}
	if got := ritual.Recommendations["music"]; got != "'Immunity' by Jon Hopkins" {
		t.Errorf("Recommendations[music] = %v, want 'Immunity' by Jon Hopkins", got)
	}
	if repo.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", repo.createCalls)
	}
	if genai.calls != 3 {
		t.Errorf("genai calls = %d, want 3 (emotion, media, narrative)", genai.calls)
	}
}

func TestCreateRitualEmptyMediaIsHardStop(t *testing.T) {
	cases := []struct {
		name   string
		reply  genAIReply
		media  []string
		nCalls int
	}{
		{
			name:   "no_media_given",
			media:  nil,
			reply:  genAIReply{},
			nCalls: 1, // emotion only; parse short-circuits on empty input
		},
		{
			name:   "parse_yields_nothing",
			media:  []string{"asdfgh"},
			reply:  genAIReply{text: "[]"},
			nCalls: 2,
		},
		{
			name:   "parse_transport_error",
			media:  []string{"something"},
			reply:  genAIReply{err: errors.New("boom")},
			nCalls: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			genai := &fakeGenAI{replies: []genAIReply{{text: emotionReplyBurnout}, tc.reply}}
			repo := newFakeRitualRepo()
			rs := NewRitualService(newTestLogger(t), repo, genai, &fakeTaste{}, nil)

			_, err := rs.CreateRitual(context.Background(), uuid.New(), "text", tc.media, nil)
			if err == nil {
				t.Fatal("CreateRitual succeeded, want validation error")
			}
			if !apierr.Is(err, apierr.CodeValidation) {
				t.Fatalf("error code = %v, want validation_error", err)
			}
			if !strings.Contains(err.Error(), "Could not identify any media") {
				t.Fatalf("error message = %q, want media-identification message", err.Error())
			}
			if repo.createCalls != 0 {
				t.Errorf("ritual was persisted despite empty media list")
			}
			if genai.calls != tc.nCalls {
				t.Errorf("genai calls = %d, want %d", genai.calls, tc.nCalls)
			}
		})
	}
}

func TestCreateRitualNarrativeFailureUsesCannedRitual(t *testing.T) {
	genai := &fakeGenAI{replies: []genAIReply{
		{text: emotionReplyBurnout},
		{text: mediaReply},
		{err: errors.New("boom")},
	}}
	repo := newFakeRitualRepo()
	rs := NewRitualService(newTestLogger(t), repo, genai, &fakeTaste{err: errors.New("down")}, nil)

	ritual, err := rs.CreateRitual(context.Background(), uuid.New(), "text", []string{"Brian Eno"}, nil)
	if err != nil {
		t.Fatalf("CreateRitual error: %v", err)
	}
	if ritual.RitualContent != cannedRitual {
		t.Errorf("RitualContent = %q, want canned ritual", ritual.RitualContent)
	}
	// Taste was down too, so recommendations must be the burnout fallback.
	keys := make([]string, 0, len(ritual.Recommendations))
	for k := range ritual.Recommendations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"book", "music", "podcast"}) {
		t.Errorf("recommendation keys = %v, want burnout fallback keys", keys)
	}
}

func TestSubmitFeedbackLastWriteWins(t *testing.T) {
	repo := newFakeRitualRepo()
	ritualID := uuid.New()
	repo.rituals[ritualID] = &types.Ritual{ID: ritualID, UserID: uuid.New()}
	rs := NewRitualService(newTestLogger(t), repo, &fakeGenAI{}, &fakeTaste{}, nil)

	if err := rs.SubmitFeedback(context.Background(), ritualID, 4, ""); err != nil {
		t.Fatalf("first SubmitFeedback error: %v", err)
	}
	if err := rs.SubmitFeedback(context.Background(), ritualID, 2, "meh"); err != nil {
		t.Fatalf("second SubmitFeedback error: %v", err)
	}

	got := repo.rituals[ritualID].Rating
	if got == nil || *got != 2 {
		t.Fatalf("rating = %v, want 2 (last write wins)", got)
	}
}

func TestSubmitFeedbackUnknownRitual(t *testing.T) {
	rs := NewRitualService(newTestLogger(t), newFakeRitualRepo(), &fakeGenAI{}, &fakeTaste{}, nil)
	err := rs.SubmitFeedback(context.Background(), uuid.New(), 5, "")
	if !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("error = %v, want not_found", err)
	}
}
