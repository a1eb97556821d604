package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/clients/redis"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/repos"
	"github.com/sanctuarylabs/sanctuary-backend/internal/types"
)

// EmotionalAnalysis is the structured result of the emotion-classification
// stage. Transient; never persisted as its own row.
type EmotionalAnalysis struct {
	PrimaryNeed         string   `json:"primary_need"`
	SecondaryEmotions   []string `json:"secondary_emotions"`
	StressLevel         int      `json:"stress_level"`
	RecommendedDuration string   `json:"recommended_duration"`
	Urgency             string   `json:"urgency"`
	WellnessCategory    string   `json:"wellness_category"`
}

// Pipeline stages and their failure policies. The asymmetry is deliberate:
// emotion and narrative default silently, media parsing is a hard stop
// (defaulted media would produce misleading recommendations), and the
// recommendation lookup falls back to the static table.
type pipelineStage int

type failurePolicy int

const (
	stageEmotion pipelineStage = iota
	stageMediaParse
	stageRecommend
	stageNarrative
)

const (
	failSoft failurePolicy = iota
	failHard
	failFallback
)

var stagePolicies = map[pipelineStage]failurePolicy{
	stageEmotion:    failSoft,
	stageMediaParse: failHard,
	stageRecommend:  failFallback,
	stageNarrative:  failSoft,
}

const (
	emotionCacheTTL = 30 * time.Minute
	mediaCacheTTL   = time.Hour
	tasteCacheTTL   = 30 * time.Minute
)

type RitualService interface {
	AnalyzeEmotion(ctx context.Context, userID uuid.UUID, text string) EmotionalAnalysis
	CreateRitual(ctx context.Context, userID uuid.UUID, text string, comfortMedia []string, preferences map[string]any) (*types.Ritual, error)
	ListRituals(ctx context.Context, userID uuid.UUID) ([]*types.Ritual, error)
	SubmitFeedback(ctx context.Context, ritualID uuid.UUID, rating int, comments string) error
}

type ritualService struct {
	log        *logger.Logger
	ritualRepo repos.RitualRepo
	genai      GenAIClient
	taste      TasteClient
	cache      redis.Cache
}

func NewRitualService(
	log *logger.Logger,
	ritualRepo repos.RitualRepo,
	genai GenAIClient,
	taste TasteClient,
	cache redis.Cache,
) RitualService {
	serviceLog := log.With("service", "RitualService")
	return &ritualService{
		log:        serviceLog,
		ritualRepo: ritualRepo,
		genai:      genai,
		taste:      taste,
		cache:      cache,
	}
}

// CreateRitual runs the full four-stage pipeline and persists the result.
// Stages are strictly sequential: each prompt depends on the previous
// stage's structured output.
func (rs *ritualService) CreateRitual(ctx context.Context, userID uuid.UUID, text string, comfortMedia []string, preferences map[string]any) (*types.Ritual, error) {
	analysis := rs.AnalyzeEmotion(ctx, userID, text)

	structured := rs.parseMedia(ctx, comfortMedia)
	if len(structured) == 0 {
		return nil, apierr.Validation("Could not identify any media from your input. Please be more specific.")
	}

	recommendations := rs.buildRecommendations(ctx, structured, analysis)

	content := rs.generateNarrative(ctx, analysis, recommendations, preferences)

	recMap := make(datatypes.JSONMap, len(recommendations))
	for k, v := range recommendations {
		recMap[k] = v
	}
	ritual := &types.Ritual{
		ID:                uuid.New(),
		UserID:            userID,
		EmotionalNeed:     analysis.PrimaryNeed,
		ComfortMedia:      datatypes.NewJSONSlice(comfortMedia),
		RitualContent:     content,
		Recommendations:   recMap,
		EstimatedDuration: analysis.RecommendedDuration,
	}
	if _, err := rs.ritualRepo.Create(ctx, nil, []*types.Ritual{ritual}); err != nil {
		rs.log.Error("Failed to persist ritual", "user_id", userID, "error", err)
		return nil, apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to save ritual: %w", err))
	}
	return ritual, nil
}

func (rs *ritualService) ListRituals(ctx context.Context, userID uuid.UUID) ([]*types.Ritual, error) {
	rituals, err := rs.ritualRepo.GetByUserIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to list rituals: %w", err))
	}
	return rituals, nil
}

func (rs *ritualService) SubmitFeedback(ctx context.Context, ritualID uuid.UUID, rating int, comments string) error {
	rituals, err := rs.ritualRepo.GetByIDs(ctx, nil, []uuid.UUID{ritualID})
	if err != nil {
		return apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to load ritual: %w", err))
	}
	if len(rituals) == 0 {
		return apierr.NotFound("Ritual not found")
	}
	// Rating range is intentionally not validated here.
	if err := rs.ritualRepo.UpdateRating(ctx, nil, ritualID, rating); err != nil {
		return apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to update rating: %w", err))
	}
	if comments != "" {
		rs.log.Info("Feedback comments received", "ritual_id", ritualID, "comment_len", len(comments))
	}
	return nil
}

// ---- Stage 1: emotion analysis (fails soft) ----

func defaultEmotionalAnalysis() EmotionalAnalysis {
	return EmotionalAnalysis{
		PrimaryNeed:         "emotional restoration",
		SecondaryEmotions:   []string{"fatigue"},
		StressLevel:         5,
		RecommendedDuration: "30min",
		Urgency:             "medium",
		WellnessCategory:    "general",
	}
}

const emotionSystemPrompt = `You are an expert emotional wellness AI. Analyze the user's text and provide:
1. Primary emotional need (2-4 words)
2. Secondary emotions present
3. Stress level (1-10)
4. Recommended ritual duration (15min, 30min, 45min, or 60min)
5. Urgency level (low, medium, high)

Respond in JSON format only.`

func emotionUserPrompt(text string) string {
	return fmt.Sprintf(`Analyze this emotional state description:
"%s"

Provide analysis in this exact JSON format:
{
    "primary_need": "string (2-4 words)",
    "secondary_emotions": ["emotion1", "emotion2"],
    "stress_level": number (1-10),
    "recommended_duration": "string (15min/30min/45min/60min)",
    "urgency": "string (low/medium/high)",
    "wellness_category": "string (burnout/anxiety/creative_block/etc)"
}`, text)
}

// AnalyzeEmotion never fails: any transport or parse error degrades to the
// fixed default analysis.
func (rs *ritualService) AnalyzeEmotion(ctx context.Context, userID uuid.UUID, text string) EmotionalAnalysis {
	cacheKey := redis.Key("emotion", userID.String(), text)
	if rs.cache != nil {
		if cached, ok := rs.cache.Get(ctx, cacheKey); ok {
			var analysis EmotionalAnalysis
			if err := json.Unmarshal([]byte(cached), &analysis); err == nil {
				return analysis
			}
		}
	}

	raw, err := rs.genai.GenerateText(ctx, emotionSystemPrompt, emotionUserPrompt(text))
	if err != nil {
		rs.log.Warn("Emotion analysis call failed, using default analysis", "user_id", userID, "error", err)
		return defaultEmotionalAnalysis()
	}

	var analysis EmotionalAnalysis
	if err := decodeModelJSON(raw, &analysis); err != nil {
		rs.log.Warn("Emotion analysis parse failed, using default analysis", "user_id", userID, "error", err)
		return defaultEmotionalAnalysis()
	}

	if rs.cache != nil {
		if encoded, mErr := json.Marshal(analysis); mErr == nil {
			rs.cache.SetEx(ctx, cacheKey, string(encoded), emotionCacheTTL)
		}
	}
	return analysis
}

// ---- Stage 2: media parsing (hard stop on empty) ----

const mediaSystemPrompt = `You are an expert media cataloger. Parse natural language media references into structured data.

Valid types:
- "film/movie" for movies/films
- "music/artist" for musicians/bands
- "music/album" for specific albums
- "book/book" for books
- "tv/show" for TV series
- "podcast" for podcasts

Be intelligent about context. If someone says "The Beatles", that's "music/artist".
If they say "Abbey Road", that's "music/album".

Respond with ONLY a JSON array of objects.`

func mediaUserPrompt(mediaText string) string {
	return fmt.Sprintf(`Parse this media text: "%s"

Examples:
"Spirited Away, Radiohead, The Lord of the Rings" →
[
    {"type": "film/movie", "name": "Spirited Away"},
    {"type": "music/artist", "name": "Radiohead"},
    {"type": "book/book", "name": "The Lord of the Rings"}
]

Now parse the input and return JSON array only:`, mediaText)
}

// parseMedia returns an empty slice on any failure. The caller treats an
// empty result as a client-facing validation error rather than defaulting.
func (rs *ritualService) parseMedia(ctx context.Context, media []string) []MediaItem {
	if len(media) == 0 {
		return nil
	}
	mediaText := strings.Join(media, ", ")

	cacheKey := redis.Key("media", mediaText)
	if rs.cache != nil {
		if cached, ok := rs.cache.Get(ctx, cacheKey); ok {
			var items []MediaItem
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return items
			}
		}
	}

	raw, err := rs.genai.GenerateText(ctx, mediaSystemPrompt, mediaUserPrompt(mediaText))
	if err != nil {
		rs.log.Warn("Media parsing call failed", "error", err)
		return nil
	}

	var items []MediaItem
	if err := decodeModelJSON(raw, &items); err != nil {
		rs.log.Warn("Media parsing returned unparseable JSON", "error", err)
		return nil
	}

	if rs.cache != nil {
		if encoded, mErr := json.Marshal(items); mErr == nil {
			rs.cache.SetEx(ctx, cacheKey, string(encoded), mediaCacheTTL)
		}
	}
	return items
}

// ---- Stage 3: recommendation lookup (falls back to the static table) ----

// selectDomains is deterministic: creative blocks get inspiration-focused
// domains regardless of urgency; high urgency narrows to quick-access
// content; everything else gets the full set.
func selectDomains(analysis EmotionalAnalysis) []string {
	if analysis.WellnessCategory == "creative_block" {
		return []string{"music", "book", "film"}
	}
	if analysis.Urgency == "high" {
		return []string{"music", "podcast"}
	}
	return []string{"music", "book", "film", "podcast"}
}

func formatTasteItem(item TasteItem) string {
	text := fmt.Sprintf("'%s'", item.Name)
	if item.Author != "" {
		text += " by " + item.Author
	} else if item.Artist != "" {
		text += " by " + item.Artist
	}
	return text
}

func (rs *ritualService) buildRecommendations(ctx context.Context, seed []MediaItem, analysis EmotionalAnalysis) map[string]string {
	if len(seed) == 0 {
		return fallbackRecommendations(analysis.WellnessCategory)
	}

	seedKey, _ := json.Marshal(seed)
	cacheKey := redis.Key("qloo", string(seedKey), analysis.WellnessCategory)
	if rs.cache != nil {
		if cached, ok := rs.cache.Get(ctx, cacheKey); ok {
			var recs map[string]string
			if err := json.Unmarshal([]byte(cached), &recs); err == nil {
				return recs
			}
		}
	}

	domains := selectDomains(analysis)
	data, err := rs.taste.Recommend(ctx, seed, domains)
	if err != nil {
		rs.log.Warn("Taste recommendation call failed, using fallback table",
			"wellness_category", analysis.WellnessCategory, "error", err)
		return fallbackRecommendations(analysis.WellnessCategory)
	}

	recommendations := make(map[string]string)
	for _, domain := range domains {
		items := data[domain]
		if len(items) > 2 {
			items = items[:2]
		}
		for i, item := range items {
			key := domain
			if i > 0 {
				key = domain + "_alt"
			}
			recommendations[key] = formatTasteItem(item)
		}
	}

	if rs.cache != nil {
		if encoded, mErr := json.Marshal(recommendations); mErr == nil {
			rs.cache.SetEx(ctx, cacheKey, string(encoded), tasteCacheTTL)
		}
	}
	return recommendations
}

// ---- Stage 4: narrative generation (fails soft) ----

var urgencyPrompts = map[string]string{
	"high":   "This person needs immediate relief and gentle care.",
	"medium": "This person would benefit from a thoughtful, balanced approach.",
	"low":    "This person is seeking enrichment and gentle exploration.",
}

func narrativeSystemPrompt(analysis EmotionalAnalysis) string {
	return fmt.Sprintf(`You are "Sanctuary," an expert AI wellness curator specializing in personalized restoration rituals.

Context:
- Emotional need: %s
- Stress level: %d/10
- Urgency: %s (%s)
- Duration: %s

Your writing style:
- Warm, empathetic, and nurturing
- Use second person ("you")
- Be specific and actionable
- Include gentle transitions between activities
- Explain the "why" behind recommendations

Create a ritual that feels like a caring friend's personalized recommendation.`,
		analysis.PrimaryNeed, analysis.StressLevel, analysis.Urgency,
		urgencyPrompts[analysis.Urgency], analysis.RecommendedDuration)
}

func narrativeUserPrompt(analysis EmotionalAnalysis, recommendations map[string]string) string {
	keys := make([]string, 0, len(recommendations))
	for k := range recommendations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", titleCase(strings.ReplaceAll(k, "_", " ")), recommendations[k]))
	}

	return fmt.Sprintf(`Based on the cultural recommendations below, create a %s restoration ritual:

%s

Structure your response as:
1. A poetic title starting with "Tonight's Ritual:" or "Your Ritual:"
2. A brief emotional acknowledgment
3. 2-3 specific activities using the recommendations
4. Gentle transitions between activities
5. A closing intention or affirmation

Keep it under 200 words, warm and personal.`,
		analysis.RecommendedDuration, strings.Join(lines, "\n"))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

const cannedRitual = `Tonight's Ritual: A Moment of Peace

I sense you need some gentle restoration right now. Here's what I've prepared for you:

Begin by settling into your most comfortable space. Let yourself listen to some calming music - something that speaks to your soul in this moment.

Take 10-15 minutes to simply be present with the sounds, letting them wash over you without any pressure to do or think anything particular.

Follow this with a few pages of reading something that nourishes your mind, or perhaps watching something beautiful and inspiring.

Remember: this time is yours. You deserve this pause, this care, this moment of sanctuary.

May you find the restoration you seek.`

// generateNarrative never fails: any error degrades to the canned narrative.
// Preferences are accepted for API compatibility but currently unused in
// prompt construction.
func (rs *ritualService) generateNarrative(ctx context.Context, analysis EmotionalAnalysis, recommendations map[string]string, preferences map[string]any) string {
	_ = preferences

	content, err := rs.genai.GenerateText(ctx, narrativeSystemPrompt(analysis), narrativeUserPrompt(analysis, recommendations))
	if err != nil {
		rs.log.Warn("Narrative generation failed, using canned ritual", "error", err)
		return cannedRitual
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return cannedRitual
	}
	return content
}
