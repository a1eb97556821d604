package services

// Curated recommendations served when the taste-graph lookup is unavailable
// or there is no structured seed to query with. Keyed by wellness category;
// "general" covers anything unrecognized.
var fallbackTable = map[string]map[string]string{
	"burnout": {
		"music":   "the album 'Immunity' by Jon Hopkins",
		"podcast": "the podcast 'Nothing Much Happens'",
		"book":    "the book 'The Power of Now' by Eckhart Tolle",
	},
	"creative_block": {
		"music": "the album 'Music for Airports' by Brian Eno",
		"film":  "the documentary 'Abstract: The Art of Design'",
		"book":  "the book 'Big Magic' by Elizabeth Gilbert",
	},
	"anxiety": {
		"music":   "the album 'Weightless' by Marconi Union",
		"podcast": "the podcast 'Calm'",
		"book":    "the book 'Anxious Thoughts' by Katie Krimer",
	},
	"general": {
		"music": "the album 'Vespertine' by Björk",
		"film":  "the movie 'My Neighbor Totoro'",
		"book":  "the book 'The Midnight Library' by Matt Haig",
	},
}

func fallbackRecommendations(wellnessCategory string) map[string]string {
	entry, ok := fallbackTable[wellnessCategory]
	if !ok {
		entry = fallbackTable["general"]
	}
	out := make(map[string]string, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	return out
}
