package extractor

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// Kind tags what a rule extracted
type Kind string

const (
	KindDecision   Kind = "decision"
	KindCommitment Kind = "commitment"
)

// Result is the output of one rule for one segment
type Result struct {
	Kind       Kind
	Rule       string
	Decision   *entities.DecisionCard
	Commitment *entities.Commitment
}

// Rule classifies a segment and builds a result from it.
// Match receives the lower-cased segment text.
type Rule interface {
	Name() string
	Match(lowered string) bool
	Build(seg entities.TranscriptSegment, spokenAt time.Time) Result
}

// Field pulls one clause out of a segment, or falls back to a fixed text per language
type Field struct {
	Pattern  *regexp.Regexp
	Fallback map[string]string // language -> text
}

func (f Field) extract(text, lang string) string {
	if f.Pattern != nil {
		if m := f.Pattern.FindStringSubmatch(text); len(m) > 1 {
			if clause := strings.TrimSpace(m[len(m)-1]); clause != "" {
				return capitalize(clause)
			}
		}
	}
	if fb, ok := f.Fallback[lang]; ok {
		return fb
	}
	return f.Fallback["sv"]
}

var cardNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("meeting-colleague/decision-cards"))

// DecisionRule builds a DecisionCard when a decision marker is spoken
type DecisionRule struct {
	Markers        []string
	Headline       Field
	Problem        Field
	Alternatives   *regexp.Regexp
	Recommendation Field
	Consequences   Field
	Fallbacks      map[string][]entities.Alternative
}

func (r DecisionRule) Name() string { return string(KindDecision) }

func (r DecisionRule) Match(lowered string) bool { return containsAny(lowered, r.Markers) }

func (r DecisionRule) Build(seg entities.TranscriptSegment, spokenAt time.Time) Result {
	text := strings.TrimSpace(seg.Text)
	lang := language(seg)

	headline := r.Headline.extract(text, lang)
	if headline == "" {
		headline = capitalize(truncate(text, 80))
	}

	card := &entities.DecisionCard{
		ID:             uuid.NewSHA1(cardNamespace, []byte(seg.MeetingID+"/"+seg.Key())).String(),
		MeetingID:      seg.MeetingID,
		Headline:       headline,
		Problem:        r.Problem.extract(text, lang),
		Alternatives:   r.alternatives(text, lang),
		Recommendation: r.Recommendation.extract(text, lang),
		Owner:          seg.Speaker,
		DecidedAt:      spokenAt.UTC(),
		Consequences:   r.Consequences.extract(text, lang),
		Citations: []entities.Citation{{
			SegmentID: seg.Key(),
			Speaker:   seg.Speaker,
			Excerpt:   truncate(text, 120),
			StartTime: seg.StartTime,
		}},
	}
	return Result{Kind: KindDecision, Rule: r.Name(), Decision: card}
}

func (r DecisionRule) alternatives(text, lang string) []entities.Alternative {
	var alts []entities.Alternative
	if r.Alternatives != nil {
		for _, m := range r.Alternatives.FindAllStringSubmatch(text, -1) {
			desc := strings.TrimSpace(m[3])
			if desc == "" {
				continue
			}
			alts = append(alts, entities.Alternative{
				Label:       capitalize(strings.ToLower(m[1])) + " " + strings.ToUpper(m[2]),
				Description: capitalize(desc),
			})
		}
	}
	if len(alts) > 0 {
		return alts
	}
	fb, ok := r.Fallbacks[lang]
	if !ok {
		fb = r.Fallbacks["sv"]
	}
	return append([]entities.Alternative(nil), fb...)
}

// CommitmentRule emits a Commitment when someone takes ownership of a task
type CommitmentRule struct {
	Markers []string
}

func (r CommitmentRule) Name() string { return string(KindCommitment) }

func (r CommitmentRule) Match(lowered string) bool { return containsAny(lowered, r.Markers) }

func (r CommitmentRule) Build(seg entities.TranscriptSegment, spokenAt time.Time) Result {
	return Result{
		Kind: KindCommitment,
		Rule: r.Name(),
		Commitment: &entities.Commitment{
			Statement: strings.TrimSpace(seg.Text),
			Owner:     seg.Speaker,
			DueDate:   parseDueDate(seg.Text, spokenAt),
			SegmentID: seg.Key(),
			SpokenAt:  spokenAt.UTC(),
		},
	}
}

const clause = `\s*:?\s*([^.!?;]+)`

// DefaultRules returns the Swedish and English rule set, decisions first
func DefaultRules() []Rule {
	return []Rule{
		DecisionRule{
			Markers: []string{
				"beslutar", "beslutade", "beslut:", "bestämmer", "bestämde", "vi kör", "vi går vidare med",
				"decide", "we'll go with", "we will go with", "agreed to",
			},
			Headline: Field{
				Pattern: regexp.MustCompile(`(?i)(?:beslutar|beslutade|beslut:|bestämmer|bestämde|vi kör|vi går vidare med|decided|decide|go with|agreed)\s+(?:oss\s+)?(?:att\s+|för\s+|to\s+|on\s+|that\s+)?([^.!?;]+)`),
			},
			Problem: Field{
				Pattern: regexp.MustCompile(`(?i)(?:eftersom|på grund av|problemet är att|because|since|the problem is that)` + clause),
				Fallback: map[string]string{
					"sv": "Mötet behövde ta ställning i frågan",
					"en": "The meeting needed to settle the question",
				},
			},
			Alternatives: regexp.MustCompile(`(?i)(alternativ|option)\s+([a-z0-9])(?:\s*[:-]\s*|\s+(?:är\s+|is\s+)?)([^.;!?,]*)`),
			Fallbacks: map[string][]entities.Alternative{
				"sv": {
					{Label: "Alternativ A", Description: "Genomför beslutet som det formulerades"},
					{Label: "Alternativ B", Description: "Behåll nuvarande arbetssätt"},
				},
				"en": {
					{Label: "Option A", Description: "Carry out the decision as stated"},
					{Label: "Option B", Description: "Keep the current approach"},
				},
			},
			Recommendation: Field{
				Pattern: regexp.MustCompile(`(?i)(?:rekommenderar att|rekommenderar|recommend that|recommend)` + clause),
				Fallback: map[string]string{
					"sv": "Genomför beslutet och stäm av vid nästa möte",
					"en": "Carry out the decision and check in at the next meeting",
				},
			},
			Consequences: Field{
				Pattern: regexp.MustCompile(`(?i)(?:konsekvensen är att|konsekvens|innebär att|which means|this means)` + clause),
				Fallback: map[string]string{
					"sv": "Följ upp effekten av beslutet inom 14 dagar",
					"en": "Follow up on the effect of the decision within 14 days",
				},
			},
		},
		CommitmentRule{
			Markers: []string{
				"jag tar", "jag fixar", "jag ordnar", "jag ansvarar", "ansvar", "jag kollar",
				"i'll take", "i will take", "i'll handle", "i'll do", "i'll own", "i own", "that's on me",
			},
		},
	}
}

func containsAny(lowered string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

func language(seg entities.TranscriptSegment) string {
	if strings.HasPrefix(strings.ToLower(seg.Language), "en") {
		return "en"
	}
	return "sv"
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
