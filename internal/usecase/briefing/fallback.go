package briefing

import (
	"fmt"
	"strings"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// FallbackPre builds a pre-brief from metadata and open-action counts alone
func FallbackPre(m *entities.Meeting, openActions int64, stakeholders []string) *entities.Brief {
	var keyPoints []string
	for _, line := range strings.Split(m.Agenda, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line != "" {
			keyPoints = append(keyPoints, line)
		}
	}
	if len(keyPoints) == 0 {
		keyPoints = append(keyPoints, "Ingen agenda angiven")
	}
	keyPoints = append(keyPoints, fmt.Sprintf("%d deltagare", len(participants(m))))

	var risks []string
	if openActions > 0 {
		risks = append(risks, fmt.Sprintf("%d öppna åtgärder hos deltagarna", openActions))
	}

	brief := &entities.Brief{
		Subject:   "Inför: " + m.Title,
		Headline:  fmt.Sprintf("%s startar %s", m.Title, m.StartTime.UTC().Format("2006-01-02 15:04 UTC")),
		KeyPoints: keyPoints,
		Risks:     risks,
	}

	var b strings.Builder
	b.WriteString(brief.Headline + "\n\n")
	writeSection(&b, "Agenda", keyPoints)
	writeSection(&b, "Deltagare", stakeholders)
	writeSection(&b, "Risker", risks)
	brief.Content = strings.TrimSpace(b.String())
	return brief
}

// FallbackPost builds a post-brief from the stored summary
func FallbackPost(m *entities.Meeting, s *entities.MeetingSummary) *entities.Brief {
	headline := strings.TrimSpace(s.ExecutiveSummary)
	if headline == "" {
		headline = m.Title + " är avslutat"
	}

	nextSteps := append(append([]string{}, s.ActionItems...), s.NextSteps...)
	brief := &entities.Brief{
		Subject:   "Sammanfattning: " + m.Title,
		Headline:  headline,
		KeyPoints: s.KeyPoints,
		Decisions: s.Decisions,
		Risks:     s.OpenQuestions,
		NextSteps: nextSteps,
	}

	var b strings.Builder
	b.WriteString(headline + "\n\n")
	writeSection(&b, "Beslut", s.Decisions)
	writeSection(&b, "Åtgärder", nextSteps)
	writeSection(&b, "Öppna frågor", s.OpenQuestions)
	brief.Content = strings.TrimSpace(b.String())
	return brief
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}
