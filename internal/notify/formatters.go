package notify

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/derekprior/standings/internal/league"
)

// FormatResult builds the Block Kit message for a completed match.
func FormatResult(m league.Match) slack.Message {
	blocks := make([]slack.Block, 0, 4)

	header := slack.NewTextBlockObject("plain_text", fmt.Sprintf("🏐 Week %d result", m.Week), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(header))

	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn", ResultText(m), false, false), nil, nil))

	if len(m.SetScores) > 0 {
		sets := "Sets: " + strings.Join(m.SetScores, ", ")
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("plain_text", sets, false, false), nil, nil))
	}

	deltas := fmt.Sprintf("%s %+d · %s %+d", m.TeamA, m.DeltaA, m.TeamB, m.DeltaB)
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject("plain_text", "Rating change: "+deltas, false, false)))

	return slack.NewBlockMessage(blocks...)
}

// ResultText is the one-line summary of a result, winner in bold.
func ResultText(m league.Match) string {
	if m.Score == nil {
		return fmt.Sprintf("%s vs %s", m.TeamA, m.TeamB)
	}
	a, b := m.TeamA, m.TeamB
	switch {
	case m.Score[0] > m.Score[1]:
		a = "*" + a + "*"
	case m.Score[1] > m.Score[0]:
		b = "*" + b + "*"
	}
	return fmt.Sprintf("%s %d - %d %s", a, m.Score[0], m.Score[1], b)
}

// FormatWeek builds the Block Kit message announcing a week's pairings.
func FormatWeek(week int, matches []league.Match) slack.Message {
	blocks := make([]slack.Block, 0, 3)

	header := slack.NewTextBlockObject("plain_text", fmt.Sprintf("🏐 Week %d schedule", week), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(header))

	var lines []string
	for _, m := range matches {
		line := fmt.Sprintf("• %s vs %s", m.TeamA, m.TeamB)
		if m.ScheduledAt != nil {
			line += " — " + m.ScheduledAt.Format("Mon 02 Jan, 15:04")
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, "No matches this week.")
	}
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject("plain_text", strings.Join(lines, "\n"), false, false), nil, nil))

	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject("plain_text", fmt.Sprintf("%d matches", len(matches)), false, false)))

	return slack.NewBlockMessage(blocks...)
}
