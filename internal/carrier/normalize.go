package carrier

import (
	"regexp"
	"strings"
)

type rule struct {
	stage    Stage
	patterns []*regexp.Regexp
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// rules are evaluated in order and the first match wins. The order matters:
// "delivered" must beat "out for delivery", which must beat the transit
// keywords that usually surround it in carrier scan text.
var rules = []rule{
	{stage: StageDelivered, patterns: compile(
		`delivered`,
		`\bdlvd\b`,
		`\bpod\b`,
		`received by`,
		`handed over`,
	)},
	{stage: StageOutForDelivery, patterns: compile(
		`out[\s_-]*for[\s_-]*delivery`,
		`\bofd\b`,
		`with delivery (agent|boy|executive|associate)`,
		`on vehicle for delivery`,
	)},
	{stage: StageShipped, patterns: compile(
		`in[\s_-]*transit`,
		`arrived at`,
		`reached`,
		`departed`,
		`received at`,
		`forwarded`,
		`connected to`,
		`\bhub\b`,
	)},
	{stage: StageShipped, patterns: compile(
		`shipped`,
		`picked[\s_-]*up`,
		`pickup (done|completed)`,
		`dispatched`,
		`manifested`,
		`\bfulfilled\b`,
	)},
	{stage: StageFailed, patterns: compile(
		`fail`,
		`undeliverable`,
		`unsuccessful`,
		`attempted`,
		`refused`,
		`rejected`,
		`exception`,
		`not available`,
		`door locked`,
	)},
	{stage: StageReturnToOrigin, patterns: compile(
		`\brto\b`,
		`return(ed)?[\s_-]*to[\s_-]*origin`,
		`\breturned\b`,
		`return initiated`,
		`returning`,
	)},
}

// NormalizeStatus maps raw carrier or platform status text onto a Stage.
// Anything unrecognised is Processing.
func NormalizeStatus(rawStatus, rawDetails string) Stage {
	text := strings.TrimSpace(rawStatus + " " + rawDetails)
	if text == "" {
		return StageProcessing
	}

	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(text) {
				return r.stage
			}
		}
	}
	return StageProcessing
}
