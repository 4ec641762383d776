package acquire

import "strings"

// Milestone maps a keyword seen in a tool's output to a percentage.
type Milestone struct {
	Keyword string
	Percent int
}

var milestones = map[string][]Milestone{
	"pip": {
		{"Successfully installed", 100},
		{"Installing collected packages", 80},
		{"Downloading", 40},
		{"Collecting", 20},
	},
	"apt-get": {
		{"Setting up", 90},
		{"Unpacking", 60},
		{"Reading package lists", 10},
	},
	"brew": {
		{"Summary", 100},
		{"Pouring", 70},
		{"Downloading", 30},
	},
}

// MilestonesFor returns the milestone table for a tool, or nil when its
// output carries no usable markers.
func MilestonesFor(tool string) []Milestone {
	return milestones[tool]
}

// MatchMilestone returns the percentage of the first milestone whose keyword
// occurs in line.
func MatchMilestone(table []Milestone, line string) (int, bool) {
	for _, m := range table {
		if strings.Contains(line, m.Keyword) {
			return m.Percent, true
		}
	}
	return 0, false
}

// milestoneReporter turns output lines into monotonic progress reports.
func milestoneReporter(req Request, strategy, tool string) func(string) {
	table := MilestonesFor(tool)
	last := -1
	return func(line string) {
		percent, ok := MatchMilestone(table, line)
		if !ok || percent <= last {
			return
		}
		last = percent
		req.report(Progress{Strategy: strategy, Percent: percent, Message: line})
	}
}
