package engine

import (
	"strconv"
	"strings"
)

// Score is an engine evaluation, signed from the side-to-move's
// perspective. Mate != 0 means mate-in-N and CP is meaningless.
type Score struct {
	CP   int `json:"cp"`
	Mate int `json:"mate,omitempty"`
}

// IsMate reports whether the score is a forced mate.
func (s Score) IsMate() bool { return s.Mate != 0 }

// Info is one parsed "info" record from a running search.
type Info struct {
	Depth      int
	SelDepth   int
	MultiPV    int
	Score      Score
	Nodes      int
	NPS        int
	TimeMS     int
	LowerBound bool
	UpperBound bool
	PV         []string
}

// BestMove is the search-terminating "bestmove" response.
type BestMove struct {
	Move   string
	Ponder string
}

// Option describes one engine option declared during the handshake.
type Option struct {
	Name    string
	Type    string
	Default string
	Min     int
	Max     int
	Vars    []string
}

// ID is the engine identity declared during the handshake.
type ID struct {
	Name   string
	Author string
}

// parseInfo tokenizes an "info" line into its known fields. Unknown fields
// are ignored for forward compatibility. A line missing pv or score is an
// incomplete update and reported as not ok.
func parseInfo(line string) (Info, bool) {
	var info Info
	var hasScore bool

	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return info, false
	}

	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				info.Depth = atoi(parts[i+1])
				i++
			}
		case "seldepth":
			if i+1 < len(parts) {
				info.SelDepth = atoi(parts[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				info.MultiPV = atoi(parts[i+1])
				i++
			}
		case "score":
			if i+2 < len(parts) {
				switch parts[i+1] {
				case "cp":
					info.Score.CP = atoi(parts[i+2])
					hasScore = true
					i += 2
				case "mate":
					info.Score.Mate = atoi(parts[i+2])
					hasScore = true
					i += 2
				}
			}
		case "lowerbound":
			info.LowerBound = true
		case "upperbound":
			info.UpperBound = true
		case "nodes":
			if i+1 < len(parts) {
				info.Nodes = atoi(parts[i+1])
				i++
			}
		case "nps":
			if i+1 < len(parts) {
				info.NPS = atoi(parts[i+1])
				i++
			}
		case "time":
			if i+1 < len(parts) {
				info.TimeMS = atoi(parts[i+1])
				i++
			}
		case "pv":
			info.PV = parts[i+1:]
			i = len(parts)
		}
	}

	if len(info.PV) == 0 || !hasScore {
		return info, false
	}

	// A search reporting a single line omits multipv.
	if info.MultiPV == 0 {
		info.MultiPV = 1
	}

	return info, true
}

// parseBestMove parses a "bestmove <move> [ponder <move>]" line.
func parseBestMove(line string) (BestMove, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "bestmove" {
		return BestMove{}, false
	}

	bm := BestMove{Move: parts[1]}
	for i := 2; i+1 < len(parts); i++ {
		if parts[i] == "ponder" {
			bm.Ponder = parts[i+1]
		}
	}
	return bm, true
}

// parseOption parses an "option name <name> type <type> ..." declaration.
// Option names may contain spaces.
func parseOption(line string) (Option, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "option" {
		return Option{}, false
	}

	var opt Option
	i := 1
	for i < len(parts) {
		switch parts[i] {
		case "name":
			i++
			var name []string
			for i < len(parts) && !isOptionKeyword(parts[i]) {
				name = append(name, parts[i])
				i++
			}
			opt.Name = strings.Join(name, " ")
		case "type":
			i++
			if i < len(parts) {
				opt.Type = parts[i]
				i++
			}
		case "default":
			i++
			var def []string
			for i < len(parts) && !isOptionKeyword(parts[i]) {
				def = append(def, parts[i])
				i++
			}
			opt.Default = strings.Join(def, " ")
		case "min":
			i++
			if i < len(parts) {
				opt.Min = atoi(parts[i])
				i++
			}
		case "max":
			i++
			if i < len(parts) {
				opt.Max = atoi(parts[i])
				i++
			}
		case "var":
			i++
			if i < len(parts) {
				opt.Vars = append(opt.Vars, parts[i])
				i++
			}
		default:
			i++
		}
	}

	if opt.Name == "" {
		return Option{}, false
	}
	return opt, true
}

func isOptionKeyword(s string) bool {
	switch s {
	case "name", "type", "default", "min", "max", "var":
		return true
	}
	return false
}

// parseID parses "id name ..." and "id author ..." lines.
func parseID(line string) (field, value string, ok bool) {
	rest, found := strings.CutPrefix(line, "id ")
	if !found {
		return "", "", false
	}

	field, value, found = strings.Cut(rest, " ")
	if !found || (field != "name" && field != "author") {
		return "", "", false
	}
	return field, strings.TrimSpace(value), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
