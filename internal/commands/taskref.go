package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"tasksync/internal/errors"
)

// maxRangeSize caps how many IDs a single "a-b" range may expand to.
const maxRangeSize = 1000

// ErrTaskRefRequired indicates no task ID was provided.
var ErrTaskRefRequired = errors.New("task id required")

// ParseTaskID parses a single task ID argument.
func ParseTaskID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("unexpected argument: %s", args[1])
	}
	return parseID(args[0])
}

// ParseTaskIDs parses task ID arguments.
//
// Each argument is one of:
//  1. an ID ("7")
//  2. a comma-separated list ("1,2,5")
//  3. an inclusive range ("3-6")
//
// Duplicates are dropped; the order of first appearance is kept.
func ParseTaskIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}

	var ids []int64
	seen := make(map[int64]bool)
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, arg := range args {
		for _, tok := range strings.Split(arg, ",") {
			if tok == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(tok, "-")
			if !isRange {
				id, err := parseID(tok)
				if err != nil {
					return nil, err
				}
				add(id)
				continue
			}

			from, err := parseID(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid task id: %s", tok)
			}
			to, err := parseID(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid task id: %s", tok)
			}
			if to < from {
				return nil, fmt.Errorf("invalid range: %s", tok)
			}
			if to-from >= maxRangeSize {
				return nil, fmt.Errorf("range too large: %s (max %d ids)", tok, maxRangeSize)
			}
			for id := from; id <= to; id++ {
				add(id)
			}
		}
	}

	if len(ids) == 0 {
		return nil, ErrTaskRefRequired
	}
	return ids, nil
}

// parseID parses a positive decimal ID.
func parseID(s string) (int64, error) {
	if !isAllDigits(s) {
		return 0, fmt.Errorf("invalid task id: %s", s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid task id: %s", s)
	}
	return id, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
