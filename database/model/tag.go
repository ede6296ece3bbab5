package model

import (
	"fmt"
	"strings"
	"time"
)

// TagAssignment is the write-side unit: one entity gets this full tag set
// as a new batch. An empty Tags slice writes no rows, so it leaves the
// previous batch current rather than clearing it.
type TagAssignment struct {
	EntityId string
	Tags     []string
}

func (a *TagAssignment) Validate() error {
	if a.EntityId == "" {
		return fmt.Errorf("model: tag assignment needs an entity id")
	}
	seen := map[string]bool{}
	for _, name := range a.Tags {
		if err := ValidateTagName(name); err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("model: duplicate tag %q in assignment", name)
		}
		seen[name] = true
	}
	return nil
}

// Tag names travel through comma-joined SQL aggregation, so commas are
// rejected along with empties.
func ValidateTagName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("model: empty tag name")
	}
	if strings.Contains(name, ",") {
		return fmt.Errorf("model: tag name cannot contain a comma: %q", name)
	}
	return nil
}

// TagBatch is one historical tag state of an entity: the full set that was
// current from RecordedAt until the next batch.
type TagBatch struct {
	Seq        int64
	RecordedAt time.Time
	Tags       []string
}

// TagQuery selects files by tag membership. IncludeGroups is a disjunction
// of conjunctions: a file matches when it holds every tag of at least one
// group. Exclude then removes files holding any of those tags.
type TagQuery struct {
	IncludeGroups [][]string
	Exclude       []string
}

func (q *TagQuery) Validate() error {
	if len(q.IncludeGroups) == 0 && len(q.Exclude) == 0 {
		return fmt.Errorf("model: tag query needs at least one include group or exclude tag")
	}
	includeSeen := map[string]bool{}
	for _, group := range q.IncludeGroups {
		if len(group) == 0 {
			return fmt.Errorf("model: empty include group")
		}
		groupSeen := map[string]bool{}
		for _, name := range group {
			if err := ValidateTagName(name); err != nil {
				return err
			}
			if groupSeen[name] {
				return fmt.Errorf("model: duplicate tag %q in include group", name)
			}
			groupSeen[name] = true
			includeSeen[name] = true
		}
	}
	excludeSeen := map[string]bool{}
	for _, name := range q.Exclude {
		if err := ValidateTagName(name); err != nil {
			return err
		}
		if excludeSeen[name] {
			return fmt.Errorf("model: duplicate exclude tag %q", name)
		}
		excludeSeen[name] = true
		if includeSeen[name] {
			return fmt.Errorf("model: tag %q cannot be both included and excluded", name)
		}
	}
	return nil
}
