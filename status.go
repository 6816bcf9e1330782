package bigfile

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// State classifies a tracked bigfile by what the working copy holds.
type State int

const (
	// StateToExpand means the working copy holds only the pointer.
	StateToExpand State = iota
	// StateExpanded means the working copy holds content.
	StateExpanded
	// StateDeleted means the working copy has no file at the path.
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateToExpand:
		return "to_expand"
	case StateExpanded:
		return "expanded"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entry is a tracked bigfile.
type Entry struct {
	Path   string // relative to the repository root
	Hash   Hash
	State  State
	Pushed bool  // the remote store holds Hash
	Size   int64 // working copy size, expanded entries only
}

// Status groups tracked bigfiles by state. Every tracked bigfile appears in
// exactly one list.
type Status struct {
	ToExpand []Entry
	Expanded []Entry
	Deleted  []Entry
}

func (s *Status) add(e Entry) {
	switch e.State {
	case StateToExpand:
		s.ToExpand = append(s.ToExpand, e)
	case StateExpanded:
		s.Expanded = append(s.Expanded, e)
	case StateDeleted:
		s.Deleted = append(s.Deleted, e)
	}
}

// Len returns the number of tracked bigfiles.
func (s *Status) Len() int {
	return len(s.ToExpand) + len(s.Expanded) + len(s.Deleted)
}

// WriteStatus prints s as the status command shows it. Empty groups are omitted.
//
//	== Expanded bigfiles ==
//	   pushed   (4.0 MiB)  fb2f85c8 assets/video.mp4
func WriteStatus(w io.Writer, s *Status) error {
	groups := []struct {
		title   string
		entries []Entry
	}{
		{"Unexpanded bigfiles", s.ToExpand},
		{"Expanded bigfiles", s.Expanded},
		{"Deleted bigfiles", s.Deleted},
	}
	for _, g := range groups {
		if len(g.entries) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "== %s ==\n", g.title); err != nil {
			return err
		}
		for _, e := range g.entries {
			pushed := "unpushed"
			if e.Pushed {
				pushed = "pushed  "
			}
			size := ""
			if e.State == StateExpanded {
				size = "(" + humanize.IBytes(uint64(e.Size)) + ")"
			}
			if _, err := fmt.Fprintf(w, "   %s %-10s %s %s\n", pushed, size, e.Hash.Short(), e.Path); err != nil {
				return err
			}
		}
	}
	return nil
}
