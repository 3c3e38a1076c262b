package quest

import (
	"fmt"

	"github.com/seliria/questfile/pkg/bytecode"
)

// Episode identifies which game episode a quest plays in.
type Episode uint8

const (
	EpisodeI  Episode = 1
	EpisodeII Episode = 2
	EpisodeIV Episode = 4
)

func (e Episode) String() string {
	switch e {
	case EpisodeI:
		return "Episode I"
	case EpisodeII:
		return "Episode II"
	case EpisodeIV:
		return "Episode IV"
	}
	return fmt.Sprintf("Episode(%d)", uint8(e))
}

// episodeFromArg maps a set_episode argument to the episode it selects.
func episodeFromArg(v int32) (Episode, bool) {
	switch v {
	case 0:
		return EpisodeI, true
	case 1:
		return EpisodeII, true
	case 2:
		return EpisodeIV, true
	}
	return EpisodeI, false
}

// EpisodeArg returns the set_episode argument encoding the episode.
func EpisodeArg(e Episode) int32 {
	switch e {
	case EpisodeII:
		return 1
	case EpisodeIV:
		return 2
	}
	return 0
}

const (
	codeSetEpisode   = 0xF8BC
	codeMapDesignate = 0xF8E7
	entrypointLabel  = 0
)

// entrypointSegment finds the instruction segment the game runs first,
// the one labeled 0.
func entrypointSegment(segments []bytecode.Segment) *bytecode.Segment {
	for i := range segments {
		for _, label := range segments[i].Labels {
			if label == entrypointLabel {
				if segments[i].Type != bytecode.SegmentInstructions {
					return nil
				}
				return &segments[i]
			}
		}
	}
	return nil
}

// extractEpisode reads the episode from the first set_episode in the
// quest entrypoint. Quests without one run in episode I; the game
// assumes the same.
func extractEpisode(segments []bytecode.Segment) (Episode, []string) {
	seg := entrypointSegment(segments)
	if seg == nil {
		return EpisodeI, []string{"no quest entrypoint, assuming episode I"}
	}
	for i := range seg.Instructions {
		in := &seg.Instructions[i]
		if in.Op.Code != codeSetEpisode {
			continue
		}
		ep, ok := episodeFromArg(in.Args[0].Value)
		if !ok {
			return EpisodeI, []string{fmt.Sprintf("set_episode with unknown argument %d, assuming episode I", in.Args[0].Value)}
		}
		return ep, nil
	}
	return EpisodeI, []string{"no set_episode in the quest entrypoint, assuming episode I"}
}

// extractMapDesignations collects the map variant per area from the
// bb_map_designate calls in the entrypoint. Later calls for the same
// area overwrite earlier ones, matching how the game applies them.
func extractMapDesignations(segments []bytecode.Segment) map[uint32]uint32 {
	designations := make(map[uint32]uint32)
	seg := entrypointSegment(segments)
	if seg == nil {
		return designations
	}
	for i := range seg.Instructions {
		in := &seg.Instructions[i]
		if in.Op.Code != codeMapDesignate {
			continue
		}
		designations[uint32(in.Args[0].Value)] = uint32(in.Args[2].Value)
	}
	return designations
}
