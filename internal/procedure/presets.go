package procedure

import "time"

// agitation is the Ilford-style cycle: 10s of inversions every minute.
func agitation() *Substep {
	return &Substep{Title: "Agitation", Active: 10 * time.Second, Rest: 50 * time.Second}
}

// Presets returns the bundled procedures. Each call returns fresh copies.
func Presets() []Procedure {
	return []Procedure{
		{
			ID:       "preset-hp5-ddx",
			Nickname: "HP5+ in DD-X",
			Notes:    "Ilford HP5 Plus at box speed, Ilfotec DD-X 1+4 at 20°C.",
			Steps: []Step{
				{
					Order:       0,
					Title:       "Prepare Chemicals",
					Notes:       "Mix Ilfotec DD-X 1+4 at 20°C. Prepare stop and fixer.",
					AutoAdvance: true,
				},
				{
					Order:    1,
					Title:    "Develop",
					Notes:    "Total 9:00. Initial 30s agitation, then 10s each minute.",
					Duration: Minutes(9),
					Substep:  agitation(),
				},
				{
					Order:       2,
					Title:       "Stop Bath",
					Notes:       "Ilfostop 1+19, 30s continuous agitation.",
					Duration:    Seconds(30),
					AutoAdvance: true,
				},
				{
					Order:    3,
					Title:    "Fix",
					Notes:    "Rapid Fixer 1+4, 5 min. Agitate first 30s, then 10s each minute.",
					Duration: Minutes(5),
					Substep:  agitation(),
				},
				{
					Order:       4,
					Title:       "Wash",
					Notes:       "Running water 5-10 min (Ilford method acceptable).",
					Duration:    Minutes(7),
					AutoAdvance: true,
				},
				{
					Order:       5,
					Title:       "Final Rinse",
					Notes:       "Photo-Flo per instructions. Hang to dry.",
					Duration:    Minutes(1),
					AutoAdvance: true,
				},
			},
		},
	}
}

// Similar reports whether two procedures describe the same recipe: same
// nickname, notes and step count, and per step the same primary duration,
// substep active duration and auto-advance flag. IDs are ignored so a copy
// imported from a file matches its source.
func Similar(a, b Procedure) bool {
	if a.Nickname != b.Nickname || a.Notes != b.Notes {
		return false
	}
	left, right := a.SortedSteps(), b.SortedSteps()
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if !sameDuration(left[i].Duration, right[i].Duration) {
			return false
		}
		if substepActive(left[i]) != substepActive(right[i]) {
			return false
		}
		if left[i].AutoAdvance != right[i].AutoAdvance {
			return false
		}
	}
	return true
}

func sameDuration(a, b *time.Duration) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func substepActive(step Step) time.Duration {
	if step.Substep == nil {
		return -1
	}
	return step.Substep.Active
}
