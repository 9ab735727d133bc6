// Package engine drives a loaded procedure one tick at a time. It owns the
// current step index, the step's primary countdown and its substep cycle, and
// applies navigation, pause/resume and auto-advance. The engine holds no
// locks; callers confine it to a single owner (the TUI update loop or a
// runner.Session goroutine).
package engine
