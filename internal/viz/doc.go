// Package viz renders experiment results in the terminal.
//
//   - [MeansChart] and [EffectChart]: asciigraph line charts for CLI output
//   - [Model]: a Bubble Tea viewer that replays a finished experiment step
//     by step
//
// # Key Bindings
//
//	Space - Pause/Resume replay
//	[ ]   - Step backward/forward (pauses)
//	Tab   - Next scenario
//	R     - Rewind to t=0
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
