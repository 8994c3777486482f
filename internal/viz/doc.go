// Package viz draws field passes in the terminal and to PNG.
//
//   - [Model]: Bubble Tea view stepping a simulated pass live
//   - [Canvas]: Braille dot canvas with a north-up [Viewport]
//   - [PathPlot] and [XTEPlot]: gonum/plot figures of a stored run
//   - [ASCIIPlot]: cross-track and steering graphs for the terminal
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Restart the pass
//	+/-   - Change speed
//	S     - Swap the side of the next turn
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
