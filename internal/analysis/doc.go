// Package analysis looks for periodic weave in a recorded field pass.
//
// A tuned loop settles onto the line and stays there. Too short a
// look-ahead or too high a gain shows up instead as a steady oscillation
// of the steering command, visible as a peak in its spectrum:
//
//	w, err := analysis.DetectWeave(samples, dt)
//	if w.Steer.Hz > 0 && w.Steer.Amplitude > 1 {
//	    // steering hunts at w.Steer.Hz
//	}
package analysis
