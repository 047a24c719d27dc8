package rdisplay

import "fmt"

// kbinani/screenshot numbers displays from 0, the same as Screens does.
const backendIndexBase = 0

// backendIndex maps a Screens index to the number the capture backend expects
func backendIndex(ix, active int) (int, error) {
	if ix < 0 || ix >= active {
		return 0, fmt.Errorf("%w: display %d out of range (%d active)", ErrDeviceOpen, ix, active)
	}
	return ix + backendIndexBase, nil
}
