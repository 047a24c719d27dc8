package frame

import "fmt"

// Convert repacks src into the 3 channel layout dst, dropping any alpha or
// padding channel. The result never aliases src.
func Convert(src *Frame, dst Layout) (*Frame, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if dst.Channels() != 3 {
		return nil, fmt.Errorf("%w: target layout %v is not 3 channel", ErrFormat, dst)
	}

	out := New(src.Width, src.Height, dst)
	sr, sg, sb := src.Layout.offsets()
	dr, dg, db := dst.offsets()
	step := src.Layout.Channels()

	in := src.Pix
	j := 0
	for i := 0; i < len(in); i += step {
		out.Pix[j+dr] = in[i+sr]
		out.Pix[j+dg] = in[i+sg]
		out.Pix[j+db] = in[i+sb]
		j += 3
	}
	return out, nil
}
