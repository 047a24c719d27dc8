package encoders

import (
	"github.com/Eyevinn/mp4ff/avc"
)

var startCode = []byte{0, 0, 0, 1}

// SplitAccessUnits cuts an Annex-B byte stream holding several pictures into
// one Annex-B slice per picture. A picture starts at an access unit delimiter,
// a parameter set or SEI following a slice, or a slice whose
// first_mb_in_slice is 0.
func SplitAccessUnits(stream []byte) [][]byte {
	nalus := avc.ExtractNalusFromByteStream(stream)
	if len(nalus) == 0 {
		return nil
	}

	var (
		units   [][]byte
		current []byte
		hasVCL  bool
	)
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if startsAccessUnit(nalu, hasVCL) && len(current) > 0 {
			units = append(units, current)
			current, hasVCL = nil, false
		}
		current = append(current, startCode...)
		current = append(current, nalu...)
		if isVCL(avc.GetNaluType(nalu[0])) {
			hasVCL = true
		}
	}
	if len(current) > 0 {
		units = append(units, current)
	}
	return units
}

// HasPicture reports whether an Annex-B access unit carries slice data.
// Parameter sets or SEI on their own do not make a frame.
func HasPicture(au []byte) bool {
	for _, nalu := range avc.ExtractNalusFromByteStream(au) {
		if len(nalu) > 0 && isVCL(avc.GetNaluType(nalu[0])) {
			return true
		}
	}
	return false
}

func isVCL(t avc.NaluType) bool {
	return t == avc.NALU_NON_IDR || t == avc.NALU_IDR
}

func startsAccessUnit(nalu []byte, hasVCL bool) bool {
	t := avc.GetNaluType(nalu[0])
	switch {
	case t == avc.NALU_AUD:
		return true
	case t == avc.NALU_SPS || t == avc.NALU_PPS || t == avc.NALU_SEI:
		return hasVCL
	case isVCL(t):
		// first_mb_in_slice is ue(v) coded, a leading 1 bit means 0
		return hasVCL && len(nalu) > 1 && nalu[1]&0x80 != 0
	}
	return false
}
