package gesture

// UnpackParam splits a 32-bit binding parameter into its motion deltas.
// dx lives in the low 16 bits and dy in the high 16 bits, both two's complement.
func UnpackParam(p uint32) (dx, dy int16) {
	return int16(p & 0xFFFF), int16((p >> 16) & 0xFFFF)
}

// PackParam is the inverse of UnpackParam.
func PackParam(dx, dy int16) uint32 {
	return uint32(uint16(dx)) | uint32(uint16(dy))<<16
}
