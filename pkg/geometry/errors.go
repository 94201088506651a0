package geometry

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace for geometry errors
const Codespace = "geometry"

var (
	// ErrDegenerateVector is returned when a zero-length vector is normalized
	ErrDegenerateVector = errorsmod.Register(Codespace, 2, "degenerate vector")

	// ErrInvalidEnvelope is returned for envelopes that cannot bound a volume
	ErrInvalidEnvelope = errorsmod.Register(Codespace, 3, "invalid envelope")
)
