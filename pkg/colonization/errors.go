package colonization

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// Codespace is the error codespace for the growth engine
const Codespace = "colonization"

var (
	// ErrInvalidOptions is returned for out-of-range engine options
	ErrInvalidOptions = errorsmod.Register(Codespace, 2, "invalid options")

	// ErrUnboundedStem is returned when stem growth exceeds MaxStemSteps
	ErrUnboundedStem = errorsmod.Register(Codespace, 3, "stem never reached an attractor")

	// ErrInvalidEnvelope aliases the geometry error so callers need one import
	ErrInvalidEnvelope = geometry.ErrInvalidEnvelope
)
