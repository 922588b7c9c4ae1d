package engine

// First generation result codes and entry types.
const (
	V1ErrOK       = 0
	V1ErrIO       = -5
	V1ErrCorrupt  = -52
	V1ErrNoEnt    = -2
	V1ErrExist    = -17
	V1ErrNotDir   = -20
	V1ErrIsDir    = -21
	V1ErrNotEmpty = -39
	V1ErrBadF     = -9
	V1ErrFBig     = -27
	V1ErrInval    = -22
	V1ErrNoSpc    = -28
	V1ErrNoMem    = -12

	V1TypeReg = 0x11
	V1TypeDir = 0x22
)

// Second generation result codes and entry types.
const (
	V2ErrOK          = 0
	V2ErrIO          = -5
	V2ErrCorrupt     = -84
	V2ErrNoEnt       = -2
	V2ErrExist       = -17
	V2ErrNotDir      = -20
	V2ErrIsDir       = -21
	V2ErrNotEmpty    = -39
	V2ErrBadF        = -9
	V2ErrFBig        = -27
	V2ErrInval       = -22
	V2ErrNoSpc       = -28
	V2ErrNoMem       = -12
	V2ErrNoAttr      = -61
	V2ErrNameTooLong = -36

	V2TypeReg = 0x001
	V2TypeDir = 0x002
)

// The adapter translates callback failures into a single I/O code and treats
// zero as success for both generations. Both must agree across generations.
var (
	_ = [1]struct{}{}[V1ErrIO-V2ErrIO]
	_ = [1]struct{}{}[V2ErrIO-V1ErrIO]
	_ = [1]struct{}{}[V1ErrOK-V2ErrOK]
	_ = [1]struct{}{}[V2ErrOK-V1ErrOK]
)
