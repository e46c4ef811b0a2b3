package inputevent

// Event types and codes from linux/input-event-codes.h that the bridge reads
// or writes.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
)

const (
	SynReport uint16 = 0x00
)

const (
	AbsX        uint16 = 0x00
	AbsY        uint16 = 0x01
	AbsPressure uint16 = 0x18
)

const (
	RelX     uint16 = 0x00
	RelY     uint16 = 0x01
	RelWheel uint16 = 0x08
)

const (
	BtnLeft    uint16 = 0x110
	BtnRight   uint16 = 0x111
	BtnMiddle  uint16 = 0x112
	BtnToolPen uint16 = 0x140
	BtnTouch   uint16 = 0x14a
	BtnStylus  uint16 = 0x14b
)

const (
	KeyEsc uint16 = 0x01
	KeyMax uint16 = 0x2ff
)
