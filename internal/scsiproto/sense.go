package scsiproto

import "fmt"

// SenseKey is the top-level SCSI error classification (REQUEST SENSE byte 2
// low nibble).
type SenseKey byte

const (
	NoSense        SenseKey = 0x00
	RecoveredError SenseKey = 0x01
	NotReady       SenseKey = 0x02
	MediumError    SenseKey = 0x03
	HardwareError  SenseKey = 0x04
	IllegalRequest SenseKey = 0x05
	UnitAttention  SenseKey = 0x06
	DataProtect    SenseKey = 0x07
	BlankCheck     SenseKey = 0x08
	AbortedCommand SenseKey = 0x0b
	VolumeOverflow SenseKey = 0x0d
	Miscompare     SenseKey = 0x0e
)

func (k SenseKey) String() string {
	switch k {
	case NoSense:
		return "no sense"
	case RecoveredError:
		return "recovered error"
	case NotReady:
		return "not ready"
	case MediumError:
		return "medium error"
	case HardwareError:
		return "hardware error"
	case IllegalRequest:
		return "illegal request"
	case UnitAttention:
		return "unit attention"
	case DataProtect:
		return "data protect"
	case BlankCheck:
		return "blank check"
	case AbortedCommand:
		return "aborted command"
	case VolumeOverflow:
		return "volume overflow"
	case Miscompare:
		return "miscompare"
	default:
		return fmt.Sprintf("sense key 0x%02x", byte(k))
	}
}

// ASC is the additional sense code (and ASCQ packed in the low byte).
type ASC uint16

const (
	AscNoAdditionalSense           ASC = 0x0000
	AscWriteError                  ASC = 0x0c00
	AscReadError                   ASC = 0x1100
	AscCauseNotReportable          ASC = 0x0400
	AscMediumNotPresent            ASC = 0x3a00
	AscLogicalUnitNotConfigured    ASC = 0x3e00
	AscLBAOutOfRange               ASC = 0x2100
	AscInvalidFieldInCDB           ASC = 0x2400
	AscLogicalUnitNotSupported     ASC = 0x2500
	AscInvalidFieldInParameterList ASC = 0x2600
	AscParameterListLengthError    ASC = 0x1a00
	AscInvalidOpCode               ASC = 0x2000
	AscSavingParametersUnsupported ASC = 0x3900
	AscWriteProtected              ASC = 0x2700
	AscNotReadyToReadyChange       ASC = 0x2800
	AscPowerOnReset                ASC = 0x2900
	AscMiscompareDuringVerify      ASC = 0x1d00
	AscMediumRemovalPrevented      ASC = 0x5302

	// Vendor-specific codes the original reserves above 0xf0 for
	// non-storage pseudo-devices.
	AscPrinterNothingToPrint ASC = 0xf400
	AscPrinterPrintingFailed ASC = 0xf500
)

// Exception is a SCSI command-layer error: a (sense key, ASC) pair that the
// controller translates into CHECK CONDITION status and REQUEST SENSE data.
// It is never fatal to the process — see spec section 7 error handling.
type Exception struct {
	Key SenseKey
	Asc ASC
}

func NewException(key SenseKey, asc ASC) *Exception {
	return &Exception{Key: key, Asc: asc}
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s (asc 0x%04x)", e.Key, uint16(e.Asc))
}

// SenseTriple is the (key, asc, ascq) returned by REQUEST SENSE. ascq is the
// low byte of Asc; kept split to match the wire layout in BuildSenseData.
type SenseTriple struct {
	Key  SenseKey
	Asc  byte
	Ascq byte
}

func TripleFromException(e *Exception) SenseTriple {
	return SenseTriple{Key: e.Key, Asc: byte(e.Asc >> 8), Ascq: byte(e.Asc)}
}

// Status is the one-byte SCSI command status, returned at the status phase.
type Status byte

const (
	StatusGood                 Status = 0x00
	StatusCheckCondition       Status = 0x02
	StatusConditionMet         Status = 0x04
	StatusBusy                 Status = 0x08
	StatusReservationConflict  Status = 0x18
	StatusTaskSetFull          Status = 0x28
	StatusACAActive            Status = 0x30
	StatusTaskAborted          Status = 0x40
)

// BuildSenseData writes descriptor-format (0x72) or fixed-format (0x70)
// sense data for REQUEST SENSE, mirroring the teacher's BuildSenseData.
// descriptorFormat selects the newer layout; this daemon always uses fixed
// format for SCSI-2 compatibility but both are implemented for completeness.
func BuildSenseData(t SenseTriple, information uint32, valid bool, descriptorFormat bool) []byte {
	if descriptorFormat {
		buf := make([]byte, 8)
		buf[0] = 0x72
		buf[1] = byte(t.Key)
		buf[2] = t.Asc
		buf[3] = t.Ascq
		return buf
	}
	buf := make([]byte, 18)
	buf[0] = 0x70
	if valid {
		buf[0] |= 0x80
	}
	buf[2] = byte(t.Key)
	buf[7] = byte(len(buf) - 8)
	buf[12] = t.Asc
	buf[13] = t.Ascq
	buf[3] = byte(information >> 24)
	buf[4] = byte(information >> 16)
	buf[5] = byte(information >> 8)
	buf[6] = byte(information)
	return buf
}
