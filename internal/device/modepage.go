package device

import (
	"sort"

	"github.com/s2p-go/s2pd/internal/binutil"
	"github.com/s2p-go/s2pd/internal/scsiproto"
)

// silentlyAcceptedPages are accepted by MODE SELECT without content
// validation, per spec.md §4.3 rule 2.
var silentlyAcceptedPages = map[byte]bool{0x01: true, 0x07: true, 0x08: true}

const formatPageCode = 0x03

// ModePageDevice adds MODE SENSE/SELECT on top of PrimaryDevice, per
// spec.md §4.3. It is composed rather than subclassed: Disk (C7) populates
// Pages and SupportedBlockSizes at construction.
type ModePageDevice struct {
	*PrimaryDevice

	// Pages maps page code to the page's data bytes, NOT including the
	// 2-byte page header (code + length); the header is synthesized.
	Pages map[byte][]byte

	BlockCount          uint32
	BlockSize           uint32
	SupportedBlockSizes map[uint32]bool

	// CustomOverride, if set, looks up a vendor/product-specific override
	// for a page code. A present-but-empty slice means "suppress this
	// page", matching the custom mode-page table in spec.md §3/§6.
	CustomOverride func(pageCode byte) (data []byte, present bool)
}

func NewModePageDevice(p *PrimaryDevice) *ModePageDevice {
	m := &ModePageDevice{PrimaryDevice: p, Pages: map[byte][]byte{}, SupportedBlockSizes: map[uint32]bool{}}
	m.AddCommand(scsiproto.OpModeSense6, m.modeSense6)
	m.AddCommand(scsiproto.OpModeSense10, m.modeSense10)
	m.AddCommand(scsiproto.OpModeSelect6, m.modeSelect6)
	m.AddCommand(scsiproto.OpModeSelect10, m.modeSelect10)
	return m
}

func (m *ModePageDevice) pageBytes(code byte) ([]byte, bool) {
	if m.CustomOverride != nil {
		if data, ok := m.CustomOverride(code); ok {
			return data, len(data) > 0
		}
	}
	data, ok := m.Pages[code]
	return data, ok
}

// orderedPageCodes returns page codes in ascending order with page 0 moved
// to the end, per spec.md §4.3's ordering rule for "return all pages".
func (m *ModePageDevice) orderedPageCodes() []byte {
	codes := make([]byte, 0, len(m.Pages))
	hasZero := false
	for c := range m.Pages {
		if c == 0 {
			hasZero = true
			continue
		}
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	if hasZero {
		codes = append(codes, 0)
	}
	return codes
}

func (m *ModePageDevice) buildPageList(requested byte) []byte {
	var out []byte
	emit := func(code byte) {
		data, ok := m.pageBytes(code)
		if !ok {
			return
		}
		out = append(out, code&0x3f, byte(len(data)))
		out = append(out, data...)
	}
	if requested == 0x3f {
		for _, c := range m.orderedPageCodes() {
			emit(c)
		}
		return out
	}
	emit(requested)
	return out
}

func (m *ModePageDevice) blockDescriptor() []byte {
	buf := make([]byte, 8)
	binutil.PutUint32(buf[0:4], m.BlockCount)
	binutil.PutUint32(buf[4:8], m.BlockSize)
	return buf
}

func (m *ModePageDevice) modeSense6(d *PrimaryDevice, ctx *Context) error {
	cdb := ctx.CDB
	dbd := cdb[1]&0x08 != 0
	pageCode := cdb[2] & 0x3f
	allocLen := int(cdb[4])

	pages := m.buildPageList(pageCode)
	descLen := 0
	var desc []byte
	if !dbd {
		desc = m.blockDescriptor()
		descLen = len(desc)
	}

	buf := make([]byte, 4+descLen+len(pages))
	buf[0] = byte(3 + descLen + len(pages)) // mode data length: bytes following this field
	buf[3] = byte(descLen)
	copy(buf[4:4+descLen], desc)
	copy(buf[4+descLen:], pages)

	ctx.DataIn = truncate(buf, allocLen)
	return nil
}

func (m *ModePageDevice) modeSense10(d *PrimaryDevice, ctx *Context) error {
	cdb := ctx.CDB
	dbd := cdb[1]&0x08 != 0
	pageCode := cdb[2] & 0x3f
	allocLen := int(binutil.Uint16(cdb[7:9]))

	pages := m.buildPageList(pageCode)
	descLen := 0
	var desc []byte
	if !dbd {
		desc = m.blockDescriptor()
		descLen = len(desc)
	}

	buf := make([]byte, 8+descLen+len(pages))
	binutil.PutUint16(buf[0:2], uint16(6+descLen+len(pages)))
	binutil.PutUint16(buf[6:8], uint16(descLen))
	copy(buf[8:8+descLen], desc)
	copy(buf[8+descLen:], pages)

	ctx.DataIn = truncate(buf, allocLen)
	return nil
}

func truncate(buf []byte, n int) []byte {
	if n < 0 || n > len(buf) {
		return buf
	}
	return buf[:n]
}

// verifyBlockSizeChange implements spec.md §4.3's "non-zero and divisible
// by 4" rule for temporary block-descriptor overrides, and additionally
// checks the supported-set membership for permanent changes.
func (m *ModePageDevice) verifyBlockSizeChange(newSize uint32, temporary bool) bool {
	if newSize == 0 || newSize%4 != 0 {
		return false
	}
	if temporary {
		return true
	}
	return m.SupportedBlockSizes[newSize]
}

func (m *ModePageDevice) modeSelect6(d *PrimaryDevice, ctx *Context) error {
	return m.modeSelect(ctx.CDB[1], ctx.DataOut, 4)
}

func (m *ModePageDevice) modeSelect10(d *PrimaryDevice, ctx *Context) error {
	return m.modeSelect(ctx.CDB[1], ctx.DataOut, 8)
}

func (m *ModePageDevice) modeSelect(cdbByte1 byte, data []byte, headerLen int) error {
	pf := cdbByte1&0x10 != 0
	if !pf {
		// Apple HD SC Setup concession, kept per spec.md §9 open question.
		return nil
	}
	if len(data) < headerLen {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscParameterListLengthError)
	}

	var descLen int
	if headerLen == 4 {
		descLen = int(data[3])
	} else {
		descLen = int(binutil.Uint16(data[6:8]))
	}
	off := headerLen
	if descLen > 0 {
		if len(data) < off+descLen {
			return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscParameterListLengthError)
		}
		desc := data[off : off+descLen]
		if len(desc) >= 8 {
			newSize := binutil.Uint32(desc[4:8])
			if newSize != m.BlockSize {
				if !m.verifyBlockSizeChange(newSize, true) {
					return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInParameterList)
				}
				m.BlockSize = newSize
			}
			m.BlockCount = binutil.Uint32(desc[0:4])
		}
		off += descLen
	}

	for off < len(data) {
		if off+2 > len(data) {
			break
		}
		code := data[off] & 0x3f
		size := int(data[off+1])
		if off+2+size > len(data) {
			return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscParameterListLengthError)
		}
		pageData := data[off+2 : off+2+size]

		switch {
		case silentlyAcceptedPages[code]:
			// accepted without content validation, per spec.md §4.3 rule 2,
			// once its size matches the registered page (rule 1).
			existing, ok := m.Pages[code]
			if !ok || size != len(existing) {
				return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInParameterList)
			}
			m.Pages[code] = append([]byte{}, pageData...)
		case code == formatPageCode:
			if err := m.applyFormatPage(pageData); err != nil {
				return err
			}
		default:
			existing, ok := m.Pages[code]
			if !ok || size != len(existing) {
				return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInParameterList)
			}
			m.Pages[code] = append([]byte{}, pageData...)
		}
		off += 2 + size
	}
	return nil
}

func (m *ModePageDevice) applyFormatPage(pageData []byte) error {
	existing, ok := m.Pages[formatPageCode]
	if !ok || len(pageData) != len(existing) {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInParameterList)
	}
	if len(pageData) < 12+2 {
		return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInParameterList)
	}
	newSize := uint32(binutil.Uint16(pageData[12:14]))
	if newSize != m.BlockSize {
		if !m.verifyBlockSizeChange(newSize, false) {
			return scsiproto.NewException(scsiproto.IllegalRequest, scsiproto.AscInvalidFieldInParameterList)
		}
		m.BlockSize = newSize
	}
	m.Pages[formatPageCode] = append([]byte{}, pageData...)
	return nil
}
