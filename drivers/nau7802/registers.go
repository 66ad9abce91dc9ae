package nau7802

// Register map (datasheet table 9-1).
const (
	regPUCtrl    byte = 0x00
	regCtrl1     byte = 0x01
	regCtrl2     byte = 0x02
	regI2CCtrl   byte = 0x11
	regADCOutB2  byte = 0x12
	regADCOutB1  byte = 0x13
	regADCOutB0  byte = 0x14
	regADC       byte = 0x15 // shared ADC / OTP window
	regPGA       byte = 0x1B
	regPGAPwr    byte = 0x1C
	regDeviceRev byte = 0x1F
)

// PU_CTRL bits.
const (
	puCtrlRR    byte = 1 << 0 // register reset
	puCtrlPUD   byte = 1 << 1 // power up digital
	puCtrlPUA   byte = 1 << 2 // power up analog
	puCtrlPUR   byte = 1 << 3 // power up ready (read only)
	puCtrlCS    byte = 1 << 4 // cycle start
	puCtrlCR    byte = 1 << 5 // cycle ready (read only)
	puCtrlAVDDS byte = 1 << 7 // AVDD from internal LDO
)

// CTRL1 fields: gain in [2:0], LDO voltage in [5:3].
const (
	ctrl1GainMask byte = 0b0000_0111
	ctrl1LDOMask  byte = 0b0011_1000
	ctrl1LDOShift      = 3
)

// CTRL2 fields: calibration control in [3:0], rate in [6:4], channel in [7].
const (
	ctrl2CalStart byte = 1 << 2
	ctrl2CalError byte = 1 << 3
	ctrl2RateMask byte = 0b0111_0000
	ctrl2RateShft      = 4
	ctrl2Channel2 byte = 1 << 7
)

// PGA_PWR bits.
const (
	pgaPwrCapEn byte = 1 << 7 // 330 pF decoupling cap on channel 2
)

// Gain codes (CTRL1[2:0]): x1..x128 in power-of-two steps.
const (
	gainCode1 byte = iota
	gainCode2
	gainCode4
	gainCode8
	gainCode16
	gainCode32
	gainCode64
	gainCode128
)

// Conversion rate codes (CTRL2[6:4]).
const (
	rate10SPS  byte = 0b000
	rate20SPS  byte = 0b001
	rate40SPS  byte = 0b010
	rate80SPS  byte = 0b011
	rate320SPS byte = 0b111
)

// LDO voltage codes (CTRL1[5:3]).
const (
	ldo4V5 byte = iota
	ldo4V2
	ldo3V9
	ldo3V6
	ldo3V3
	ldo3V0
	ldo2V7
	ldo2V4
)
