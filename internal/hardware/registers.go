package hardware

// Register addresses of the UPM6720 charge pump.
const (
	RegBatOVP     Register = 0x00 // [7]=BAT_OVP_DIS, [6:0]=BAT_OVP threshold
	RegBatOVPAlm  Register = 0x01 // [7]=BAT_OVP_ALM_DIS, [6:0]=threshold
	RegBatOCP     Register = 0x02 // [7]=BAT_OCP_DIS, [6:0]=BAT_OCP threshold
	RegBatOCPAlm  Register = 0x03 // [7]=BAT_OCP_ALM_DIS, [6:0]=threshold
	RegBatUCPAlm  Register = 0x04 // [7]=BAT_UCP_ALM_DIS, [6:0]=threshold
	RegBusUCPRCP  Register = 0x05 // UCP/RCP enables + thresholds, VBUS_ERRHI_DIS
	RegBusOVP     Register = 0x06 // [6:0]=BUS_OVP threshold (topology dependent)
	RegBusOVPAlm  Register = 0x07 // [7]=BUS_OVP_ALM_DIS, [6:0]=threshold
	RegBusOCP     Register = 0x08 // [4:0]=BUS_OCP threshold (topology dependent)
	RegBusOCPAlm  Register = 0x09 // [7]=BUS_OCP_ALM_DIS, [4:0]=threshold
	RegTempCtrl   Register = 0x0A // thermal fault enables, [1:0]=TDIE_FLT
	RegTdieAlm    Register = 0x0B // TDIE_ALM threshold, 0.5°C steps from 25°C
	RegTSBusFlt   Register = 0x0C // TSBUS fault threshold, % of REGN
	RegTSBatFlt   Register = 0x0D // TSBAT fault threshold, % of REGN
	RegVacCtrl    Register = 0x0E // [7:5]=AC1_OVP, [4:2]=AC2_OVP, pull-downs
	RegChgCtrl    Register = 0x0F // REG_RST, CHG_EN, VBUS pull-down
	RegWatchdog   Register = 0x10 // [2]=WATCHDOG_DIS, [1:0]=WATCHDOG
	RegSSRsns     Register = 0x11 // [7]=RSNS, [6:4]=SS_TIMEOUT
	RegVoutCtrl   Register = 0x12 // [7]=VOUT_OVP_DIS, [6:5]=VOUT_OVP, [1:0]=MS
	RegStat1      Register = 0x13 // battery / bus OVP-OCP status
	RegStat2      Register = 0x14 // bus OCP/UCP/RCP, CFLY short status
	RegStat3      Register = 0x15 // VAC OVP, presence, ACRB config status
	RegStat4      Register = 0x16 // ADC done, SS timeout, thermal, watchdog status
	RegStat5      Register = 0x17 // REGN good, converter active, VBUS error-high
	RegFlag1      Register = 0x18 // latched (read-to-clear) mirror of RegStat1
	RegFlag5      Register = 0x1C // latched mirror of RegStat5
	RegMask1      Register = 0x1D // interrupt mask mirror of RegStat1
	RegMask2      Register = 0x1E
	RegMask3      Register = 0x1F
	RegMask4      Register = 0x20
	RegMask5      Register = 0x21
	RegDeviceInfo Register = 0x22 // [3:0]=DEVICE_ID
	RegAdcCtrl0   Register = 0x23 // ADC enable, rate, averaging, IBUS/VBUS disable
	RegAdcCtrl1   Register = 0x24 // per-channel disable bits VAC1..TDIE
	RegAdcBase    Register = 0x25 // IBUS_ADC high byte; channels follow at stride 2
	RegAdcLast    Register = 0x38 // TDIE_ADC low byte
	RegSurge0     Register = 0xBE // surge protection (vendor test page)
	RegSurge1     Register = 0xC3
)

// Protection enable/disable bits (1 = protection disabled).
const (
	BatOVPDisMask    byte = 0x80 // RegBatOVP
	BatOCPDisMask    byte = 0x80 // RegBatOCP
	AlmDisMask       byte = 0x80 // RegBatOVPAlm, RegBatOCPAlm, RegBatUCPAlm, RegBusOVPAlm, RegBusOCPAlm
	BusUCPDisMask    byte = 0x80 // RegBusUCPRCP
	BusUCPMask       byte = 0x40
	BusRCPDisMask    byte = 0x20
	BusRCPMask       byte = 0x10
	VbusErrHiDisMask byte = 0x08
	TSBusFltDisMask  byte = 0x80 // RegTempCtrl
	TSBatFltDisMask  byte = 0x40
	TdieFltDisMask   byte = 0x20
	TdieAlmDisMask   byte = 0x10
	TdieFltMask      byte = 0x03
	VoutOVPDisMask   byte = 0x80 // RegVoutCtrl
	VoutOVPMask      byte = 0x60
	MSMask           byte = 0x03
	AC1OVPMask       byte = 0xE0 // RegVacCtrl
	AC2OVPMask       byte = 0x1C
	Vac1PDEnMask     byte = 0x02
	Vac2PDEnMask     byte = 0x01
	RegRstMask       byte = 0x80 // RegChgCtrl
	ChgEnMask        byte = 0x10
	VbusPDEnMask     byte = 0x04
	WatchdogDisMask  byte = 0x04 // RegWatchdog
	WatchdogMask     byte = 0x03
	RsnsMask         byte = 0x80 // RegSSRsns
	SSTimeoutMask    byte = 0x70
	DeviceIDMask     byte = 0x0F // RegDeviceInfo
)

// ADC control bits.
const (
	AdcEnMask       byte = 0x80 // RegAdcCtrl0
	AdcRateMask     byte = 0x40 // 1 = one-shot, 0 = continuous
	AdcAvgMask      byte = 0x20
	AdcAvgInitMask  byte = 0x10
	AdcSampleMask   byte = 0x0C
	AdcSampleShift       = 2
	IbusAdcDisMask  byte = 0x02
	VbusAdcDisMask  byte = 0x01
	Vac1AdcDisMask  byte = 0x80 // RegAdcCtrl1
	Vac2AdcDisMask  byte = 0x40
	VoutAdcDisMask  byte = 0x20
	VbatAdcDisMask  byte = 0x10
	IbatAdcDisMask  byte = 0x08
	TSBusAdcDisMask byte = 0x04
	TSBatAdcDisMask byte = 0x02
	TdieAdcDisMask  byte = 0x01
)

// Status register bits. The flag (0x18..0x1C) and mask (0x1D..0x21)
// registers use the same layout as the status register they mirror.
const (
	// RegStat1
	BatOVPStat    byte = 0x80
	BatOVPAlmStat byte = 0x40
	VoutOVPStat   byte = 0x20
	BatOCPStat    byte = 0x10
	BatOCPAlmStat byte = 0x08
	BatUCPAlmStat byte = 0x04
	BusOVPStat    byte = 0x02
	BusOVPAlmStat byte = 0x01

	// RegStat2
	BusOCPStat    byte = 0x80
	BusOCPAlmStat byte = 0x40
	BusUCPStat    byte = 0x20
	BusRCPStat    byte = 0x10
	CflyShortStat byte = 0x04

	// RegStat3
	Vac1OVPStat     byte = 0x80
	Vac2OVPStat     byte = 0x40
	VoutPresentStat byte = 0x20
	Vac1PresentStat byte = 0x10
	Vac2PresentStat byte = 0x08
	VbusPresentStat byte = 0x04
	ACRB1ConfigStat byte = 0x02
	ACRB2ConfigStat byte = 0x01

	// RegStat4
	AdcDoneStat       byte = 0x80
	SSTimeoutStat     byte = 0x40
	TSBusTSBatAlmStat byte = 0x20
	TSBusFltStat      byte = 0x10
	TSBatFltStat      byte = 0x08
	TdieFltStat       byte = 0x04
	TdieAlmStat       byte = 0x02
	WDStat            byte = 0x01

	// RegStat5
	RegnGoodStat   byte = 0x80
	ConvActiveStat byte = 0x40
	VbusErrHiStat  byte = 0x20
)

// Operating-mode field values in RegVoutCtrl[1:0].
const (
	MSStandalone byte = 0x00
	MSPrimary    byte = 0x01
	MSSecondary  byte = 0x02
)

// Surge protection register values written around charge enable.
const (
	SurgeOn0  byte = 0x6E
	SurgeOn1  byte = 0x80
	SurgeOff0 byte = 0x00
)

// DumpFirst and DumpLast bound the register window that is safe to dump.
const (
	DumpFirst Register = 0x00
	DumpLast  Register = RegAdcLast
)
