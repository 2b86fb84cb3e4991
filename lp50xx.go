// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// The LP5009 and LP5012 are 9 and 12 output I2C RGB LED drivers. Outputs are
// grouped in threes into "LEDs" (3 on the LP5009, 4 on the LP5012), each with
// its own 8-bit brightness on top of the per-output 8-bit PWM color value.
// LEDs can instead be assigned to a bank, where a single brightness and color
// apply to every member at once.
//
// All devices on a bus additionally answer on a shared broadcast address,
// which allows configuring several chips with a single transaction. Most
// operations therefore take an AddressType selecting the device's own address
// or the broadcast address.
//
// The chip's EN pin is optional; when it is wired to a GPIO the driver uses
// it for power-up and hardware reset sequencing.
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/lp5012.pdf
package lp50xx

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

const (
	// DefaultAddress is the chip's address with ADDR0/ADDR1 grounded.
	DefaultAddress uint16 = 0x14
	// BroadcastAddress is answered by every LP50xx on the bus.
	BroadcastAddress uint16 = 0x0C
)

// LEDConfiguration describes which chip output each color channel of an LED
// is wired to. SetLEDColor and SetBankColor use it to order the three bytes
// of a color write.
type LEDConfiguration byte

const (
	RGB LEDConfiguration = iota
	GRB
	BGR
	RBG
	GBR
	BRG
)

// AddressType selects between the device's own I2C address and the shared
// broadcast address for a single operation.
type AddressType byte

const (
	Normal AddressType = iota
	Broadcast
)

// Config holds the DEVICE_CONFIG1 flag bits. Values can be combined with
// bitwise OR, e.g.
// Configure(LOG_SCALE_ON|POWER_SAVE_ON|AUTO_INC_ON|PWM_DITHERING_ON, Normal).
type Config byte

const (
	LED_GLOBAL_ON     Config = 0 << 0
	LED_GLOBAL_OFF    Config = 1 << 0
	MAX_CURRENT_25MA  Config = 0 << 1
	MAX_CURRENT_35MA  Config = 1 << 1
	PWM_DITHERING_OFF Config = 0 << 2
	PWM_DITHERING_ON  Config = 1 << 2
	AUTO_INC_OFF      Config = 0 << 3
	AUTO_INC_ON       Config = 1 << 3
	POWER_SAVE_OFF    Config = 0 << 4
	POWER_SAVE_ON     Config = 1 << 4
	LOG_SCALE_OFF     Config = 0 << 5
	LOG_SCALE_ON      Config = 1 << 5
)

// LED bits for SetBankControl, e.g. SetBankControl(LED_0|LED_1, Normal).
// LED_3 exists on the LP5012 only.
const (
	LED_0 = 1 << iota
	LED_1
	LED_2
	LED_3
)

// Register offsets from the datasheet.
const (
	_DEVICE_CONFIG0 byte = iota // Chip_EN
	_DEVICE_CONFIG1             // Log_scale, Power_save, Auto_inc, PWM_dithering, Max_current_option, LED_Global_off
	_LED_CONFIG0                // BANK membership bits
	_BANK_BRIGHTNESS
	_BANK_A_COLOR
	_BANK_B_COLOR
	_BANK_C_COLOR
	_LED0_BRIGHTNESS // LED1..LED7 brightness at 0x08..0x0E
)

const (
	_OUT0_COLOR      byte = 0x0F // OUT1..OUT23 color at 0x10..0x26
	_RESET_REGISTERS byte = 0x27
	_CHIP_EN         byte = 1 << 6
)

const (
	// Delay between EN rising and the chip accepting I2C transactions.
	_POWER_UP_DELAY = 500 * time.Microsecond
	// How long EN is held low during a hardware reset.
	_RESET_HOLD = 10 * time.Millisecond
)

// Which of (r, g, b) lands in each of the three consecutive color registers,
// indexed by LEDConfiguration.
var channelOrder = [...][3]byte{
	RGB: {0, 1, 2},
	GRB: {1, 0, 2},
	BGR: {2, 1, 0},
	RBG: {0, 2, 1},
	GBR: {1, 2, 0},
	BRG: {2, 0, 1},
}

// Opts holds the optional wiring description of the device.
type Opts struct {
	// Order of the color channels on the outputs. The zero value is RGB.
	Order LEDConfiguration
	// Enable is the GPIO driving the chip's EN pin, or nil if EN is
	// hard-wired high.
	Enable gpio.PinOut
}

// Dev represents an LP5009 or LP5012 LED driver.
type Dev struct {
	bus       i2c.Bus
	addr      uint16
	broadcast uint16
	enable    gpio.PinOut
	order     LEDConfiguration
}

var _ conn.Resource = &Dev{}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("lp50xx: %w", err)
}

// New returns a handle to an LP50xx on the given bus. No bus transaction is
// performed; call Begin to power up and enable the chip. If opts provides an
// enable pin it is configured as an output and driven low, matching the
// chip's unpowered state.
func New(bus i2c.Bus, address uint16, opts *Opts) (*Dev, error) {
	d := &Dev{
		bus:       bus,
		addr:      address,
		broadcast: BroadcastAddress,
	}
	if opts != nil {
		d.order = opts.Order
		if opts.Enable != nil {
			if err := opts.Enable.Out(gpio.Low); err != nil {
				return nil, wrap(err)
			}
			d.enable = opts.Enable
		}
	}
	return d, nil
}

// Begin powers up the device and sets the Chip_EN bit. If an enable pin is
// configured it is asserted first, followed by the chip's power-up delay.
//
// The bus itself must already be open; register operations issued before
// Begin, or after the enable pin is deasserted, are undefined.
func (d *Dev) Begin() error {
	if d.enable != nil {
		if err := d.enable.Out(gpio.High); err != nil {
			return wrap(err)
		}
		time.Sleep(_POWER_UP_DELAY)
	}
	return wrap(d.writeByte(d.addr, _DEVICE_CONFIG0, _CHIP_EN))
}

// Reset returns the device to its power-on state. With an enable pin
// configured the chip is power-cycled first, which also clears its analog
// state; the register-level reset and Chip_EN rewrite happen in both cases.
func (d *Dev) Reset() error {
	if d.enable != nil {
		if err := d.enable.Out(gpio.Low); err != nil {
			return wrap(err)
		}
		time.Sleep(_RESET_HOLD)
		if err := d.enable.Out(gpio.High); err != nil {
			return wrap(err)
		}
		time.Sleep(_POWER_UP_DELAY)
	}
	if err := d.ResetRegisters(Normal); err != nil {
		return err
	}
	return wrap(d.writeByte(d.addr, _DEVICE_CONFIG0, _CHIP_EN))
}

// ResetRegisters restores every register to its datasheet default.
func (d *Dev) ResetRegisters(addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _RESET_REGISTERS, 0xFF))
}

// Halt turns all LED outputs off. Implements conn.Resource.
func (d *Dev) Halt() error {
	return d.SetGlobalLedOff(LED_GLOBAL_OFF)
}

// Configure overwrites DEVICE_CONFIG1 with the given flags. Unlike the
// single-flag setters this is a plain write, not a read-modify-write.
func (d *Dev) Configure(configuration Config, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _DEVICE_CONFIG1, byte(configuration)&0x3F))
}

// SetScaling selects linear or logarithmic brightness scaling,
// LOG_SCALE_OFF or LOG_SCALE_ON.
func (d *Dev) SetScaling(scaling Config) error {
	return d.updateConfig(5, scaling)
}

// SetPowerSaving controls automatic power saving when all outputs are idle,
// POWER_SAVE_OFF or POWER_SAVE_ON.
func (d *Dev) SetPowerSaving(powerSave Config) error {
	return d.updateConfig(4, powerSave)
}

// SetAutoIncrement controls the address auto-increment feature used by
// multi-byte writes, AUTO_INC_OFF or AUTO_INC_ON.
func (d *Dev) SetAutoIncrement(autoInc Config) error {
	return d.updateConfig(3, autoInc)
}

// SetPWMDithering controls PWM dithering, PWM_DITHERING_OFF or
// PWM_DITHERING_ON.
func (d *Dev) SetPWMDithering(dithering Config) error {
	return d.updateConfig(2, dithering)
}

// SetMaxCurrentOption selects the output current limit, MAX_CURRENT_25MA or
// MAX_CURRENT_35MA.
func (d *Dev) SetMaxCurrentOption(option Config) error {
	return d.updateConfig(1, option)
}

// SetGlobalLedOff turns every output off or back on without touching the
// individual color and brightness registers, LED_GLOBAL_OFF or
// LED_GLOBAL_ON.
func (d *Dev) SetGlobalLedOff(value Config) error {
	return d.updateConfig(0, value)
}

// updateConfig read-modify-writes a single DEVICE_CONFIG1 bit, leaving the
// other bits untouched. The flag setters always address the device itself: a
// broadcast read is not meaningful with several chips answering at once.
func (d *Dev) updateConfig(bit uint8, value Config) error {
	buf, err := d.readByte(_DEVICE_CONFIG1)
	if err != nil {
		return wrap(err)
	}
	if byte(value)&(1<<bit) != 0 {
		buf |= 1 << bit
	} else {
		buf &^= 1 << bit
	}
	return wrap(d.writeByte(d.addr, _DEVICE_CONFIG1, buf))
}

// SetEnablePin changes the GPIO driving the chip's EN pin. The pin is
// configured as an output and driven low; nil detaches the pin.
func (d *Dev) SetEnablePin(enable gpio.PinOut) error {
	if enable != nil {
		if err := enable.Out(gpio.Low); err != nil {
			return wrap(err)
		}
	}
	d.enable = enable
	return nil
}

// SetLEDConfiguration changes the color channel ordering used by SetLEDColor
// and SetBankColor.
func (d *Dev) SetLEDConfiguration(ledConfiguration LEDConfiguration) {
	d.order = ledConfiguration
}

// SetI2CAddress changes the device address used for Normal operations. The
// broadcast address is fixed by the chip and unaffected.
func (d *Dev) SetI2CAddress(address uint16) {
	d.addr = address
}

// SetBankControl assigns LEDs to the bank, e.g.
// SetBankControl(LED_0|LED_1|LED_2, Normal). Bank members follow the bank
// brightness and color registers instead of their own.
func (d *Dev) SetBankControl(leds byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _LED_CONFIG0, leds))
}

// SetBankBrightness sets the brightness of every bank member.
func (d *Dev) SetBankBrightness(brightness byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _BANK_BRIGHTNESS, brightness))
}

// SetBankColorA sets the bank color for outputs 0, 3, 6 and 9.
func (d *Dev) SetBankColorA(value byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _BANK_A_COLOR, value))
}

// SetBankColorB sets the bank color for outputs 1, 4, 7 and 10.
func (d *Dev) SetBankColorB(value byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _BANK_B_COLOR, value))
}

// SetBankColorC sets the bank color for outputs 2, 5, 8 and 11.
func (d *Dev) SetBankColorC(value byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _BANK_C_COLOR, value))
}

// SetBankColor sets all three bank color registers in one sequential write,
// ordered per the LEDConfiguration. Auto-increment is enabled first; the
// chip's address pointer only advances during the multi-byte write when that
// bit is set.
func (d *Dev) SetBankColor(r, g, b byte, addressType AddressType) error {
	if err := d.SetAutoIncrement(AUTO_INC_ON); err != nil {
		return err
	}
	buf := d.orderColor(r, g, b)
	return wrap(d.writeMulti(d.address(addressType), _BANK_A_COLOR, buf))
}

// SetLEDBrightness sets the brightness of a single LED (a group of 3
// outputs). led is 0..2 on the LP5009, 0..3 on the LP5012; it is not range
// checked and an out-of-range value addresses unrelated registers.
func (d *Dev) SetLEDBrightness(led, brightness byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _LED0_BRIGHTNESS+led, brightness))
}

// SetOutputColor sets the PWM color value of a single output. output is 0..8
// on the LP5009, 0..11 on the LP5012; it is not range checked.
func (d *Dev) SetOutputColor(output, value byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), _OUT0_COLOR+output, value))
}

// SetLEDColor sets the three outputs of one LED in one sequential write,
// ordered per the LEDConfiguration. Auto-increment is enabled first, as for
// SetBankColor. led is not range checked.
func (d *Dev) SetLEDColor(led, r, g, b byte, addressType AddressType) error {
	if err := d.SetAutoIncrement(AUTO_INC_ON); err != nil {
		return err
	}
	buf := d.orderColor(r, g, b)
	return wrap(d.writeMulti(d.address(addressType), _OUT0_COLOR+led*3, buf))
}

// Out sets the color value of consecutive outputs starting at output 0, one
// output per intensity. Values are clamped to 0..255.
func (d *Dev) Out(intensities ...display.Intensity) error {
	for ix, intensity := range intensities {
		if intensity > 0xff {
			intensity = 0xff
		} else if intensity < 0 {
			intensity = 0
		}
		if err := d.SetOutputColor(byte(ix), byte(intensity), Normal); err != nil {
			return err
		}
	}
	return nil
}

// WriteRegister writes a raw register. No validation is performed; this is
// the escape hatch for registers the driver has no method for.
func (d *Dev) WriteRegister(reg, value byte, addressType AddressType) error {
	return wrap(d.writeByte(d.address(addressType), reg, value))
}

// ReadRegister reads a raw register from the device address.
func (d *Dev) ReadRegister(reg byte) (byte, error) {
	value, err := d.readByte(reg)
	return value, wrap(err)
}

func (d *Dev) String() string {
	return fmt.Sprintf("lp50xx.Dev{%s, %#x}", d.bus, d.addr)
}

// address resolves an AddressType to a bus address. Unknown values fall back
// to the device address.
func (d *Dev) address(addressType AddressType) uint16 {
	switch addressType {
	case Broadcast:
		return d.broadcast
	default:
		return d.addr
	}
}

func (d *Dev) orderColor(r, g, b byte) [3]byte {
	rgb := [3]byte{r, g, b}
	order := d.order
	if int(order) >= len(channelOrder) {
		order = RGB
	}
	perm := channelOrder[order]
	return [3]byte{rgb[perm[0]], rgb[perm[1]], rgb[perm[2]]}
}

func (d *Dev) writeByte(addr uint16, reg, value byte) error {
	return d.bus.Tx(addr, []byte{reg, value}, nil)
}

func (d *Dev) writeMulti(addr uint16, startReg byte, data [3]byte) error {
	return d.bus.Tx(addr, []byte{startReg, data[0], data[1], data[2]}, nil)
}

func (d *Dev) readByte(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.bus.Tx(d.addr, []byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
