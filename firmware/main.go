//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/controller"
	"github.com/itohio/gomppt/pkg/sense"
	"github.com/itohio/gomppt/pkg/telemetry"
)

var (
	adcCurrent machine.ADC
	adcVoltage machine.ADC
	pwm        = machine.TCC0
	pwmChannel uint8
	uart       = machine.Serial

	cfg = boardConfig()

	// Telemetry line buffer, reused every output
	lineBuffer [96]byte
)

// boardConfig adapts the reference calibration to the 12-bit, 3.3 V ADC.
func boardConfig() *config.Config {
	c := config.Default()
	c.Sensing.ADCReference = ADC_REFERENCE_MV / 1000.0
	c.Sensing.ADCFullScale = 1 << ADC_RESOLUTION
	c.Sensing.VoltageFullScale = VOLTAGE_FULL_SCALE
	return c
}

// adc adapts the board ADCs to the controller.
type adc struct{}

func (adc) ReadRaw(ch sense.Channel) int {
	switch ch {
	case sense.CurrentSense:
		return int(adcCurrent.Get() >> ADC_SHIFT)
	case sense.InputVoltage:
		return int(adcVoltage.Get() >> ADC_SHIFT)
	}
	return 0
}

// buck drives the PWM output.
type buck struct{}

func (buck) SetDuty(v int) {
	pwm.Set(pwmChannel, pwm.Top()*uint32(v)/uint32(cfg.Duty.Max))
}

func main() {
	machine.InitADC()
	adcCurrent = machine.ADC{Pin: PIN_CURRENT_SENSE}
	adcVoltage = machine.ADC{Pin: PIN_INPUT_VOLTAGE}
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcCurrent.Configure(adcConfig)
	adcVoltage.Configure(adcConfig)

	if err := pwm.Configure(machine.PWMConfig{}); err != nil {
		println("pwm:", err.Error())
		return
	}
	ch, err := pwm.Channel(PIN_PWM)
	if err != nil {
		println("pwm channel:", err.Error())
		return
	}
	pwmChannel = ch

	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	// No temperature probes on this board: the thermal task is skipped.
	ctrl, err := controller.New(cfg, adc{}, nil, buck{})
	if err != nil {
		println("controller:", err.Error())
		return
	}

	// The load must be disconnected while the offset is measured.
	if err := ctrl.Init(); err != nil {
		println("calibration:", err.Error())
		return
	}

	start := time.Now()
	var lastOutput time.Duration

	for {
		now := time.Since(start)

		processSerial(ctrl)
		ctrl.Tick(now)

		if now-lastOutput >= TELEMETRY_INTERVAL_MS*time.Millisecond {
			uart.Write(telemetry.AppendLine(lineBuffer[:0], ctrl.Snapshot()))
			lastOutput = now
		}
	}
}

// processSerial handles host commands. Only the re-zero command is understood;
// everything else is ignored.
func processSerial(ctrl *controller.Controller) {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == telemetry.RezeroCommand {
			if err := ctrl.ZeroCurrent(); err != nil {
				println("rezero:", err.Error())
			}
		}
	}
}
