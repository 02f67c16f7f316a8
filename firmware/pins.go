//go:build tinygo

package main

import "machine"

const (
	// Telemetry configuration
	TELEMETRY_INTERVAL_MS = 100 // One line per power sample

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)
	ADC_SHIFT        = 16 - ADC_RESOLUTION

	// Reference front end: the voltage divider reads 44.8 V at 5 V, so 29.568 V at 3.3 V.
	VOLTAGE_FULL_SCALE = 44.8 * ADC_REFERENCE_MV / 5000

	// ADC pins
	PIN_CURRENT_SENSE = machine.A1
	PIN_INPUT_VOLTAGE = machine.A10

	// PWM output driving the buck stage (PA05, TCC0 WO[1])
	PIN_PWM = machine.D9

	// Serial configuration
	// Line format: "uptime_ms,current,voltage,power,duty,flags,temps\n"
	// Example: "4294967,39.999,29.568,1182.684,255,111,\n" = ~42 bytes max per line
	// 10 lines/sec * 42 bytes/line = 420 bytes/sec, far below the link capacity.
	UART_BAUD_RATE = 500000
)
