package biometric

import (
	"strconv"
	"strings"
)

// parseNMEAGGAFix extracts a latitude/longitude fix from a GPGGA/GNGGA
// NMEA sentence. Other sentence types (GLL, GNS, RMC) carry the same fix
// in different field layouts; only GGA is implemented here since it is
// the sentence the MCU firmware is known to emit, ok is false for every
// other sentence type or a malformed/empty fix.
func parseNMEAGGAFix(sentence string) (latitude, longitude float64, ok bool) {
	sentence = strings.TrimSpace(sentence)
	if idx := strings.Index(sentence, "*"); idx >= 0 {
		sentence = sentence[:idx]
	}
	fields := strings.Split(sentence, ",")
	if len(fields) < 6 || !strings.HasSuffix(fields[0], "GGA") {
		return 0, 0, false
	}
	lat, ok1 := parseNMEACoordinate(fields[2], fields[3], 2)
	lon, ok2 := parseNMEACoordinate(fields[4], fields[5], 3)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return lat, lon, true
}

// parseNMEACoordinate converts an NMEA ddmm.mmmm/dddmm.mmmm field plus
// hemisphere letter into signed decimal degrees. degreeDigits is 2 for
// latitude, 3 for longitude.
func parseNMEACoordinate(raw, hemisphere string, degreeDigits int) (float64, bool) {
	if len(raw) <= degreeDigits {
		return 0, false
	}
	degrees, err := strconv.ParseFloat(raw[:degreeDigits], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(raw[degreeDigits:], 64)
	if err != nil {
		return 0, false
	}
	value := degrees + minutes/60
	if hemisphere == "S" || hemisphere == "W" {
		value = -value
	}
	return value, true
}
