package users

// Timezone is one of a fixed set of IANA zone identifiers a user may select.
type Timezone string

const (
	TimezonePacificKiritimati    Timezone = "Pacific/Kiritimati"  // UTC +14
	TimezonePacificAuckland      Timezone = "Pacific/Auckland"    // UTC +13
	TimezonePacificChatham       Timezone = "Pacific/Chatham"     // UTC +12:45
	TimezonePacificFiji          Timezone = "Pacific/Fiji"        // UTC +12
	TimezonePacificNoumea        Timezone = "Pacific/Noumea"      // UTC +11
	TimezoneAustraliaSydney      Timezone = "Australia/Sydney"    // UTC +10
	TimezoneAustraliaDarwin      Timezone = "Australia/Darwin"    // UTC +9:30
	TimezoneAsiaTokyo            Timezone = "Asia/Tokyo"          // UTC +9
	TimezoneAsiaKualaLumpur      Timezone = "Asia/Kuala_Lumpur"   // UTC +8
	TimezoneAsiaBangkok          Timezone = "Asia/Bangkok"        // UTC +7
	TimezoneAsiaDhaka            Timezone = "Asia/Dhaka"          // UTC +6
	TimezoneAsiaKolkata          Timezone = "Asia/Kolkata"        // UTC +5:30
	TimezoneAsiaTashkent         Timezone = "Asia/Tashkent"       // UTC +5
	TimezoneAsiaDubai            Timezone = "Asia/Dubai"          // UTC +4
	TimezoneAsiaTehran           Timezone = "Asia/Tehran"         // UTC +3:30
	TimezoneEuropeMoscow         Timezone = "Europe/Moscow"       // UTC +3
	TimezoneEuropeAthens         Timezone = "Europe/Athens"       // UTC +2
	TimezoneEuropeBerlin         Timezone = "Europe/Berlin"       // UTC +1
	TimezoneEuropeLondon         Timezone = "Europe/London"       // UTC +0
	TimezoneAtlanticAzores       Timezone = "Atlantic/Azores"     // UTC -1
	TimezoneAmericaNoronha       Timezone = "America/Noronha"     // UTC -2
	TimezoneAmericaBuenosAires   Timezone = "America/Argentina/Buenos_Aires" // UTC -3
	TimezoneAmericaHalifax       Timezone = "America/Halifax"     // UTC -4
	TimezoneAmericaNewYork       Timezone = "America/New_York"    // UTC -5
	TimezoneAmericaChicago       Timezone = "America/Chicago"     // UTC -6
	TimezoneAmericaDenver        Timezone = "America/Denver"      // UTC -7
	TimezoneAmericaLosAngeles    Timezone = "America/Los_Angeles" // UTC -8
	TimezoneAmericaAnchorage     Timezone = "America/Anchorage"   // UTC -9
	TimezonePacificHonolulu      Timezone = "Pacific/Honolulu"    // UTC -10
	TimezonePacificPagoPago      Timezone = "Pacific/Pago_Pago"   // UTC -11
	TimezonePacificMidway        Timezone = "Pacific/Midway"      // UTC -12
)

// DefaultTimezone is assigned when registration omits a zone.
const DefaultTimezone = TimezoneEuropeLondon

var allowedTimezones = map[Timezone]struct{}{
	TimezonePacificKiritimati:  {},
	TimezonePacificAuckland:    {},
	TimezonePacificChatham:     {},
	TimezonePacificFiji:        {},
	TimezonePacificNoumea:      {},
	TimezoneAustraliaSydney:    {},
	TimezoneAustraliaDarwin:    {},
	TimezoneAsiaTokyo:          {},
	TimezoneAsiaKualaLumpur:    {},
	TimezoneAsiaBangkok:        {},
	TimezoneAsiaDhaka:          {},
	TimezoneAsiaKolkata:        {},
	TimezoneAsiaTashkent:       {},
	TimezoneAsiaDubai:          {},
	TimezoneAsiaTehran:         {},
	TimezoneEuropeMoscow:       {},
	TimezoneEuropeAthens:       {},
	TimezoneEuropeBerlin:       {},
	TimezoneEuropeLondon:       {},
	TimezoneAtlanticAzores:     {},
	TimezoneAmericaNoronha:     {},
	TimezoneAmericaBuenosAires: {},
	TimezoneAmericaHalifax:     {},
	TimezoneAmericaNewYork:     {},
	TimezoneAmericaChicago:     {},
	TimezoneAmericaDenver:      {},
	TimezoneAmericaLosAngeles:  {},
	TimezoneAmericaAnchorage:   {},
	TimezonePacificHonolulu:    {},
	TimezonePacificPagoPago:    {},
	TimezonePacificMidway:      {},
}

// ParseTimezone validates s against the allowed set. An empty string maps to
// DefaultTimezone.
func ParseTimezone(s string) (Timezone, bool) {
	if s == "" {
		return DefaultTimezone, true
	}
	tz := Timezone(s)
	if _, ok := allowedTimezones[tz]; !ok {
		return "", false
	}
	return tz, true
}
