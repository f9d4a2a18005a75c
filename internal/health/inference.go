package health

import "strings"

// Manufacturer is the closed set of vendors the monitor recognises.
type Manufacturer string

// Manufacturer constants.
const (
	ManufacturerPhilips     Manufacturer = "philips"
	ManufacturerLutron      Manufacturer = "lutron"
	ManufacturerEcobee      Manufacturer = "ecobee"
	ManufacturerEve         Manufacturer = "eve"
	ManufacturerNanoleaf    Manufacturer = "nanoleaf"
	ManufacturerLIFX        Manufacturer = "lifx"
	ManufacturerBelkin      Manufacturer = "belkin"
	ManufacturerIKEA        Manufacturer = "ikea"
	ManufacturerAqara       Manufacturer = "aqara"
	ManufacturerMeross      Manufacturer = "meross"
	ManufacturerTPLink      Manufacturer = "tplink"
	ManufacturerLeviton     Manufacturer = "leviton"
	ManufacturerChamberlain Manufacturer = "chamberlain"
	ManufacturerAugust      Manufacturer = "august"
	ManufacturerYale        Manufacturer = "yale"
	ManufacturerSchlage     Manufacturer = "schlage"
	ManufacturerUnknown     Manufacturer = "unknown"
)

// Category is the closed set of device classes.
type Category string

// Category constants.
const (
	CategoryLight          Category = "light"
	CategoryOutlet         Category = "outlet"
	CategorySwitch         Category = "switch"
	CategoryThermostat     Category = "thermostat"
	CategoryFan            Category = "fan"
	CategorySensor         Category = "sensor"
	CategoryWindowCovering Category = "window_covering"
	CategoryCamera         Category = "camera"
	CategoryLock           Category = "lock"
	CategoryGarageDoor     Category = "garage_door"
	CategoryOther          Category = "other"
)

// IsDangerous reports whether devices of this category are excluded from any
// automated state-changing test.
func (c Category) IsDangerous() bool {
	return c == CategoryLock || c == CategoryGarageDoor
}

// Protocol is a best-effort guess at the radio/transport a device uses.
type Protocol string

// Protocol constants.
const (
	ProtocolWiFi        Protocol = "wifi"
	ProtocolZigbee      Protocol = "zigbee"
	ProtocolThread      Protocol = "thread"
	ProtocolBluetooth   Protocol = "bluetooth"
	ProtocolProprietary Protocol = "proprietary"
	ProtocolUnknown     Protocol = "unknown"
)

// Rule maps a case-insensitive substring to a result.
type Rule[T any] struct {
	Substring string
	Result    T
}

// RuleTable is an ordered list of rules evaluated first-match-wins.
type RuleTable[T any] struct {
	Rules    []Rule[T]
	Fallback T
}

// Match returns the result of the first rule whose substring occurs in s.
func (t RuleTable[T]) Match(s string) T {
	lower := strings.ToLower(s)
	for _, r := range t.Rules {
		if strings.Contains(lower, strings.ToLower(r.Substring)) {
			return r.Result
		}
	}
	return t.Fallback
}

// ManufacturerRules infers a Manufacturer from a vendor string.
// Order matters: "signify" must stay ahead of any generic entry.
var ManufacturerRules = RuleTable[Manufacturer]{
	Rules: []Rule[Manufacturer]{
		{"philips", ManufacturerPhilips},
		{"signify", ManufacturerPhilips},
		{"hue", ManufacturerPhilips},
		{"lutron", ManufacturerLutron},
		{"ecobee", ManufacturerEcobee},
		{"eve", ManufacturerEve},
		{"elgato", ManufacturerEve},
		{"nanoleaf", ManufacturerNanoleaf},
		{"lifx", ManufacturerLIFX},
		{"belkin", ManufacturerBelkin},
		{"wemo", ManufacturerBelkin},
		{"ikea", ManufacturerIKEA},
		{"tradfri", ManufacturerIKEA},
		{"aqara", ManufacturerAqara},
		{"lumi", ManufacturerAqara},
		{"meross", ManufacturerMeross},
		{"tp-link", ManufacturerTPLink},
		{"tplink", ManufacturerTPLink},
		{"kasa", ManufacturerTPLink},
		{"leviton", ManufacturerLeviton},
		{"chamberlain", ManufacturerChamberlain},
		{"myq", ManufacturerChamberlain},
		{"august", ManufacturerAugust},
		{"yale", ManufacturerYale},
		{"schlage", ManufacturerSchlage},
	},
	Fallback: ManufacturerUnknown,
}

// CategoryRules infers a Category from a platform service or accessory type.
var CategoryRules = RuleTable[Category]{
	Rules: []Rule[Category]{
		{"garage", CategoryGarageDoor},
		{"lock", CategoryLock},
		{"light", CategoryLight},
		{"bulb", CategoryLight},
		{"lamp", CategoryLight},
		{"outlet", CategoryOutlet},
		{"plug", CategoryOutlet},
		{"switch", CategorySwitch},
		{"thermostat", CategoryThermostat},
		{"fan", CategoryFan},
		{"sensor", CategorySensor},
		{"blind", CategoryWindowCovering},
		{"shade", CategoryWindowCovering},
		{"window", CategoryWindowCovering},
		{"camera", CategoryCamera},
	},
	Fallback: CategoryOther,
}

// ProtocolRules infers a Protocol hint from a Manufacturer value.
var ProtocolRules = RuleTable[Protocol]{
	Rules: []Rule[Protocol]{
		{string(ManufacturerPhilips), ProtocolZigbee},
		{string(ManufacturerIKEA), ProtocolZigbee},
		{string(ManufacturerAqara), ProtocolZigbee},
		{string(ManufacturerEve), ProtocolThread},
		{string(ManufacturerNanoleaf), ProtocolThread},
		{string(ManufacturerLutron), ProtocolProprietary},
		{string(ManufacturerAugust), ProtocolBluetooth},
		{string(ManufacturerYale), ProtocolBluetooth},
		{string(ManufacturerSchlage), ProtocolBluetooth},
		{string(ManufacturerLIFX), ProtocolWiFi},
		{string(ManufacturerBelkin), ProtocolWiFi},
		{string(ManufacturerMeross), ProtocolWiFi},
		{string(ManufacturerTPLink), ProtocolWiFi},
		{string(ManufacturerEcobee), ProtocolWiFi},
		{string(ManufacturerLeviton), ProtocolWiFi},
		{string(ManufacturerChamberlain), ProtocolWiFi},
	},
	Fallback: ProtocolUnknown,
}

// InferManufacturer applies ManufacturerRules to a vendor string.
func InferManufacturer(vendor string) Manufacturer {
	return ManufacturerRules.Match(vendor)
}

// InferCategory applies CategoryRules to a device type string.
func InferCategory(kind string) Category {
	return CategoryRules.Match(kind)
}

// InferProtocol applies ProtocolRules to a manufacturer.
// Unknown manufacturers yield ProtocolUnknown.
func InferProtocol(m Manufacturer) Protocol {
	if m == ManufacturerUnknown {
		return ProtocolUnknown
	}
	return ProtocolRules.Match(string(m))
}
