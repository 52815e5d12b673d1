package sqlgen

import "strings"

// functions maps in-memory expression calls to their MySQL
// counterparts, a plain 1:1 rewrite
var functions = map[string]string{
	"toupper":   "UPPER",
	"tolower":   "LOWER",
	"trim":      "TRIM",
	"trimstart": "LTRIM",
	"trimend":   "RTRIM",
	"length":    "CHAR_LENGTH",
	"substring": "SUBSTRING",
	"indexof":   "LOCATE",
	"replace":   "REPLACE",
	"concat":    "CONCAT",
	"abs":       "ABS",
	"ceiling":   "CEILING",
	"floor":     "FLOOR",
	"round":     "ROUND",
	"now":       "NOW",
	"utcnow":    "UTC_TIMESTAMP",
	"newguid":   "UUID",
	"coalesce":  "COALESCE",
	"truncate":  "TRUNCATE",
	"power":     "POW",
}

// Function translates an in-memory call name to its MySQL function,
// reporting whether a translation exists
func Function(name string) (string, bool) {
	fn, ok := functions[strings.ToLower(name)]
	return fn, ok
}
