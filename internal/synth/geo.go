package synth

// countryCentroids are approximate geographic centers for the countries that
// dominate the blacklist.
var countryCentroids = map[string]Location{
	"CN": {35.8617, 104.1954},
	"RU": {61.5240, 105.3188},
	"US": {37.0902, -95.7129},
	"BR": {-14.2350, -51.9253},
	"IN": {20.5937, 78.9629},
	"DE": {51.1657, 10.4515},
	"NL": {52.1326, 5.2913},
	"FR": {46.2276, 2.2137},
	"GB": {55.3781, -3.4360},
	"KR": {35.9078, 127.7669},
}

// Centroid returns the base location for a country code, or (0,0) and false
// when the country is not in the table.
func Centroid(countryCode string) (Location, bool) {
	loc, ok := countryCentroids[countryCode]
	return loc, ok
}

func clampLocation(l Location) Location {
	l.Latitude = max(-90, min(90, l.Latitude))
	l.Longitude = max(-180, min(180, l.Longitude))
	return l
}
