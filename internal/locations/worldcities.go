package locations

import "github.com/atlasguess/atlasguess/internal/model"

// WorldCities is the built-in location stock used when no external
// geocoding service is wired. Coordinates are city centers.
var WorldCities = []model.Location{
	{Lat: 40.7128, Lng: -74.0060, Country: "US"},
	{Lat: 34.0522, Lng: -118.2437, Country: "US"},
	{Lat: 41.8781, Lng: -87.6298, Country: "US"},
	{Lat: 45.5019, Lng: -73.5674, Country: "CA"},
	{Lat: 43.6532, Lng: -79.3832, Country: "CA"},
	{Lat: 19.4326, Lng: -99.1332, Country: "MX"},
	{Lat: -23.5505, Lng: -46.6333, Country: "BR"},
	{Lat: -22.9068, Lng: -43.1729, Country: "BR"},
	{Lat: -34.6037, Lng: -58.3816, Country: "AR"},
	{Lat: -33.4489, Lng: -70.6693, Country: "CL"},
	{Lat: 4.7110, Lng: -74.0721, Country: "CO"},
	{Lat: -12.0464, Lng: -77.0428, Country: "PE"},
	{Lat: 51.5074, Lng: -0.1278, Country: "GB"},
	{Lat: 53.4808, Lng: -2.2426, Country: "GB"},
	{Lat: 48.8566, Lng: 2.3522, Country: "FR"},
	{Lat: 43.2965, Lng: 5.3698, Country: "FR"},
	{Lat: 52.5200, Lng: 13.4050, Country: "DE"},
	{Lat: 48.1351, Lng: 11.5820, Country: "DE"},
	{Lat: 40.4168, Lng: -3.7038, Country: "ES"},
	{Lat: 41.3874, Lng: 2.1686, Country: "ES"},
	{Lat: 41.9028, Lng: 12.4964, Country: "IT"},
	{Lat: 45.4642, Lng: 9.1900, Country: "IT"},
	{Lat: 38.7223, Lng: -9.1393, Country: "PT"},
	{Lat: 52.3676, Lng: 4.9041, Country: "NL"},
	{Lat: 50.8503, Lng: 4.3517, Country: "BE"},
	{Lat: 47.3769, Lng: 8.5417, Country: "CH"},
	{Lat: 48.2082, Lng: 16.3738, Country: "AT"},
	{Lat: 52.2297, Lng: 21.0122, Country: "PL"},
	{Lat: 50.0755, Lng: 14.4378, Country: "CZ"},
	{Lat: 59.3293, Lng: 18.0686, Country: "SE"},
	{Lat: 59.9139, Lng: 10.7522, Country: "NO"},
	{Lat: 55.6761, Lng: 12.5683, Country: "DK"},
	{Lat: 60.1699, Lng: 24.9384, Country: "FI"},
	{Lat: 37.9838, Lng: 23.7275, Country: "GR"},
	{Lat: 41.0082, Lng: 28.9784, Country: "TR"},
	{Lat: 55.7558, Lng: 37.6173, Country: "RU"},
	{Lat: 59.9311, Lng: 30.3609, Country: "RU"},
	{Lat: 30.0444, Lng: 31.2357, Country: "EG"},
	{Lat: 6.5244, Lng: 3.3792, Country: "NG"},
	{Lat: -1.2921, Lng: 36.8219, Country: "KE"},
	{Lat: -26.2041, Lng: 28.0473, Country: "ZA"},
	{Lat: -33.9249, Lng: 18.4241, Country: "ZA"},
	{Lat: 33.5731, Lng: -7.5898, Country: "MA"},
	{Lat: 25.2048, Lng: 55.2708, Country: "AE"},
	{Lat: 31.7683, Lng: 35.2137, Country: "IL"},
	{Lat: 35.6762, Lng: 139.6503, Country: "JP"},
	{Lat: 34.6937, Lng: 135.5023, Country: "JP"},
	{Lat: 37.5665, Lng: 126.9780, Country: "KR"},
	{Lat: 39.9042, Lng: 116.4074, Country: "CN"},
	{Lat: 31.2304, Lng: 121.4737, Country: "CN"},
	{Lat: 22.3193, Lng: 114.1694, Country: "HK"},
	{Lat: 25.0330, Lng: 121.5654, Country: "TW"},
	{Lat: 1.3521, Lng: 103.8198, Country: "SG"},
	{Lat: 13.7563, Lng: 100.5018, Country: "TH"},
	{Lat: 21.0278, Lng: 105.8342, Country: "VN"},
	{Lat: 14.5995, Lng: 120.9842, Country: "PH"},
	{Lat: -6.2088, Lng: 106.8456, Country: "ID"},
	{Lat: 3.1390, Lng: 101.6869, Country: "MY"},
	{Lat: 28.6139, Lng: 77.2090, Country: "IN"},
	{Lat: 19.0760, Lng: 72.8777, Country: "IN"},
	{Lat: 24.8607, Lng: 67.0011, Country: "PK"},
	{Lat: 23.8103, Lng: 90.4125, Country: "BD"},
	{Lat: -33.8688, Lng: 151.2093, Country: "AU"},
	{Lat: -37.8136, Lng: 144.9631, Country: "AU"},
	{Lat: -36.8485, Lng: 174.7633, Country: "NZ"},
	{Lat: 64.1466, Lng: -21.9426, Country: "IS"},
	{Lat: 53.3498, Lng: -6.2603, Country: "IE"},
	{Lat: 47.4979, Lng: 19.0402, Country: "HU"},
	{Lat: 44.4268, Lng: 26.1025, Country: "RO"},
}
