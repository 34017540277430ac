package geo

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct{ lon, lat float64 }{
		{0, 0},
		{13.361389, 38.115556}, // Palermo
		{-122.4194, 37.7749},   // San Francisco
		{179.9, -84.9},
	}
	for _, c := range cases {
		hash := Encode(c.lon, c.lat)
		lon, lat := Decode(hash)
		if math_abs(lon-c.lon) > 0.01 || math_abs(lat-c.lat) > 0.01 {
			t.Fatalf("round trip (%v,%v) -> (%v,%v)", c.lon, c.lat, lon, lat)
		}
	}
}

func math_abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestHaversineCommutativeAndZeroForSamePoint(t *testing.T) {
	lon1, lat1 := 13.361389, 38.115556
	lon2, lat2 := 15.087269, 37.502669

	d1 := HaversineMeters(lon1, lat1, lon2, lat2)
	d2 := HaversineMeters(lon2, lat2, lon1, lat1)
	if math_abs(d1-d2) > 1e-6 {
		t.Fatalf("distance not commutative: %v vs %v", d1, d2)
	}
	if d := HaversineMeters(lon1, lat1, lon1, lat1); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
	// Known Palermo-Catania distance is ~166274 m within Redis's own test suite tolerance.
	if math_abs(d1-166274) > 2000 {
		t.Fatalf("distance = %v, want ~166274", d1)
	}
}

func TestUnitConversionRoundTrip(t *testing.T) {
	for _, u := range []Unit{Meters, Kilometers, Miles, Feet} {
		m := 12345.0
		v := u.FromMeters(m)
		back := u.ToMeters(v)
		if math_abs(back-m) > 1e-6 {
			t.Fatalf("unit %s round trip: %v -> %v -> %v", u, m, v, back)
		}
	}
}
