package main

import (
	"log"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sfbin/sfbin"
)

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 3669491, true},
}

func main() {
	// Create GeoJSON FeatureCollection
	fc := geojson.NewFeatureCollection()

	for _, city := range cities {
		f := geojson.NewFeature(orb.Point{city.Longitude, city.Latitude})
		f.Properties = geojson.Properties{
			"name":       city.Name,
			"country":    city.Country,
			"population": city.Population,
			"capital":    city.Capital,
		}
		fc.Append(f)
	}

	// Encode both variants plus the GeoJSON original
	geoJSONData, err := sfbin.ToGeoJSON(fc)
	if err != nil {
		log.Fatalf("Failed to marshal GeoJSON: %v", err)
	}

	v4Data, err := sfbin.Marshal(fc, &sfbin.Options{Variant: sfbin.VariantV4})
	if err != nil {
		log.Fatalf("Failed to encode v4: %v", err)
	}

	v7Data, err := sfbin.Marshal(fc, sfbin.DefaultOptions())
	if err != nil {
		log.Fatalf("Failed to encode v7: %v", err)
	}

	log.Printf("world cities: geojson=%d bytes, v4=%d bytes, v7=%d bytes",
		len(geoJSONData), len(v4Data), len(v7Data))

	serve := func(data []byte, contentType string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Access-Control-Allow-Origin", "*")
			if _, err := w.Write(data); err != nil {
				log.Printf("write failed: %v", err)
			}
		}
	}

	http.HandleFunc("/data.geojson", serve(geoJSONData, "application/geo+json"))
	http.HandleFunc("/data.v4.sfbin", serve(v4Data, "application/octet-stream"))
	http.HandleFunc("/data.v7.sfbin", serve(v7Data, "application/octet-stream"))

	log.Println("Serving world cities on http://localhost:8080")
	log.Println("  /data.geojson   - GeoJSON original")
	log.Println("  /data.v4.sfbin  - absolute coordinate variant")
	log.Println("  /data.v7.sfbin  - quantized delta variant")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatal(err)
	}
}
