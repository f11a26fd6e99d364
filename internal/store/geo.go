package store

import (
	"math"

	"github.com/edirooss/respd/internal/geo"
)

// GeoAdd stores each (member, lon, lat) as a sorted-set entry whose
// score is the 52-bit interleaved geohash, so GEOADD is just ZADD with a
// geo-encoded score and every ordinary sorted-set command keeps working
// on a geo key for free.
func (ks *Keyspace) GeoAdd(key string, members []string, lons, lats []float64) (int, error) {
	scores := make([]float64, len(members))
	for i := range members {
		scores[i] = float64(geo.Encode(lons[i], lats[i]))
	}
	return ks.ZAdd(key, members, scores)
}

// GeoPos decodes a member's stored geohash back to (lon, lat). ok is
// false if the member does not exist.
func (ks *Keyspace) GeoPos(key, member string) (lon, lat float64, ok bool, err error) {
	score, found, err := ks.ZScore(key, member)
	if err != nil || !found {
		return 0, 0, false, err
	}
	lon, lat = geo.Decode(uint64(score))
	return lon, lat, true, nil
}

// GeoDist returns the great-circle distance in meters between two
// members, or ok=false if either is missing.
func (ks *Keyspace) GeoDist(key, member1, member2 string) (meters float64, ok bool, err error) {
	lon1, lat1, ok1, err := ks.GeoPos(key, member1)
	if err != nil || !ok1 {
		return 0, false, err
	}
	lon2, lat2, ok2, err := ks.GeoPos(key, member2)
	if err != nil || !ok2 {
		return 0, false, err
	}
	return geo.DistanceMeters(lon1, lat1, lon2, lat2), true, nil
}

// GeoSearchByRadius scans every member in the geo set and returns those
// within radiusMeters of (lon, lat). This is the O(n) reference-quality
// implementation GEOSEARCH's score-range optimization in real Redis
// exists to avoid; a geo set scales to the same member counts any other
// sorted set in this server is expected to, so a full scan is an
// acceptable tradeoff rather than reimplementing geohash box scanning.
func (ks *Keyspace) GeoSearchByRadius(key string, lon, lat, radiusMeters float64) ([]string, []float64, error) {
	members, scores, err := ks.ZRange(key, 0, -1)
	if err != nil {
		return nil, nil, err
	}
	var outMembers []string
	var outDist []float64
	for i, m := range members {
		mLon, mLat := geo.Decode(uint64(scores[i]))
		d := geo.DistanceMeters(lon, lat, mLon, mLat)
		if d <= radiusMeters {
			outMembers = append(outMembers, m)
			outDist = append(outDist, math.Round(d*100)/100)
		}
	}
	return outMembers, outDist, nil
}

// GeoSearchByBox scans every member in the geo set and returns those
// within a widthMeters x heightMeters axis-aligned box centered on
// (lon, lat). North-south and east-west offsets are approximated with
// an equirectangular projection scaled by the query latitude, the same
// reference-quality tradeoff GeoSearchByRadius makes for its scan.
func (ks *Keyspace) GeoSearchByBox(key string, lon, lat, widthMeters, heightMeters float64) ([]string, []float64, error) {
	members, scores, err := ks.ZRange(key, 0, -1)
	if err != nil {
		return nil, nil, err
	}
	const metersPerDegree = 111320.0
	lonScale := metersPerDegree * math.Cos(lat*math.Pi/180)
	var outMembers []string
	var outDist []float64
	for i, m := range members {
		mLon, mLat := geo.Decode(uint64(scores[i]))
		northSouth := (mLat - lat) * metersPerDegree
		eastWest := (mLon - lon) * lonScale
		if math.Abs(northSouth) <= heightMeters/2 && math.Abs(eastWest) <= widthMeters/2 {
			d := geo.DistanceMeters(lon, lat, mLon, mLat)
			outMembers = append(outMembers, m)
			outDist = append(outDist, math.Round(d*100)/100)
		}
	}
	return outMembers, outDist, nil
}
