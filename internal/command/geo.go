package command

import (
	"strconv"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerGeoCommands() {
	register("GEOADD", commandSpec{handler: cmdGeoAdd, minArgs: 4, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("GEOPOS", commandSpec{handler: cmdGeoPos, minArgs: 2, maxArgs: -1, category: acl.CategoryRead})
	register("GEODIST", commandSpec{handler: cmdGeoDist, minArgs: 3, maxArgs: 4, category: acl.CategoryRead})
	register("GEOSEARCH", commandSpec{handler: cmdGeoSearch, minArgs: 6, maxArgs: 8, category: acl.CategoryRead})
}

func cmdGeoAdd(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)
	triples := args[1:]
	if len(triples)%3 != 0 {
		return resp.Err("ERR syntax error")
	}
	n := len(triples) / 3
	members := make([]string, n)
	lons := make([]float64, n)
	lats := make([]float64, n)
	for i := 0; i < n; i++ {
		lon, err1 := strconv.ParseFloat(string(triples[3*i].Bulk), 64)
		lat, err2 := strconv.ParseFloat(string(triples[3*i+1].Bulk), 64)
		if err1 != nil || err2 != nil {
			return resp.Err("ERR value is not a valid float")
		}
		lons[i] = lon
		lats[i] = lat
		members[i] = string(triples[3*i+2].Bulk)
	}
	added, err := ks(srv, sess).GeoAdd(key, members, lons, lats)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(int64(added))
}

func cmdGeoPos(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)
	vals := make([]resp.Value, len(args)-1)
	for i, a := range args[1:] {
		lon, lat, ok, err := ks(srv, sess).GeoPos(key, string(a.Bulk))
		if err != nil {
			return resp.Err(err.Error())
		}
		if !ok {
			vals[i] = resp.NullArr()
			continue
		}
		vals[i] = resp.Arr(resp.BulkStr(formatScore(lon)), resp.BulkStr(formatScore(lat)))
	}
	return resp.Arr(vals...)
}

func cmdGeoDist(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)
	meters, ok, err := ks(srv, sess).GeoDist(key, string(args[1].Bulk), string(args[2].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	unit := "m"
	if len(args) == 4 {
		unit = string(args[3].Bulk)
	}
	return resp.BulkStr(formatScore(convertMeters(meters, unit)))
}

func convertMeters(m float64, unit string) float64 {
	switch unit {
	case "km":
		return m / 1000
	case "mi":
		return m / 1609.34
	case "ft":
		return m * 3.28084
	default:
		return m
	}
}

// distanceToMeters converts a GEOSEARCH radius/box measurement in the
// given unit (m/km/mi/ft) to meters, the unit GeoSearchByRadius and
// GeoSearchByBox both operate in.
func distanceToMeters(v float64, unit string) float64 {
	switch unit {
	case "km":
		return v * 1000
	case "mi":
		return v * 1609.34
	case "ft":
		return v / 3.28084
	default:
		return v
	}
}

// cmdGeoSearch implements GEOSEARCH's two anchor forms (FROMMEMBER
// <member>, FROMLONLAT <lon> <lat>) crossed with its two shapes
// (BYRADIUS <radius> <unit>, BYBOX <width> <height> <unit>).
func cmdGeoSearch(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)

	var lon, lat float64
	var next int
	switch upperString(args[1].Bulk) {
	case "FROMMEMBER":
		member := string(args[2].Bulk)
		l, a, ok, err := ks(srv, sess).GeoPos(key, member)
		if err != nil {
			return resp.Err(err.Error())
		}
		if !ok {
			return resp.Err("ERR could not decode requested zset member")
		}
		lon, lat = l, a
		next = 3
	case "FROMLONLAT":
		l, err1 := strconv.ParseFloat(string(args[2].Bulk), 64)
		a, err2 := strconv.ParseFloat(string(args[3].Bulk), 64)
		if err1 != nil || err2 != nil {
			return resp.Err("ERR value is not a valid float")
		}
		lon, lat = l, a
		next = 4
	default:
		return resp.Err("ERR syntax error")
	}

	var members []string
	var err error
	switch {
	case next < len(args) && upperString(args[next].Bulk) == "BYRADIUS" && next+3 == len(args):
		radius, rerr := strconv.ParseFloat(string(args[next+1].Bulk), 64)
		if rerr != nil {
			return resp.Err("ERR value is not a valid float")
		}
		unit := string(args[next+2].Bulk)
		members, _, err = ks(srv, sess).GeoSearchByRadius(key, lon, lat, distanceToMeters(radius, unit))
	case next < len(args) && upperString(args[next].Bulk) == "BYBOX" && next+4 == len(args):
		width, werr := strconv.ParseFloat(string(args[next+1].Bulk), 64)
		height, herr := strconv.ParseFloat(string(args[next+2].Bulk), 64)
		if werr != nil || herr != nil {
			return resp.Err("ERR value is not a valid float")
		}
		unit := string(args[next+3].Bulk)
		members, _, err = ks(srv, sess).GeoSearchByBox(key, lon, lat, distanceToMeters(width, unit), distanceToMeters(height, unit))
	default:
		return resp.Err("ERR syntax error")
	}
	if err != nil {
		return resp.Err(err.Error())
	}

	vals := make([]resp.Value, len(members))
	for i, m := range members {
		vals[i] = resp.BulkStr(m)
	}
	return resp.Arr(vals...)
}
