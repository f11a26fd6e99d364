package command

import (
	"strconv"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerZSetCommands() {
	register("ZADD", commandSpec{handler: cmdZAdd, minArgs: 3, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("ZREM", commandSpec{handler: cmdZRem, minArgs: 2, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("ZSCORE", commandSpec{handler: cmdZScore, minArgs: 2, maxArgs: 2, category: acl.CategoryRead})
	register("ZRANK", commandSpec{handler: cmdZRank, minArgs: 2, maxArgs: 2, category: acl.CategoryRead})
	register("ZCARD", commandSpec{handler: cmdZCard, minArgs: 1, maxArgs: 1, category: acl.CategoryRead})
	register("ZRANGE", commandSpec{handler: cmdZRange, minArgs: 3, maxArgs: 4, category: acl.CategoryRead})
	register("ZRANGEBYSCORE", commandSpec{handler: cmdZRangeByScore, minArgs: 3, maxArgs: 3, category: acl.CategoryRead})
}

func cmdZAdd(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)
	pairs := args[1:]
	if len(pairs)%2 != 0 {
		return resp.Err("ERR syntax error")
	}
	n := len(pairs) / 2
	members := make([]string, n)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		score, err := strconv.ParseFloat(string(pairs[2*i].Bulk), 64)
		if err != nil {
			return resp.Err("ERR value is not a valid float")
		}
		scores[i] = score
		members[i] = string(pairs[2*i+1].Bulk)
	}
	added, err := ks(srv, sess).ZAdd(key, members, scores)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(int64(added))
}

func cmdZRem(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	members := make([]string, len(args)-1)
	for i, a := range args[1:] {
		members[i] = string(a.Bulk)
	}
	n, err := ks(srv, sess).ZRem(string(args[0].Bulk), members...)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(int64(n))
}

func cmdZScore(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	score, ok, err := ks(srv, sess).ZScore(string(args[0].Bulk), string(args[1].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.BulkStr(formatScore(score))
}

func cmdZRank(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	rank, ok, err := ks(srv, sess).ZRank(string(args[0].Bulk), string(args[1].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Int64(int64(rank))
}

func cmdZCard(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	n, err := ks(srv, sess).ZCard(string(args[0].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(int64(n))
}

func cmdZRange(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	start, err1 := strconv.Atoi(string(args[1].Bulk))
	stop, err2 := strconv.Atoi(string(args[2].Bulk))
	if err1 != nil || err2 != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	withScores := len(args) == 4 && upperString(args[3].Bulk) == "WITHSCORES"
	members, scores, err := ks(srv, sess).ZRange(string(args[0].Bulk), start, stop)
	if err != nil {
		return resp.Err(err.Error())
	}
	return encodeZMembers(members, scores, withScores)
}

func cmdZRangeByScore(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	min, err1 := strconv.ParseFloat(string(args[1].Bulk), 64)
	max, err2 := strconv.ParseFloat(string(args[2].Bulk), 64)
	if err1 != nil || err2 != nil {
		return resp.Err("ERR min or max is not a float")
	}
	members, scores, err := ks(srv, sess).ZRangeByScore(string(args[0].Bulk), min, max)
	if err != nil {
		return resp.Err(err.Error())
	}
	return encodeZMembers(members, scores, false)
}

func encodeZMembers(members []string, scores []float64, withScores bool) resp.Value {
	var vals []resp.Value
	for i, m := range members {
		vals = append(vals, resp.BulkStr(m))
		if withScores {
			vals = append(vals, resp.BulkStr(formatScore(scores[i])))
		}
	}
	return resp.Arr(vals...)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
