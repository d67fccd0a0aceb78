package httpapi

import (
	"net/url"
	"strings"
)

// payloadFromPath turns the path segments after the command name and the
// query string into a dispatcher payload.
//
//	/api/start                 -> query object, or nil
//	/api/start/next            -> "next"
//	/api/start/index/3         -> {"index": "3"}
//	/api/auxtimer/1/start      -> {"1": "start"}
//	/api/message/timer/text/x  -> {"timer": {"text": "x"}}
//
// Query parameters merge into object payloads. A single segment wins over
// the query.
func payloadFromPath(rest string, query url.Values) any {
	var parts []string
	for _, p := range strings.Split(rest, "/") {
		if p == "" {
			continue
		}
		if u, err := url.PathUnescape(p); err == nil {
			p = u
		}
		parts = append(parts, p)
	}

	switch len(parts) {
	case 0:
		if len(query) == 0 {
			return nil
		}
		return queryObject(query)
	case 1:
		return parts[0]
	}

	obj := queryObject(query)
	nest(obj, parts)
	return obj
}

// nest sets obj[parts[0]][parts[1]]... = parts[last].
func nest(obj map[string]any, parts []string) {
	for _, key := range parts[:len(parts)-2] {
		child, ok := obj[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			obj[key] = child
		}
		obj = child
	}
	obj[parts[len(parts)-2]] = parts[len(parts)-1]
}

func queryObject(query url.Values) map[string]any {
	obj := make(map[string]any, len(query))
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		obj[key] = values[len(values)-1]
	}
	return obj
}
