package extractor

import (
	"fmt"
	"hash/fnv"
	"regexp"
)

// Derivation chain for a stable listing identifier, from strongest to
// weakest: the hex coordinate-pair token, an explicit place_id token,
// the numeric CID, a hash of the /place/ path segment, and finally a
// hash of the whole URL. Hash-derived IDs are stable for the same URL
// but cannot be correlated with external data.
var (
	hexPairRe   = regexp.MustCompile(`!1s(0x[a-f0-9]+:0x[a-f0-9]+)`)
	placeIDRe   = regexp.MustCompile(`place_id[=:]([A-Za-z0-9_-]+)`)
	cidRe       = regexp.MustCompile(`cid[=:](\d+)`)
	placePathRe = regexp.MustCompile(`/place/([^/]+)/`)
)

// DerivePlaceID extracts or fabricates a stable place identifier from
// a maps detail URL. It never returns "".
func DerivePlaceID(url string) string {
	if m := hexPairRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := placeIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := cidRe.FindStringSubmatch(url); m != nil {
		return "cid_" + m[1]
	}
	if m := placePathRe.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("url_hash_%08x", fnv32(m[1]))
	}
	return fmt.Sprintf("fallback_%012x", fnv64(url)&0xFFFFFFFFFFFF)
}

// ExtractCID pulls the numeric listing CID from the URL, "" if absent.
func ExtractCID(url string) string {
	if m := cidRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s)) //nolint:errcheck
	return h.Sum32()
}

func fnv64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s)) //nolint:errcheck
	return h.Sum64()
}
