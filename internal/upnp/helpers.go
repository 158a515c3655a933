package upnp

import (
	"encoding/xml"
	"strconv"
)

func respName(local string) xml.Name {
	return xml.Name{Local: local}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func parseIntOr(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback, err
	}
	return n, nil
}
