package router

import (
	"encoding/json"
	"fmt"

	"github.com/brypt-io/brypt-core/internal/tracking"
	"github.com/google/uuid"
)

func parseTrackerKey(s string) (tracking.Key, error) {
	key, err := uuid.Parse(s)
	if err != nil {
		return tracking.Key{}, fmt.Errorf("parse tracker key %q: %w", s, err)
	}
	return key, nil
}

// wireParcel is Parcel's on-the-wire shape. TrackerKey is carried as its
// string form (or omitted) since json.Marshal has no default encoding for
// a *uuid.UUID pointer that round-trips through an empty value cleanly.
type wireParcel struct {
	Source      string `json:"source"`
	Destination int    `json:"destination"`
	Route       string `json:"route"`
	Payload     []byte `json:"payload,omitempty"`
	StatusCode  int    `json:"status_code"`
	TrackerKey  string `json:"tracker_key,omitempty"`
}

// Pack serializes a parcel into the bytes a cipher.Package encrypts and a
// peer proxy schedules for send. The format is intentionally simple JSON,
// and reusing one codec for both single parcels and aggregate replies
// keeps the wire format uniform.
func Pack(p Parcel) ([]byte, error) {
	w := wireParcel{
		Source:      p.Source,
		Destination: int(p.Destination),
		Route:       p.Route,
		Payload:     p.Payload,
		StatusCode:  p.StatusCode,
	}
	if p.TrackerKey != nil {
		w.TrackerKey = p.TrackerKey.String()
	}
	out, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("pack parcel: %w", err)
	}
	return out, nil
}

// Unpack reverses Pack.
func Unpack(data []byte) (Parcel, error) {
	var w wireParcel
	if err := json.Unmarshal(data, &w); err != nil {
		return Parcel{}, fmt.Errorf("unpack parcel: %w", err)
	}
	p := Parcel{
		Source:      w.Source,
		Destination: Destination(w.Destination),
		Route:       w.Route,
		Payload:     w.Payload,
		StatusCode:  w.StatusCode,
	}
	if w.TrackerKey != "" {
		key, err := parseTrackerKey(w.TrackerKey)
		if err != nil {
			return Parcel{}, err
		}
		p.TrackerKey = &key
	}
	return p, nil
}
