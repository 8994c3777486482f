package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/uturn"
)

var sampleHeader = []string{
	"time", "easting", "northing", "heading_deg", "speed",
	"steer_cmd", "steer_actual", "xte", "status", "paths_away", "held",
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func WriteSamples(w io.Writer, samples []sim.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sampleHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			ff(s.T),
			ff(s.Pose.Easting),
			ff(s.Pose.Northing),
			ff(geo.Degrees(s.Pose.Heading)),
			ff(s.Pose.Speed),
			ff(s.SteerCmd),
			ff(s.SteerActual),
			ff(s.XTE),
			s.Status.String(),
			strconv.Itoa(s.PathsAway),
			strconv.FormatBool(s.Held),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseStatus(s string) (uturn.Status, error) {
	for st := uturn.StatusIdle; st <= uturn.StatusTurnMissed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// ReadSamples parses what WriteSamples wrote. Roll is not stored and
// reads back as unavailable.
func ReadSamples(r io.Reader) ([]sim.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(sampleHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		var vals [8]float64
		for j := range vals {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, sampleHeader[j], err)
			}
			vals[j] = v
		}
		status, err := parseStatus(rec[8])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		paths, err := strconv.Atoi(rec[9])
		if err != nil {
			return nil, fmt.Errorf("row %d column paths_away: %w", i+1, err)
		}
		held, err := strconv.ParseBool(rec[10])
		if err != nil {
			return nil, fmt.Errorf("row %d column held: %w", i+1, err)
		}

		s := sim.Sample{
			T:           vals[0],
			SteerCmd:    vals[5],
			SteerActual: vals[6],
			XTE:         vals[7],
			Status:      status,
			PathsAway:   paths,
			Held:        held,
		}
		s.Pose.Easting = vals[1]
		s.Pose.Northing = vals[2]
		s.Pose.Heading = geo.Radians(vals[3])
		s.Pose.Speed = vals[4]
		s.Pose.Roll = guidance.RollUnavailable
		samples = append(samples, s)
	}
	return samples, nil
}
