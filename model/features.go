package model

import (
	"fmt"
	"time"
)

// DateLayout is the timestamp format used by Fecha-I and Fecha-O.
const DateLayout = "2006-01-02 15:04:05"

// A flight counts as delayed when it leaves more than this many minutes
// after its scheduled time.
const delayThresholdMinutes = 15.0

// FlightRecord is one raw flight row. FechaO is only present in training
// data; inference requests carry a placeholder FechaI and no FechaO.
type FlightRecord struct {
	Opera     string
	TipoVuelo string
	Mes       int
	FechaI    string
	FechaO    string
}

// topFeatures are the ten one-hot slots the classifier consumes, in fixed
// order. Encoding goes directly against this vocabulary: a category outside
// the list contributes to no slot.
var topFeatures = []string{
	"OPERA_Latin American Wings",
	"MES_7",
	"MES_10",
	"OPERA_Grupo LATAM",
	"MES_12",
	"TIPOVUELO_I",
	"MES_4",
	"MES_11",
	"OPERA_Sky Airline",
	"OPERA_Copa Air",
}

// FeatureNames returns the feature slot names in projection order.
func FeatureNames() []string {
	names := make([]string, len(topFeatures))
	copy(names, topFeatures)
	return names
}

// FeatureCount is the width of every encoded feature row.
func FeatureCount() int { return len(topFeatures) }

// PeriodOfDay buckets the time-of-day of a scheduled timestamp:
// morning [05:00, 11:59], afternoon [12:00, 18:59], night otherwise.
func PeriodOfDay(fechaI string) (string, error) {
	t, err := time.Parse(DateLayout, fechaI)
	if err != nil {
		return "", &ParseError{Field: "Fecha-I", Value: fechaI, Err: err}
	}
	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes >= 5*60 && minutes <= 11*60+59:
		return "morning", nil
	case minutes >= 12*60 && minutes <= 18*60+59:
		return "afternoon", nil
	default:
		return "night", nil
	}
}

// highSeasonRanges are {startMonth, startDay, endMonth, endDay} windows,
// inclusive on both ends, year-relative.
var highSeasonRanges = [][4]int{
	{12, 15, 12, 31},
	{1, 1, 3, 3},
	{7, 15, 7, 31},
	{9, 11, 9, 30},
}

// IsHighSeason reports whether the scheduled date falls inside a peak travel
// window: Dec 15-31, Jan 1-Mar 3, Jul 15-31, Sep 11-30.
func IsHighSeason(fechaI string) (int, error) {
	t, err := time.Parse(DateLayout, fechaI)
	if err != nil {
		return 0, &ParseError{Field: "Fecha-I", Value: fechaI, Err: err}
	}
	for _, r := range highSeasonRanges {
		start := time.Date(t.Year(), time.Month(r[0]), r[1], 0, 0, 0, 0, t.Location())
		end := time.Date(t.Year(), time.Month(r[2]), r[3], 23, 59, 59, 0, t.Location())
		if !t.Before(start) && !t.After(end) {
			return 1, nil
		}
	}
	return 0, nil
}

// MinDiff returns actual minus scheduled time in minutes. Negative when the
// flight left early.
func MinDiff(rec FlightRecord) (float64, error) {
	fechaO, err := time.Parse(DateLayout, rec.FechaO)
	if err != nil {
		return 0, &ParseError{Field: "Fecha-O", Value: rec.FechaO, Err: err}
	}
	fechaI, err := time.Parse(DateLayout, rec.FechaI)
	if err != nil {
		return 0, &ParseError{Field: "Fecha-I", Value: rec.FechaI, Err: err}
	}
	return fechaO.Sub(fechaI).Minutes(), nil
}

// BuildFeatures projects raw flight records onto the fixed 10-slot one-hot
// space. With withTarget set it also derives the delay label from
// Fecha-I/Fecha-O; inference callers pass withTarget=false and may omit
// FechaO entirely. The returned rows are in input order.
func BuildFeatures(records []FlightRecord, withTarget bool) ([][]float64, []int, error) {
	features := make([][]float64, len(records))
	var labels []int
	if withTarget {
		labels = make([]int, len(records))
	}

	for i, rec := range records {
		// Period-of-day and high-season are derived for every row but are
		// not part of the projected vector; the parse also rejects
		// malformed scheduled timestamps early.
		if _, err := PeriodOfDay(rec.FechaI); err != nil {
			return nil, nil, err
		}
		if _, err := IsHighSeason(rec.FechaI); err != nil {
			return nil, nil, err
		}

		if withTarget {
			diff, err := MinDiff(rec)
			if err != nil {
				return nil, nil, err
			}
			if diff > delayThresholdMinutes {
				labels[i] = 1
			}
		}

		features[i] = encodeRecord(rec)
	}

	return features, labels, nil
}

func encodeRecord(rec FlightRecord) []float64 {
	active := map[string]bool{
		"OPERA_" + rec.Opera:           true,
		"TIPOVUELO_" + rec.TipoVuelo:   true,
		fmt.Sprintf("MES_%d", rec.Mes): true,
	}
	row := make([]float64, len(topFeatures))
	for j, name := range topFeatures {
		if active[name] {
			row[j] = 1
		}
	}
	return row
}
