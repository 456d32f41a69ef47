// Package dataset loads and validates the raw flight CSV the model trains on.
package dataset

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"flightdelay/model"
)

var requiredColumns = []string{"OPERA", "TIPOVUELO", "MES", "Fecha-I", "Fecha-O"}

// Loader reads the canonical training CSV. Latin1 handles raw exports whose
// airline names carry diacritics.
type Loader struct {
	Path    string
	Latin1  bool
	cleaner *Cleaner
}

func NewLoader(path string) *Loader {
	return &Loader{Path: path, cleaner: NewCleaner()}
}

// Load reads the CSV into flight records, dropping rows the cleaner rejects.
func (l *Loader) Load() ([]model.FlightRecord, error) {
	file, err := os.Open(l.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	if l.Latin1 {
		reader = transform.NewReader(file, charmap.ISO8859_1.NewDecoder())
	}

	df := dataframe.ReadCSV(reader)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv %s: %w", l.Path, df.Err)
	}
	if err := checkColumns(df); err != nil {
		return nil, err
	}

	operas := df.Col("OPERA").Records()
	tipos := df.Col("TIPOVUELO").Records()
	meses := df.Col("MES").Records()
	fechaI := df.Col("Fecha-I").Records()
	fechaO := df.Col("Fecha-O").Records()

	records := make([]model.FlightRecord, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		mes, err := strconv.Atoi(strings.TrimSpace(meses[i]))
		if err != nil {
			l.cleaner.RejectRaw("month_range")
			continue
		}
		rec := model.FlightRecord{
			Opera:     operas[i],
			TipoVuelo: tipos[i],
			Mes:       mes,
			FechaI:    fechaI[i],
			FechaO:    fechaO[i],
		}
		if err := l.cleaner.Check(rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no usable rows in %s", l.Path)
	}
	return records, nil
}

// Stats exposes the cleaning counters accumulated by Load.
func (l *Loader) Stats() CleaningStats {
	return l.cleaner.Stats()
}

func checkColumns(df dataframe.DataFrame) error {
	present := make(map[string]bool, len(df.Names()))
	for _, name := range df.Names() {
		present[name] = true
	}
	for _, name := range requiredColumns {
		if !present[name] {
			return fmt.Errorf("missing column %q", name)
		}
	}
	return nil
}
