package features

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aprice/audiodetect-go/internal/errors"
)

// labelColumn is the trailing CSV column holding the sample label.
const labelColumn = "label"

// versionPrefix starts the comment line carrying the schema version of the
// extractor that produced the file.
const versionPrefix = "#version="

// WriteCSV serializes labeled samples with feature values in the schema's
// canonical key order followed by the label column, preceded by a comment
// line recording the schema version. Every sample must match the schema.
func WriteCSV(w io.Writer, schema *Schema, samples []LabeledSample) error {
	if err := schema.ValidateDataset(samples); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%s\n", versionPrefix, schema.Version); err != nil {
		return fmt.Errorf("failed to write dataset version line: %w", err)
	}

	cw := csv.NewWriter(w)
	header := append(append(make([]string, 0, len(schema.Keys)+1), schema.Keys...), labelColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write dataset header: %w", err)
	}

	record := make([]string, len(schema.Keys)+1)
	for i := range samples {
		for j, key := range schema.Keys {
			record[j] = strconv.FormatFloat(samples[i].Vector[key], 'g', -1, 64)
		}
		record[len(schema.Keys)] = string(samples[i].Label)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write dataset row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a dataset written by WriteCSV. The returned schema carries
// the key order from the header and the version from the file's version
// line, so datasets produced by an older extractor keep their original
// version and fingerprint instead of being re-tagged as current.
func ReadCSV(r io.Reader) (*Schema, []LabeledSample, error) {
	br := bufio.NewReader(r)
	version, err := readVersionLine(br)
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = 0 // all records must match the header length

	header, err := cr.Read()
	if err != nil {
		return nil, nil, errors.Newf("failed to read dataset header: %v", err).
			Component("features").
			Category(errors.CategoryFileIO).
			Build()
	}
	if len(header) < 2 || header[len(header)-1] != labelColumn {
		return nil, nil, errors.Newf("dataset header must end with a %q column", labelColumn).
			Component("features").
			Category(errors.CategoryValidation).
			Build()
	}

	schema := NewSchema(version, header[:len(header)-1])

	var samples []LabeledSample
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Newf("failed to read dataset row %d: %v", row, err).
				Component("features").
				Category(errors.CategoryFileIO).
				Build()
		}

		vec := make(Vector, len(schema.Keys))
		for i, key := range schema.Keys {
			value, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, nil, errors.Newf("dataset row %d has non-numeric value for %q: %v", row, key, err).
					Component("features").
					Category(errors.CategoryValidation).
					Context("feature_key", key).
					Build()
			}
			vec[key] = value
		}

		label, err := ParseLabel(record[len(schema.Keys)])
		if err != nil {
			return nil, nil, errors.Newf("dataset row %d: %v", row, err).
				Component("features").
				Category(errors.CategoryValidation).
				Build()
		}

		samples = append(samples, LabeledSample{Vector: vec, Label: label})
	}

	return schema, samples, nil
}

// readVersionLine consumes the leading version line and returns the schema
// version it carries.
func readVersionLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Newf("failed to read dataset version line: %v", err).
			Component("features").
			Category(errors.CategoryFileIO).
			Build()
	}

	line = strings.TrimRight(line, "\r\n")
	version := strings.TrimPrefix(line, versionPrefix)
	if version == line || version == "" {
		return "", errors.Newf("dataset must start with a %s<version> line, got %q", versionPrefix, line).
			Component("features").
			Category(errors.CategoryValidation).
			Build()
	}
	return version, nil
}
