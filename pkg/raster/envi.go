package raster

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WavelengthField formats the ENVI wavelength entry appended to a header.
// Values keep their shortest exact decimal form.
func WavelengthField(wavelengths []float64) string {
	parts := make([]string, len(wavelengths))
	for i, w := range wavelengths {
		parts[i] = strconv.FormatFloat(w, 'f', -1, 64)
	}
	return "\nwavelength = {" + strings.Join(parts, ",") + "}"
}

// appendWavelengthField adds the wavelength entry to a header GDAL has
// already written and closed
func appendWavelengthField(headerPath string, wavelengths []float64) error {
	file, err := os.OpenFile(headerPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open ENVI header: %w", err)
	}
	if _, err := file.WriteString(WavelengthField(wavelengths)); err != nil {
		file.Close()
		return fmt.Errorf("failed to append wavelengths: %w", err)
	}
	return file.Close()
}

// headerWavelengths returns the wavelength list of an ENVI header, or nil
// when the header has none
func headerWavelengths(headerPath string) ([]float64, error) {
	text, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ENVI header: %w", err)
	}
	fields, err := parseENVIHeader(string(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", headerPath, err)
	}
	w, ok := fields["wavelength"]
	if !ok {
		return nil, nil
	}
	values, err := parseFloatList(w)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid wavelength list: %w", headerPath, err)
	}
	return values, nil
}

// parseENVIHeader parses "key = value" entries, joining brace blocks that span lines
func parseENVIHeader(text string) (map[string]string, error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "ENVI" {
		return nil, fmt.Errorf("missing ENVI signature")
	}

	fields := make(map[string]string)
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "{") {
			for !strings.Contains(value, "}") && i+1 < len(lines) {
				i++
				value += strings.TrimSpace(lines[i])
			}
			value = strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}")
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return fields, nil
}

func parseFloatList(s string) ([]float64, error) {
	var values []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
