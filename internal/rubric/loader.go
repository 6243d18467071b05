package rubric

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// loader reads rubric CSVs from a file path or an http(s) URL.
//
// Categories CSV: category,weight,criterion with one row per criterion, the
// weight repeated on each row of a category.
// Fields CSV: metric,deal_property,company_property.
type loader struct {
	categoriesSource string
	fieldsSource     string
	http             *http.Client
}

func newLoader(cfg *Config) *loader {
	return &loader{
		categoriesSource: cfg.CategoriesSource,
		fieldsSource:     cfg.FieldsSource,
		http:             &http.Client{Timeout: 15 * time.Second},
	}
}

func (l *loader) categories(ctx context.Context) ([]Category, error) {
	if l.categoriesSource == "" {
		return defaultCategories(), nil
	}

	rows, err := l.read(ctx, l.categoriesSource)
	if err != nil {
		return nil, fmt.Errorf("load rubric categories: %w", err)
	}

	var (
		categories []Category
		index      = make(map[string]int)
	)
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "category") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("rubric categories row %d: expected 3 columns, got %d", i+1, len(row))
		}

		name := strings.TrimSpace(row[0])
		weight, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("rubric categories row %d: invalid weight %q", i+1, row[1])
		}
		criterion := strings.TrimSpace(row[2])

		pos, ok := index[name]
		if !ok {
			index[name] = len(categories)
			categories = append(categories, Category{Name: name, Weight: weight})
			pos = index[name]
		}
		if criterion != "" {
			categories[pos].Criteria = append(categories[pos].Criteria, criterion)
		}
	}

	if len(categories) == 0 {
		return nil, fmt.Errorf("rubric categories source %q is empty", l.categoriesSource)
	}
	return categories, nil
}

func (l *loader) fields(ctx context.Context) (map[string]FieldMapping, error) {
	if l.fieldsSource == "" {
		return defaultFieldRegistry(), nil
	}

	rows, err := l.read(ctx, l.fieldsSource)
	if err != nil {
		return nil, fmt.Errorf("load field registry: %w", err)
	}

	fields := make(map[string]FieldMapping)
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "metric") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("field registry row %d: expected 3 columns, got %d", i+1, len(row))
		}

		metric := strings.TrimSpace(row[0])
		if metric == "" {
			continue
		}
		fields[metric] = FieldMapping{
			DealProperty:    strings.TrimSpace(row[1]),
			CompanyProperty: strings.TrimSpace(row[2]),
		}
	}
	return fields, nil
}

func (l *loader) read(ctx context.Context, source string) ([][]string, error) {
	var reader io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}

		resp, err := l.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", source, resp.StatusCode)
		}
		reader = resp.Body
	} else {
		file, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		reader = file
	}
	defer reader.Close()

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
