package google

import (
	"fmt"
	"strings"

	"myex/internal/core"
	"myex/internal/sources"
)

// Header names accepted for each column, canonical first.
var (
	txHeaders = map[string][]string{
		"id":          {"id"},
		"date":        {"date", "data"},
		"amount":      {"amount", "valor"},
		"currency":    {"currency", "moeda"},
		"category":    {"category", "categoria"},
		"type":        {"type", "tipo"},
		"description": {"description", "descrição", "descricao"},
		"source":      {"source", "origem"},
		"trip_id":     {"trip_id", "trip", "viagem"},
	}
	tripHeaders = map[string][]string{
		"id":     {"id"},
		"name":   {"name", "nome"},
		"start":  {"start", "inicio", "início"},
		"end":    {"end", "fim"},
		"budget": {"budget", "orcamento", "orçamento"},
	}
)

// parseTransactions converts a values matrix whose first row is a header.
// Rows are converted leniently; blank rows are dropped and rows without an
// id column get a synthetic "row:N" reference.
func parseTransactions(values [][]interface{}) []core.Transaction {
	if len(values) < 2 {
		return nil
	}
	cols := columns(toStrings(values[0]), txHeaders)
	out := make([]core.Transaction, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		rec := sources.TransactionRecord{
			ID:          cell(row, cols["id"]),
			Date:        cell(row, cols["date"]),
			Amount:      cell(row, cols["amount"]),
			Currency:    cell(row, cols["currency"]),
			Category:    cell(row, cols["category"]),
			Type:        cell(row, cols["type"]),
			Description: cell(row, cols["description"]),
			Source:      cell(row, cols["source"]),
			TripID:      cell(row, cols["trip_id"]),
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("row:%d", i+1)
		}
		out = append(out, rec.Transaction())
	}
	return out
}

// parseTrips returns valid trips and the number of rows that failed validation.
func parseTrips(values [][]interface{}) ([]core.Trip, int) {
	if len(values) < 2 {
		return nil, 0
	}
	cols := columns(toStrings(values[0]), tripHeaders)
	var out []core.Trip
	bad := 0
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		tr, err := sources.TripRecord{
			ID:     cell(row, cols["id"]),
			Name:   cell(row, cols["name"]),
			Start:  cell(row, cols["start"]),
			End:    cell(row, cols["end"]),
			Budget: cell(row, cols["budget"]),
		}.Trip()
		if err != nil || tr.ID == "" {
			bad++
			continue
		}
		out = append(out, tr)
	}
	return out, bad
}

func columns(headers []string, names map[string][]string) map[string]int {
	idx := make(map[string]int, len(names))
	for key, aliases := range names {
		idx[key] = -1
		for _, a := range aliases {
			if i := indexOf(headers, a); i >= 0 {
				idx[key] = i
				break
			}
		}
	}
	return idx
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
