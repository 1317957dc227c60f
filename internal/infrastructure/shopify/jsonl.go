package shopify

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
)

// Each bulk variables line is {"input": {...}} matching the mutation's $input.

type jsonlLine[T any] struct {
	Input T `json:"input"`
}

type priceInput struct {
	ID             string  `json:"id"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compareAtPrice"`
}

type statusInput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type costInput struct {
	ID   string `json:"id"`
	Cost string `json:"cost"`
}

// EncodePriceChanges renders price changes as bulk variables. A nil
// compare-at price is written as an explicit null so the field is cleared.
func EncodePriceChanges(changes []catalogsync.PriceChange) ([]byte, error) {
	inputs := make([]priceInput, 0, len(changes))
	for _, c := range changes {
		inputs = append(inputs, priceInput{ID: c.VariantID, Price: c.Price, CompareAtPrice: c.CompareAtPrice})
	}
	return encodeLines(inputs)
}

// DecodePriceChanges parses bulk variables written by EncodePriceChanges
func DecodePriceChanges(payload []byte) ([]catalogsync.PriceChange, error) {
	inputs, err := decodeLines[priceInput](payload)
	if err != nil {
		return nil, err
	}
	changes := make([]catalogsync.PriceChange, 0, len(inputs))
	for _, in := range inputs {
		changes = append(changes, catalogsync.PriceChange{VariantID: in.ID, Price: in.Price, CompareAtPrice: in.CompareAtPrice})
	}
	return changes, nil
}

// EncodeStatusChanges renders status changes as bulk variables
func EncodeStatusChanges(changes []catalogsync.StatusChange) ([]byte, error) {
	inputs := make([]statusInput, 0, len(changes))
	for _, c := range changes {
		inputs = append(inputs, statusInput{ID: c.ProductID, Status: c.Status.String()})
	}
	return encodeLines(inputs)
}

// DecodeStatusChanges parses bulk variables written by EncodeStatusChanges
func DecodeStatusChanges(payload []byte) ([]catalogsync.StatusChange, error) {
	inputs, err := decodeLines[statusInput](payload)
	if err != nil {
		return nil, err
	}
	changes := make([]catalogsync.StatusChange, 0, len(inputs))
	for _, in := range inputs {
		changes = append(changes, catalogsync.StatusChange{ProductID: in.ID, Status: catalogsync.ProductStatus(in.Status)})
	}
	return changes, nil
}

// EncodeCostChanges renders cost changes as bulk variables
func EncodeCostChanges(changes []catalogsync.CostChange) ([]byte, error) {
	inputs := make([]costInput, 0, len(changes))
	for _, c := range changes {
		inputs = append(inputs, costInput{ID: c.InventoryItemID, Cost: c.Cost})
	}
	return encodeLines(inputs)
}

// DecodeCostChanges parses bulk variables written by EncodeCostChanges
func DecodeCostChanges(payload []byte) ([]catalogsync.CostChange, error) {
	inputs, err := decodeLines[costInput](payload)
	if err != nil {
		return nil, err
	}
	changes := make([]catalogsync.CostChange, 0, len(inputs))
	for _, in := range inputs {
		changes = append(changes, catalogsync.CostChange{InventoryItemID: in.ID, Cost: in.Cost})
	}
	return changes, nil
}

func encodeLines[T any](inputs []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, in := range inputs {
		if err := enc.Encode(jsonlLine[T]{Input: in}); err != nil {
			return nil, fmt.Errorf("failed to encode line %d: %w", i+1, err)
		}
	}
	return buf.Bytes(), nil
}

func decodeLines[T any](payload []byte) ([]T, error) {
	var out []T
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var l jsonlLine[T]
		if err := json.Unmarshal(line, &l); err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformedJSONLine, n, err)
		}
		out = append(out, l.Input)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jsonl: %w", err)
	}
	return out, nil
}
